package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

func openParams(frameLength int) types.OpenParams {
	return types.OpenParams{
		SampleRate:  16000,
		Channels:    types.ChannelMono,
		PCMFormat:   types.PCMFormatS16LE,
		BufferSize:  8000,
		FrameLength: frameLength,
	}
}

func TestDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("ContinuousStream", func(t *testing.T) {
		d := NewDevice(Config{MinBufferSize: 123})
		minBufferSize, err := d.MinBufferSize(ctx, 16000, types.ChannelMono, types.PCMFormatS16LE)
		require.NoError(t, err)
		require.Equal(t, 123, minBufferSize)

		h, err := d.Open(ctx, openParams(4))
		require.NoError(t, err)
		require.NoError(t, h.StartStreaming())

		buf := make([]int16, 4)
		for frame := uint64(0); frame < 3; frame++ {
			n, err := h.Read(buf)
			require.NoError(t, err)
			require.Equal(t, 4, n)
			for idx, sample := range buf {
				require.Equal(t, SampleAt(frame*4+uint64(idx)), sample)
				require.NotZero(t, sample)
			}
		}

		require.NoError(t, h.StopStreaming())
		require.NoError(t, h.Release())
		require.Error(t, h.Release())
		require.Equal(t, int64(1), d.Opens())
		require.Equal(t, int64(1), d.Releases())
		require.Equal(t, int64(3), d.Reads())

		params, ok := d.LastOpenParams()
		require.True(t, ok)
		require.Equal(t, openParams(4), params)
	})

	t.Run("ReadRequiresStreaming", func(t *testing.T) {
		d := NewDevice(Config{})
		h, err := d.Open(ctx, openParams(4))
		require.NoError(t, err)
		_, err = h.Read(make([]int16, 4))
		require.Error(t, err)
	})

	t.Run("OpenError", func(t *testing.T) {
		openErr := errors.New("no microphone")
		d := NewDevice(Config{OpenError: openErr})
		_, err := d.Open(ctx, openParams(4))
		require.ErrorIs(t, err, openErr)
		require.Equal(t, int64(1), d.Opens())
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		d := NewDevice(Config{})
		params := openParams(4)
		params.Channels = 2
		_, err := d.Open(ctx, params)
		require.Error(t, err)
	})

	t.Run("FailReadAfter", func(t *testing.T) {
		d := NewDevice(Config{FailReadAfter: 2})
		h, err := d.Open(ctx, openParams(4))
		require.NoError(t, err)
		require.NoError(t, h.StartStreaming())
		buf := make([]int16, 4)
		for i := 0; i < 2; i++ {
			_, err := h.Read(buf)
			require.NoError(t, err)
		}
		_, err = h.Read(buf)
		require.ErrorIs(t, err, ErrReadFailed)
	})

	t.Run("ShortReadEvery", func(t *testing.T) {
		d := NewDevice(Config{ShortReadEvery: 2})
		h, err := d.Open(ctx, openParams(4))
		require.NoError(t, err)
		require.NoError(t, h.StartStreaming())
		buf := make([]int16, 4)
		var counts []int
		for i := 0; i < 4; i++ {
			n, err := h.Read(buf)
			require.NoError(t, err)
			counts = append(counts, n)
		}
		require.Equal(t, []int{4, 2, 4, 2}, counts)
	})

	t.Run("StallAfter", func(t *testing.T) {
		d := NewDevice(Config{StallAfter: 1})
		openCtx, cancelFn := context.WithCancel(ctx)
		h, err := d.Open(openCtx, openParams(4))
		require.NoError(t, err)
		require.NoError(t, h.StartStreaming())
		buf := make([]int16, 4)
		n, err := h.Read(buf)
		require.NoError(t, err)
		require.Equal(t, 4, n)

		errCh := make(chan error, 1)
		go func() {
			_, err := h.Read(buf)
			errCh <- err
		}()
		select {
		case err := <-errCh:
			t.Fatalf("the read returned before the cancellation: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
		cancelFn()
		require.ErrorIs(t, <-errCh, ErrStalled)
	})
}
