package pcmbuffer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Run("WriteThenRead", func(t *testing.T) {
		b := New(8)
		require.Equal(t, 3, b.Write([]int16{1, -2, 3}))
		require.Equal(t, 2, b.Write([]int16{-32768, 32767}))

		out := make([]int16, 4)
		n, err := b.Read(out)
		require.NoError(t, err)
		require.Equal(t, 4, n)
		require.Equal(t, []int16{1, -2, 3, -32768}, out)
		require.Equal(t, 1, b.Buffered())
	})

	t.Run("WriteBytes", func(t *testing.T) {
		b := New(4)
		// the trailing odd byte is ignored
		require.Equal(t, 2, b.WriteBytes([]byte{0x01, 0x00, 0xff, 0xff, 0x42}))

		out := make([]int16, 2)
		n, err := b.Read(out)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.Equal(t, []int16{1, -1}, out)
	})

	t.Run("ReadBlocksUntilEnough", func(t *testing.T) {
		b := New(16)
		b.Write([]int16{1, 2})

		type result struct {
			n   int
			err error
		}
		resultCh := make(chan result, 1)
		out := make([]int16, 4)
		go func() {
			n, err := b.Read(out)
			resultCh <- result{n, err}
		}()

		select {
		case <-resultCh:
			t.Fatal("Read returned before enough samples were buffered")
		case <-time.After(50 * time.Millisecond):
		}

		b.Write([]int16{3, 4, 5})
		select {
		case r := <-resultCh:
			require.NoError(t, r.err)
			require.Equal(t, 4, r.n)
			require.Equal(t, []int16{1, 2, 3, 4}, out)
		case <-time.After(time.Second):
			t.Fatal("Read did not return")
		}
	})

	t.Run("OverflowDropsWholeChunk", func(t *testing.T) {
		b := New(4)
		require.Equal(t, 3, b.Write([]int16{1, 2, 3}))
		require.Equal(t, 0, b.Write([]int16{4, 5}))
		require.Equal(t, uint64(2), b.Dropped())
		require.Equal(t, 1, b.Write([]int16{6}))

		out := make([]int16, 4)
		_, err := b.Read(out)
		require.NoError(t, err)
		require.Equal(t, []int16{1, 2, 3, 6}, out)
	})

	t.Run("ReadLargerThanCapacity", func(t *testing.T) {
		b := New(2)
		_, err := b.Read(make([]int16, 3))
		require.Error(t, err)
	})

	t.Run("CloseUnblocksReaders", func(t *testing.T) {
		b := New(8)
		errCh := make(chan error, 1)
		go func() {
			_, err := b.Read(make([]int16, 4))
			errCh <- err
		}()
		time.Sleep(10 * time.Millisecond)
		b.Close()
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("Read was not unblocked by Close")
		}
		require.Equal(t, 0, b.Write([]int16{1}))
	})

	t.Run("CloseWithError", func(t *testing.T) {
		b := New(8)
		streamErr := errors.New("stream died")
		b.CloseWithError(streamErr)
		b.CloseWithError(errors.New("ignored"))
		_, err := b.Read(make([]int16, 1))
		require.ErrorIs(t, err, streamErr)
	})

	t.Run("CloseKeepsFullyBufferedData", func(t *testing.T) {
		b := New(8)
		b.Write([]int16{7, 8})
		b.Close()
		out := make([]int16, 2)
		n, err := b.Read(out)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.Equal(t, []int16{7, 8}, out)
	})
}
