package pulseaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/pcmbuffer"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

const streamCheckInterval = 100 * time.Millisecond

type streamStatus interface {
	Error() error
	Closed() bool
}

type RecordHandle struct {
	*pulse.RecordStream
	Buffer *pcmbuffer.Buffer

	ctx        context.Context
	cancelFunc context.CancelFunc
	waitGroup  sync.WaitGroup
}

var _ types.DeviceHandle = (*RecordHandle)(nil)

func newRecordHandle(
	ctx context.Context,
	bufferSize int,
) *RecordHandle {
	return &RecordHandle{
		Buffer: pcmbuffer.New(bufferSize),
		ctx:    ctx,
	}
}

// write is called by the Pulse client goroutine.
func (h *RecordHandle) write(samples []int16) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	if accepted := h.Buffer.Write(samples); accepted == 0 {
		logger.Tracef(h.ctx, "the buffer is full, dropped %d samples", len(samples))
	}
	return len(samples), nil
}

func (h *RecordHandle) StartStreaming() error {
	h.RecordStream.Start()
	if err := h.RecordStream.Error(); err != nil {
		return fmt.Errorf("an error occurred during recording: %w", err)
	}

	ctx, cancelFunc := context.WithCancel(h.ctx)
	h.cancelFunc = cancelFunc
	h.waitGroup.Add(1)
	observability.Go(ctx, func() {
		defer h.waitGroup.Done()
		watchStream(ctx, h.RecordStream, h.Buffer)
	})
	return nil
}

// watchStream wakes up a blocked Read if the stream dies or the session is
// stopped, since the writer may never be called again in those cases.
func watchStream(
	ctx context.Context,
	stream streamStatus,
	buffer *pcmbuffer.Buffer,
) {
	t := time.NewTicker(streamCheckInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			buffer.CloseWithError(ctx.Err())
			return
		case <-t.C:
		}
		if err := stream.Error(); err != nil {
			logger.Errorf(ctx, "the record stream failed: %v", err)
			buffer.CloseWithError(fmt.Errorf("an error occurred during recording: %w", err))
			return
		}
		if stream.Closed() {
			buffer.CloseWithError(fmt.Errorf("the record stream was closed"))
			return
		}
	}
}

func (h *RecordHandle) Read(buf []int16) (int, error) {
	return h.Buffer.Read(buf)
}

func (h *RecordHandle) StopStreaming() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	if h.cancelFunc != nil {
		h.cancelFunc()
		h.waitGroup.Wait()
	}
	h.RecordStream.Stop()
	h.Buffer.Close()
	return h.RecordStream.Error()
}

func (h *RecordHandle) Release() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	if dropped := h.Buffer.Dropped(); dropped > 0 {
		logger.Warnf(h.ctx, "dropped %d samples due to a full buffer", dropped)
	}
	h.RecordStream.Close()
	return nil
}
