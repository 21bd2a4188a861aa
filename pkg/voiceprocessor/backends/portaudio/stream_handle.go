package portaudio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

type StreamHandle struct {
	PortAudioStream *portaudio.Stream
	InputBuffer     []int16

	ctx context.Context
}

var _ types.DeviceHandle = (*StreamHandle)(nil)

func (h *StreamHandle) StartStreaming() error {
	if err := h.PortAudioStream.Start(); err != nil {
		return fmt.Errorf("unable to start the stream: %w", err)
	}
	return nil
}

// Read blocks until the stream delivers a whole period. An overflowed
// period is reported as an empty read, since some of its samples are lost.
func (h *StreamHandle) Read(buf []int16) (int, error) {
	logger.Tracef(h.ctx, "Read")
	err := h.PortAudioStream.Read()
	logger.Tracef(h.ctx, "/Read: %v", err)
	switch err {
	case nil:
	case portaudio.InputOverflowed:
		logger.Debugf(h.ctx, "input overflowed")
		return 0, nil
	default:
		return 0, fmt.Errorf("unable to read: %w", err)
	}
	return copy(buf, h.InputBuffer), nil
}

func (h *StreamHandle) StopStreaming() error {
	return h.PortAudioStream.Stop()
}

func (h *StreamHandle) Release() error {
	return h.PortAudioStream.Close()
}
