package miniaudio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/malgo"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/pcmbuffer"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

type CaptureHandle struct {
	MalgoDevice *malgo.Device
	Buffer      *pcmbuffer.Buffer

	ctx context.Context
}

var _ types.DeviceHandle = (*CaptureHandle)(nil)

func (h *CaptureHandle) StartStreaming() error {
	if err := h.MalgoDevice.Start(); err != nil {
		return fmt.Errorf("unable to start the capture device: %w", err)
	}
	return nil
}

func (h *CaptureHandle) Read(buf []int16) (int, error) {
	return h.Buffer.Read(buf)
}

func (h *CaptureHandle) StopStreaming() error {
	err := h.MalgoDevice.Stop()
	h.Buffer.Close()
	return err
}

func (h *CaptureHandle) Release() error {
	if dropped := h.Buffer.Dropped(); dropped > 0 {
		logger.Warnf(h.ctx, "dropped %d samples due to a full buffer", dropped)
	}
	h.MalgoDevice.Uninit()
	return nil
}
