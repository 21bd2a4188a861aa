package voiceprocessor

import (
	"context"
)

// Frame is one fixed-size chunk of consecutively captured mono S16 samples.
//
// Samples is only valid during the OnFrame call and must not be modified;
// use Clone to keep it.
type Frame struct {
	Sequence uint64
	Samples  []int16
}

func (f Frame) Clone() Frame {
	samples := make([]int16, len(f.Samples))
	copy(samples, f.Samples)
	return Frame{
		Sequence: f.Sequence,
		Samples:  samples,
	}
}

// FrameListener is called synchronously on the capture goroutine; the next
// frame is not read until OnFrame returns.
type FrameListener interface {
	OnFrame(ctx context.Context, frame Frame)
}

type FrameListenerFunc func(ctx context.Context, frame Frame)

func (fn FrameListenerFunc) OnFrame(ctx context.Context, frame Frame) {
	fn(ctx, frame)
}

// ErrorListener is called synchronously on the capture goroutine.
type ErrorListener interface {
	OnError(ctx context.Context, err *CaptureError)
}

type ErrorListenerFunc func(ctx context.Context, err *CaptureError)

func (fn ErrorListenerFunc) OnError(ctx context.Context, err *CaptureError) {
	fn(ctx, err)
}
