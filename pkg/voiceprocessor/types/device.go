package types

import (
	"context"
	"io"
)

type OpenParams struct {
	SampleRate SampleRate
	Channels   Channel
	PCMFormat  PCMFormat

	// BufferSize is the amount of samples the device may hold between two reads.
	BufferSize int

	// FrameLength is the amount of samples every Read call asks for.
	FrameLength int
}

type Device interface {
	io.Closer

	Ping(ctx context.Context) error
	MinBufferSize(
		ctx context.Context,
		sampleRate SampleRate,
		channels Channel,
		format PCMFormat,
	) (int, error)
	Open(ctx context.Context, params OpenParams) (DeviceHandle, error)
}

// DeviceHandle is an opened capture device. It is used by a single goroutine
// at a time.
type DeviceHandle interface {
	StartStreaming() error

	// Read blocks until len(buf) samples are captured, or returns fewer
	// samples if the device could not provide a full buffer this time.
	Read(buf []int16) (int, error)

	StopStreaming() error
	Release() error
}
