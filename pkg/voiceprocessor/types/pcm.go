package types

import (
	"fmt"
	"time"
)

type SampleRate uint32

// Samples returns how many samples of a single channel cover the duration.
func (r SampleRate) Samples(d time.Duration) int {
	return int(d.Seconds() * float64(r))
}

// Duration returns how long the given amount of single-channel samples lasts.
func (r SampleRate) Duration(samples int) time.Duration {
	if r == 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(r)
}

type Channel uint32

const (
	ChannelMono = Channel(1)
)

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatS16LE
)

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "undefined"
	case PCMFormatS16LE:
		return "s16le"
	default:
		return fmt.Sprintf("unknown_format_%d", uint(f))
	}
}

// Size returns the amount of bytes a single sample of the format occupies.
func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatS16LE:
		return 2
	default:
		return 0
	}
}
