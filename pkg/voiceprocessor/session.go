package voiceprocessor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

type SessionInfo struct {
	ID          uuid.UUID
	FrameLength int
	SampleRate  types.SampleRate
	BufferSize  int
	State       State
}

type captureCtxKey struct{}

func sessionFromCaptureCtx(ctx context.Context) *session {
	s, _ := ctx.Value(captureCtxKey{}).(*session)
	return s
}

// session is a single start-to-stop cycle; it is never restarted.
type session struct {
	engine      *Engine
	ID          uuid.UUID
	FrameLength int
	SampleRate  types.SampleRate
	BufferSize  int

	state      atomic.Uint32
	cancelFunc context.CancelFunc
	stopCh     <-chan struct{}
	startedCh  chan struct{}
	doneCh     chan struct{}

	// written by the capture goroutine before doneCh is closed
	failure    *CaptureError
	releaseErr error
}

func newSession(
	engine *Engine,
	frameLength int,
	sampleRate types.SampleRate,
	bufferSize int,
) *session {
	s := &session{
		engine:      engine,
		ID:          uuid.New(),
		FrameLength: frameLength,
		SampleRate:  sampleRate,
		BufferSize:  bufferSize,
		startedCh:   make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	s.state.Store(uint32(StateOpening))
	return s
}

func (s *session) State() State {
	return State(s.state.Load())
}

func (s *session) IsDone() bool {
	select {
	case <-s.doneCh:
		return true
	default:
		return false
	}
}

// IsEnding reports whether the session failed or was asked to stop, so it
// is not going to deliver frames anymore even if its teardown is not done yet.
func (s *session) IsEnding() bool {
	if s.State() == StateIdle || s.IsDone() {
		return true
	}
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *session) Info() SessionInfo {
	return SessionInfo{
		ID:          s.ID,
		FrameLength: s.FrameLength,
		SampleRate:  s.SampleRate,
		BufferSize:  s.BufferSize,
		State:       s.State(),
	}
}

// Start launches the capture goroutine. The session outlives the
// cancellation of ctx; it ends only through cancelFunc or a failure.
func (s *session) Start(ctx context.Context) {
	ctx = belt.WithField(context.WithoutCancel(ctx), "session_id", s.ID.String())
	ctx, s.cancelFunc = context.WithCancel(ctx)
	s.stopCh = ctx.Done()
	observability.Go(ctx, func() {
		defer s.cancelFunc()
		s.captureLoop(ctx)
	})
}

func (s *session) captureLoop(ctx context.Context) {
	logger.Debugf(ctx, "captureLoop")
	defer func() { logger.Debugf(ctx, "/captureLoop") }()

	defer close(s.doneCh)
	defer s.state.Store(uint32(StateIdle))
	listenerCtx := context.WithValue(ctx, captureCtxKey{}, s)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.fail(listenerCtx, newCaptureError(ErrorKindListenerPanicked, nil, "got a panic: %v", r))
	}()

	params := types.OpenParams{
		SampleRate:  s.SampleRate,
		Channels:    types.ChannelMono,
		PCMFormat:   types.PCMFormatS16LE,
		BufferSize:  s.BufferSize,
		FrameLength: s.FrameLength,
	}
	var handle types.DeviceHandle
	err := callDevice(func() (err error) {
		handle, err = s.engine.device.Open(ctx, params)
		return
	})
	if err != nil {
		s.fail(listenerCtx, newCaptureError(ErrorKindDeviceOpenFailed, err, "unable to open the device with %#+v", params))
		return
	}
	defer s.teardown(ctx, handle)

	if err := callDevice(handle.StartStreaming); err != nil {
		s.fail(listenerCtx, newCaptureError(ErrorKindDeviceOpenFailed, err, "unable to start streaming"))
		return
	}

	buf := make([]int16, s.FrameLength)
	var sequence uint64
	for {
		if ctx.Err() != nil {
			return
		}

		watermark := s.engine.frameListeners.Watermark()
		var n int
		err := callDevice(func() (err error) {
			n, err = handle.Read(buf)
			return
		})
		if err != nil {
			if ctx.Err() != nil {
				logger.Debugf(ctx, "the read was interrupted by the stop: %v", err)
				return
			}
			s.fail(listenerCtx, newCaptureError(ErrorKindDeviceReadFailed, err, "unable to read frame #%d", sequence))
			return
		}
		if ctx.Err() != nil {
			return
		}
		if n != len(buf) {
			logger.Tracef(ctx, "discarding a short read: %d != %d", n, len(buf))
			continue
		}

		if s.state.CompareAndSwap(uint32(StateOpening), uint32(StateStreaming)) {
			logger.Debugf(ctx, "received the first frame")
			close(s.startedCh)
		}

		s.engine.dispatchFrame(listenerCtx, Frame{
			Sequence: sequence,
			Samples:  buf,
		}, watermark)
		sequence++
	}
}

// fail reports a session-ending error. The state is switched first, so
// error listeners already observe the engine as not recording.
func (s *session) fail(ctx context.Context, err *CaptureError) {
	logger.Errorf(ctx, "%v", err)
	s.state.Store(uint32(StateIdle))
	if s.failure == nil {
		s.failure = err
	}
	s.engine.dispatchError(ctx, err)
}

func (s *session) teardown(ctx context.Context, handle types.DeviceHandle) {
	logger.Debugf(ctx, "teardown")
	defer func() { logger.Debugf(ctx, "/teardown: %v", s.releaseErr) }()

	var mErr *multierror.Error
	if err := callDevice(handle.StopStreaming); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to stop streaming: %w", err))
	}
	if err := callDevice(handle.Release); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to release the device: %w", err))
	}
	s.releaseErr = mErr.ErrorOrNil()
}

// callDevice turns a panic inside the device layer into an error.
func callDevice(fn func() error) (_err error) {
	defer func() {
		r := recover()
		if r != nil {
			_err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	return fn()
}
