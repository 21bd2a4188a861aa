// Package voiceprocessor captures fixed-size frames of mono S16 audio from
// an input device and fans every frame out to registered listeners.
package voiceprocessor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/permission"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

type State uint32

const (
	StateIdle = State(iota)
	StateOpening
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("unknown_state_%d", uint32(s))
	}
}

// Engine runs at most one capture session at a time. Construct one per
// device with NewEngine and share the pointer.
type Engine struct {
	device      types.Device
	permissions permission.Checker

	listenerIDCounter atomic.Uint64
	frameListeners    *listenerRegistry[FrameListener]
	errorListeners    *listenerRegistry[ErrorListener]

	lifecycleLocker sync.Mutex
	session         atomic.Pointer[session]
}

// NewEngine returns an idle engine capturing from the device. A nil checker
// means the permission is always granted.
func NewEngine(
	device types.Device,
	permissions permission.Checker,
) *Engine {
	if permissions == nil {
		permissions = permission.Granted{}
	}
	e := &Engine{
		device:      device,
		permissions: permissions,
	}
	e.frameListeners = newListenerRegistry[FrameListener](&e.listenerIDCounter)
	e.errorListeners = newListenerRegistry[ErrorListener](&e.listenerIDCounter)
	return e
}

func (e *Engine) AddFrameListener(listener FrameListener) ListenerID {
	return e.frameListeners.Add(listener)[0]
}

func (e *Engine) AddFrameListeners(listeners ...FrameListener) []ListenerID {
	return e.frameListeners.Add(listeners...)
}

func (e *Engine) RemoveFrameListener(id ListenerID) bool {
	return e.frameListeners.Remove(id) > 0
}

func (e *Engine) RemoveFrameListeners(ids ...ListenerID) int {
	return e.frameListeners.Remove(ids...)
}

func (e *Engine) ClearFrameListeners() {
	e.frameListeners.Clear()
}

func (e *Engine) NumFrameListeners() int {
	return e.frameListeners.Len()
}

func (e *Engine) AddErrorListener(listener ErrorListener) ListenerID {
	return e.errorListeners.Add(listener)[0]
}

func (e *Engine) AddErrorListeners(listeners ...ErrorListener) []ListenerID {
	return e.errorListeners.Add(listeners...)
}

func (e *Engine) RemoveErrorListener(id ListenerID) bool {
	return e.errorListeners.Remove(id) > 0
}

func (e *Engine) RemoveErrorListeners(ids ...ListenerID) int {
	return e.errorListeners.Remove(ids...)
}

func (e *Engine) ClearErrorListeners() {
	e.errorListeners.Clear()
}

func (e *Engine) NumErrorListeners() int {
	return e.errorListeners.Len()
}

func (e *Engine) HasCapturePermission(ctx context.Context) bool {
	return e.permissions.HasPermission(ctx)
}

func (e *Engine) RequestCapturePermission(ctx context.Context) (bool, error) {
	return e.permissions.RequestPermission(ctx)
}

// Start opens the device and blocks until the first full frame is captured.
// It is a no-op if a session is already running. Errors are *CaptureError,
// except for the cancellation of ctx while waiting.
func (e *Engine) Start(
	ctx context.Context,
	frameLength int,
	sampleRate types.SampleRate,
) (_err error) {
	logger.Debugf(ctx, "Start(%d, %d)", frameLength, sampleRate)
	defer func() { logger.Debugf(ctx, "/Start(%d, %d): %v", frameLength, sampleRate, _err) }()

	if frameLength <= 0 {
		return newCaptureError(ErrorKindInvalidArgument, nil, "frame length must be positive, but is %d", frameLength)
	}
	if sampleRate == 0 {
		return newCaptureError(ErrorKindInvalidArgument, nil, "sample rate must be positive, but is %d", sampleRate)
	}

	if s := e.sessionOfCaptureCtx(ctx); s != nil {
		logger.Debugf(ctx, "%s: called from a listener of session %s", ErrorKindAlreadyStarted, s.ID)
		return nil
	}

	e.lifecycleLocker.Lock()
	defer e.lifecycleLocker.Unlock()

	if s := e.session.Load(); s != nil {
		if !s.IsEnding() {
			logger.Debugf(ctx, "%s: session %s", ErrorKindAlreadyStarted, s.ID)
			return nil
		}
		logger.Debugf(ctx, "waiting for session %s to finish its teardown", s.ID)
		<-s.doneCh
		if s.releaseErr != nil {
			logger.Warnf(ctx, "session %s failed to release the device: %v", s.ID, s.releaseErr)
		}
		e.session.Store(nil)
	}

	if !e.permissions.HasPermission(ctx) {
		return newCaptureError(ErrorKindPermissionDenied, nil, "no permission to capture audio")
	}

	minBufferSize, err := e.device.MinBufferSize(ctx, sampleRate, types.ChannelMono, types.PCMFormatS16LE)
	if err != nil {
		return newCaptureError(ErrorKindDeviceOpenFailed, err, "unable to query the minimal buffer size")
	}
	bufferSize := max(int(sampleRate)/2, minBufferSize)
	logger.Debugf(ctx, "buffer size: %d samples (device minimum: %d)", bufferSize, minBufferSize)

	s := newSession(e, frameLength, sampleRate, bufferSize)
	e.session.Store(s)
	s.Start(ctx)

	select {
	case <-s.startedCh:
		return nil
	case <-s.doneCh:
		select {
		case <-s.startedCh:
			// the session captured a frame and then failed; the failure
			// was already reported to the error listeners
			return nil
		default:
		}
		e.session.Store(nil)
		if s.failure == nil {
			return newCaptureError(ErrorKindDeviceReadFailed, nil, "the capture loop ended before the first frame")
		}
		return s.failure
	case <-ctx.Done():
		s.cancelFunc()
		<-s.doneCh
		e.session.Store(nil)
		return fmt.Errorf("interrupted while waiting for the first frame: %w", ctx.Err())
	}
}

// Stop ends the session and blocks until the device is released; after it
// returns no listener is called for that session anymore. It is a no-op if
// nothing is running.
//
// When called with the context given to a listener, Stop only asks the
// session to end and returns immediately, since the capture goroutine cannot
// wait for itself.
func (e *Engine) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop: %v", _err) }()

	if s := e.sessionOfCaptureCtx(ctx); s != nil {
		logger.Debugf(ctx, "called from a listener of session %s, not waiting", s.ID)
		s.cancelFunc()
		return nil
	}

	e.lifecycleLocker.Lock()
	defer e.lifecycleLocker.Unlock()

	s := e.session.Load()
	if s == nil {
		logger.Debugf(ctx, "%s", ErrorKindAlreadyStopped)
		return nil
	}
	s.cancelFunc()
	<-s.doneCh
	e.session.Store(nil)

	if s.releaseErr != nil {
		if s.failure != nil {
			logger.Warnf(ctx, "session %s failed to release the device: %v", s.ID, s.releaseErr)
			return nil
		}
		return newCaptureError(ErrorKindDeviceReleaseFailed, s.releaseErr, "unable to release the device")
	}
	return nil
}

// Close stops the capture and forgets all the listeners.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Stop(ctx)
	e.ClearFrameListeners()
	e.ClearErrorListeners()
	return err
}

func (e *Engine) IsRecording() bool {
	return e.State() == StateStreaming
}

func (e *Engine) State() State {
	s := e.session.Load()
	if s == nil {
		return StateIdle
	}
	return s.State()
}

// Session returns the parameters of the current session, if there is one.
func (e *Engine) Session() (SessionInfo, bool) {
	s := e.session.Load()
	if s == nil {
		return SessionInfo{}, false
	}
	return s.Info(), true
}

// sessionOfCaptureCtx returns the current session if ctx is a context the
// session gave to a listener, i.e. if the caller runs on its capture goroutine.
func (e *Engine) sessionOfCaptureCtx(ctx context.Context) *session {
	s := sessionFromCaptureCtx(ctx)
	if s == nil || s != e.session.Load() || s.IsDone() {
		return nil
	}
	return s
}

func (e *Engine) dispatchFrame(
	ctx context.Context,
	frame Frame,
	watermark ListenerID,
) {
	for _, entry := range e.frameListeners.Snapshot() {
		if entry.ID > watermark {
			// registered while the frame was being read
			continue
		}
		entry.Listener.OnFrame(ctx, frame)
	}
}

func (e *Engine) dispatchError(
	ctx context.Context,
	err *CaptureError,
) {
	for _, entry := range e.errorListeners.Snapshot() {
		entry.Listener.OnError(ctx, err)
	}
}
