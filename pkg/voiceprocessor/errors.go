package voiceprocessor

import (
	"fmt"
)

// ErrorKind is the tag of a CaptureError. It implements error, so
// errors.Is(err, ErrorKindDeviceOpenFailed) matches any CaptureError of
// that kind.
type ErrorKind uint

const (
	ErrorKindUndefined = ErrorKind(iota)
	ErrorKindInvalidArgument
	ErrorKindPermissionDenied
	ErrorKindDeviceOpenFailed
	ErrorKindDeviceReadFailed
	ErrorKindDeviceReleaseFailed
	ErrorKindListenerPanicked

	// benign, never returned
	ErrorKindAlreadyStarted
	ErrorKindAlreadyStopped
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUndefined:
		return "undefined"
	case ErrorKindInvalidArgument:
		return "invalid_argument"
	case ErrorKindPermissionDenied:
		return "permission_denied"
	case ErrorKindDeviceOpenFailed:
		return "device_open_failed"
	case ErrorKindDeviceReadFailed:
		return "device_read_failed"
	case ErrorKindDeviceReleaseFailed:
		return "device_release_failed"
	case ErrorKindListenerPanicked:
		return "listener_panicked"
	case ErrorKindAlreadyStarted:
		return "already_started"
	case ErrorKindAlreadyStopped:
		return "already_stopped"
	default:
		return fmt.Sprintf("unknown_error_kind_%d", uint(k))
	}
}

func (k ErrorKind) Error() string {
	return k.String()
}

type CaptureError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

var _ error = (*CaptureError)(nil)

func newCaptureError(kind ErrorKind, err error, format string, args ...any) *CaptureError {
	return &CaptureError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func (e *CaptureError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}
