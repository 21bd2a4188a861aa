package permission

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Checker reports whether the process may capture audio. RequestPermission
// may block on an interaction with the user.
type Checker interface {
	HasPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) (bool, error)
}

type Granted struct{}

var _ Checker = Granted{}

func (Granted) HasPermission(context.Context) bool {
	return true
}

func (Granted) RequestPermission(context.Context) (bool, error) {
	return true, nil
}

// Static is a Checker whose answer is set by the embedder, for example after
// the platform permission dialog resolved.
type Static struct {
	granted atomic.Bool

	onRequestLocker sync.Mutex
	onRequest       func(ctx context.Context) (bool, error)
}

var _ Checker = (*Static)(nil)

func NewStatic(granted bool) *Static {
	s := &Static{}
	s.granted.Store(granted)
	return s
}

func (s *Static) Set(granted bool) {
	s.granted.Store(granted)
}

// OnRequest sets the function RequestPermission consults when the permission
// is not granted yet.
func (s *Static) OnRequest(fn func(ctx context.Context) (bool, error)) {
	s.onRequestLocker.Lock()
	defer s.onRequestLocker.Unlock()
	s.onRequest = fn
}

func (s *Static) HasPermission(context.Context) bool {
	return s.granted.Load()
}

func (s *Static) RequestPermission(ctx context.Context) (_ret bool, _err error) {
	logger.Debugf(ctx, "RequestPermission")
	defer func() { logger.Debugf(ctx, "/RequestPermission: %v %v", _ret, _err) }()

	if s.granted.Load() {
		return true, nil
	}

	s.onRequestLocker.Lock()
	fn := s.onRequest
	s.onRequestLocker.Unlock()
	if fn == nil {
		return false, nil
	}

	granted, err := fn(ctx)
	if err != nil {
		return false, err
	}
	if granted {
		s.granted.Store(true)
	}
	return granted, nil
}
