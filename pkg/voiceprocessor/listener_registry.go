package voiceprocessor

import (
	"sync"
	"sync/atomic"
)

// ListenerID identifies a registered listener. IDs grow monotonically, so a
// listener with an ID above a watermark was registered after the watermark
// was taken.
type ListenerID uint64

type listenerEntry[T any] struct {
	ID       ListenerID
	Listener T
}

// listenerRegistry is copy-on-write: entries is replaced on every change and
// never mutated in place, so a snapshot may be iterated without the lock.
type listenerRegistry[T any] struct {
	locker  sync.Mutex
	entries []listenerEntry[T]
	lastID  *atomic.Uint64
}

func newListenerRegistry[T any](idCounter *atomic.Uint64) *listenerRegistry[T] {
	return &listenerRegistry[T]{
		lastID: idCounter,
	}
}

func (r *listenerRegistry[T]) Add(listeners ...T) []ListenerID {
	if len(listeners) == 0 {
		return nil
	}
	r.locker.Lock()
	defer r.locker.Unlock()

	ids := make([]ListenerID, 0, len(listeners))
	entries := make([]listenerEntry[T], len(r.entries), len(r.entries)+len(listeners))
	copy(entries, r.entries)
	for _, listener := range listeners {
		id := ListenerID(r.lastID.Add(1))
		entries = append(entries, listenerEntry[T]{
			ID:       id,
			Listener: listener,
		})
		ids = append(ids, id)
	}
	r.entries = entries
	return ids
}

// Remove returns the amount of listeners actually removed.
func (r *listenerRegistry[T]) Remove(ids ...ListenerID) int {
	if len(ids) == 0 {
		return 0
	}
	r.locker.Lock()
	defer r.locker.Unlock()

	toRemove := make(map[ListenerID]struct{}, len(ids))
	for _, id := range ids {
		toRemove[id] = struct{}{}
	}

	entries := make([]listenerEntry[T], 0, len(r.entries))
	for _, entry := range r.entries {
		if _, ok := toRemove[entry.ID]; ok {
			continue
		}
		entries = append(entries, entry)
	}
	removed := len(r.entries) - len(entries)
	if removed > 0 {
		r.entries = entries
	}
	return removed
}

func (r *listenerRegistry[T]) Clear() {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.entries = nil
}

func (r *listenerRegistry[T]) Len() int {
	r.locker.Lock()
	defer r.locker.Unlock()
	return len(r.entries)
}

func (r *listenerRegistry[T]) Snapshot() []listenerEntry[T] {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.entries
}

// Watermark returns the highest ID handed out so far.
func (r *listenerRegistry[T]) Watermark() ListenerID {
	return ListenerID(r.lastID.Load())
}
