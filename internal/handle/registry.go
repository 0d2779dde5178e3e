package handle

import (
	"log/slog"
	"sort"
	"sync"
)

// Handle identifies a result held by the subsystem.
type Handle int64

// Invalid is returned by the subsystem when an operation failed to start.
// It must never be polled, sized or released.
const Invalid Handle = -1

// Valid reports whether h is anything other than the invalid sentinel.
func (h Handle) Valid() bool {
	return h != Invalid
}

// Destroyer releases subsystem-side resources for a handle.
type Destroyer interface {
	DestroyResult(h Handle)
}

// Registry is the pending handle set owned by one engine.
//
// Thread-safety: all methods are safe for concurrent use. The mutex only
// guards the set; DestroyResult is always called after it is released, so a
// destroyer that re-enters the registry cannot deadlock.
type Registry struct {
	mu      sync.Mutex
	pending map[Handle]struct{}
	d       Destroyer
	logger  *slog.Logger
}

// NewRegistry creates an empty registry releasing through d.
// A nil logger falls back to slog.Default().
func NewRegistry(d Destroyer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pending: make(map[Handle]struct{}),
		d:       d,
		logger:  logger,
	}
}

// Track records a just-obtained handle as pending.
// Tracking Invalid is a caller bug; it is logged and ignored.
func (r *Registry) Track(h Handle) {
	if !h.Valid() {
		r.logger.Warn("refusing to track invalid handle")
		return
	}

	r.mu.Lock()
	r.pending[h] = struct{}{}
	r.mu.Unlock()
}

// Release destroys h if it is tracked and reports whether a destroy call
// was issued. Releasing an untracked or already released handle is a no-op.
func (r *Registry) Release(h Handle) bool {
	r.mu.Lock()
	_, ok := r.pending[h]
	if ok {
		delete(r.pending, h)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("release of untracked handle ignored", "handle", int64(h))
		return false
	}

	r.d.DestroyResult(h)
	r.logger.Debug("handle released", "handle", int64(h))
	return true
}

// ReleaseAll destroys every tracked handle and empties the set.
// Returns the number of destroy calls issued. A second call returns 0.
func (r *Registry) ReleaseAll() int {
	r.mu.Lock()
	drained := r.pending
	r.pending = make(map[Handle]struct{})
	r.mu.Unlock()

	for h := range drained {
		r.d.DestroyResult(h)
	}

	if len(drained) > 0 {
		r.logger.Info("released abandoned handles", "count", len(drained))
	}
	return len(drained)
}

// Len returns the number of pending handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Pending returns the tracked handles in ascending order.
func (r *Registry) Pending() []Handle {
	r.mu.Lock()
	out := make([]Handle, 0, len(r.pending))
	for h := range r.pending {
		out = append(out, h)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether h is currently tracked.
func (r *Registry) Contains(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[h]
	return ok
}
