package handle

import "sync/atomic"

// Lease is the owned form of a tracked handle.
//
// Release performs release-if-still-held: the first call hands the handle
// back to the registry, later calls do nothing. If the lease is dropped
// without Release, the handle stays in the registry until ReleaseAll.
type Lease struct {
	h        Handle
	reg      *Registry
	released atomic.Bool
}

// Acquire tracks h and returns a lease for it.
// Returns nil for the invalid handle, which is never tracked.
func (r *Registry) Acquire(h Handle) *Lease {
	if !h.Valid() {
		return nil
	}
	r.Track(h)
	return &Lease{h: h, reg: r}
}

// Handle returns the leased handle.
func (l *Lease) Handle() Handle {
	return l.h
}

// Release returns the handle to the subsystem once.
// Reports whether this call issued the destroy. Safe on a nil lease.
func (l *Lease) Release() bool {
	if l == nil {
		return false
	}
	if !l.released.CompareAndSwap(false, true) {
		return false
	}
	return l.reg.Release(l.h)
}

// Detach gives up ownership without releasing: the handle remains pending
// in the registry and will be destroyed by ReleaseAll.
func (l *Lease) Detach() {
	if l == nil {
		return
	}
	l.released.Store(true)
}
