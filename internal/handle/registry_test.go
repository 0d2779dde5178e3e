package handle

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDestroyer counts DestroyResult calls per handle.
type recordingDestroyer struct {
	mu    sync.Mutex
	calls map[Handle]int
	order []Handle

	// onDestroy runs inside DestroyResult, used to re-enter the registry.
	onDestroy func(h Handle)
}

func newRecordingDestroyer() *recordingDestroyer {
	return &recordingDestroyer{calls: make(map[Handle]int)}
}

func (d *recordingDestroyer) DestroyResult(h Handle) {
	if d.onDestroy != nil {
		d.onDestroy(h)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[h]++
	d.order = append(d.order, h)
}

func (d *recordingDestroyer) count(h Handle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[h]
}

func (d *recordingDestroyer) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandle_Valid(t *testing.T) {
	assert.False(t, Invalid.Valid())
	assert.True(t, Handle(0).Valid())
	assert.True(t, Handle(7).Valid())
}

func TestRegistry_TrackAndRelease(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	r.Track(7)
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Contains(7))

	assert.True(t, r.Release(7))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, d.count(7))
}

func TestRegistry_ReleaseTwice_SingleDestroy(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	r.Track(7)
	assert.True(t, r.Release(7))
	assert.False(t, r.Release(7), "second release must not destroy again")
	assert.Equal(t, 1, d.count(7))
}

func TestRegistry_ReleaseUntracked(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	assert.NotPanics(t, func() {
		assert.False(t, r.Release(42))
	})
	assert.Equal(t, 0, d.total())
}

func TestRegistry_TrackInvalidIgnored(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	r.Track(Invalid)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.ReleaseAll())
	assert.Equal(t, 0, d.total())
}

func TestRegistry_ReleaseAll(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	r.Track(1)
	r.Track(2)
	r.Track(3)
	r.Release(2)

	assert.Equal(t, 2, r.ReleaseAll())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, d.count(1))
	assert.Equal(t, 1, d.count(2))
	assert.Equal(t, 1, d.count(3))

	// Teardown twice must not double-release.
	assert.Equal(t, 0, r.ReleaseAll())
	assert.Equal(t, 3, d.total())
}

func TestRegistry_Pending_Sorted(t *testing.T) {
	r := NewRegistry(newRecordingDestroyer(), quietLogger())
	r.Track(9)
	r.Track(3)
	r.Track(5)

	assert.Equal(t, []Handle{3, 5, 9}, r.Pending())
}

func TestRegistry_DestroyWithoutLock(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	// A destroyer that calls back into the registry would deadlock if the
	// registry held its mutex across DestroyResult.
	d.onDestroy = func(h Handle) {
		_ = r.Len()
		r.Release(h + 100)
	}

	r.Track(1)
	r.Track(2)
	r.Track(101)

	done := make(chan struct{})
	go func() {
		r.Release(1)
		r.ReleaseAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("registry deadlocked on re-entrant destroy")
	}

	assert.Equal(t, 1, d.count(1))
	assert.Equal(t, 1, d.count(2))
	assert.Equal(t, 1, d.count(101))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentRelease(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	const n = 50
	for i := 0; i < n; i++ {
		r.Track(Handle(i))
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				r.Release(Handle(i))
			}
		}()
	}
	wg.Wait()
	r.ReleaseAll()

	require.Equal(t, n, d.total())
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, d.count(Handle(i)), "handle %d", i)
	}
}

func TestLease_ReleaseOnce(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	l := r.Acquire(7)
	require.NotNil(t, l)
	assert.Equal(t, Handle(7), l.Handle())
	assert.True(t, r.Contains(7))

	assert.True(t, l.Release())
	assert.False(t, l.Release())
	assert.Equal(t, 1, d.count(7))
}

func TestLease_DetachLeavesPending(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	l := r.Acquire(7)
	l.Detach()
	assert.False(t, l.Release())
	assert.Equal(t, 0, d.total())
	assert.True(t, r.Contains(7))

	assert.Equal(t, 1, r.ReleaseAll())
	assert.Equal(t, 1, d.count(7))
}

func TestLease_Invalid(t *testing.T) {
	r := NewRegistry(newRecordingDestroyer(), quietLogger())

	l := r.Acquire(Invalid)
	assert.Nil(t, l)
	assert.False(t, l.Release())
	assert.NotPanics(t, l.Detach)
}

func TestLease_ReleasedByTeardownThenLease(t *testing.T) {
	d := newRecordingDestroyer()
	r := NewRegistry(d, quietLogger())

	l := r.Acquire(7)
	r.ReleaseAll()
	assert.False(t, l.Release(), "lease must not destroy a handle teardown already released")
	assert.Equal(t, 1, d.count(7))
}
