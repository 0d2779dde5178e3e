package callresult

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockpile/internal/subsystem"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Reserve(OpStartPurchase, "inventory.start_purchase"))
	return d
}

func TestDispatcher_Reserve(t *testing.T) {
	d := NewDispatcher(nil)

	require.NoError(t, d.Reserve(100, "a"))
	require.NoError(t, d.Reserve(100, "a"), "same kind may re-reserve")

	err := d.Reserve(100, "b")
	assert.ErrorIs(t, err, ErrOpIDCollision)
}

func TestDispatcher_Register_Errors(t *testing.T) {
	d := newTestDispatcher(t)
	noop := func(subsystem.PurchaseResponse, bool) {}

	err := Register(d, subsystem.InvalidCallToken, OpStartPurchase, noop)
	assert.ErrorIs(t, err, ErrInvalidToken)

	err = Register(d, 5, 9999, noop)
	assert.ErrorIs(t, err, ErrOpIDNotReserved)

	require.NoError(t, Register(d, 5, OpStartPurchase, noop))
	err = Register(d, 5, OpStartPurchase, noop)
	assert.ErrorIs(t, err, ErrDuplicateCall)
	assert.Equal(t, 1, d.Len())
}

func TestDispatcher_Complete_Typed(t *testing.T) {
	d := newTestDispatcher(t)

	var got subsystem.PurchaseResponse
	var gotIO bool
	calls := 0
	require.NoError(t, Register(d, 11, OpStartPurchase, func(v subsystem.PurchaseResponse, ioFail bool) {
		got, gotIO = v, ioFail
		calls++
	}))

	resp := subsystem.PurchaseResponse{Result: subsystem.ResultOK, OrderID: 555, TransID: 999}
	require.NoError(t, d.Complete(11, resp, false))

	assert.Equal(t, 1, calls)
	assert.Equal(t, resp, got)
	assert.False(t, gotIO)
	assert.Equal(t, 0, d.Len())
}

func TestDispatcher_Complete_AtMostOnce(t *testing.T) {
	d := newTestDispatcher(t)

	var calls atomic.Int32
	require.NoError(t, Register(d, 11, OpStartPurchase, func(subsystem.PurchaseResponse, bool) {
		calls.Add(1)
	}))

	var wg sync.WaitGroup
	var unknown atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Complete(11, subsystem.PurchaseResponse{Result: subsystem.ResultOK}, false); err != nil {
				unknown.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(7), unknown.Load())
}

func TestDispatcher_Complete_Unknown(t *testing.T) {
	d := newTestDispatcher(t)
	err := d.Complete(77, nil, false)
	assert.ErrorIs(t, err, ErrUnknownCall)
}

func TestDispatcher_Complete_TypeMismatch(t *testing.T) {
	d := newTestDispatcher(t)

	var gotIO bool
	require.NoError(t, Register(d, 3, OpStartPurchase, func(_ subsystem.PurchaseResponse, ioFail bool) {
		gotIO = ioFail
	}))

	require.NoError(t, d.Complete(3, "not a response", false))
	assert.True(t, gotIO, "wrong payload type surfaces as I/O failure")
}

func TestDispatcher_Complete_IOFailure(t *testing.T) {
	d := newTestDispatcher(t)

	var got subsystem.PurchaseResponse
	var gotIO bool
	require.NoError(t, Register(d, 3, OpStartPurchase, func(v subsystem.PurchaseResponse, ioFail bool) {
		got, gotIO = v, ioFail
	}))

	require.NoError(t, d.Complete(3, subsystem.PurchaseResponse{OrderID: 1}, true))
	assert.True(t, gotIO)
	assert.Equal(t, subsystem.PurchaseResponse{}, got)
}

func TestDispatcher_HandlerMayReenter(t *testing.T) {
	d := newTestDispatcher(t)

	require.NoError(t, Register(d, 1, OpStartPurchase, func(subsystem.PurchaseResponse, bool) {
		// Registering from inside a handler must not deadlock.
		_ = Register(d, 2, OpStartPurchase, func(subsystem.PurchaseResponse, bool) {})
	}))

	require.NoError(t, d.Complete(1, subsystem.PurchaseResponse{}, false))
	assert.Equal(t, 1, d.Len())
}

func TestDispatcher_FailAll(t *testing.T) {
	d := newTestDispatcher(t)

	ioFlags := make([]bool, 0, 2)
	var mu sync.Mutex
	h := func(_ subsystem.PurchaseResponse, ioFail bool) {
		mu.Lock()
		ioFlags = append(ioFlags, ioFail)
		mu.Unlock()
	}
	require.NoError(t, Register(d, 1, OpStartPurchase, h))
	require.NoError(t, Register(d, 2, OpStartPurchase, h))

	assert.Equal(t, 2, d.FailAll())
	assert.Equal(t, []bool{true, true}, ioFlags)
	assert.Equal(t, 0, d.Len())
}
