// Package callresult correlates fire-and-forget subsystem calls with their
// completions.
//
// A caller that receives a CallToken registers a typed handler under that
// token together with a reserved operation id. When the subsystem (or
// whatever pumps its events) delivers the completion, Complete removes the
// entry and runs the handler exactly once, outside the dispatcher's lock.
package callresult

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/stockpile/internal/subsystem"
)

// Reserved operation ids. Each operation kind registered anywhere in the
// process owns a distinct id.
const (
	InventoryCallbackBase = 4700

	// OpStartPurchase identifies inventory purchase completions.
	OpStartPurchase = InventoryCallbackBase + 1
)

var (
	// ErrInvalidToken is returned when registering the invalid call token.
	ErrInvalidToken = errors.New("invalid call token")

	// ErrDuplicateCall is returned when a token already has a handler.
	ErrDuplicateCall = errors.New("call token already registered")

	// ErrUnknownCall is returned when completing a token with no handler.
	ErrUnknownCall = errors.New("no handler registered for call token")

	// ErrOpIDCollision is returned when an operation id is claimed twice
	// for different kinds.
	ErrOpIDCollision = errors.New("operation id already reserved")

	// ErrOpIDNotReserved is returned when registering under an unclaimed id.
	ErrOpIDNotReserved = errors.New("operation id not reserved")
)

// Handler receives the raw completion payload and the I/O failure flag.
type Handler func(payload any, ioFailure bool)

type pending struct {
	opID    int
	handler Handler
}

// Dispatcher is the pending-call map from call token to completion handler.
//
// Thread-safety: all methods are safe for concurrent use. Handlers run on
// the goroutine that calls Complete.
type Dispatcher struct {
	mu       sync.Mutex
	calls    map[subsystem.CallToken]pending
	reserved map[int]string
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
// A nil logger falls back to slog.Default().
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		calls:    make(map[subsystem.CallToken]pending),
		reserved: make(map[int]string),
		logger:   logger,
	}
}

// Reserve claims opID for an operation kind.
// Claiming the same id again for the same kind is allowed.
func (d *Dispatcher) Reserve(opID int, kind string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.reserved[opID]; ok && existing != kind {
		return fmt.Errorf("%w: %d held by %q, requested by %q", ErrOpIDCollision, opID, existing, kind)
	}
	d.reserved[opID] = kind
	return nil
}

// RegisterRaw registers an untyped handler for token under opID.
func (d *Dispatcher) RegisterRaw(token subsystem.CallToken, opID int, h Handler) error {
	if token == subsystem.InvalidCallToken {
		return ErrInvalidToken
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.reserved[opID]; !ok {
		return fmt.Errorf("%w: %d", ErrOpIDNotReserved, opID)
	}
	if _, ok := d.calls[token]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateCall, token)
	}
	d.calls[token] = pending{opID: opID, handler: h}

	d.logger.Debug("call registered", "token", uint64(token), "op_id", opID)
	return nil
}

// Register registers a handler whose payload is of type T.
// A completion carrying any other payload type is delivered as an I/O
// failure with the zero value of T.
func Register[T any](d *Dispatcher, token subsystem.CallToken, opID int, h func(T, bool)) error {
	return d.RegisterRaw(token, opID, func(payload any, ioFailure bool) {
		if ioFailure {
			var zero T
			h(zero, true)
			return
		}
		v, ok := payload.(T)
		if !ok {
			d.logger.Error("call completion payload type mismatch",
				"token", uint64(token),
				"op_id", opID,
				"payload_type", fmt.Sprintf("%T", payload),
			)
			var zero T
			h(zero, true)
			return
		}
		h(v, false)
	})
}

// Complete delivers the completion for token.
// The entry is removed before the handler runs, so a second Complete for
// the same token returns ErrUnknownCall and never re-invokes the handler.
func (d *Dispatcher) Complete(token subsystem.CallToken, payload any, ioFailure bool) error {
	d.mu.Lock()
	p, ok := d.calls[token]
	if ok {
		delete(d.calls, token)
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCall, token)
	}

	d.logger.Debug("call completed",
		"token", uint64(token),
		"op_id", p.opID,
		"io_failure", ioFailure,
	)
	p.handler(payload, ioFailure)
	return nil
}

// FailAll delivers an I/O failure to every outstanding call.
// Used when the subsystem shuts down with calls in flight.
func (d *Dispatcher) FailAll() int {
	d.mu.Lock()
	drained := d.calls
	d.calls = make(map[subsystem.CallToken]pending)
	d.mu.Unlock()

	for _, p := range drained {
		p.handler(nil, true)
	}
	return len(drained)
}

// Len returns the number of outstanding calls.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}
