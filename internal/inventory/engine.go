package inventory

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/stockpile/internal/callresult"
	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/subsystem"
)

const (
	// DefaultPollAttempts is the number of status queries before Timeout.
	DefaultPollAttempts = 100

	// DefaultPollInterval separates status queries. With the default
	// attempt count this gives a ten second ceiling.
	DefaultPollInterval = 100 * time.Millisecond
)

// purchaseKind is the name under which the engine reserves
// callresult.OpStartPurchase.
const purchaseKind = "inventory.start_purchase"

// Engine is the result retrieval engine.
//
// Thread-safety model:
//   - GetAllItems, ConsumeItem, GetItemPrices: safe from any goroutine;
//     each call blocks its caller for the duration of the request
//   - StartPurchase: returns immediately; the callback fires later on the
//     dispatcher's goroutine
//   - Close: safe from any goroutine, idempotent; requests started after
//     it are refused and polls in flight stop at their next attempt
type Engine struct {
	sys     subsystem.Inventory
	calls   *callresult.Dispatcher
	handles *handle.Registry
	logger  *slog.Logger
	ids     RequestIDGenerator
	closed  atomic.Bool

	pollAttempts int
	pollInterval time.Duration
	sleep        func(time.Duration)
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithPollAttempts sets how many status queries are made before Timeout.
//
// Default: 100 (DefaultPollAttempts)
func WithPollAttempts(n int) EngineOption {
	return func(e *Engine) {
		e.pollAttempts = n
	}
}

// WithPollInterval sets the sleep between status queries.
//
// Default: 100ms (DefaultPollInterval)
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// WithSleep replaces time.Sleep in the poll loop.
// Tests pass testutil.VirtualSleeper.Sleep to avoid real waits.
func WithSleep(sleep func(time.Duration)) EngineOption {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRequestIDs sets the request id generator. Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine over sys, delivering purchase completions through
// calls.
//
// The engine reserves callresult.OpStartPurchase on calls; New fails if
// another operation kind already holds that id.
func New(sys subsystem.Inventory, calls *callresult.Dispatcher, opts ...EngineOption) (*Engine, error) {
	if sys == nil {
		return nil, fmt.Errorf("inventory subsystem is required")
	}
	if calls == nil {
		return nil, fmt.Errorf("call result dispatcher is required")
	}

	e := &Engine{
		sys:          sys,
		calls:        calls,
		logger:       slog.Default(),
		ids:          UUIDv7Generator{},
		pollAttempts: DefaultPollAttempts,
		pollInterval: DefaultPollInterval,
		sleep:        time.Sleep,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.pollAttempts < 1 {
		return nil, fmt.Errorf("poll attempts must be positive, got %d", e.pollAttempts)
	}
	if e.pollInterval < 0 {
		return nil, fmt.Errorf("poll interval must not be negative, got %s", e.pollInterval)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	if err := calls.Reserve(callresult.OpStartPurchase, purchaseKind); err != nil {
		return nil, fmt.Errorf("reserve purchase callback id: %w", err)
	}

	e.handles = handle.NewRegistry(sys, e.logger)
	return e, nil
}

// Close releases every handle still pending, such as those left behind by
// a poll timeout, and refuses further requests with ErrClosed. Returns
// the number released. Calling Close again releases nothing new.
func (e *Engine) Close() int {
	e.closed.Store(true)
	n := e.handles.ReleaseAll()
	e.logger.Debug("engine closed", "released", n)
	return n
}

// PendingHandles returns handles obtained but not yet released.
// Used for diagnostics and testing.
func (e *Engine) PendingHandles() []handle.Handle {
	return e.handles.Pending()
}

// PollAttempts returns the configured poll attempt budget.
func (e *Engine) PollAttempts() int {
	return e.pollAttempts
}

// PollInterval returns the configured sleep between polls.
func (e *Engine) PollInterval() time.Duration {
	return e.pollInterval
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}
