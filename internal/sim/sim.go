// Package sim is a local inventory subsystem backed by the SQLite store.
//
// It implements subsystem.Inventory with the same asynchronous shape as a
// remote service: queries return a result handle that becomes ready after a
// configurable number of status polls, and purchases complete on a separate
// goroutine through the callresult dispatcher.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/stockpile/internal/callresult"
	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/inventory"
	"github.com/roach88/stockpile/internal/store"
	"github.com/roach88/stockpile/internal/subsystem"
)

// Item flags reported for a consumed instance.
const (
	FlagRemoved  uint16 = 1 << 8
	FlagConsumed uint16 = 1 << 9
)

// Handle kinds recorded in the audit table.
const (
	KindGetAllItems = "get_all_items"
	KindConsumeItem = "consume_item"
)

const (
	// DefaultRegistrationWait bounds how long a finished purchase waits for
	// its caller to register a handler before the completion is dropped.
	DefaultRegistrationWait = 5 * time.Second

	registrationPoll = time.Millisecond
)

// snapshot is the frozen item list behind one result handle.
type snapshot struct {
	kind  string
	items []subsystem.RawItem
	polls int
}

// Subsystem is the local inventory subsystem.
//
// Thread-safety: all methods are safe for concurrent use.
type Subsystem struct {
	st     *store.Store
	calls  *callresult.Dispatcher
	logger *slog.Logger
	ids    inventory.RequestIDGenerator

	readyAfter       int
	latency          time.Duration
	registrationWait time.Duration

	mu       sync.Mutex
	results  map[handle.Handle]*snapshot
	closed   bool
	inflight sync.WaitGroup

	tokens atomic.Uint64
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithReadyAfter sets how many status polls report Pending before a
// result becomes ready. Default: 0 (ready on the first poll).
func WithReadyAfter(n int) Option {
	return func(s *Subsystem) {
		s.readyAfter = n
	}
}

// WithLatency delays each purchase completion. Default: 0.
func WithLatency(d time.Duration) Option {
	return func(s *Subsystem) {
		s.latency = d
	}
}

// WithRegistrationWait sets how long a completion waits for its handler.
//
// Default: 5s (DefaultRegistrationWait)
func WithRegistrationWait(d time.Duration) Option {
	return func(s *Subsystem) {
		s.registrationWait = d
	}
}

// WithLogger sets the subsystem's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subsystem) {
		s.logger = logger
	}
}

// WithRequestIDs sets the generator used for purchase request ids.
//
// Default: inventory.UUIDv7Generator
func WithRequestIDs(gen inventory.RequestIDGenerator) Option {
	return func(s *Subsystem) {
		s.ids = gen
	}
}

// New creates a local subsystem over st. Purchase completions are
// delivered through calls.
func New(st *store.Store, calls *callresult.Dispatcher, opts ...Option) (*Subsystem, error) {
	if st == nil {
		return nil, fmt.Errorf("sim: store is required")
	}
	if calls == nil {
		return nil, fmt.Errorf("sim: dispatcher is required")
	}

	s := &Subsystem{
		st:               st,
		calls:            calls,
		logger:           slog.Default(),
		ids:              inventory.UUIDv7Generator{},
		registrationWait: DefaultRegistrationWait,
		results:          make(map[handle.Handle]*snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.readyAfter < 0 {
		return nil, fmt.Errorf("sim: ready-after must be non-negative, got %d", s.readyAfter)
	}
	if s.latency < 0 {
		return nil, fmt.Errorf("sim: latency must be non-negative, got %s", s.latency)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Close waits for in-flight purchases to deliver. Later purchases are
// refused with the invalid call token.
func (s *Subsystem) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.inflight.Wait()
}

// Live returns the number of result handles not yet destroyed.
func (s *Subsystem) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// GetAllItems implements subsystem.Inventory.
func (s *Subsystem) GetAllItems() (handle.Handle, bool) {
	ctx := context.Background()

	items, err := s.st.ListItems(ctx)
	if err != nil {
		s.logger.Error("list items failed", "error", err)
		return handle.Invalid, false
	}

	raw := make([]subsystem.RawItem, len(items))
	for i, it := range items {
		raw[i] = toRaw(it)
	}
	return s.issue(ctx, KindGetAllItems, raw)
}

// ResultStatus implements subsystem.Inventory.
func (s *Subsystem) ResultStatus(h handle.Handle) subsystem.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[h]
	if !ok {
		return subsystem.ResultInvalidParam
	}
	if r.polls < s.readyAfter {
		r.polls++
		return subsystem.ResultPending
	}
	return subsystem.ResultOK
}

// ResultItems implements subsystem.Inventory.
//
// With a nil dst it reports the number of items in *count. Otherwise it
// copies up to min(len(dst), *count) items and sets *count to the number
// copied. A result that is not ready yet reports failure.
func (s *Subsystem) ResultItems(h handle.Handle, dst []subsystem.RawItem, count *uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[h]
	if !ok || count == nil || r.polls < s.readyAfter {
		return false
	}

	if dst == nil {
		*count = uint32(len(r.items))
		return true
	}

	capacity := min(len(dst), int(*count))
	*count = uint32(copy(dst[:capacity], r.items))
	return true
}

// DestroyResult implements subsystem.Inventory.
// Destroying an unknown or already destroyed handle is a no-op.
func (s *Subsystem) DestroyResult(h handle.Handle) {
	s.mu.Lock()
	_, ok := s.results[h]
	delete(s.results, h)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("destroy of unknown result handle", "handle", int64(h))
		return
	}
	if err := s.st.MarkHandleDestroyed(context.Background(), int64(h)); err != nil {
		s.logger.Error("record handle destroy failed", "handle", int64(h), "error", err)
	}
}

// ConsumeItem implements subsystem.Inventory.
//
// The returned handle holds the updated item. An item consumed down to
// zero is reported with quantity 0 and the removed and consumed flags set.
func (s *Subsystem) ConsumeItem(itemID uint64, quantity uint32) (handle.Handle, bool) {
	ctx := context.Background()

	item, err := s.st.ConsumeItem(ctx, itemID, quantity)
	if err != nil {
		s.logger.Warn("consume rejected",
			"item_id", itemID,
			"quantity", quantity,
			"error", err,
		)
		return handle.Invalid, false
	}

	raw := toRaw(item)
	if item.Quantity == 0 {
		raw.Flags |= FlagRemoved | FlagConsumed
	}
	return s.issue(ctx, KindConsumeItem, []subsystem.RawItem{raw})
}

// StartPurchase implements subsystem.Inventory.
//
// Mismatched or empty arrays and quantities outside 1..65535 return the
// invalid call token. Otherwise the order is processed on a separate
// goroutine and its PurchaseResponse delivered through the dispatcher.
func (s *Subsystem) StartPurchase(defs []int32, quantities []uint32) subsystem.CallToken {
	if len(defs) == 0 || len(defs) != len(quantities) {
		return subsystem.InvalidCallToken
	}

	lines := make([]store.PurchaseLine, len(defs))
	for i := range defs {
		if quantities[i] == 0 || quantities[i] > 0xFFFF {
			return subsystem.InvalidCallToken
		}
		lines[i] = store.PurchaseLine{Def: defs[i], Quantity: uint16(quantities[i])}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return subsystem.InvalidCallToken
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	token := subsystem.CallToken(s.tokens.Add(1))
	requestID := s.ids.Generate()

	go func() {
		defer s.inflight.Done()
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		resp := s.purchase(requestID, lines)
		s.deliver(token, resp)
	}()

	return token
}

// purchase writes the order and maps store errors to result codes.
func (s *Subsystem) purchase(requestID string, lines []store.PurchaseLine) subsystem.PurchaseResponse {
	log := s.logger.With("request_id", requestID)

	p, err := s.st.WritePurchase(context.Background(), requestID, lines)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn("purchase references unknown definition", "error", err)
		return subsystem.PurchaseResponse{Result: subsystem.ResultInvalidParam}
	case err != nil:
		log.Error("purchase failed", "error", err)
		return subsystem.PurchaseResponse{Result: subsystem.ResultFail}
	}

	log.Info("purchase completed",
		"order_id", p.OrderID,
		"trans_id", p.TransID,
		"lines", len(lines),
	)
	return subsystem.PurchaseResponse{
		Result:  subsystem.ResultOK,
		OrderID: p.OrderID,
		TransID: p.TransID,
	}
}

// deliver completes token, waiting up to registrationWait for the caller
// to register its handler.
func (s *Subsystem) deliver(token subsystem.CallToken, resp subsystem.PurchaseResponse) {
	deadline := time.Now().Add(s.registrationWait)
	for {
		err := s.calls.Complete(token, resp, false)
		if err == nil {
			return
		}
		if !errors.Is(err, callresult.ErrUnknownCall) || time.Now().After(deadline) {
			s.logger.Warn("purchase completion dropped",
				"token", uint64(token),
				"result", resp.Result.String(),
				"error", err,
			)
			return
		}
		time.Sleep(registrationPoll)
	}
}

// ItemsWithPrices implements subsystem.Inventory as a two-phase fill over
// the definitions table.
func (s *Subsystem) ItemsWithPrices(dst []subsystem.RawPrice, count *uint32) bool {
	if count == nil {
		return false
	}

	defs, err := s.st.ListDefinitions(context.Background())
	if err != nil {
		s.logger.Error("list definitions failed", "error", err)
		return false
	}

	if dst == nil {
		*count = uint32(len(defs))
		return true
	}

	n := min(len(dst), int(*count), len(defs))
	for i := 0; i < n; i++ {
		dst[i] = subsystem.RawPrice{
			Definition: defs[i].Def,
			Price:      defs[i].Price,
			BasePrice:  defs[i].BasePrice,
		}
	}
	*count = uint32(n)
	return true
}

// issue allocates a durable handle number and attaches items to it.
func (s *Subsystem) issue(ctx context.Context, kind string, items []subsystem.RawItem) (handle.Handle, bool) {
	n, err := s.st.RecordHandle(ctx, kind)
	if err != nil {
		s.logger.Error("record handle failed", "kind", kind, "error", err)
		return handle.Invalid, false
	}
	h := handle.Handle(n)

	s.mu.Lock()
	s.results[h] = &snapshot{kind: kind, items: items}
	s.mu.Unlock()

	s.logger.Debug("result issued", "handle", n, "kind", kind, "items", len(items))
	return h, true
}

func toRaw(it store.Item) subsystem.RawItem {
	return subsystem.RawItem{
		ItemID:     it.InstanceID,
		Definition: it.Def,
		Quantity:   it.Quantity,
		Flags:      it.Flags,
	}
}
