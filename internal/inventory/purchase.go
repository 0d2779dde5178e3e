package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/stockpile/internal/callresult"
	"github.com/roach88/stockpile/internal/subsystem"
)

// StartPurchase begins a purchase of items and reports the outcome through
// onComplete.
//
// An empty list, a call the subsystem refuses to issue, a completion that
// cannot be registered, or a call after Close invokes onComplete
// synchronously with ErrInvalidParameter; the last two also wrap their
// cause (a callresult error, or ErrClosed). Otherwise StartPurchase
// returns at once and onComplete runs later on the goroutine that delivers
// the completion to the dispatcher:
//
//   - I/O failure: ErrIOFailure
//   - ResultOK: the PurchaseOutcome
//   - any other result: *ResultError carrying the code
//
// onComplete is invoked at most once.
func (e *Engine) StartPurchase(items []PurchaseItem, onComplete PurchaseCallback) {
	cb := once(onComplete)

	if len(items) == 0 {
		cb(PurchaseOutcome{}, ErrInvalidParameter)
		return
	}

	defs := make([]int32, len(items))
	quantities := make([]uint32, len(items))
	for i, it := range items {
		defs[i] = int32(it.Definition)
		quantities[i] = it.Quantity
	}

	reqID := e.ids.Generate()
	log := e.logger.With("request_id", reqID, "op", "start_purchase", "lines", len(items))

	if e.closed.Load() {
		log.Warn("engine closed, purchase refused")
		cb(PurchaseOutcome{}, fmt.Errorf("%w: %w", ErrInvalidParameter, ErrClosed))
		return
	}

	token := e.sys.StartPurchase(defs, quantities)
	if token == subsystem.InvalidCallToken {
		log.Warn("purchase call refused by subsystem")
		cb(PurchaseOutcome{}, ErrInvalidParameter)
		return
	}
	log = log.With("token", uint64(token))

	err := callresult.Register(e.calls, token, callresult.OpStartPurchase,
		func(resp subsystem.PurchaseResponse, ioFailure bool) {
			outcome, err := purchaseResult(resp, ioFailure)
			if err != nil {
				log.Warn("purchase failed", "error", err)
			} else {
				log.Info("purchase completed", "order_id", outcome.OrderID, "trans_id", outcome.TransID)
			}
			cb(outcome, err)
		})
	if err != nil {
		log.Error("purchase completion registration failed", "error", err)
		cb(PurchaseOutcome{}, fmt.Errorf("%w: register purchase completion: %w", ErrInvalidParameter, err))
		return
	}

	log.Debug("purchase started")
}

// Purchase starts a purchase and waits for its outcome or for ctx.
// If ctx ends first the purchase still completes in the background; only
// the wait is abandoned.
func (e *Engine) Purchase(ctx context.Context, items []PurchaseItem) (PurchaseOutcome, error) {
	type result struct {
		outcome PurchaseOutcome
		err     error
	}
	done := make(chan result, 1)

	e.StartPurchase(items, func(o PurchaseOutcome, err error) {
		done <- result{outcome: o, err: err}
	})

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-ctx.Done():
		return PurchaseOutcome{}, ctx.Err()
	}
}

func purchaseResult(resp subsystem.PurchaseResponse, ioFailure bool) (PurchaseOutcome, error) {
	if ioFailure {
		return PurchaseOutcome{}, ErrIOFailure
	}
	if resp.Result != subsystem.ResultOK {
		return PurchaseOutcome{}, &ResultError{Code: resp.Result}
	}
	return PurchaseOutcome{OrderID: resp.OrderID, TransID: resp.TransID}, nil
}

// once wraps cb so that only its first invocation runs.
func once(cb PurchaseCallback) PurchaseCallback {
	var o sync.Once
	return func(out PurchaseOutcome, err error) {
		o.Do(func() {
			if cb != nil {
				cb(out, err)
			}
		})
	}
}
