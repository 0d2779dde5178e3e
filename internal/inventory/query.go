package inventory

import (
	"context"
	"log/slog"

	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/subsystem"
)

// GetAllItems retrieves every item the subsystem reports.
//
// The call blocks for up to PollAttempts*PollInterval while the result
// becomes ready; run it off latency-sensitive goroutines. Cancelling ctx
// stops polling at the next attempt and is reported like a timeout.
//
// On success the returned slice holds exactly the entries the final fill
// reported, in subsystem order. On any failure no items are returned.
// After Close, or when Close releases the handle mid-poll, it fails with
// ErrOperationFailed wrapping ErrClosed.
func (e *Engine) GetAllItems(ctx context.Context) ([]Item, error) {
	reqID := e.ids.Generate()
	log := e.logger.With("request_id", reqID, "op", "get_all_items")

	if e.closed.Load() {
		log.WarnContext(ctx, "engine closed, query refused")
		return nil, newError(CodeOperationFailed, "start", handle.Invalid, ErrClosed)
	}

	lease, err := e.startQuery()
	if err != nil {
		log.WarnContext(ctx, "query start rejected", "error", err)
		return nil, err
	}
	h := lease.Handle()
	log = log.With("handle", int64(h))
	log.DebugContext(ctx, "query started")

	if err := e.awaitReady(ctx, h); err != nil {
		// The subsystem may still complete the result; Close destroys it.
		lease.Detach()
		log.WarnContext(ctx, "query not ready, handle left for teardown", "error", err)
		return nil, err
	}

	items, err := e.fetchItems(ctx, h, log)
	lease.Release()
	if err != nil {
		log.WarnContext(ctx, "fetch failed", "error", err)
		return nil, err
	}

	log.InfoContext(ctx, "items retrieved", "count", len(items))
	return items, nil
}

// startQuery begins an enumeration and tracks its handle before returning.
// A Close that lands between the start and the tracking is caught here:
// the handle is released at once instead of outliving the engine.
func (e *Engine) startQuery() (*handle.Lease, error) {
	h, ok := e.sys.GetAllItems()
	if !ok || !h.Valid() {
		return nil, newError(CodeOperationFailed, "start", handle.Invalid, nil)
	}
	lease := e.handles.Acquire(h)
	if e.closed.Load() {
		lease.Release()
		return nil, newError(CodeOperationFailed, "start", h, ErrClosed)
	}
	return lease, nil
}

// awaitReady polls h until it reports ResultOK or the attempt budget runs
// out. A failed attempt sleeps before the next one, so exhausting the
// budget takes at least PollAttempts*PollInterval.
func (e *Engine) awaitReady(ctx context.Context, h handle.Handle) error {
	var last subsystem.Result
	for attempt := 1; attempt <= e.pollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return newError(CodeTimeout, "poll", h, err)
		}
		if !e.handles.Contains(h) {
			// Released by Close; the subsystem no longer knows h.
			return newError(CodeOperationFailed, "poll", h, ErrClosed)
		}

		last = e.sys.ResultStatus(h)
		if last == subsystem.ResultOK {
			e.logger.DebugContext(ctx, "result ready", "handle", int64(h), "attempt", attempt)
			return nil
		}
		if last != subsystem.ResultPending {
			e.logger.DebugContext(ctx, "unexpected result status while polling",
				"handle", int64(h),
				"attempt", attempt,
				"status", last.String(),
			)
		}

		e.sleep(e.pollInterval)
	}

	e.logger.DebugContext(ctx, "poll budget exhausted",
		"handle", int64(h),
		"attempts", e.pollAttempts,
		"last_status", last.String(),
	)
	return newError(CodeTimeout, "poll", h, nil)
}

// fetchItems runs the two-phase fill against a ready handle.
//
// Phase 2's reported count is authoritative. It is clamped to the buffer
// so an over-reporting subsystem can never make us decode slots it did
// not write.
func (e *Engine) fetchItems(ctx context.Context, h handle.Handle, log *slog.Logger) ([]Item, error) {
	var count uint32
	if !e.sys.ResultItems(h, nil, &count) {
		return nil, newError(CodeGetResultItemsFailed, "size", h, nil)
	}
	if count == 0 {
		return []Item{}, nil
	}

	buf := make([]subsystem.RawItem, count)
	filled := count
	if !e.sys.ResultItems(h, buf, &filled) {
		return nil, newError(CodeGetResultItemsFailed, "fill", h, nil)
	}

	if filled != count {
		log.WarnContext(ctx, "fill count differs from size count",
			"size_count", count,
			"fill_count", filled,
		)
	}
	if int(filled) > len(buf) {
		filled = uint32(len(buf))
	}

	items := make([]Item, filled)
	for i := range items {
		items[i] = decodeItem(buf[i])
	}
	return items, nil
}
