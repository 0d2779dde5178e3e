package inventory

import (
	"context"
	"fmt"

	"github.com/roach88/stockpile/internal/handle"
)

// ConsumeItem removes quantity units of the item instance id.
//
// InvalidInstanceID or a zero quantity fails with ErrInvalidInput before
// the subsystem is contacted. A subsystem rejection fails with
// ErrOperationFailed, as does a call after Close (wrapping ErrClosed).
// The result handle the subsystem returns carries no records the caller
// needs and is released before returning.
func (e *Engine) ConsumeItem(ctx context.Context, id ItemInstanceID, quantity uint32) error {
	if id == InvalidInstanceID {
		return newError(CodeInvalidInput, "consume", handle.Invalid, fmt.Errorf("invalid item instance id"))
	}
	if quantity == 0 {
		return newError(CodeInvalidInput, "consume", handle.Invalid, fmt.Errorf("quantity must be positive"))
	}

	reqID := e.ids.Generate()
	log := e.logger.With("request_id", reqID, "op", "consume_item", "item_id", uint64(id), "quantity", quantity)

	if e.closed.Load() {
		log.WarnContext(ctx, "engine closed, consume refused")
		return newError(CodeOperationFailed, "consume", handle.Invalid, ErrClosed)
	}

	h, ok := e.sys.ConsumeItem(uint64(id), quantity)
	if !ok || !h.Valid() {
		log.WarnContext(ctx, "consume rejected")
		return newError(CodeOperationFailed, "consume", handle.Invalid, nil)
	}

	lease := e.handles.Acquire(h)
	lease.Release()

	log.InfoContext(ctx, "item consumed", "handle", int64(h))
	return nil
}
