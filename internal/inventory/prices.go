package inventory

import (
	"context"

	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/subsystem"
)

// GetItemPrices retrieves the current price list with the same size-then-
// fill protocol as GetAllItems. No result handle is involved.
func (e *Engine) GetItemPrices(ctx context.Context) ([]Price, error) {
	reqID := e.ids.Generate()
	log := e.logger.With("request_id", reqID, "op", "get_item_prices")

	var count uint32
	if !e.sys.ItemsWithPrices(nil, &count) {
		err := newError(CodeGetResultItemsFailed, "price size", handle.Invalid, nil)
		log.WarnContext(ctx, "price size query failed")
		return nil, err
	}
	if count == 0 {
		return []Price{}, nil
	}

	buf := make([]subsystem.RawPrice, count)
	filled := count
	if !e.sys.ItemsWithPrices(buf, &filled) {
		log.WarnContext(ctx, "price fill failed")
		return nil, newError(CodeGetResultItemsFailed, "price fill", handle.Invalid, nil)
	}
	if filled != count {
		log.WarnContext(ctx, "price fill count differs from size count", "size_count", count, "fill_count", filled)
	}
	if int(filled) > len(buf) {
		filled = uint32(len(buf))
	}

	prices := make([]Price, filled)
	for i := range prices {
		prices[i] = decodePrice(buf[i])
	}
	log.DebugContext(ctx, "prices retrieved", "count", len(prices))
	return prices, nil
}
