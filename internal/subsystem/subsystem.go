// Package subsystem declares the function-call boundary to the external
// inventory subsystem: the calls the client consumes and the raw shapes
// they exchange.
//
// Nothing here interprets records. Implementations live elsewhere (see
// internal/sim for the local one and internal/testutil for the scripted one).
package subsystem

import "github.com/roach88/stockpile/internal/handle"

// CallToken correlates a fire-and-forget call with its later completion.
type CallToken uint64

// InvalidCallToken is returned when an asynchronous call could not be issued.
const InvalidCallToken CallToken = 0

// RawItem is the fixed-size record filled by ResultItems.
type RawItem struct {
	ItemID     uint64
	Definition int32
	Quantity   uint16
	Flags      uint16
}

// RawPrice is the fixed-size record filled by ItemsWithPrices.
type RawPrice struct {
	Definition int32
	Price      uint64
	BasePrice  uint64
}

// PurchaseResponse is the raw payload delivered when a StartPurchase call
// completes.
type PurchaseResponse struct {
	Result  Result
	OrderID uint64
	TransID uint64
}

// Inventory is the handle-based inventory subsystem.
//
// Two-phase fill: ResultItems and ItemsWithPrices are called first with a
// nil dst to learn the required count, then with a slice of exactly that
// length. On return *count holds the number of entries actually written.
type Inventory interface {
	// GetAllItems starts an enumeration of all owned items.
	GetAllItems() (handle.Handle, bool)

	// ResultStatus reports ResultOK once the handle's result is ready.
	ResultStatus(h handle.Handle) Result

	// ResultItems fills dst with the records of a ready handle.
	ResultItems(h handle.Handle, dst []RawItem, count *uint32) bool

	// DestroyResult releases the subsystem-side state of h.
	DestroyResult(h handle.Handle)

	// ConsumeItem removes quantity units of an item instance.
	ConsumeItem(itemID uint64, quantity uint32) (handle.Handle, bool)

	// StartPurchase begins a purchase; completion arrives via the call
	// result dispatcher under the returned token.
	StartPurchase(defs []int32, quantities []uint32) CallToken

	// ItemsWithPrices fills dst with the current price list.
	ItemsWithPrices(dst []RawPrice, count *uint32) bool
}
