package inventory

import (
	"math"

	"github.com/roach88/stockpile/internal/subsystem"
)

// ItemInstanceID identifies one owned item instance.
type ItemInstanceID uint64

// InvalidInstanceID is never a real instance. ConsumeItem rejects it.
const InvalidInstanceID ItemInstanceID = math.MaxUint64

// ItemDef identifies an item definition.
type ItemDef int32

// Item is one decoded inventory entry.
type Item struct {
	InstanceID ItemInstanceID `json:"instance_id"`
	Definition ItemDef        `json:"definition"`
	Quantity   uint16         `json:"quantity"`
	Flags      uint16         `json:"flags"`
}

// Price is the current and base price of a definition.
type Price struct {
	Definition ItemDef `json:"definition"`
	Price      uint64  `json:"price"`
	BasePrice  uint64  `json:"base_price"`
}

// PurchaseItem is one (definition, quantity) line of a purchase.
type PurchaseItem struct {
	Definition ItemDef `json:"definition"`
	Quantity   uint32  `json:"quantity"`
}

// PurchaseOutcome identifies a successfully started purchase.
type PurchaseOutcome struct {
	OrderID uint64 `json:"order_id"`
	TransID uint64 `json:"trans_id"`
}

// PurchaseCallback receives the outcome of StartPurchase.
// Exactly one of the outcome or the error is meaningful.
type PurchaseCallback func(PurchaseOutcome, error)

func decodeItem(raw subsystem.RawItem) Item {
	return Item{
		InstanceID: ItemInstanceID(raw.ItemID),
		Definition: ItemDef(raw.Definition),
		Quantity:   raw.Quantity,
		Flags:      raw.Flags,
	}
}

func decodePrice(raw subsystem.RawPrice) Price {
	return Price{
		Definition: ItemDef(raw.Definition),
		Price:      raw.Price,
		BasePrice:  raw.BasePrice,
	}
}
