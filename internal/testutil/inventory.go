package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/subsystem"
)

// Call is one recorded subsystem call.
type Call struct {
	Op     string `json:"op" yaml:"op"`
	Handle int64  `json:"handle,omitempty" yaml:"handle,omitempty"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Subsystem call names recorded in the call log.
const (
	OpGetAllItems   = "get_all_items"
	OpResultStatus  = "result_status"
	OpSizeItems     = "result_items_size"
	OpFillItems     = "result_items_fill"
	OpDestroyResult = "destroy_result"
	OpConsumeItem   = "consume_item"
	OpStartPurchase = "start_purchase"
	OpSizePrices    = "prices_size"
	OpFillPrices    = "prices_fill"
)

// FakeInventory is a scripted subsystem.Inventory.
//
// Configure the exported fields before use; every call is appended to the
// call log. Status scripts are indexed per handle: the Nth poll of any
// handle returns Statuses[N] and FinalStatus once the script runs out.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeInventory struct {
	mu sync.Mutex

	// StartFails makes GetAllItems report failure.
	StartFails bool
	// StartInvalid makes GetAllItems succeed but return handle.Invalid.
	StartInvalid bool
	// Handles are handed out in order; after they run out handles are
	// allocated from NextHandle upwards.
	Handles    []handle.Handle
	NextHandle handle.Handle

	Statuses    []subsystem.Result
	FinalStatus subsystem.Result

	// SizeFails and FillFails fail phase 1 and phase 2 respectively.
	SizeFails bool
	FillFails bool
	// Items are the records reported by phase 1 and written by phase 2.
	Items []subsystem.RawItem
	// FillItems, when non-nil, replaces Items in phase 2 only.
	FillItems []subsystem.RawItem
	// FillCount, when non-nil, is written to *count by phase 2 instead of
	// the number of records copied.
	FillCount *uint32

	ConsumeFails bool

	// PurchaseToken is returned by StartPurchase.
	PurchaseToken subsystem.CallToken

	PricesFail bool
	Prices     []subsystem.RawPrice

	calls     []Call
	polls     map[handle.Handle]int
	issued    map[handle.Handle]bool
	destroyed map[handle.Handle]int
	purchases [][2][]int64
}

// NewFakeInventory returns a fake whose queries become ready on the first
// poll and hold no records.
func NewFakeInventory() *FakeInventory {
	return &FakeInventory{
		NextHandle:    1,
		FinalStatus:   subsystem.ResultOK,
		PurchaseToken: 1,
		polls:         make(map[handle.Handle]int),
		issued:        make(map[handle.Handle]bool),
		destroyed:     make(map[handle.Handle]int),
	}
}

func (f *FakeInventory) record(c Call) {
	f.calls = append(f.calls, c)
}

func (f *FakeInventory) allocate() handle.Handle {
	var h handle.Handle
	if len(f.Handles) > 0 {
		h = f.Handles[0]
		f.Handles = f.Handles[1:]
	} else {
		h = f.NextHandle
		f.NextHandle++
	}
	f.issued[h] = true
	return h
}

// GetAllItems implements subsystem.Inventory.
func (f *FakeInventory) GetAllItems() (handle.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StartFails {
		f.record(Call{Op: OpGetAllItems, Detail: "fail"})
		return handle.Invalid, false
	}
	if f.StartInvalid {
		f.record(Call{Op: OpGetAllItems, Handle: int64(handle.Invalid)})
		return handle.Invalid, true
	}
	h := f.allocate()
	f.record(Call{Op: OpGetAllItems, Handle: int64(h)})
	return h, true
}

// ResultStatus implements subsystem.Inventory.
func (f *FakeInventory) ResultStatus(h handle.Handle) subsystem.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.polls[h]
	f.polls[h] = n + 1

	status := f.FinalStatus
	if n < len(f.Statuses) {
		status = f.Statuses[n]
	}
	if f.destroyed[h] > 0 || !f.issued[h] {
		status = subsystem.ResultInvalidParam
	}
	f.record(Call{Op: OpResultStatus, Handle: int64(h), Detail: status.String()})
	return status
}

// ResultItems implements subsystem.Inventory.
func (f *FakeInventory) ResultItems(h handle.Handle, dst []subsystem.RawItem, count *uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dst == nil {
		if f.SizeFails || f.destroyed[h] > 0 {
			f.record(Call{Op: OpSizeItems, Handle: int64(h), Detail: "fail"})
			return false
		}
		*count = uint32(len(f.Items))
		f.record(Call{Op: OpSizeItems, Handle: int64(h), Detail: fmt.Sprintf("count=%d", *count)})
		return true
	}

	if f.FillFails || f.destroyed[h] > 0 {
		f.record(Call{Op: OpFillItems, Handle: int64(h), Detail: "fail"})
		return false
	}
	src := f.Items
	if f.FillItems != nil {
		src = f.FillItems
	}
	n := copy(dst, src)
	*count = uint32(n)
	if f.FillCount != nil {
		*count = *f.FillCount
	}
	f.record(Call{Op: OpFillItems, Handle: int64(h), Detail: fmt.Sprintf("capacity=%d count=%d", len(dst), *count)})
	return true
}

// DestroyResult implements subsystem.Inventory.
func (f *FakeInventory) DestroyResult(h handle.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.destroyed[h]++
	f.record(Call{Op: OpDestroyResult, Handle: int64(h)})
}

// ConsumeItem implements subsystem.Inventory.
func (f *FakeInventory) ConsumeItem(itemID uint64, quantity uint32) (handle.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	detail := fmt.Sprintf("item=%d quantity=%d", itemID, quantity)
	if f.ConsumeFails {
		f.record(Call{Op: OpConsumeItem, Detail: detail + " fail"})
		return handle.Invalid, false
	}
	h := f.allocate()
	f.record(Call{Op: OpConsumeItem, Handle: int64(h), Detail: detail})
	return h, true
}

// StartPurchase implements subsystem.Inventory.
func (f *FakeInventory) StartPurchase(defs []int32, quantities []uint32) subsystem.CallToken {
	f.mu.Lock()
	defer f.mu.Unlock()

	d := make([]int64, len(defs))
	for i, v := range defs {
		d[i] = int64(v)
	}
	q := make([]int64, len(quantities))
	for i, v := range quantities {
		q[i] = int64(v)
	}
	f.purchases = append(f.purchases, [2][]int64{d, q})
	f.record(Call{Op: OpStartPurchase, Detail: fmt.Sprintf("defs=%v quantities=%v token=%d", d, q, f.PurchaseToken)})
	return f.PurchaseToken
}

// ItemsWithPrices implements subsystem.Inventory.
func (f *FakeInventory) ItemsWithPrices(dst []subsystem.RawPrice, count *uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PricesFail {
		op := OpSizePrices
		if dst != nil {
			op = OpFillPrices
		}
		f.record(Call{Op: op, Detail: "fail"})
		return false
	}
	if dst == nil {
		*count = uint32(len(f.Prices))
		f.record(Call{Op: OpSizePrices, Detail: fmt.Sprintf("count=%d", *count)})
		return true
	}
	n := copy(dst, f.Prices)
	*count = uint32(n)
	f.record(Call{Op: OpFillPrices, Detail: fmt.Sprintf("capacity=%d count=%d", len(dst), n)})
	return true
}

// Calls returns a copy of the call log.
func (f *FakeInventory) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many calls of op were made.
func (f *FakeInventory) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// DestroyCount returns how many times h was destroyed.
func (f *FakeInventory) DestroyCount(h handle.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed[h]
}

// Outstanding returns issued handles that were never destroyed.
func (f *FakeInventory) Outstanding() []handle.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []handle.Handle
	for h := range f.issued {
		if f.destroyed[h] == 0 {
			out = append(out, h)
		}
	}
	return out
}

// Purchases returns the (definitions, quantities) pairs passed to
// StartPurchase.
func (f *FakeInventory) Purchases() [][2][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][2][]int64, len(f.purchases))
	copy(out, f.purchases)
	return out
}
