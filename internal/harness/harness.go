package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/stockpile/internal/callresult"
	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/inventory"
	"github.com/roach88/stockpile/internal/subsystem"
	"github.com/roach88/stockpile/internal/testutil"
)

// Harness is the test execution engine for one scenario.
type Harness struct {
	fake    *testutil.FakeInventory
	calls   *callresult.Dispatcher
	engine  *inventory.Engine
	sleeper *testutil.VirtualSleeper

	// purchase callback state for the most recent purchase step
	mu       sync.Mutex
	fired    bool
	outcome  inventory.PurchaseOutcome
	purchErr error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh fake subsystem and engine. A returned
// error means the scenario could not be set up; expectation mismatches
// are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	fake, err := buildFake(scenario.Subsystem)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	calls := callresult.NewDispatcher(logger)
	sleeper := testutil.NewVirtualSleeper()

	opts := []inventory.EngineOption{
		inventory.WithLogger(logger),
		inventory.WithSleep(sleeper.Sleep),
		inventory.WithRequestIDs(testutil.NewFixedRequestIDs(scenario.Name)),
	}
	if scenario.Engine.PollAttempts > 0 {
		opts = append(opts, inventory.WithPollAttempts(scenario.Engine.PollAttempts))
	}
	if scenario.Engine.PollInterval > 0 {
		opts = append(opts, inventory.WithPollInterval(scenario.Engine.PollInterval))
	}

	eng, err := inventory.New(fake, calls, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		fake:    fake,
		calls:   calls,
		engine:  eng,
		sleeper: sleeper,
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		out, err := h.executeStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
		result.Steps = append(result.Steps, out)
		checkExpect(result, i, step, out)
	}

	result.Calls = fake.Calls()
	result.Elapsed = sleeper.Elapsed()

	for i, a := range scenario.Assertions {
		if err := h.evaluate(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return result, nil
}

func buildFake(s SubsystemScript) (*testutil.FakeInventory, error) {
	fake := testutil.NewFakeInventory()
	fake.StartFails = s.StartFails
	fake.StartInvalid = s.StartInvalid
	fake.SizeFails = s.SizeFails
	fake.FillFails = s.FillFails
	fake.FillCount = s.FillCount
	fake.ConsumeFails = s.ConsumeFails
	fake.PricesFail = s.PricesFail

	for _, h := range s.Handles {
		fake.Handles = append(fake.Handles, handle.Handle(h))
	}
	for _, name := range s.Statuses {
		r, err := subsystem.ParseResult(name)
		if err != nil {
			return nil, err
		}
		fake.Statuses = append(fake.Statuses, r)
	}
	if s.FinalStatus != "" {
		r, err := subsystem.ParseResult(s.FinalStatus)
		if err != nil {
			return nil, err
		}
		fake.FinalStatus = r
	}
	if s.PurchaseToken != nil {
		fake.PurchaseToken = subsystem.CallToken(*s.PurchaseToken)
	}

	fake.Items = rawItems(s.Items)
	if s.FillItems != nil {
		fake.FillItems = rawItems(s.FillItems)
	}
	for _, p := range s.Prices {
		fake.Prices = append(fake.Prices, subsystem.RawPrice{
			Definition: p.Definition,
			Price:      p.Price,
			BasePrice:  p.BasePrice,
		})
	}
	return fake, nil
}

func rawItems(specs []ItemSpec) []subsystem.RawItem {
	raw := make([]subsystem.RawItem, len(specs))
	for i, s := range specs {
		raw[i] = subsystem.RawItem{
			ItemID:     s.ItemID,
			Definition: s.Definition,
			Quantity:   s.Quantity,
			Flags:      s.Flags,
		}
	}
	return raw
}

// executeStep runs one step and records what it produced.
func (h *Harness) executeStep(ctx context.Context, step Step) (StepOutcome, error) {
	out := StepOutcome{Op: step.Op}

	switch step.Op {
	case OpGetAllItems:
		items, err := h.engine.GetAllItems(ctx)
		out.Error = inventory.CodeOf(err)
		for _, it := range items {
			out.Items = append(out.Items, ItemSpec{
				ItemID:     uint64(it.InstanceID),
				Definition: int32(it.Definition),
				Quantity:   it.Quantity,
				Flags:      it.Flags,
			})
		}

	case OpConsumeItem:
		err := h.engine.ConsumeItem(ctx, inventory.ItemInstanceID(step.ItemID), step.Quantity)
		out.Error = inventory.CodeOf(err)

	case OpGetItemPrices:
		prices, err := h.engine.GetItemPrices(ctx)
		out.Error = inventory.CodeOf(err)
		for _, p := range prices {
			out.Prices = append(out.Prices, PriceSpec{
				Definition: int32(p.Definition),
				Price:      p.Price,
				BasePrice:  p.BasePrice,
			})
		}

	case OpPurchase:
		h.resetPurchase()
		lines := make([]inventory.PurchaseItem, len(step.Lines))
		for i, l := range step.Lines {
			lines[i] = inventory.PurchaseItem{Definition: inventory.ItemDef(l.Definition), Quantity: l.Quantity}
		}
		h.engine.StartPurchase(lines, h.onPurchase)
		var deliverErr error
		if step.Deliver != nil {
			deliverErr = h.deliver(*step.Deliver)
		}
		h.purchaseOutcome(&out)
		// A purchase that already failed keeps its own code.
		if deliverErr != nil && out.Error == "" {
			out.Error = inventory.CodeOf(deliverErr)
		}

	case OpDeliver:
		if err := h.deliver(*step.Deliver); err != nil {
			out.Error = inventory.CodeOf(err)
			break
		}
		h.purchaseOutcome(&out)

	case OpClose:
		n := h.engine.Close()
		out.Released = &n

	default:
		return out, fmt.Errorf("unknown op %q", step.Op)
	}

	return out, nil
}

func (h *Harness) resetPurchase() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fired = false
	h.outcome = inventory.PurchaseOutcome{}
	h.purchErr = nil
}

func (h *Harness) onPurchase(o inventory.PurchaseOutcome, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fired = true
	h.outcome = o
	h.purchErr = err
}

func (h *Harness) purchaseOutcome(out *StepOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.fired {
		out.Pending = true
		return
	}
	out.Error = inventory.CodeOf(h.purchErr)
	out.OrderID = h.outcome.OrderID
	out.TransID = h.outcome.TransID
}

func (h *Harness) deliver(d Delivery) error {
	token := h.fake.PurchaseToken
	if d.Token != nil {
		token = subsystem.CallToken(*d.Token)
	}
	r, err := subsystem.ParseResult(d.Result)
	if err != nil {
		return err
	}
	return h.calls.Complete(token, subsystem.PurchaseResponse{
		Result:  r,
		OrderID: d.OrderID,
		TransID: d.TransID,
	}, d.IOFailure)
}

// checkExpect compares a step outcome with its expect clause.
func checkExpect(result *Result, index int, step Step, out StepOutcome) {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}
	prefix := fmt.Sprintf("steps[%d] (%s)", index, step.Op)

	if out.Error != exp.Error {
		result.AddError(fmt.Sprintf("%s: expected error %q, got %q", prefix, exp.Error, out.Error))
	}
	if exp.Items != nil && !sameList(exp.Items, out.Items) {
		result.AddError(fmt.Sprintf("%s: expected items %v, got %v", prefix, exp.Items, out.Items))
	}
	if exp.Prices != nil && !sameList(exp.Prices, out.Prices) {
		result.AddError(fmt.Sprintf("%s: expected prices %v, got %v", prefix, exp.Prices, out.Prices))
	}
	if exp.Pending != out.Pending {
		result.AddError(fmt.Sprintf("%s: expected pending=%t, got %t", prefix, exp.Pending, out.Pending))
	}
	if exp.OrderID != 0 && exp.OrderID != out.OrderID {
		result.AddError(fmt.Sprintf("%s: expected order_id %d, got %d", prefix, exp.OrderID, out.OrderID))
	}
	if exp.TransID != 0 && exp.TransID != out.TransID {
		result.AddError(fmt.Sprintf("%s: expected trans_id %d, got %d", prefix, exp.TransID, out.TransID))
	}
	if exp.Released != nil && (out.Released == nil || *exp.Released != *out.Released) {
		got := "none"
		if out.Released != nil {
			got = fmt.Sprint(*out.Released)
		}
		result.AddError(fmt.Sprintf("%s: expected released %d, got %s", prefix, *exp.Released, got))
	}
}

// sameList treats nil and empty as equal.
func sameList[T any](want, got []T) bool {
	if len(want) == 0 && len(got) == 0 {
		return true
	}
	return reflect.DeepEqual(want, got)
}
