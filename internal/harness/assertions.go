package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Calls    []testutil.Call // Full call log for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nCall log:\n")
		for i, c := range e.Calls {
			fmt.Fprintf(&buf, "  [%d] %s handle=%d %s\n", i+1, c.Op, c.Handle, c.Detail)
		}
	}

	return buf.String()
}

// evaluate dispatches one assertion against the finished run.
func (h *Harness) evaluate(a Assertion, result *Result) error {
	switch a.Type {
	case AssertCallCount:
		return assertCallCount(result.Calls, a)
	case AssertCallOrder:
		return assertCallOrder(result.Calls, a)
	case AssertDestroyCount:
		got := h.fake.DestroyCount(handle.Handle(a.Handle))
		if got != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("handle %d destroyed %d times", a.Handle, a.Count),
				Actual:   fmt.Sprintf("destroyed %d times", got),
				Calls:    result.Calls,
			}
		}
		return nil
	case AssertOutstanding:
		got := h.fake.Outstanding()
		if len(got) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d outstanding handles", a.Count),
				Actual:   fmt.Sprintf("%d outstanding: %v", len(got), got),
				Calls:    result.Calls,
			}
		}
		return nil
	case AssertPendingHandles:
		got := h.engine.PendingHandles()
		if len(got) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d handles pending in the engine", a.Count),
				Actual:   fmt.Sprintf("%d pending: %v", len(got), got),
			}
		}
		return nil
	case AssertElapsed:
		if result.Elapsed < a.Min || (a.Max > 0 && result.Elapsed > a.Max) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("elapsed within [%s, %s]", a.Min, a.Max),
				Actual:   result.Elapsed.String(),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertCallCount checks that op appears exactly Count times.
func assertCallCount(calls []testutil.Call, a Assertion) error {
	n := 0
	for _, c := range calls {
		if c.Op == a.Op {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s called %d times", a.Op, a.Count),
			Actual:   fmt.Sprintf("called %d times", n),
			Calls:    calls,
		}
	}
	return nil
}

// assertCallOrder checks that ops appear in order.
// Ops don't need to be consecutive (intervening calls are allowed).
func assertCallOrder(calls []testutil.Call, a Assertion) error {
	next := 0
	for _, c := range calls {
		if next < len(a.Ops) && c.Op == a.Ops[next] {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}

	seen := make([]string, 0, len(calls))
	for _, c := range calls {
		if !slices.Contains(seen, c.Op) {
			seen = append(seen, c.Op)
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("order %v", a.Ops),
		Actual:   fmt.Sprintf("matched %d of %d; ops seen %v", next, len(a.Ops), seen),
		Calls:    calls,
	}
}
