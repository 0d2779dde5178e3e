package harness

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stockpile/internal/testutil"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	Steps        []StepOutcome
	Calls        []testutil.Call
	Elapsed      time.Duration
}

// Render formats the snapshot as line-oriented text. The layout is fixed
// so golden files diff cleanly:
//
//	scenario: <name>
//	elapsed: <duration>
//	steps:
//	  [i] <op> [error=<code>] [pending] [order_id=<n> trans_id=<n>] [released=<n>]
//	      item id=<n> def=<n> qty=<n> flags=<n>
//	      price def=<n> price=<n> base=<n>
//	calls:
//	  [i] <op> [handle=<n>] [<detail>]
func (s *TraceSnapshot) Render() []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", s.ScenarioName)
	fmt.Fprintf(&b, "elapsed: %s\n", s.Elapsed)

	b.WriteString("steps:\n")
	for i, st := range s.Steps {
		fmt.Fprintf(&b, "  [%d] %s", i, st.Op)
		if st.Error != "" {
			fmt.Fprintf(&b, " error=%s", st.Error)
		}
		if st.Pending {
			b.WriteString(" pending")
		}
		if st.OrderID != 0 || st.TransID != 0 {
			fmt.Fprintf(&b, " order_id=%d trans_id=%d", st.OrderID, st.TransID)
		}
		if st.Released != nil {
			fmt.Fprintf(&b, " released=%d", *st.Released)
		}
		b.WriteString("\n")
		for _, it := range st.Items {
			fmt.Fprintf(&b, "      item id=%d def=%d qty=%d flags=%d\n", it.ItemID, it.Definition, it.Quantity, it.Flags)
		}
		for _, p := range st.Prices {
			fmt.Fprintf(&b, "      price def=%d price=%d base=%d\n", p.Definition, p.Price, p.BasePrice)
		}
	}

	b.WriteString("calls:\n")
	for i, c := range s.Calls {
		fmt.Fprintf(&b, "  [%d] %s", i, c.Op)
		if c.Handle != 0 {
			fmt.Fprintf(&b, " handle=%d", c.Handle)
		}
		if c.Detail != "" {
			fmt.Fprintf(&b, " %s", c.Detail)
		}
		b.WriteString("\n")
	}

	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Steps:        result.Steps,
		Calls:        result.Calls,
		Elapsed:      result.Elapsed,
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot.Render())
}
