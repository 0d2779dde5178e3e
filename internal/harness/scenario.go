package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stockpile/internal/subsystem"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Subsystem scripts the fake subsystem.
	Subsystem SubsystemScript `yaml:"subsystem"`

	// Engine overrides engine settings. Zero values keep the defaults.
	Engine EngineSettings `yaml:"engine,omitempty"`

	// Steps are executed in order against one engine.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SubsystemScript configures testutil.FakeInventory.
type SubsystemScript struct {
	StartFails   bool `yaml:"start_fails,omitempty"`
	StartInvalid bool `yaml:"start_invalid,omitempty"`

	// Handles are handed out in order before falling back to 1, 2, ...
	Handles []int64 `yaml:"handles,omitempty"`

	// Statuses is the poll script by result name (e.g. "Pending", "OK").
	Statuses []string `yaml:"statuses,omitempty"`

	// FinalStatus is returned once Statuses runs out. Default: OK.
	FinalStatus string `yaml:"final_status,omitempty"`

	SizeFails bool       `yaml:"size_fails,omitempty"`
	FillFails bool       `yaml:"fill_fails,omitempty"`
	Items     []ItemSpec `yaml:"items,omitempty"`
	FillItems []ItemSpec `yaml:"fill_items,omitempty"`
	FillCount *uint32    `yaml:"fill_count,omitempty"`

	ConsumeFails bool `yaml:"consume_fails,omitempty"`

	// PurchaseToken is returned by StartPurchase. Default: 1.
	PurchaseToken *uint64 `yaml:"purchase_token,omitempty"`

	PricesFail bool        `yaml:"prices_fail,omitempty"`
	Prices     []PriceSpec `yaml:"prices,omitempty"`
}

// EngineSettings overrides engine polling.
type EngineSettings struct {
	PollAttempts int           `yaml:"poll_attempts,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// ItemSpec is one item record as written in a scenario.
type ItemSpec struct {
	ItemID     uint64 `yaml:"item_id"`
	Definition int32  `yaml:"definition"`
	Quantity   uint16 `yaml:"quantity"`
	Flags      uint16 `yaml:"flags,omitempty"`
}

// PriceSpec is one price record as written in a scenario.
type PriceSpec struct {
	Definition int32  `yaml:"definition"`
	Price      uint64 `yaml:"price"`
	BasePrice  uint64 `yaml:"base_price"`
}

// LineSpec is one purchase line.
type LineSpec struct {
	Definition int32  `yaml:"definition"`
	Quantity   uint32 `yaml:"quantity"`
}

// Step is one engine operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// ItemID and Quantity are used by consume_item.
	ItemID   uint64 `yaml:"item_id,omitempty"`
	Quantity uint32 `yaml:"quantity,omitempty"`

	// Lines are used by purchase.
	Lines []LineSpec `yaml:"lines,omitempty"`

	// Deliver completes a call token through the dispatcher. With purchase
	// it is delivered right after the purchase starts.
	Deliver *Delivery `yaml:"deliver,omitempty"`

	// Expect validates the step's outcome. Nil expects success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Delivery is a completion pushed through the dispatcher.
type Delivery struct {
	// Token defaults to the scripted purchase token.
	Token     *uint64 `yaml:"token,omitempty"`
	Result    string  `yaml:"result"`
	OrderID   uint64  `yaml:"order_id,omitempty"`
	TransID   uint64  `yaml:"trans_id,omitempty"`
	IOFailure bool    `yaml:"io_failure,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected error code (see inventory.CodeOf). Empty means success.
	Error string `yaml:"error,omitempty"`

	// Items is the exact item list from get_all_items.
	Items []ItemSpec `yaml:"items,omitempty"`

	// Prices is the exact price list from get_item_prices.
	Prices []PriceSpec `yaml:"prices,omitempty"`

	// OrderID and TransID are checked for a successful purchase.
	OrderID uint64 `yaml:"order_id,omitempty"`
	TransID uint64 `yaml:"trans_id,omitempty"`

	// Pending expects the purchase callback not to have fired yet.
	Pending bool `yaml:"pending,omitempty"`

	// Released is the handle count reported by close.
	Released *int `yaml:"released,omitempty"`
}

// Step operations.
const (
	OpGetAllItems   = "get_all_items"
	OpConsumeItem   = "consume_item"
	OpGetItemPrices = "get_item_prices"
	OpPurchase      = "purchase"
	OpDeliver       = "deliver"
	OpClose         = "close"
)

// Assertion validates the state after all steps.
type Assertion struct {
	// Type specifies the assertion type:
	// - "call_count": op appears exactly Count times in the call log
	// - "call_order": Ops appear in this relative order
	// - "destroy_count": Handle was destroyed exactly Count times
	// - "outstanding": Count handles were issued and never destroyed
	// - "pending_handles": Count handles are still tracked by the engine
	// - "elapsed": virtual poll time is within [Min, Max]
	Type string `yaml:"type"`

	Op     string        `yaml:"op,omitempty"`
	Ops    []string      `yaml:"ops,omitempty"`
	Handle int64         `yaml:"handle,omitempty"`
	Count  int           `yaml:"count,omitempty"`
	Min    time.Duration `yaml:"min,omitempty"`
	Max    time.Duration `yaml:"max,omitempty"`
}

// Assertion type constants.
const (
	AssertCallCount      = "call_count"
	AssertCallOrder      = "call_order"
	AssertDestroyCount   = "destroy_count"
	AssertOutstanding    = "outstanding"
	AssertPendingHandles = "pending_handles"
	AssertElapsed        = "elapsed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml file in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Engine.PollAttempts < 0 {
		return fmt.Errorf("engine.poll_attempts must be non-negative")
	}
	if s.Engine.PollInterval < 0 {
		return fmt.Errorf("engine.poll_interval must be non-negative")
	}

	for i, name := range s.Subsystem.Statuses {
		if _, err := subsystem.ParseResult(name); err != nil {
			return fmt.Errorf("subsystem.statuses[%d]: %w", i, err)
		}
	}
	if s.Subsystem.FinalStatus != "" {
		if _, err := subsystem.ParseResult(s.Subsystem.FinalStatus); err != nil {
			return fmt.Errorf("subsystem.final_status: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case OpGetAllItems, OpGetItemPrices, OpClose, OpConsumeItem:
	case OpPurchase:
		// An empty line list is a valid request that must fail.
	case OpDeliver:
		if st.Deliver == nil {
			return fmt.Errorf("steps[%d]: deliver is required for %s", index, OpDeliver)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if st.Deliver != nil {
		if st.Op != OpPurchase && st.Op != OpDeliver {
			return fmt.Errorf("steps[%d]: deliver is only valid for %s and %s", index, OpPurchase, OpDeliver)
		}
		if _, err := subsystem.ParseResult(st.Deliver.Result); err != nil {
			return fmt.Errorf("steps[%d].deliver: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertCallCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for call_count", index)
		}
	case AssertCallOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for call_order", index)
		}
	case AssertDestroyCount:
		if a.Handle == 0 {
			return fmt.Errorf("assertions[%d]: handle is required for destroy_count", index)
		}
	case AssertOutstanding, AssertPendingHandles:
	case AssertElapsed:
		if a.Max != 0 && a.Max < a.Min {
			return fmt.Errorf("assertions[%d]: max must not be below min", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
