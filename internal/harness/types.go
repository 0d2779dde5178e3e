package harness

import (
	"time"

	"github.com/roach88/stockpile/internal/testutil"
)

// StepOutcome records what one step actually produced.
type StepOutcome struct {
	Op       string      `json:"op" yaml:"op"`
	Error    string      `json:"error,omitempty" yaml:"error,omitempty"`
	Items    []ItemSpec  `json:"items,omitempty" yaml:"items,omitempty"`
	Prices   []PriceSpec `json:"prices,omitempty" yaml:"prices,omitempty"`
	OrderID  uint64      `json:"order_id,omitempty" yaml:"order_id,omitempty"`
	TransID  uint64      `json:"trans_id,omitempty" yaml:"trans_id,omitempty"`
	Pending  bool        `json:"pending,omitempty" yaml:"pending,omitempty"`
	Released *int        `json:"released,omitempty" yaml:"released,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Steps holds one outcome per executed step.
	Steps []StepOutcome `json:"steps"`

	// Calls is the subsystem call log in order.
	Calls []testutil.Call `json:"calls"`

	// Elapsed is the virtual time spent sleeping between polls.
	Elapsed time.Duration `json:"elapsed"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Calls:  []testutil.Call{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
