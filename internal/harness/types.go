package harness

import (
	"github.com/roach88/domainreg/internal/ir"
)

// StepTrace records what one flow step did.
type StepTrace struct {
	Step    int        `json:"step"` // 1-based
	Op      string     `json:"op"`
	Outcome string     `json:"outcome"` // "ok" or an error code
	ID      *uint64    `json:"id,omitempty"`
	Events  []ir.Event `json:"events,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool

	// Trace holds one entry per flow step.
	Trace []StepTrace

	// Errors lists expectation and assertion failures.
	Errors []string
}

// NewResult returns a passing, empty result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns every event in the trace in seq order.
func (r *Result) Events() []ir.Event {
	var all []ir.Event
	for _, st := range r.Trace {
		all = append(all, st.Events...)
	}
	return all
}
