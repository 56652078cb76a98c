package harness

import (
	"github.com/roach88/metricc/internal/execution"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Request is the assembled request, nil if assembly failed.
	Request *execution.Request `json:"request,omitempty"`

	// ErrorCode is the code of the assembly error, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Err is the assembly error. It is part of the result, not a harness
	// failure: scenarios may expect it.
	Err error `json:"-"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
