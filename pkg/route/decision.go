// Package route executes routing decisions: it turns a task category
// into an ordered candidate chain and runs the chain with
// fallback-on-failure until a backend delivers a stream.
package route

import (
	"fmt"

	"github.com/zen-systems/agentgate/pkg/registry"
)

// Outcome records how one candidate attempt ended.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomePermanentFailure Outcome = "permanent_failure"
	OutcomeBreakerOpen      Outcome = "breaker_open"
)

// Attempt is one entry in a decision's attempt log.
type Attempt struct {
	Model   registry.ModelSpec
	Outcome Outcome
	Err     error
}

// Decision is a per-request routing plan plus its attempt log. It is
// created at dispatch time, mutated only by appending attempts, and
// read-only once a candidate succeeds or the chain is exhausted.
type Decision struct {
	Primary        registry.ModelSpec
	FallbackChain  []registry.ModelSpec
	Category       registry.TaskCategory
	Confidence     float64
	RequiresVision bool
	Attempts       []Attempt
}

// Candidates returns the full ordered chain, primary first. Model ids
// are unique across the chain; the registry never hands out the
// primary as its own fallback.
func (d *Decision) Candidates() []registry.ModelSpec {
	out := make([]registry.ModelSpec, 0, 1+len(d.FallbackChain))
	out = append(out, d.Primary)
	out = append(out, d.FallbackChain...)
	return out
}

// ChainExhaustedError is the aggregate failure raised after every
// candidate failed. It carries the last underlying error and the full
// attempt log for diagnostics.
type ChainExhaustedError struct {
	Attempts []Attempt
	LastErr  error
}

func (e *ChainExhaustedError) Error() string {
	return fmt.Sprintf("all %d candidate backends failed: %v", len(e.Attempts), e.LastErr)
}

func (e *ChainExhaustedError) Unwrap() error {
	return e.LastErr
}
