// Package saga holds the workflow-agnostic pieces of a saga coordinator:
// an immutable transition table keyed by (state, event), the outcome of a
// single dispatch, and per-correlation serialization.
package saga

// Outcome classifies what a single dispatch did to its saga instance
type Outcome string

const (
	// OutcomeCreated means an initiating event created a new instance
	OutcomeCreated Outcome = "created"
	// OutcomeTransitioned means the instance moved to a new state
	OutcomeTransitioned Outcome = "transitioned"
	// OutcomeRecorded means fields were recorded but the state did not change
	OutcomeRecorded Outcome = "recorded"
	// OutcomeCompleted means the instance finalized and was removed
	OutcomeCompleted Outcome = "completed"
	// OutcomeDuplicate means the event had already been applied
	OutcomeDuplicate Outcome = "duplicate"
)

func (o Outcome) String() string {
	return string(o)
}

// Mutated reports whether the outcome changed stored saga data
func (o Outcome) Mutated() bool {
	return o != OutcomeDuplicate
}
