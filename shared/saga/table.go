package saga

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/events"
)

var (
	ErrConflictingRule = errors.New("conflicting transition rule")
	ErrStateRegression = errors.New("transition regresses workflow state")
	ErrMissingEffect   = errors.New("transition has no effect")
	ErrEmptyStateSet   = errors.New("during clause has no states")
)

// Effect applies an observed message to a working copy of the instance and
// optionally returns the single event to publish afterwards.
type Effect[I, M any] func(instance I, msg M) (*events.Event, error)

// Transition is one rule of a workflow definition
type Transition[S comparable, I, M any] struct {
	// Name is used for logs and metrics
	Name string
	// Effect mutates the instance copy; it must not perform I/O
	Effect Effect[I, M]
	// Target is the state to move to when HasTarget is set
	Target    S
	HasTarget bool
	// Finalize removes the instance once the effect has run
	Finalize bool
}

// Next returns the state after the transition is applied to current
func (t Transition[S, I, M]) Next(current S) S {
	if t.HasTarget {
		return t.Target
	}
	return current
}

// Key addresses a rule
type Key[S, E comparable] struct {
	State S
	Event E
}

// Table is an immutable workflow definition. It is shared by every saga
// instance and never holds per-instance data.
type Table[S, E comparable, I, M any] struct {
	name       string
	initial    S
	rules      map[Key[S, E]]Transition[S, I, M]
	initiating map[E]struct{}
}

// Name returns the definition name
func (t *Table[S, E, I, M]) Name() string {
	return t.name
}

// InitialState returns the sentinel state of a not yet created instance
func (t *Table[S, E, I, M]) InitialState() S {
	return t.initial
}

// Lookup returns the rule for (state, event)
func (t *Table[S, E, I, M]) Lookup(state S, event E) (Transition[S, I, M], bool) {
	tr, ok := t.rules[Key[S, E]{State: state, Event: event}]
	return tr, ok
}

// IsInitiating reports whether event may create an instance
func (t *Table[S, E, I, M]) IsInitiating(event E) bool {
	_, ok := t.initiating[event]
	return ok
}

// AcceptedStates lists the states in which event is legal
func (t *Table[S, E, I, M]) AcceptedStates(event E) []S {
	var states []S
	for k := range t.rules {
		if k.Event == event {
			states = append(states, k.State)
		}
	}
	return states
}

// Len returns the number of rules
func (t *Table[S, E, I, M]) Len() int {
	return len(t.rules)
}

// Builder assembles a Table. Rules may be declared in any order.
type Builder[S, E comparable, I, M any] struct {
	name       string
	initial    S
	rank       func(S) int
	rules      map[Key[S, E]]Transition[S, I, M]
	initiating map[E]struct{}
	errs       []error
}

// NewBuilder starts a definition whose pre-creation state is initial
func NewBuilder[S, E comparable, I, M any](name string, initial S) *Builder[S, E, I, M] {
	return &Builder[S, E, I, M]{
		name:       name,
		initial:    initial,
		rules:      make(map[Key[S, E]]Transition[S, I, M]),
		initiating: make(map[E]struct{}),
	}
}

// Ordered makes Build reject any rule whose target ranks below its source
func (b *Builder[S, E, I, M]) Ordered(rank func(S) int) *Builder[S, E, I, M] {
	b.rank = rank
	return b
}

// Initially declares an event that creates a new instance
func (b *Builder[S, E, I, M]) Initially(event E, tr Transition[S, I, M]) *Builder[S, E, I, M] {
	b.initiating[event] = struct{}{}
	b.add(b.initial, event, tr)
	return b
}

// During opens a clause whose rules apply in every listed state
func (b *Builder[S, E, I, M]) During(states ...S) *During[S, E, I, M] {
	if len(states) == 0 {
		b.errs = append(b.errs, ErrEmptyStateSet)
	}
	return &During[S, E, I, M]{builder: b, states: states}
}

func (b *Builder[S, E, I, M]) add(state S, event E, tr Transition[S, I, M]) {
	key := Key[S, E]{State: state, Event: event}
	if tr.Effect == nil {
		b.errs = append(b.errs, errors.Wrapf(ErrMissingEffect, "%v on %v", event, state))
		return
	}
	if _, exists := b.rules[key]; exists {
		b.errs = append(b.errs, errors.Wrapf(ErrConflictingRule, "%v on %v", event, state))
		return
	}
	if b.rank != nil && tr.HasTarget && state != b.initial && b.rank(tr.Target) < b.rank(state) {
		b.errs = append(b.errs, errors.Wrapf(ErrStateRegression, "%v on %v -> %v", event, state, tr.Target))
		return
	}
	b.rules[key] = tr
}

// Build validates the definition and freezes it
func (b *Builder[S, E, I, M]) Build() (*Table[S, E, I, M], error) {
	if len(b.errs) > 0 {
		return nil, errors.Wrap(b.errs[0], fmt.Sprintf("invalid definition %q (%d errors)", b.name, len(b.errs)))
	}
	if len(b.initiating) == 0 {
		return nil, errors.Errorf("invalid definition %q: no initiating event", b.name)
	}

	rules := make(map[Key[S, E]]Transition[S, I, M], len(b.rules))
	for k, v := range b.rules {
		rules[k] = v
	}
	initiating := make(map[E]struct{}, len(b.initiating))
	for k := range b.initiating {
		initiating[k] = struct{}{}
	}

	return &Table[S, E, I, M]{
		name:       b.name,
		initial:    b.initial,
		rules:      rules,
		initiating: initiating,
	}, nil
}

// During groups rules sharing the same accepted states
type During[S, E comparable, I, M any] struct {
	builder *Builder[S, E, I, M]
	states  []S
}

// When registers tr for event in each state of the clause
func (d *During[S, E, I, M]) When(event E, tr Transition[S, I, M]) *During[S, E, I, M] {
	for _, state := range d.states {
		d.builder.add(state, event, tr)
	}
	return d
}

// End returns to the builder
func (d *During[S, E, I, M]) End() *Builder[S, E, I, M] {
	return d.builder
}
