// Package fsmutil provides the generic named-action -> (from-set -> to)
// transition table used by the Session status machine (internal/session).
// The per-tool approval phases in internal/approval are a plain switch and
// do not use it. It is pure: no callbacks, no history.
package fsmutil

import "fmt"

// Transition describes one action's admissible from-states and its
// destination state.
type Transition[S comparable] struct {
	From map[S]bool
	To   S
}

// Table maps an action to its Transition. A Table is immutable once built
// and safe for concurrent use by multiple FSM instances.
type Table[S comparable, A comparable] map[A]Transition[S]

// InvalidTransitionError is returned when an action is not admissible from
// the current state, or is not defined in the table at all. It carries the
// from-set so callers can report "what would have worked".
type InvalidTransitionError[S comparable, A comparable] struct {
	Current S
	Action  A
	From    map[S]bool // nil if the action itself is unknown
}

func (e *InvalidTransitionError[S, A]) Error() string {
	if e.From == nil {
		return fmt.Sprintf("fsmutil: unknown action %v", e.Action)
	}
	return fmt.Sprintf("fsmutil: action %v not admissible from state %v (admissible from: %v)", e.Action, e.Current, e.From)
}

// Apply attempts the named action from the current state. On success it
// returns the destination state. On failure it returns an
// *InvalidTransitionError naming the admissible from-set for the action.
func (t Table[S, A]) Apply(current S, action A) (S, error) {
	var zero S
	tr, ok := t[action]
	if !ok {
		return zero, &InvalidTransitionError[S, A]{Current: current, Action: action}
	}
	if !tr.From[current] {
		return zero, &InvalidTransitionError[S, A]{Current: current, Action: action, From: tr.From}
	}
	return tr.To, nil
}

// ValidActions returns the set of actions admissible from the given state.
func (t Table[S, A]) ValidActions(current S) []A {
	var actions []A
	for action, tr := range t {
		if tr.From[current] {
			actions = append(actions, action)
		}
	}
	return actions
}

// FromSet builds a from-set membership map from a variadic state list; a
// small convenience for table literals.
func FromSet[S comparable](states ...S) map[S]bool {
	m := make(map[S]bool, len(states))
	for _, s := range states {
		m[s] = true
	}
	return m
}
