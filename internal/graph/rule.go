package graph

import (
	"fmt"
	"strings"
)

// Direction governs which handshake role(s) a rule may play.
//
// The zero value is DirectionBoth, so a rule built without WithDirection
// may both initiate and accept edges.
type Direction int

const (
	// DirectionBoth lets the rule initiate outgoing edges and accept incoming ones.
	DirectionBoth Direction = iota
	// DirectionOutgoing lets the rule only initiate edges from its node.
	DirectionOutgoing
	// DirectionIncoming lets the rule only accept edges into its node.
	DirectionIncoming
)

// String returns the lowercase direction name used in rule files.
func (d Direction) String() string {
	switch d {
	case DirectionBoth:
		return "both"
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses a direction name. Matching is case-insensitive and
// the empty string means DirectionBoth.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return DirectionBoth, nil
	case "outgoing", "out":
		return DirectionOutgoing, nil
	case "incoming", "in":
		return DirectionIncoming, nil
	default:
		return DirectionBoth, fmt.Errorf("invalid direction %q, must be \"outgoing\", \"incoming\" or \"both\"", s)
	}
}

// MatchFunc reports whether a node holding self would connect with a node
// holding other. It must be pure: no side effects, no mutable captured state.
type MatchFunc[T any] func(self, other T) bool

// FilterFunc is a cheap pre-check on the candidate target, applied only when
// a rule initiates an edge and always before MatchFunc.
type FilterFunc[T any] func(other T) bool

// Rule declares a node's willingness to initiate and/or accept directed edges.
//
// Rules are immutable values. All fields are unexported and set once by
// NewRule, so the same Rule may be shared by any number of nodes without
// copying its predicates. The functions a Rule wraps must not change behavior
// after the rule is first attached to a node; doing so is undefined behavior
// and is not detected.
type Rule[T any] struct {
	name      string
	direction Direction
	match     MatchFunc[T]
	filter    FilterFunc[T]
}

// RuleOption configures a Rule at construction time.
type RuleOption[T any] func(*Rule[T])

// WithDirection sets the rule direction. Default: DirectionBoth.
func WithDirection[T any](d Direction) RuleOption[T] {
	return func(r *Rule[T]) {
		r.direction = d
	}
}

// WithTargetFilter sets the initiating-side pre-filter.
func WithTargetFilter[T any](f FilterFunc[T]) RuleOption[T] {
	return func(r *Rule[T]) {
		r.filter = f
	}
}

// WithName attaches a diagnostic name. Names have no semantic effect.
func WithName[T any](name string) RuleOption[T] {
	return func(r *Rule[T]) {
		r.name = name
	}
}

// NewRule builds an immutable rule around match.
//
// Panics if match is nil: a rule without a predicate is a programming error,
// not a runtime condition.
func NewRule[T any](match MatchFunc[T], opts ...RuleOption[T]) Rule[T] {
	if match == nil {
		panic("graph.NewRule: match function is nil")
	}
	r := Rule[T]{match: match}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Name returns the diagnostic name, or "" if none was set.
func (r Rule[T]) Name() string { return r.name }

// Direction returns the rule direction.
func (r Rule[T]) Direction() Direction { return r.direction }

// CanInitiate reports whether the rule may act on the initiating side.
func (r Rule[T]) CanInitiate() bool {
	return r.direction == DirectionOutgoing || r.direction == DirectionBoth
}

// CanAccept reports whether the rule may act on the accepting side.
func (r Rule[T]) CanAccept() bool {
	return r.direction == DirectionIncoming || r.direction == DirectionBoth
}

// HasTargetFilter reports whether a target filter was configured.
func (r Rule[T]) HasTargetFilter() bool { return r.filter != nil }

// AcceptsTarget applies the target filter. Rules without a filter accept
// every target.
func (r Rule[T]) AcceptsTarget(other T) bool {
	if r.filter == nil {
		return true
	}
	return r.filter(other)
}

// Match evaluates the rule predicate from the point of view of self.
// A zero Rule (never built by NewRule) matches nothing.
func (r Rule[T]) Match(self, other T) bool {
	if r.match == nil {
		return false
	}
	return r.match(self, other)
}

// String renders the rule for logs, e.g. "peer(outgoing)".
func (r Rule[T]) String() string {
	name := r.name
	if name == "" {
		name = "rule"
	}
	return fmt.Sprintf("%s(%s)", name, r.direction)
}
