package testutil

import "github.com/roach88/rulegraph/internal/graph"

// Always returns a rule with the given direction whose predicate always holds.
func Always[T any](d graph.Direction) graph.Rule[T] {
	return graph.NewRule(func(_, _ T) bool { return true },
		graph.WithDirection[T](d),
		graph.WithName[T]("always"),
	)
}

// Never returns a rule with the given direction whose predicate never holds.
func Never[T any](d graph.Direction) graph.Rule[T] {
	return graph.NewRule(func(_, _ T) bool { return false },
		graph.WithDirection[T](d),
		graph.WithName[T]("never"),
	)
}

// Calls records predicate invocations made through Counting rules.
type Calls struct {
	Match  int
	Filter int

	// Pairs holds (self, other) for each match call, formatted by the caller's
	// payload values.
	Pairs [][2]any
}

// Counting returns a rule that records every call into c before delegating
// to result for the match outcome. A nil filter leaves the rule without a
// target filter.
func Counting[T any](c *Calls, d graph.Direction, result bool, filter func(other T) bool) graph.Rule[T] {
	opts := []graph.RuleOption[T]{
		graph.WithDirection[T](d),
		graph.WithName[T]("counting"),
	}
	if filter != nil {
		opts = append(opts, graph.WithTargetFilter(func(other T) bool {
			c.Filter++
			return filter(other)
		}))
	}
	return graph.NewRule(func(self, other T) bool {
		c.Match++
		c.Pairs = append(c.Pairs, [2]any{self, other})
		return result
	}, opts...)
}
