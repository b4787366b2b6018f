package compiler

import (
	"fmt"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
)

// predicate is a compiled PredicateSpec. Compiled predicates close over
// immutable compiled data only, so rules built from them can be shared
// across nodes.
type predicate func(self, other payload.Object) bool

// compileRule compiles a validated RuleSpec. defaultName is used when the
// spec carries no name of its own.
func compileRule(rs *RuleSpec, defaultName string) (Rule, error) {
	dir, err := graph.ParseDirection(rs.Direction)
	if err != nil {
		return Rule{}, err
	}
	match, err := compilePredicate(rs.Match)
	if err != nil {
		return Rule{}, fmt.Errorf("match: %w", err)
	}

	name := rs.Name
	if name == "" {
		name = defaultName
	}
	opts := []graph.RuleOption[payload.Object]{
		graph.WithDirection[payload.Object](dir),
		graph.WithName[payload.Object](name),
	}

	if rs.Filter != nil {
		filter, err := compilePredicate(rs.Filter)
		if err != nil {
			return Rule{}, fmt.Errorf("filter: %w", err)
		}
		opts = append(opts, graph.WithTargetFilter(func(other payload.Object) bool {
			return filter(nil, other)
		}))
	}

	return graph.NewRule(graph.MatchFunc[payload.Object](match), opts...), nil
}

func compilePredicate(p *PredicateSpec) (predicate, error) {
	kind, count := predicateKind(p)
	switch kind {
	case "always":
		result := *p.Always
		return func(_, _ payload.Object) bool { return result }, nil

	case "same":
		path := p.Same
		return func(self, other payload.Object) bool {
			a, okA := self.Lookup(path)
			b, okB := other.Lookup(path)
			return okA && okB && payload.Equal(a, b)
		}, nil

	case "differ":
		path := p.Differ
		return func(self, other payload.Object) bool {
			a, okA := self.Lookup(path)
			b, okB := other.Lookup(path)
			return okA && okB && !payload.Equal(a, b)
		}, nil

	case "overlap":
		path := p.Overlap
		return func(self, other payload.Object) bool {
			a, okA := self.Lookup(path)
			b, okB := other.Lookup(path)
			if !okA || !okB {
				return false
			}
			return overlaps(a, b)
		}, nil

	case "self":
		test, err := compileFieldTest(p.Self)
		if err != nil {
			return nil, err
		}
		return func(self, _ payload.Object) bool { return test(self) }, nil

	case "other":
		test, err := compileFieldTest(p.Other)
		if err != nil {
			return nil, err
		}
		return func(_, other payload.Object) bool { return test(other) }, nil

	case "all", "any":
		list := p.All
		if kind == "any" {
			list = p.Any
		}
		parts := make([]predicate, len(list))
		for i := range list {
			part, err := compilePredicate(&list[i])
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", kind, i, err)
			}
			parts[i] = part
		}
		if kind == "all" {
			return func(self, other payload.Object) bool {
				for _, part := range parts {
					if !part(self, other) {
						return false
					}
				}
				return true
			}, nil
		}
		return func(self, other payload.Object) bool {
			for _, part := range parts {
				if part(self, other) {
					return true
				}
			}
			return false
		}, nil

	case "not":
		inner, err := compilePredicate(p.Not)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return func(self, other payload.Object) bool { return !inner(self, other) }, nil

	default:
		return nil, fmt.Errorf("predicate must set exactly one form, found %d", count)
	}
}

func compileFieldTest(ft *FieldTest) (func(payload.Object) bool, error) {
	path := ft.Path
	switch {
	case ft.Exists != nil:
		want := *ft.Exists
		return func(obj payload.Object) bool {
			_, ok := obj.Lookup(path)
			return ok == want
		}, nil

	case ft.Equals != nil:
		want, err := payload.FromAny(ft.Equals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return func(obj payload.Object) bool {
			v, ok := obj.Lookup(path)
			return ok && payload.Equal(v, want)
		}, nil

	case ft.In != nil:
		raw, err := payload.FromAny(ft.In)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		set := raw.(payload.List)
		return func(obj payload.Object) bool {
			v, ok := obj.Lookup(path)
			if !ok {
				return false
			}
			for _, candidate := range set {
				if payload.Equal(v, candidate) {
					return true
				}
			}
			return false
		}, nil

	default:
		return nil, fmt.Errorf("%s: field test sets no check", path)
	}
}

// overlaps reports whether two lists share an element. Scalars are treated
// as one-element lists.
func overlaps(a, b payload.Value) bool {
	for _, x := range asList(a) {
		for _, y := range asList(b) {
			if payload.Equal(x, y) {
				return true
			}
		}
	}
	return false
}

func asList(v payload.Value) payload.List {
	if l, ok := v.(payload.List); ok {
		return l
	}
	return payload.List{v}
}
