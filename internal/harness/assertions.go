package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
	"github.com/roach88/rulegraph/internal/traverse"
)

// AssertionError is returned when an assertion fails.
// It includes the final edge list to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Edges    []graph.Edge // Final edges for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal edges:\n")
	if len(e.Edges) == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	for _, edge := range e.Edges {
		fmt.Fprintf(&buf, "  %s\n", edge)
	}

	return buf.String()
}

// parseEdge parses "from -> to".
func parseEdge(s string) (graph.Edge, error) {
	from, to, ok := strings.Cut(s, "->")
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if !ok || from == "" || to == "" {
		return graph.Edge{}, fmt.Errorf("edge %q: want \"from -> to\"", s)
	}
	return graph.Edge{From: from, To: to}, nil
}

// assertEdgesExact checks that the final edge set equals the expected one.
// Enumeration order is ignored.
func assertEdgesExact(edges []graph.Edge, assertion Assertion) error {
	want := make([]graph.Edge, 0, len(assertion.Edges))
	for _, s := range assertion.Edges {
		e, err := parseEdge(s)
		if err != nil {
			return err
		}
		want = append(want, e)
	}

	if payload.EdgeSetHash(want) == payload.EdgeSetHash(edges) {
		return nil
	}

	missing := edgeDiff(want, edges)
	extra := edgeDiff(edges, want)
	return &AssertionError{
		Type:     AssertEdgesExact,
		Expected: fmt.Sprintf("%d edges %v", len(want), want),
		Actual:   fmt.Sprintf("missing %v, unexpected %v", missing, extra),
		Edges:    edges,
	}
}

// edgeDiff returns the edges of a that are not in b.
func edgeDiff(a, b []graph.Edge) []graph.Edge {
	var out []graph.Edge
	for _, e := range a {
		if !slices.Contains(b, e) && !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}

// assertEdge checks presence (want true) or absence of one edge.
func assertEdge(store graph.Store[payload.Object], edges []graph.Edge, assertion Assertion, want bool) error {
	if store.HasEdge(assertion.From, assertion.To) == want {
		return nil
	}

	edge := graph.Edge{From: assertion.From, To: assertion.To}
	expected, actual := "edge "+edge.String(), "absent"
	if !want {
		expected, actual = "no edge "+edge.String(), "present"
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: expected,
		Actual:   actual,
		Edges:    edges,
	}
}

// assertBFS runs a traversal and compares the visit order.
func assertBFS(store graph.Store[payload.Object], edges []graph.Edge, assertion Assertion, result *Result) error {
	opts := []traverse.Option[payload.Object]{}
	if assertion.MaxDepth != nil {
		opts = append(opts, traverse.WithMaxDepth[payload.Object](*assertion.MaxDepth))
	}
	if len(assertion.Barriers) > 0 {
		opts = append(opts, traverse.WithExpand[payload.Object](func(n *graph.Node[payload.Object], _ int) bool {
			return !slices.Contains(assertion.Barriers, n.ID())
		}))
	}
	if assertion.StopAt != "" {
		opts = append(opts, traverse.WithVisit[payload.Object](func(n *graph.Node[payload.Object], _ int) error {
			if n.ID() == assertion.StopAt {
				return traverse.ErrStop
			}
			return nil
		}))
	}

	nodes, err := traverse.BFS(store, assertion.From, opts...)
	if err != nil {
		return &AssertionError{
			Type:     AssertBFS,
			Expected: fmt.Sprintf("traversal from %s", assertion.From),
			Actual:   err.Error(),
			Edges:    edges,
		}
	}

	visited := make([]string, len(nodes))
	for i, n := range nodes {
		visited[i] = n.ID()
	}
	result.Traversals = append(result.Traversals, Traversal{From: assertion.From, Visited: visited})

	if !slices.Equal(visited, assertion.Expect) {
		return &AssertionError{
			Type:     AssertBFS,
			Expected: fmt.Sprintf("visit order %v", assertion.Expect),
			Actual:   fmt.Sprintf("visit order %v", visited),
			Edges:    edges,
		}
	}
	return nil
}

// assertStepError checks that a step failed with the given kind. Matched
// errors are marked so they do not count as unexpected.
func assertStepError(result *Result, assertion Assertion, claimed []bool) error {
	for i, se := range result.StepErrors {
		if string(se.Kind) != assertion.Kind {
			continue
		}
		if assertion.Step != nil && se.Step != *assertion.Step {
			continue
		}
		claimed[i] = true
		return nil
	}

	where := "any step"
	if assertion.Step != nil {
		where = fmt.Sprintf("steps[%d]", *assertion.Step)
	}
	actual := "no step errors"
	if len(result.StepErrors) > 0 {
		msgs := make([]string, len(result.StepErrors))
		for i, se := range result.StepErrors {
			msgs[i] = se.String()
		}
		actual = strings.Join(msgs, "; ")
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("%s error from %s", assertion.Kind, where),
		Actual:   actual,
		Edges:    result.Edges,
	}
}

// EvaluateAssertions evaluates all assertions against the manager's final
// graph. Returns a slice of error messages for failed assertions, followed by
// one message per step error no error assertion accounted for.
func EvaluateAssertions(m *Manager, result *Result, assertions []Assertion) []string {
	var msgs []string
	store := m.Store()
	claimed := make([]bool, len(result.StepErrors))

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEdgesExact:
			err = assertEdgesExact(result.Edges, assertion)
		case AssertHasEdge:
			err = assertEdge(store, result.Edges, assertion, true)
		case AssertNoEdge:
			err = assertEdge(store, result.Edges, assertion, false)
		case AssertBFS:
			err = assertBFS(store, result.Edges, assertion, result)
		case AssertError:
			err = assertStepError(result, assertion, claimed)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			var aerr *AssertionError
			if !errors.As(err, &aerr) {
				err = fmt.Errorf("assertion[%d]: %w", i, err)
			}
			msgs = append(msgs, err.Error())
		}
	}

	for i, se := range result.StepErrors {
		if !claimed[i] {
			msgs = append(msgs, "unexpected error: "+se.String())
		}
	}
	return msgs
}
