package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
)

// EdgeSnapshot captures the final graph of a scenario execution.
type EdgeSnapshot struct {
	Scenario string
	Edges    []graph.Edge
}

// toCanonicalMap converts the snapshot into values payload.MarshalCanonical
// accepts.
func (s *EdgeSnapshot) toCanonicalMap() map[string]any {
	edges := make([]any, len(s.Edges))
	for i, e := range s.Edges {
		edges[i] = map[string]any{"from": e.From, "to": e.To}
	}
	return map[string]any{
		"scenario":      s.Scenario,
		"edge_count":    len(s.Edges),
		"edge_set_hash": payload.EdgeSetHash(s.Edges),
		"edges":         edges,
	}
}

// MarshalSnapshot renders the canonical JSON golden form of a result.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := EdgeSnapshot{Scenario: scenarioName, Edges: result.Edges}
	return payload.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario, fails t if any assertion failed, and
// compares the final edge list against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) error {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
