package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rulegraph/internal/compiler"
)

// Scenario is a conformance scenario: a starting network, a sequence of
// manager operations, and assertions over the resulting graph.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network declares the named rules and initial nodes. Nodes are created
	// in declaration order before any step runs. If the network has no name,
	// the scenario name is used.
	Network compiler.NetworkSpec `yaml:"network"`

	// Steps run in order after the network is applied.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions are evaluated against the final graph.
	Assertions []Assertion `yaml:"assertions"`

	// RunID fixes the manager run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Step is one manager operation.
type Step struct {
	// Op is one of create, remove, update, set_data.
	Op string `yaml:"op"`

	// ID is the target node id.
	ID string `yaml:"id"`

	// Data is the node payload for create, update and set_data.
	Data map[string]any `yaml:"data,omitempty"`

	// Rules references named rules or declares inline rules (create only).
	Rules []compiler.RuleRef `yaml:"rules,omitempty"`
}

// Step operations.
const (
	OpCreate  = "create"
	OpRemove  = "remove"
	OpUpdate  = "update"
	OpSetData = "set_data"
)

// Assertion checks the final graph or the errors raised by steps.
type Assertion struct {
	// Type is one of edges_exact, has_edge, no_edge, bfs, error.
	Type string `yaml:"type"`

	// From and To name an edge (has_edge, no_edge). From is also the BFS
	// start node.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Edges is the complete expected edge set (edges_exact).
	Edges []string `yaml:"edges,omitempty"`

	// MaxDepth bounds the traversal (bfs). Unset means unlimited.
	MaxDepth *int `yaml:"max_depth,omitempty"`

	// Barriers are nodes whose neighbours are not expanded (bfs).
	Barriers []string `yaml:"barriers,omitempty"`

	// StopAt ends the traversal once this node is visited (bfs).
	StopAt string `yaml:"stop_at,omitempty"`

	// Expect is the expected visit order (bfs).
	Expect []string `yaml:"expect,omitempty"`

	// Step is the index of the step expected to fail (error). Unset matches
	// any step.
	Step *int `yaml:"step,omitempty"`

	// Kind is the expected error kind, e.g. DUPLICATE_ID (error).
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertEdgesExact = "edges_exact"
	AssertHasEdge    = "has_edge"
	AssertNoEdge     = "no_edge"
	AssertBFS        = "bfs"
	AssertError      = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks the scenario's own structure. The network itself
// is validated by compiler.Build when the scenario runs.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpCreate, OpRemove, OpUpdate, OpSetData:
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if len(step.Rules) > 0 && step.Op != OpCreate {
			return fmt.Errorf("steps[%d]: rules are only allowed on create", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, steps int) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEdgesExact:
		for j, e := range a.Edges {
			if _, err := parseEdge(e); err != nil {
				return fmt.Errorf("assertions[%d].edges[%d]: %w", index, j, err)
			}
		}
	case AssertHasEdge, AssertNoEdge:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("assertions[%d]: from and to are required for %s", index, a.Type)
		}
	case AssertBFS:
		if a.From == "" {
			return fmt.Errorf("assertions[%d]: from is required for bfs", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for bfs", index)
		}
	case AssertError:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for error", index)
		}
		if a.Step != nil && (*a.Step < 0 || *a.Step >= steps) {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, *a.Step)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
