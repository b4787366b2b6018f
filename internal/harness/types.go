package harness

import (
	"fmt"

	"github.com/roach88/rulegraph/internal/graph"
)

// StepError is a caller-input error raised by a step.
type StepError struct {
	Step    int             `json:"step"`
	Op      string          `json:"op"`
	ID      string          `json:"id"`
	Kind    graph.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

func (e StepError) String() string {
	return fmt.Sprintf("steps[%d] %s %q: %s", e.Step, e.Op, e.ID, e.Message)
}

// Traversal records one BFS run made by a bfs assertion.
type Traversal struct {
	From    string   `json:"from"`
	Visited []string `json:"visited"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held and no step failed unexpectedly.
	Pass bool `json:"pass"`

	// Edges is the final edge list, grouped by source in node order.
	Edges []graph.Edge `json:"edges"`

	// Traversals holds the output of each bfs assertion, in order.
	Traversals []Traversal `json:"traversals,omitempty"`

	// StepErrors holds every error raised by a step.
	StepErrors []StepError `json:"step_errors,omitempty"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Edges:  []graph.Edge{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
