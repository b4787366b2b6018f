package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rulegraph/internal/compiler"
	"github.com/roach88/rulegraph/internal/engine"
	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
	"github.com/roach88/rulegraph/internal/testutil"
)

// Manager is the manager type scenarios drive.
type Manager = engine.Manager[payload.Object]

// Option configures Run.
type Option func(*config)

type config struct {
	store  graph.Store[payload.Object]
	logger *slog.Logger
}

// WithStore runs the scenario against s instead of a fresh in-memory store.
// s must be empty.
func WithStore(s graph.Store[payload.Object]) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithLogger sets the manager's logger. Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Harness executes one scenario against one manager.
type Harness struct {
	net     *compiler.Network
	manager *Manager
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the scenario's network
//  2. Create its nodes in declaration order
//  3. Execute steps, recording caller-input errors
//  4. Evaluate assertions against the final graph
//
// Run returns an error only when the scenario itself is malformed (the
// network does not compile, a step references an unknown rule) or the store
// fails. Failed assertions are reported through Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	spec := scenario.Network
	if spec.Name == "" {
		spec.Name = scenario.Name
	}
	net, err := compiler.Build(&spec)
	if err != nil {
		return nil, fmt.Errorf("compile network: %w", err)
	}

	managerOpts := []engine.Option[payload.Object]{
		engine.WithLogger[payload.Object](cfg.logger),
		engine.WithRunID[payload.Object](testutil.NewFixedRunID(scenario.RunID)),
	}
	if cfg.store != nil {
		managerOpts = append(managerOpts, engine.WithStore[payload.Object](cfg.store))
	}

	h := &Harness{
		net:     net,
		manager: engine.New(managerOpts...),
		logger:  cfg.logger,
	}

	if err := net.Apply(h.manager); err != nil {
		return nil, fmt.Errorf("apply network: %w", err)
	}

	result := NewResult()
	if err := h.executeSteps(scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	edges, err := h.manager.Edges()
	if err != nil {
		return nil, fmt.Errorf("read edges: %w", err)
	}
	result.Edges = edges

	for _, msg := range EvaluateAssertions(h.manager, result, scenario.Assertions) {
		result.AddError(msg)
	}
	if err := h.manager.Err(); err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	return result, nil
}

// executeSteps runs every step in order. Caller-input errors (graph.Error)
// are recorded on the result and execution continues; anything else aborts.
func (h *Harness) executeSteps(steps []Step, result *Result) error {
	for i, step := range steps {
		err := h.executeStep(step)
		if err == nil {
			h.logger.Debug("step completed", "step", i, "op", step.Op, "node_id", step.ID)
			continue
		}

		var gerr *graph.Error
		if !errors.As(err, &gerr) {
			return fmt.Errorf("steps[%d] %s %q: %w", i, step.Op, step.ID, err)
		}
		result.StepErrors = append(result.StepErrors, StepError{
			Step:    i,
			Op:      step.Op,
			ID:      step.ID,
			Kind:    gerr.Kind,
			Message: err.Error(),
		})
		h.logger.Debug("step failed", "step", i, "op", step.Op, "node_id", step.ID, "kind", gerr.Kind)
	}
	return nil
}

func (h *Harness) executeStep(step Step) error {
	switch step.Op {
	case OpCreate:
		data, err := payload.ObjectFromMap(step.Data)
		if err != nil {
			return fmt.Errorf("data: %w", err)
		}
		rules, err := h.net.Rules(step.Rules)
		if err != nil {
			return err
		}
		_, err = h.manager.CreateNode(step.ID, data, rules...)
		return err

	case OpRemove:
		return h.manager.RemoveNode(step.ID)

	case OpUpdate:
		data, err := payload.ObjectFromMap(step.Data)
		if err != nil {
			return fmt.Errorf("data: %w", err)
		}
		return h.manager.UpdateNodeData(step.ID, data)

	case OpSetData:
		data, err := payload.ObjectFromMap(step.Data)
		if err != nil {
			return fmt.Errorf("data: %w", err)
		}
		n, ok := h.manager.GetNode(step.ID)
		if !ok {
			return graph.NewNotFoundError(step.ID)
		}
		// Direct mutation: edges keep reflecting the previous payload.
		n.SetData(data)
		return nil

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}
