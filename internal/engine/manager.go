package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/telemetry"
)

// Manager is the only writer of edges. It keeps the edge set of its store
// equal to the handshake applied to every ordered pair of nodes, as of each
// node's last materialization.
//
// Manager is not safe for concurrent use.
type Manager[T any] struct {
	store     graph.Store[T]
	logger    *slog.Logger
	telemetry *telemetry.Recorder
	runIDGen  RunIDGenerator
	clock     *Clock
	runID     string
}

// Option configures a Manager.
type Option[T any] func(*Manager[T])

// WithStore sets the backing store. Default: an empty graph.MemStore.
// The store must be empty or contain only edges a Manager would derive.
func WithStore[T any](s graph.Store[T]) Option[T] {
	return func(m *Manager[T]) {
		m.store = s
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(m *Manager[T]) {
		m.logger = l
	}
}

// WithTelemetry sets the metrics and span recorder. Default: a no-op recorder.
func WithTelemetry[T any](r *telemetry.Recorder) Option[T] {
	return func(m *Manager[T]) {
		m.telemetry = r
	}
}

// WithRunID sets the generator for the manager's run id.
// Default: UUIDv7Generator.
func WithRunID[T any](gen RunIDGenerator) Option[T] {
	return func(m *Manager[T]) {
		m.runIDGen = gen
	}
}

// WithClock sets the logical clock used to stamp materializations.
// Default: a new clock starting at 0.
func WithClock[T any](c *Clock) Option[T] {
	return func(m *Manager[T]) {
		m.clock = c
	}
}

// New creates a Manager. A run id is drawn from the configured generator
// once and attached to every log line.
func New[T any](opts ...Option[T]) *Manager[T] {
	m := &Manager[T]{}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = graph.NewMemStore[T]()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.telemetry == nil {
		m.telemetry = telemetry.Noop()
	}
	if m.runIDGen == nil {
		m.runIDGen = UUIDv7Generator{}
	}
	if m.clock == nil {
		m.clock = NewClock()
	}

	m.runID = m.runIDGen.Generate()
	m.logger = m.logger.With("run_id", m.runID)
	return m
}

// CreateNode inserts a node and derives its edges in both directions against
// every node already present.
//
// Returns an EMPTY_ID error if id is empty and a DUPLICATE_ID error if id is
// taken; in both cases nothing is mutated.
func (m *Manager[T]) CreateNode(id string, data T, rules ...graph.Rule[T]) (*graph.Node[T], error) {
	ctx, span := m.telemetry.StartSpan(context.Background(), telemetry.SpanCreateNode,
		attribute.String("node_id", id),
		attribute.Int("rules", len(rules)),
	)
	defer span.End()

	if id == "" {
		return nil, telemetry.Fail(span, graph.NewEmptyIDError())
	}
	if _, ok := m.store.Node(id); ok {
		return nil, telemetry.Fail(span, graph.NewDuplicateIDError(id))
	}

	n := graph.NewNode(id, data, rules)
	if err := m.store.AddNode(n); err != nil {
		return nil, telemetry.Fail(span, fmt.Errorf("create node %s: %w", id, err))
	}

	added, err := m.materialize(ctx, n, "create")
	if err != nil {
		return nil, telemetry.Fail(span, err)
	}

	m.logger.Info("node created",
		"node_id", id,
		"rules", n.RuleCount(),
		"edges_added", added,
	)
	return n, nil
}

// RemoveNode deletes a node and every edge incident to it. Edges between
// other nodes are untouched. Removing an absent id is a no-op.
func (m *Manager[T]) RemoveNode(id string) error {
	ctx, span := m.telemetry.StartSpan(context.Background(), telemetry.SpanRemoveNode,
		attribute.String("node_id", id),
	)
	defer span.End()

	if _, ok := m.store.Node(id); !ok {
		span.SetAttributes(attribute.Bool("absent", true))
		m.logger.Debug("remove skipped: node absent", "node_id", id)
		return nil
	}

	removed, err := m.dropIncident(id)
	if err != nil {
		return telemetry.Fail(span, err)
	}
	if err := m.store.RemoveNode(id); err != nil {
		return telemetry.Fail(span, fmt.Errorf("remove node %s: %w", id, err))
	}

	span.SetAttributes(attribute.Int("edges_removed", removed))
	m.telemetry.RecordEdgesRemoved(ctx, "remove", removed)
	m.logger.Info("node removed",
		"node_id", id,
		"edges_removed", removed,
	)
	return nil
}

// UpdateNodeData replaces a node's payload and re-derives its edges from
// scratch. Calling it twice with the same data yields the same edge set.
//
// Returns a NODE_NOT_FOUND error, before touching any edge, if id is absent.
func (m *Manager[T]) UpdateNodeData(id string, data T) error {
	ctx, span := m.telemetry.StartSpan(context.Background(), telemetry.SpanUpdateNode,
		attribute.String("node_id", id),
	)
	defer span.End()

	n, ok := m.store.Node(id)
	if !ok {
		return telemetry.Fail(span, graph.NewNotFoundError(id))
	}

	removed, err := m.dropIncident(id)
	if err != nil {
		return telemetry.Fail(span, err)
	}
	span.SetAttributes(attribute.Int("edges_removed", removed))
	m.telemetry.RecordEdgesRemoved(ctx, "recalculate", removed)

	n.SetData(data)

	added, err := m.materialize(ctx, n, "recalculate")
	if err != nil {
		return telemetry.Fail(span, err)
	}

	m.logger.Info("node recalculated",
		"node_id", id,
		"edges_removed", removed,
		"edges_added", added,
	)
	return nil
}

// GetNode returns the node handle for id. The handle's SetData is the direct
// mutation path.
func (m *Manager[T]) GetNode(id string) (*graph.Node[T], bool) {
	return m.store.Node(id)
}

// Store returns the backing store for read access, e.g. traversal.
// Mutating it directly bypasses the handshake.
func (m *Manager[T]) Store() graph.Store[T] { return m.store }

// Edges returns a snapshot of every edge, grouped by source in node
// insertion order.
func (m *Manager[T]) Edges() ([]graph.Edge, error) {
	return graph.Edges(m.store)
}

// Len returns the number of nodes.
func (m *Manager[T]) Len() int { return len(m.store.Nodes()) }

// Err returns a backend failure the store recorded outside an error result,
// for example while answering HasEdge or Len. Nil for stores that never
// record one.
func (m *Manager[T]) Err() error { return graph.StoreErr(m.store) }

// RunID returns the identifier attached to this manager's log lines.
func (m *Manager[T]) RunID() string { return m.runID }

// materialize evaluates the handshake between n and every other node in both
// directions and inserts each justified edge. n must have no incident edges.
// Sweep stats are attached to the span in ctx.
func (m *Manager[T]) materialize(ctx context.Context, n *graph.Node[T], op string) (int, error) {
	start := time.Now()
	var ev Evaluator[T]
	added := 0

	others := m.store.Nodes()
	if err := graph.StoreErr(m.store); err != nil {
		return 0, fmt.Errorf("%s %s: list nodes: %w", op, n.ID(), err)
	}

	for _, other := range others {
		if other.ID() == n.ID() {
			continue
		}
		if ev.Handshake(n, other) {
			if err := m.store.AddEdge(n.ID(), other.ID()); err != nil {
				return added, fmt.Errorf("%s %s: add edge to %s: %w", op, n.ID(), other.ID(), err)
			}
			added++
		}
		if ev.Handshake(other, n) {
			if err := m.store.AddEdge(other.ID(), n.ID()); err != nil {
				return added, fmt.Errorf("%s %s: add edge from %s: %w", op, n.ID(), other.ID(), err)
			}
			added++
		}
	}

	n.MarkMaterialized(m.clock.Next())

	stats := ev.Stats()
	elapsed := time.Since(start)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("seq", n.Materialized()),
		attribute.Int("handshakes", stats.Evaluated),
		attribute.Int("edges_added", added),
	)
	m.telemetry.RecordMaterialization(ctx, op, elapsed, stats.Evaluated, added)
	m.logger.Debug("materialized",
		"op", op,
		"node_id", n.ID(),
		"seq", n.Materialized(),
		"handshakes", stats.Evaluated,
		"predicate_calls", stats.PredicateCalls,
		"edges_added", added,
		"duration", elapsed,
	)
	return added, nil
}

// dropIncident removes every edge into or out of id and returns how many
// were removed.
func (m *Manager[T]) dropIncident(id string) (int, error) {
	succ, err := m.store.Successors(id)
	if err != nil {
		return 0, fmt.Errorf("drop edges of %s: %w", id, err)
	}
	pred, err := m.store.Predecessors(id)
	if err != nil {
		return 0, fmt.Errorf("drop edges of %s: %w", id, err)
	}

	for _, to := range succ {
		if err := m.store.RemoveEdge(id, to); err != nil {
			return 0, fmt.Errorf("drop edge %s -> %s: %w", id, to, err)
		}
	}
	for _, from := range pred {
		if err := m.store.RemoveEdge(from, id); err != nil {
			return 0, fmt.Errorf("drop edge %s -> %s: %w", from, id, err)
		}
	}
	return len(succ) + len(pred), nil
}
