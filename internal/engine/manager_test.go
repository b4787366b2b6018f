package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
	"github.com/roach88/rulegraph/internal/telemetry"
	"github.com/roach88/rulegraph/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager[T any](t *testing.T, opts ...Option[T]) *Manager[T] {
	t.Helper()
	base := []Option[T]{
		WithLogger[T](quietLogger()),
		WithRunID[T](testutil.NewFixedRunID("test-run")),
	}
	return New(append(base, opts...)...)
}

func edgesOf[T any](t *testing.T, m *Manager[T]) []graph.Edge {
	t.Helper()
	edges, err := m.Edges()
	require.NoError(t, err)
	return edges
}

// =============================================================================
// Create
// =============================================================================

func TestManager_ExampleScenario(t *testing.T) {
	m := newTestManager[string](t)
	r1 := testutil.Always[string](graph.DirectionOutgoing)
	r2 := testutil.Always[string](graph.DirectionIncoming)
	r3 := testutil.Always[string](graph.DirectionBoth)

	_, err := m.CreateNode("a", "", r1)
	require.NoError(t, err)
	_, err = m.CreateNode("b", "", r2)
	require.NoError(t, err)

	s := m.Store()
	assert.True(t, s.HasEdge("a", "b"))
	assert.False(t, s.HasEdge("b", "a"))

	_, err = m.CreateNode("c", "", r3)
	require.NoError(t, err)

	assert.Equal(t, []graph.Edge{
		{From: "a", To: "b"},
		{From: "a", To: "c"},
		{From: "c", To: "b"},
	}, edgesOf(t, m))
	assert.False(t, s.HasEdge("c", "a"))
	assert.False(t, s.HasEdge("b", "c"))
}

func TestManager_CreateNode_Errors(t *testing.T) {
	m := newTestManager[int](t)
	_, err := m.CreateNode("a", 1, testutil.Always[int](graph.DirectionBoth))
	require.NoError(t, err)

	_, err = m.CreateNode("", 1)
	require.Error(t, err)
	assert.True(t, graph.IsEmptyID(err))

	_, err = m.CreateNode("a", 2, testutil.Always[int](graph.DirectionBoth))
	require.Error(t, err)
	assert.True(t, graph.IsDuplicateID(err))
	assert.Contains(t, err.Error(), `"a"`)

	// The original node is untouched.
	n, ok := m.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, 1, n.Data())
	assert.Equal(t, 1, m.Len())
}

func TestManager_CreateNode_NoSelfEdge(t *testing.T) {
	m := newTestManager[int](t)
	_, err := m.CreateNode("solo", 0, testutil.Always[int](graph.DirectionBoth))
	require.NoError(t, err)

	assert.False(t, m.Store().HasEdge("solo", "solo"))
	assert.Empty(t, edgesOf(t, m))
}

func TestManager_CreateNode_StampsMaterialization(t *testing.T) {
	m := newTestManager(t, WithClock[int](NewClockAt(10)))

	a, err := m.CreateNode("a", 0)
	require.NoError(t, err)
	b, err := m.CreateNode("b", 0)
	require.NoError(t, err)

	assert.Equal(t, int64(11), a.Materialized())
	assert.Equal(t, int64(12), b.Materialized())

	require.NoError(t, m.UpdateNodeData("a", 1))
	assert.Equal(t, int64(13), a.Materialized())
}

// rankRules builds rules over int payloads whose outcome depends on both
// sides' data: edges run from lower to higher values, and even values refuse
// to accept from odd ones.
func rankRules() []graph.Rule[int] {
	up := graph.NewRule(func(self, other int) bool { return other > self },
		graph.WithDirection[int](graph.DirectionOutgoing))
	accept := graph.NewRule(func(self, other int) bool { return self%2 == 1 || other%2 == 0 },
		graph.WithDirection[int](graph.DirectionIncoming))
	return []graph.Rule[int]{up, accept}
}

func TestManager_InsertionOrderDoesNotChangeEdgeSet(t *testing.T) {
	values := map[string]int{"n1": 1, "n2": 2, "n3": 3, "n4": 4}
	orders := [][]string{
		{"n1", "n2", "n3", "n4"},
		{"n4", "n3", "n2", "n1"},
		{"n2", "n4", "n1", "n3"},
		{"n3", "n1", "n4", "n2"},
	}

	var hashes []string
	for _, order := range orders {
		m := newTestManager[int](t)
		for _, id := range order {
			_, err := m.CreateNode(id, values[id], rankRules()...)
			require.NoError(t, err)
		}
		hashes = append(hashes, payload.EdgeSetHash(edgesOf(t, m)))

		// Every ordered pair agrees with a direct handshake.
		for _, a := range order {
			for _, b := range order {
				if a == b {
					continue
				}
				na, _ := m.GetNode(a)
				nb, _ := m.GetNode(b)
				assert.Equal(t, Handshake(na, nb), m.Store().HasEdge(a, b), "%s -> %s", a, b)
			}
		}
	}

	for _, h := range hashes[1:] {
		assert.Equal(t, hashes[0], h)
	}
}

// =============================================================================
// Remove
// =============================================================================

func TestManager_RemoveNode_EdgeComplete(t *testing.T) {
	m := newTestManager[string](t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.CreateNode(id, id, testutil.Always[string](graph.DirectionBoth))
		require.NoError(t, err)
	}
	require.Len(t, edgesOf(t, m), 6)

	require.NoError(t, m.RemoveNode("b"))

	for _, e := range edgesOf(t, m) {
		assert.NotEqual(t, "b", e.From)
		assert.NotEqual(t, "b", e.To)
	}
	assert.Equal(t, []graph.Edge{{From: "a", To: "c"}, {From: "c", To: "a"}}, edgesOf(t, m))
	_, ok := m.GetNode("b")
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestManager_RemoveNode_AbsentIsNoop(t *testing.T) {
	m := newTestManager[int](t)
	_, err := m.CreateNode("a", 0)
	require.NoError(t, err)

	assert.NoError(t, m.RemoveNode("missing"))
	assert.NoError(t, m.RemoveNode("a"))
	assert.NoError(t, m.RemoveNode("a"))
	assert.Equal(t, 0, m.Len())
}

// =============================================================================
// Recalculate
// =============================================================================

func TestManager_UpdateNodeData_RederivesEdges(t *testing.T) {
	m := newTestManager[int](t)
	for id, v := range map[string]int{"low": 2, "high": 4} {
		_, err := m.CreateNode(id, v, rankRules()...)
		require.NoError(t, err)
	}
	require.True(t, m.Store().HasEdge("low", "high"))

	require.NoError(t, m.UpdateNodeData("low", 6))

	assert.False(t, m.Store().HasEdge("low", "high"))
	assert.True(t, m.Store().HasEdge("high", "low"))
	n, _ := m.GetNode("low")
	assert.Equal(t, 6, n.Data())
}

func TestManager_UpdateNodeData_Idempotent(t *testing.T) {
	m := newTestManager[int](t)
	for id, v := range map[string]int{"a": 1, "b": 2, "c": 3} {
		_, err := m.CreateNode(id, v, rankRules()...)
		require.NoError(t, err)
	}

	require.NoError(t, m.UpdateNodeData("b", 5))
	once := payload.EdgeSetHash(edgesOf(t, m))

	require.NoError(t, m.UpdateNodeData("b", 5))
	require.NoError(t, m.UpdateNodeData("b", 5))
	assert.Equal(t, once, payload.EdgeSetHash(edgesOf(t, m)))
}

func TestManager_UpdateNodeData_NotFound(t *testing.T) {
	m := newTestManager[int](t)
	_, err := m.CreateNode("a", 1, testutil.Always[int](graph.DirectionBoth))
	require.NoError(t, err)
	_, err = m.CreateNode("b", 1, testutil.Always[int](graph.DirectionBoth))
	require.NoError(t, err)
	before := edgesOf(t, m)

	err = m.UpdateNodeData("ghost", 1)
	require.Error(t, err)
	assert.True(t, graph.IsNotFound(err))
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, before, edgesOf(t, m))
}

// =============================================================================
// Direct mutation
// =============================================================================

func TestManager_DirectMutationNeverChangesEdges(t *testing.T) {
	m := newTestManager[int](t)
	low, err := m.CreateNode("low", 2, rankRules()...)
	require.NoError(t, err)
	_, err = m.CreateNode("high", 4, rankRules()...)
	require.NoError(t, err)
	before := edgesOf(t, m)
	require.Equal(t, []graph.Edge{{From: "low", To: "high"}}, before)

	low.SetData(100)

	assert.Equal(t, before, edgesOf(t, m))
	assert.Equal(t, 100, low.Data())
}

func TestManager_DirectMutationVisibleToLaterSweeps(t *testing.T) {
	m := newTestManager[int](t)
	a, err := m.CreateNode("a", 1, rankRules()...)
	require.NoError(t, err)
	_, err = m.CreateNode("b", 3, rankRules()...)
	require.NoError(t, err)
	require.True(t, m.Store().HasEdge("a", "b"), "edge from a's original data")

	// Mutate a without recalculating: a→b stays, even though 5 > 3 would no
	// longer justify it.
	a.SetData(5)

	// c's sweep reads a's current value 5: a -> c holds, c -> a would need a
	// value above 7.
	_, err = m.CreateNode("c", 7, rankRules()...)
	require.NoError(t, err)

	assert.True(t, m.Store().HasEdge("a", "b"), "stale edge from a's last materialization")
	assert.True(t, m.Store().HasEdge("a", "c"))
	assert.False(t, m.Store().HasEdge("c", "a"))

	// Recalculating a brings its edges in line with current data.
	require.NoError(t, m.UpdateNodeData("a", 5))
	assert.False(t, m.Store().HasEdge("a", "b"))
	assert.True(t, m.Store().HasEdge("b", "a"))
}

// =============================================================================
// Options
// =============================================================================

func TestManager_UsesInjectedStore(t *testing.T) {
	s := graph.NewMemStore[int]()
	m := newTestManager(t, WithStore[int](s))

	_, err := m.CreateNode("a", 0, testutil.Always[int](graph.DirectionBoth))
	require.NoError(t, err)

	assert.Same(t, s, m.Store())
	assert.Equal(t, 1, s.Len())
}

func TestManager_LogsCarryRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := New(
		WithLogger[int](logger),
		WithRunID[int](NewFixedGenerator("run-42")),
	)
	assert.Equal(t, "run-42", m.RunID())

	_, err := m.CreateNode("a", 0)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var created map[string]any
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "run-42", rec["run_id"])
		if rec["msg"] == "node created" {
			created = rec
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "a", created["node_id"])
	assert.Equal(t, float64(0), created["edges_added"])
}

func TestManager_DefaultRunIDIsUUID(t *testing.T) {
	m := New(WithLogger[int](quietLogger()))
	assert.Len(t, m.RunID(), 36)
}

func TestManager_RecordsTelemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	rec, err := telemetry.New(mp)
	require.NoError(t, err)

	m := newTestManager(t, WithTelemetry[string](rec))
	for _, id := range []string{"a", "b"} {
		_, err := m.CreateNode(id, id, testutil.Always[string](graph.DirectionBoth))
		require.NoError(t, err)
	}
	require.NoError(t, m.RemoveNode("a"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[metric.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), totals[telemetry.MetricEdgesAdded])
	assert.Equal(t, int64(2), totals[telemetry.MetricEdgesRemoved])
	// b's sweep checks b->a and a->b.
	assert.Equal(t, int64(2), totals[telemetry.MetricHandshakes])
}

func TestManager_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	rec, err := telemetry.New(sdkmetric.NewMeterProvider(), telemetry.WithTracerProvider(tp))
	require.NoError(t, err)

	m := newTestManager(t, WithTelemetry[string](rec))
	for _, id := range []string{"a", "b"} {
		_, err := m.CreateNode(id, id, testutil.Always[string](graph.DirectionBoth))
		require.NoError(t, err)
	}
	_, err = m.CreateNode("a", "a")
	require.Error(t, err)
	require.NoError(t, m.UpdateNodeData("b", "b2"))
	require.NoError(t, m.RemoveNode("a"))

	ended := sr.Ended()
	names := make([]string, len(ended))
	for i, span := range ended {
		names[i] = span.Name()
	}
	assert.Equal(t, []string{
		telemetry.SpanCreateNode,
		telemetry.SpanCreateNode,
		telemetry.SpanCreateNode,
		telemetry.SpanUpdateNode,
		telemetry.SpanRemoveNode,
	}, names)

	createB := ended[1].Attributes()
	assert.Contains(t, createB, attribute.String("node_id", "b"))
	assert.Contains(t, createB, attribute.Int("handshakes", 2))
	assert.Contains(t, createB, attribute.Int("edges_added", 2))

	assert.Equal(t, codes.Error, ended[2].Status().Code, "duplicate id fails the span")
	assert.Contains(t, ended[3].Attributes(), attribute.Int("edges_removed", 2))
	assert.Contains(t, ended[4].Attributes(), attribute.Int("edges_removed", 2))
}

// =============================================================================
// Store failures
// =============================================================================

// failingNodesStore is a MemStore whose Nodes fails once err is set, the
// way a database-backed store records a query failure.
type failingNodesStore struct {
	*graph.MemStore[int]
	err error
}

func (s *failingNodesStore) Nodes() []*graph.Node[int] {
	if s.err != nil {
		return nil
	}
	return s.MemStore.Nodes()
}

func (s *failingNodesStore) Err() error { return s.err }

func TestManager_NodesFailureIsReturned(t *testing.T) {
	s := &failingNodesStore{MemStore: graph.NewMemStore[int]()}
	m := newTestManager(t, WithStore[int](s))
	_, err := m.CreateNode("a", 1, testutil.Always[int](graph.DirectionBoth))
	require.NoError(t, err)
	assert.NoError(t, m.Err())

	s.err = errors.New("disk I/O error")

	_, err = m.CreateNode("b", 2, testutil.Always[int](graph.DirectionBoth))
	require.Error(t, err)
	assert.ErrorIs(t, err, s.err)
	var gerr *graph.Error
	assert.False(t, errors.As(err, &gerr), "backend failures are not caller-input errors")

	assert.ErrorIs(t, m.UpdateNodeData("a", 3), s.err)
	assert.ErrorIs(t, m.Err(), s.err)

	_, err = m.Edges()
	assert.ErrorIs(t, err, s.err)
}
