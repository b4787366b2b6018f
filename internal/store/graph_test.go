package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegraph/internal/engine"
	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/testutil"
	"github.com/roach88/rulegraph/internal/traverse"
)

func newGraphStore(t *testing.T) *GraphStore[string] {
	t.Helper()
	s, err := NewGraphStore[string](createTestDB(t))
	require.NoError(t, err)
	return s
}

func addNodes(t *testing.T, s graph.Store[string], ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.AddNode(graph.NewNode[string](id, id, nil)))
	}
}

// =============================================================================
// Store contract
// =============================================================================

func TestGraphStore_NodesInInsertionOrder(t *testing.T) {
	s := newGraphStore(t)
	addNodes(t, s, "c", "a", "b")

	var ids []string
	for _, n := range s.Nodes() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.NoError(t, s.Err())
}

func TestGraphStore_DuplicateNode(t *testing.T) {
	s := newGraphStore(t)
	addNodes(t, s, "a")

	err := s.AddNode(graph.NewNode[string]("a", "again", nil))
	assert.True(t, graph.IsDuplicateID(err))
}

func TestGraphStore_NodeReturnsSameHandle(t *testing.T) {
	s := newGraphStore(t)
	n := graph.NewNode[string]("a", "v1", nil)
	require.NoError(t, s.AddNode(n))

	got, ok := s.Node("a")
	require.True(t, ok)
	assert.Same(t, n, got)

	got.SetData("v2")
	assert.Equal(t, "v2", n.Data())
}

func TestGraphStore_EdgeSetSemantics(t *testing.T) {
	s := newGraphStore(t)
	addNodes(t, s, "a", "b", "c")

	require.NoError(t, s.AddEdge("a", "c"))
	require.NoError(t, s.AddEdge("a", "b"))
	require.NoError(t, s.AddEdge("a", "c"))

	succ, err := s.Successors("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, succ, "re-adding keeps the original position")
	assert.True(t, s.HasEdge("a", "b"))
	assert.False(t, s.HasEdge("b", "a"), "no implicit reverse edge")

	count, err := s.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.RemoveEdge("a", "c"))
	require.NoError(t, s.RemoveEdge("a", "c"))
	assert.False(t, s.HasEdge("a", "c"))
}

func TestGraphStore_AddEdgeUnknownNode(t *testing.T) {
	s := newGraphStore(t)
	addNodes(t, s, "a")

	err := s.AddEdge("a", "ghost")
	require.Error(t, err)
	assert.True(t, graph.IsNotFound(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestGraphStore_RemoveNodeCascades(t *testing.T) {
	s := newGraphStore(t)
	addNodes(t, s, "a", "b", "c")
	require.NoError(t, s.AddEdge("a", "b"))
	require.NoError(t, s.AddEdge("b", "c"))
	require.NoError(t, s.AddEdge("a", "c"))

	require.NoError(t, s.RemoveNode("b"))
	require.NoError(t, s.RemoveNode("b"))

	_, ok := s.Node("b")
	assert.False(t, ok)
	count, err := s.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pred, err := s.Predecessors("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, pred)

	_, err = s.Successors("b")
	assert.True(t, graph.IsNotFound(err))
}

func TestGraphStore_NewClearsPreviousRun(t *testing.T) {
	db := createTestDB(t)

	first, err := NewGraphStore[string](db)
	require.NoError(t, err)
	addNodes(t, first, "a", "b")
	require.NoError(t, first.AddEdge("a", "b"))

	second, err := NewGraphStore[string](db)
	require.NoError(t, err)
	assert.Empty(t, second.Nodes())
	count, err := second.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// =============================================================================
// Behaves like the in-memory store under a Manager
// =============================================================================

func buildNetwork(t *testing.T, s graph.Store[string]) *engine.Manager[string] {
	t.Helper()
	m := engine.New(
		engine.WithStore[string](s),
		engine.WithLogger[string](slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRunID[string](testutil.NewFixedRunID("store-test")),
	)

	out := testutil.Always[string](graph.DirectionOutgoing)
	in := testutil.Always[string](graph.DirectionIncoming)
	both := testutil.Always[string](graph.DirectionBoth)

	steps := []struct {
		id   string
		rule graph.Rule[string]
	}{
		{"a", out}, {"b", in}, {"c", both}, {"d", both}, {"e", in},
	}
	for _, st := range steps {
		_, err := m.CreateNode(st.id, st.id, st.rule)
		require.NoError(t, err)
	}
	require.NoError(t, m.RemoveNode("d"))
	require.NoError(t, m.UpdateNodeData("c", "c2"))
	return m
}

func TestGraphStore_MatchesMemStore(t *testing.T) {
	mem := buildNetwork(t, graph.NewMemStore[string]())
	sql := buildNetwork(t, newGraphStore(t))

	memEdges, err := mem.Edges()
	require.NoError(t, err)
	sqlEdges, err := sql.Edges()
	require.NoError(t, err)
	assert.Equal(t, memEdges, sqlEdges)

	memBFS, err := traverse.BFS(mem.Store(), "a")
	require.NoError(t, err)
	sqlBFS, err := traverse.BFS(sql.Store(), "a")
	require.NoError(t, err)
	require.Len(t, sqlBFS, len(memBFS))
	for i := range memBFS {
		assert.Equal(t, memBFS[i].ID(), sqlBFS[i].ID())
	}
}

// =============================================================================
// Backend failures
// =============================================================================

// breakNodeListing makes the node-order query fail while edge queries keep
// working.
func breakNodeListing(t *testing.T, s *GraphStore[string]) {
	t.Helper()
	_, err := s.db.db.Exec(`ALTER TABLE nodes RENAME COLUMN pos TO position`)
	require.NoError(t, err)
}

func TestGraphStore_NodesFailureIsRecorded(t *testing.T) {
	s := newGraphStore(t)
	addNodes(t, s, "a", "b")
	require.NoError(t, s.AddEdge("a", "b"))
	breakNodeListing(t, s)

	assert.Nil(t, s.Nodes())
	require.Error(t, s.Err())
	assert.Same(t, s.Err(), graph.StoreErr[string](s))

	_, err := graph.Edges[string](s)
	assert.ErrorIs(t, err, s.Err())
	_, err = traverse.Cycles[string](s)
	assert.ErrorIs(t, err, s.Err())
}

func TestGraphStore_ManagerReportsNodesFailure(t *testing.T) {
	s := newGraphStore(t)
	m := engine.New(
		engine.WithStore[string](s),
		engine.WithLogger[string](slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRunID[string](testutil.NewFixedRunID("sqlite")),
	)
	for _, id := range []string{"a", "b"} {
		_, err := m.CreateNode(id, id, testutil.Always[string](graph.DirectionBoth))
		require.NoError(t, err)
	}
	breakNodeListing(t, s)

	err := m.UpdateNodeData("a", "a2")
	require.Error(t, err, "a sweep that cannot list nodes must not succeed silently")
	assert.ErrorIs(t, err, s.Err())
	assert.False(t, graph.IsNotFound(err))
	assert.ErrorIs(t, m.Err(), s.Err())
}
