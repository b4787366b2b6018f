package graph

import "fmt"

// Edge is a directed edge between two node ids.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// String renders the edge as "from -> to".
func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// Store is the graph storage primitive mutated by engine.Manager and read by
// traversal.
//
// Any implementation satisfying the contract below can back a Manager:
//   - Edges have set semantics: AddEdge of a present edge is a no-op and
//     RemoveEdge of an absent edge is a no-op.
//   - No implicit reverse edges.
//   - HasEdge and Node are O(1) expected.
//   - Nodes, Successors and Predecessors enumerate in a deterministic order
//     (both shipped implementations use insertion order).
//
// Errors are reserved for backend failures and for edges that name unknown
// nodes. Stores are not safe for concurrent mutation.
type Store[T any] interface {
	// AddNode inserts a node. Inserting an id that is already present is an error.
	AddNode(n *Node[T]) error

	// RemoveNode deletes a node and any edge still incident to it.
	// Removing an absent id is a no-op.
	RemoveNode(id string) error

	// Node looks up a node by id.
	Node(id string) (*Node[T], bool)

	// Nodes returns every node in insertion order.
	Nodes() []*Node[T]

	// AddEdge inserts the directed edge from -> to.
	AddEdge(from, to string) error

	// RemoveEdge deletes the directed edge from -> to.
	RemoveEdge(from, to string) error

	// HasEdge reports whether the directed edge from -> to exists.
	HasEdge(from, to string) bool

	// Successors returns the ids reachable over one outgoing edge.
	Successors(id string) ([]string, error)

	// Predecessors returns the ids with an edge into id.
	Predecessors(id string) ([]string, error)
}

// ErrReporter is implemented by stores whose methods without an error result
// (Nodes, HasEdge) can still hit a backend failure. Err returns the first
// such failure.
type ErrReporter interface {
	Err() error
}

// StoreErr returns the failure recorded by s, or nil if s records none or
// does not implement ErrReporter.
func StoreErr[T any](s Store[T]) error {
	if r, ok := s.(ErrReporter); ok {
		return r.Err()
	}
	return nil
}

// Edges returns every edge of s, grouped by source in node insertion order
// and, within a source, in adjacency order.
func Edges[T any](s Store[T]) ([]Edge, error) {
	nodes := s.Nodes()
	if err := StoreErr(s); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	var edges []Edge
	for _, n := range nodes {
		succ, err := s.Successors(n.ID())
		if err != nil {
			return nil, fmt.Errorf("list edges of %s: %w", n.ID(), err)
		}
		for _, to := range succ {
			edges = append(edges, Edge{From: n.ID(), To: to})
		}
	}
	return edges, nil
}
