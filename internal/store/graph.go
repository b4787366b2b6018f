package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rulegraph/internal/graph"
)

// GraphStore is a graph.Store whose node order and adjacency live in SQLite.
//
// Methods that cannot return an error (Nodes, HasEdge) record the
// first database failure they hit; Err reports it. Not safe for concurrent
// mutation.
type GraphStore[T any] struct {
	db      *DB
	handles map[string]*graph.Node[T]
	nextPos int64
	err     error
}

var _ graph.Store[int] = (*GraphStore[int])(nil)

// NewGraphStore returns an empty graph store on db. Rows left by an earlier
// run are deleted.
func NewGraphStore[T any](db *DB) (*GraphStore[T], error) {
	if _, err := db.db.Exec(`DELETE FROM edges; DELETE FROM nodes`); err != nil {
		return nil, fmt.Errorf("reset graph tables: %w", err)
	}
	return &GraphStore[T]{
		db:      db,
		handles: make(map[string]*graph.Node[T]),
	}, nil
}

// AddNode implements graph.Store.
func (s *GraphStore[T]) AddNode(n *graph.Node[T]) error {
	if _, ok := s.handles[n.ID()]; ok {
		return graph.NewDuplicateIDError(n.ID())
	}

	s.nextPos++
	_, err := s.db.db.Exec(
		`INSERT INTO nodes (id, pos, rule_count) VALUES (?, ?, ?)`,
		n.ID(), s.nextPos, n.RuleCount(),
	)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID(), err)
	}

	s.handles[n.ID()] = n
	return nil
}

// RemoveNode implements graph.Store. Incident edges cascade.
func (s *GraphStore[T]) RemoveNode(id string) error {
	if _, ok := s.handles[id]; !ok {
		return nil
	}
	if _, err := s.db.db.Exec(`DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	delete(s.handles, id)
	return nil
}

// Node implements graph.Store.
func (s *GraphStore[T]) Node(id string) (*graph.Node[T], bool) {
	n, ok := s.handles[id]
	return n, ok
}

// Nodes implements graph.Store. Returns nil and records the error if the
// query fails.
func (s *GraphStore[T]) Nodes() []*graph.Node[T] {
	ids, err := s.queryIDs(`SELECT id FROM nodes ORDER BY pos`)
	if err != nil {
		s.record(fmt.Errorf("list nodes: %w", err))
		return nil
	}

	nodes := make([]*graph.Node[T], 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, s.handles[id])
	}
	return nodes
}

// AddEdge implements graph.Store.
func (s *GraphStore[T]) AddEdge(from, to string) error {
	if _, ok := s.handles[from]; !ok {
		return fmt.Errorf("add edge %s -> %s: %w", from, to, graph.NewNotFoundError(from))
	}
	if _, ok := s.handles[to]; !ok {
		return fmt.Errorf("add edge %s -> %s: %w", from, to, graph.NewNotFoundError(to))
	}

	_, err := s.db.db.Exec(`INSERT OR IGNORE INTO edges (from_id, to_id) VALUES (?, ?)`, from, to)
	if err != nil {
		return fmt.Errorf("insert edge %s -> %s: %w", from, to, err)
	}
	return nil
}

// RemoveEdge implements graph.Store.
func (s *GraphStore[T]) RemoveEdge(from, to string) error {
	_, err := s.db.db.Exec(`DELETE FROM edges WHERE from_id = ? AND to_id = ?`, from, to)
	if err != nil {
		return fmt.Errorf("delete edge %s -> %s: %w", from, to, err)
	}
	return nil
}

// HasEdge implements graph.Store. Returns false and records the error if the
// query fails.
func (s *GraphStore[T]) HasEdge(from, to string) bool {
	var one int
	err := s.db.db.QueryRow(
		`SELECT 1 FROM edges WHERE from_id = ? AND to_id = ?`, from, to,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false
	case err != nil:
		s.record(fmt.Errorf("has edge %s -> %s: %w", from, to, err))
		return false
	}
	return true
}

// Successors implements graph.Store.
func (s *GraphStore[T]) Successors(id string) ([]string, error) {
	if _, ok := s.handles[id]; !ok {
		return nil, graph.NewNotFoundError(id)
	}
	ids, err := s.queryIDs(`SELECT to_id FROM edges WHERE from_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("successors of %s: %w", id, err)
	}
	return ids, nil
}

// Predecessors implements graph.Store.
func (s *GraphStore[T]) Predecessors(id string) ([]string, error) {
	if _, ok := s.handles[id]; !ok {
		return nil, graph.NewNotFoundError(id)
	}
	ids, err := s.queryIDs(`SELECT from_id FROM edges WHERE to_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("predecessors of %s: %w", id, err)
	}
	return ids, nil
}

// EdgeCount returns the number of stored edges.
func (s *GraphStore[T]) EdgeCount() (int, error) {
	var n int
	if err := s.db.db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return n, nil
}

// Err returns the first database error recorded by Nodes or HasEdge.
func (s *GraphStore[T]) Err() error { return s.err }

func (s *GraphStore[T]) record(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *GraphStore[T]) queryIDs(query string, args ...any) ([]string, error) {
	rows, err := s.db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
