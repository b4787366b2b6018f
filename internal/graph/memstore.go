package graph

import (
	"fmt"
	"slices"
)

// adjacency is an insertion-ordered set of node ids.
type adjacency struct {
	order []string
	index map[string]struct{}
}

func newAdjacency() *adjacency {
	return &adjacency{index: make(map[string]struct{})}
}

func (a *adjacency) add(id string) bool {
	if _, ok := a.index[id]; ok {
		return false
	}
	a.index[id] = struct{}{}
	a.order = append(a.order, id)
	return true
}

func (a *adjacency) remove(id string) bool {
	if _, ok := a.index[id]; !ok {
		return false
	}
	delete(a.index, id)
	a.order = slices.DeleteFunc(a.order, func(s string) bool { return s == id })
	return true
}

func (a *adjacency) has(id string) bool {
	_, ok := a.index[id]
	return ok
}

// MemStore is the default in-memory Store.
//
// Nodes enumerate in insertion order; adjacency enumerates in edge insertion
// order. Membership tests are map lookups.
type MemStore[T any] struct {
	nodes map[string]*Node[T]
	order []string
	out   map[string]*adjacency
	in    map[string]*adjacency
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[T any]() *MemStore[T] {
	return &MemStore[T]{
		nodes: make(map[string]*Node[T]),
		out:   make(map[string]*adjacency),
		in:    make(map[string]*adjacency),
	}
}

// AddNode implements Store.
func (s *MemStore[T]) AddNode(n *Node[T]) error {
	if _, ok := s.nodes[n.ID()]; ok {
		return NewDuplicateIDError(n.ID())
	}
	s.nodes[n.ID()] = n
	s.order = append(s.order, n.ID())
	s.out[n.ID()] = newAdjacency()
	s.in[n.ID()] = newAdjacency()
	return nil
}

// RemoveNode implements Store.
func (s *MemStore[T]) RemoveNode(id string) error {
	if _, ok := s.nodes[id]; !ok {
		return nil
	}
	for _, to := range s.out[id].order {
		s.in[to].remove(id)
	}
	for _, from := range s.in[id].order {
		s.out[from].remove(id)
	}
	delete(s.out, id)
	delete(s.in, id)
	delete(s.nodes, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Node implements Store.
func (s *MemStore[T]) Node(id string) (*Node[T], bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes implements Store.
func (s *MemStore[T]) Nodes() []*Node[T] {
	nodes := make([]*Node[T], 0, len(s.order))
	for _, id := range s.order {
		nodes = append(nodes, s.nodes[id])
	}
	return nodes
}

// AddEdge implements Store.
func (s *MemStore[T]) AddEdge(from, to string) error {
	out, ok := s.out[from]
	if !ok {
		return fmt.Errorf("add edge %s -> %s: %w", from, to, NewNotFoundError(from))
	}
	in, ok := s.in[to]
	if !ok {
		return fmt.Errorf("add edge %s -> %s: %w", from, to, NewNotFoundError(to))
	}
	if out.add(to) {
		in.add(from)
	}
	return nil
}

// RemoveEdge implements Store.
func (s *MemStore[T]) RemoveEdge(from, to string) error {
	out, ok := s.out[from]
	if !ok {
		return nil
	}
	if out.remove(to) {
		s.in[to].remove(from)
	}
	return nil
}

// HasEdge implements Store.
func (s *MemStore[T]) HasEdge(from, to string) bool {
	out, ok := s.out[from]
	return ok && out.has(to)
}

// Successors implements Store.
func (s *MemStore[T]) Successors(id string) ([]string, error) {
	out, ok := s.out[id]
	if !ok {
		return nil, NewNotFoundError(id)
	}
	return slices.Clone(out.order), nil
}

// Predecessors implements Store.
func (s *MemStore[T]) Predecessors(id string) ([]string, error) {
	in, ok := s.in[id]
	if !ok {
		return nil, NewNotFoundError(id)
	}
	return slices.Clone(in.order), nil
}

// Len returns the number of nodes.
func (s *MemStore[T]) Len() int { return len(s.order) }

var _ Store[int] = (*MemStore[int])(nil)
