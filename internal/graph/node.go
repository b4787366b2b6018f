package graph

import "slices"

// Node is a graph vertex: a stable identity, a replaceable domain payload,
// and a fixed, ordered sequence of rules captured at creation.
//
// Nodes are created by engine.Manager.CreateNode. The handle returned there
// is the direct mutation path: SetData replaces the payload in O(1) and
// performs no edge work at all.
type Node[T any] struct {
	id    string
	data  T
	rules []Rule[T]

	// materialized is the logical clock value of the node's last
	// materialization (creation or recalculation). 0 = never materialized.
	materialized int64
}

// NewNode creates a detached node. The rules slice is copied so later
// changes to the caller's slice do not reach the node.
func NewNode[T any](id string, data T, rules []Rule[T]) *Node[T] {
	return &Node[T]{
		id:    id,
		data:  data,
		rules: slices.Clone(rules),
	}
}

// ID returns the node identity.
func (n *Node[T]) ID() string { return n.id }

// Data returns the current payload.
func (n *Node[T]) Data() T { return n.data }

// SetData replaces the payload without touching any edge.
//
// Edges keep reflecting the data as of the node's last materialization until
// the next recalculation of this node. A later creation or recalculation of
// another node does see the replaced data, so new edges to or from this node
// may be justified against it while older ones still reflect the previous
// payload.
func (n *Node[T]) SetData(data T) { n.data = data }

// Rules returns a copy of the node's rules in declaration order.
func (n *Node[T]) Rules() []Rule[T] { return slices.Clone(n.rules) }

// RuleCount returns the number of rules without copying them.
func (n *Node[T]) RuleCount() int { return len(n.rules) }

// rule returns the i-th rule without copying the slice.
func (n *Node[T]) rule(i int) Rule[T] { return n.rules[i] }

// EachRule calls fn for each rule in declaration order until fn returns
// false. It avoids the copy made by Rules on hot paths.
func (n *Node[T]) EachRule(fn func(Rule[T]) bool) {
	for i := range n.rules {
		if !fn(n.rule(i)) {
			return
		}
	}
}

// Materialized returns the logical clock value of the node's last
// materialization, or 0 if no manager has materialized it.
func (n *Node[T]) Materialized() int64 { return n.materialized }

// MarkMaterialized stamps the node with the clock value of a materialization
// event. Called by the engine only.
func (n *Node[T]) MarkMaterialized(seq int64) { n.materialized = seq }
