// Package graph provides the data model for rule-derived directed graphs.
//
// This package contains the leaf types only: rules, nodes, edges, the
// Store interface and an in-memory Store. All other internal packages import
// graph; graph imports nothing internal.
//
// Key design constraints:
//   - A node's rules are captured at creation and never change afterwards.
//     Changing behavior requires a new node.
//   - A node's data may be replaced at any time via SetData. Replacing data
//     never touches edges; only the engine's materialization operations do.
//   - Edges are a set of ordered (from, to) pairs. No parallel duplicates,
//     no implicit reverse edge.
//   - Store adjacency enumerates in a deterministic order. Traversal relies
//     on that order and never re-sorts it.
//
// Thread safety: nothing in this package is synchronized. The graph is
// mutated by exactly one engine.Manager; callers that share it across
// goroutines must provide their own locking.
package graph
