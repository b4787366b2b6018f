// Package store provides a SQLite-backed graph.Store.
//
// The database holds node order and adjacency; node handles (payload and
// rules) stay in memory, because rules are closures. The database is a
// working set, not a snapshot: creating a GraphStore clears any rows left by
// an earlier run, and nothing is ever reloaded.
//
// # Ordering
//
// Node enumeration follows the pos column (insertion order). Successors and
// predecessors follow the edges.seq column, so re-adding an existing edge
// keeps its original position and a removed-then-added edge moves to the end.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Edge rows cascade with their nodes
//
// A single connection is used, which also keeps ":memory:" databases alive
// across calls.
package store
