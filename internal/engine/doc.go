// Package engine materializes a rule-derived directed graph.
//
// Edges are never created by hand. An edge A→B exists because A holds a rule
// that can initiate toward B and B holds a rule that accepts A: the
// handshake. Manager is the only writer of edges; it evaluates the handshake
// against every other node whenever a node is created or recalculated, and
// drops a node's incident edges when it is removed.
//
// MATERIALIZATION:
//
// Edges reflect data as of each node's last materialization. Replacing a
// node's payload through Node.SetData does no edge work; call
// Manager.UpdateNodeData to re-derive its edges. Because sweeps read current
// data, a later sweep from another node can justify an edge against data the
// mutated node has not yet been recalculated for.
//
// ORDERING:
//
// Sweeps visit other nodes in store order and evaluate rules in declaration
// order. The resulting edge set does not depend on either; only the order of
// enumeration does.
//
// Manager is single-threaded. Callers that mutate from several goroutines
// must serialize access themselves.
package engine
