// Package harness runs conformance scenarios against engine.Manager.
//
// A scenario declares a network, a sequence of manager operations and
// assertions over the resulting graph. Each run uses a fresh manager with a
// fixed run id, so identical scenarios produce identical edge lists for golden
// snapshot comparison.
//
// # Scenario Format
//
//	name: service_mesh
//	description: "What this scenario validates"
//	network:
//	  rules:
//	    peer: {match: {same: zone}}
//	  nodes:
//	    - id: web
//	      data: {zone: eu}
//	      rules: [peer]
//	steps:
//	  - op: create          # create | remove | update | set_data
//	    id: api
//	    data: {zone: eu}
//	    rules: [peer]
//	assertions:
//	  - type: edges_exact
//	    edges: ["web -> api", "api -> web"]
//	  - type: bfs
//	    from: web
//	    max_depth: 1
//	    expect: [web, api]
//
// # Assertion Types
//
//   - edges_exact: the final edge set equals the listed edges
//   - has_edge / no_edge: one edge is present or absent
//   - bfs: a traversal from a node visits the expected ids in order;
//     max_depth, barriers and stop_at shape the traversal
//   - error: a step failed with the given error kind
//
// Steps that fail with a caller-input error (EMPTY_ID, DUPLICATE_ID,
// NODE_NOT_FOUND) do not abort the run. The error is recorded and the
// scenario fails unless an error assertion claims it.
//
// set_data mutates the node payload directly. Edges are not recalculated, so
// scenarios can pin down the stale-edge behaviour of direct mutation.
package harness
