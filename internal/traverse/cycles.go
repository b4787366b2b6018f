package traverse

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rulegraph/internal/graph"
)

// Cycle is a strongly connected group of nodes in the materialized graph.
//
// Cycles are not errors: two nodes that both initiate and accept toward each
// other form one by construction. They are reported so callers can see
// where traversal without a depth bound or barrier will fan back.
type Cycle struct {
	// Members lists the component's node ids in store order.
	Members []string `json:"members"`

	// Path is a closed walk from the component's first member back to it.
	Path []string `json:"path"`
}

// String renders the cycle path as "a -> b -> a".
func (c Cycle) String() string {
	return strings.Join(c.Path, " -> ")
}

// Cycles returns every strongly connected component with more than one
// node, plus single nodes with a self-edge, ordered by the store position of
// their first member.
func Cycles[T any](s graph.Store[T]) ([]Cycle, error) {
	nodes := s.Nodes()
	if err := graph.StoreErr(s); err != nil {
		return nil, fmt.Errorf("cycles: %w", err)
	}
	position := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	for i, n := range nodes {
		position[n.ID()] = i
		succ, err := s.Successors(n.ID())
		if err != nil {
			return nil, fmt.Errorf("cycles: successors of %s: %w", n.ID(), err)
		}
		adj[n.ID()] = succ
	}

	var cycles []Cycle
	for _, scc := range tarjanSCC(nodes, adj) {
		if len(scc) == 1 && !hasEdge(adj, scc[0], scc[0]) {
			continue
		}
		sortByPosition(scc, position)
		cycles = append(cycles, Cycle{
			Members: scc,
			Path:    cyclePath(scc, adj),
		})
	}

	sortCycles(cycles, position)
	return cycles, nil
}

func hasEdge(adj map[string][]string, from, to string) bool {
	for _, id := range adj[from] {
		if id == to {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components with Tarjan's algorithm,
// visiting roots in store order.
func tarjanSCC[T any](nodes []*graph.Node[T], adj map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of a component: pop it.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range nodes {
		if _, visited := indices[n.ID()]; !visited {
			strongConnect(n.ID())
		}
	}
	return sccs
}

// cyclePath returns a shortest closed path through the component's first
// member, found by breadth-first search restricted to the component.
func cyclePath(scc []string, adj map[string][]string) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, id := range scc {
		inSCC[id] = true
	}

	start := scc[0]
	parent := map[string]string{start: ""}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, id := range adj[current] {
			if id == start {
				return append(pathFrom(start, current, parent), start)
			}
			if !inSCC[id] {
				continue
			}
			if _, seen := parent[id]; seen {
				continue
			}
			parent[id] = current
			queue = append(queue, id)
		}
	}

	// Every member of a component reaches every other, so the search above
	// always closes unless scc is a single node without a self-edge.
	return []string{start}
}

// pathFrom rebuilds the route start -> ... -> end from BFS parent links.
func pathFrom(start, end string, parent map[string]string) []string {
	var path []string
	for id := end; ; id = parent[id] {
		path = append(path, id)
		if id == start {
			break
		}
	}
	slices.Reverse(path)
	return path
}

func sortByPosition(ids []string, position map[string]int) {
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(position[a], position[b])
	})
}

func sortCycles(cycles []Cycle, position map[string]int) {
	slices.SortFunc(cycles, func(a, b Cycle) int {
		return cmp.Compare(position[a.Members[0]], position[b.Members[0]])
	})
}
