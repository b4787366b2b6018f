// Package traverse implements breadth-first search over a graph.Store.
//
// Traversal only reads the store. It is safe to run while no mutation is in
// flight; interleaving it with Manager mutations needs external locking.
package traverse

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/telemetry"
)

// ErrStop is returned by a visit function to end the traversal early. The
// nodes visited so far, including the current one, are returned with a nil
// error.
var ErrStop = errors.New("traverse: stop")

// VisitFunc is called once per node when it is dequeued, after it was added
// to the output and before its neighbours are considered.
type VisitFunc[T any] func(n *graph.Node[T], depth int) error

// ExpandFunc reports whether a node's neighbours may be enqueued. Returning
// false makes the node a barrier: it stays in the output, its neighbours are
// not discovered through it.
type ExpandFunc[T any] func(n *graph.Node[T], depth int) bool

// Step is a node paired with its discovery depth. The start node has depth 0.
type Step[T any] struct {
	Node  *graph.Node[T]
	Depth int
}

type options[T any] struct {
	visit    VisitFunc[T]
	expand   ExpandFunc[T]
	maxDepth int // < 0 means unlimited
	recorder *telemetry.Recorder
}

// Option configures a traversal.
type Option[T any] func(*options[T])

// WithVisit sets the visit hook.
func WithVisit[T any](fn VisitFunc[T]) Option[T] {
	return func(o *options[T]) {
		o.visit = fn
	}
}

// WithExpand sets the barrier hook.
func WithExpand[T any](fn ExpandFunc[T]) Option[T] {
	return func(o *options[T]) {
		o.expand = fn
	}
}

// WithMaxDepth stops enqueueing neighbours of nodes at depth >= d. The nodes
// at depth d are still visited. A negative d means unlimited, the default.
func WithMaxDepth[T any](d int) Option[T] {
	return func(o *options[T]) {
		o.maxDepth = d
	}
}

// WithRecorder records the number of visited nodes per traversal and a span
// per call.
func WithRecorder[T any](r *telemetry.Recorder) Option[T] {
	return func(o *options[T]) {
		o.recorder = r
	}
}

// BFS returns the nodes reachable from startID in discovery order. Within a
// level, order follows the store's successor enumeration.
//
// If startID is not in the store, BFS returns a NODE_NOT_FOUND *graph.Error.
// If the visit hook returns an error other than ErrStop, BFS returns the
// nodes visited so far together with that error.
func BFS[T any](s graph.Store[T], startID string, opts ...Option[T]) ([]*graph.Node[T], error) {
	steps, err := BFSDepths(s, startID, opts...)
	return nodesOf(steps), err
}

// BFSFrom is BFS starting at a node handle. The handle is resolved by id, so
// a node that is not (or no longer) in s is reported as not found.
func BFSFrom[T any](s graph.Store[T], start *graph.Node[T], opts ...Option[T]) ([]*graph.Node[T], error) {
	if start == nil {
		return nil, graph.NewNotFoundError("")
	}
	return BFS(s, start.ID(), opts...)
}

// BFSDepths is BFS returning each node with its depth.
func BFSDepths[T any](s graph.Store[T], startID string, opts ...Option[T]) ([]Step[T], error) {
	o := options[T]{maxDepth: -1}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := o.recorder.StartSpan(context.Background(), telemetry.SpanBFS,
		attribute.String("start_id", startID),
		attribute.Int("max_depth", o.maxDepth),
	)
	defer span.End()

	start, ok := s.Node(startID)
	if !ok {
		return nil, telemetry.Fail(span, graph.NewNotFoundError(startID))
	}

	steps, stopped, err := walk(s, start, &o)
	span.SetAttributes(
		attribute.Int("visited", len(steps)),
		attribute.Bool("stopped", stopped),
	)
	o.recorder.RecordTraversal(ctx, len(steps), stopped)
	return steps, telemetry.Fail(span, err)
}

func walk[T any](s graph.Store[T], start *graph.Node[T], o *options[T]) ([]Step[T], bool, error) {
	visited := map[string]bool{start.ID(): true}
	queue := []Step[T]{{Node: start, Depth: 0}}
	var out []Step[T]

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		out = append(out, item)

		if o.visit != nil {
			if err := o.visit(item.Node, item.Depth); err != nil {
				if errors.Is(err, ErrStop) {
					return out, true, nil
				}
				return out, true, fmt.Errorf("visit %s: %w", item.Node.ID(), err)
			}
		}

		if o.maxDepth >= 0 && item.Depth >= o.maxDepth {
			continue
		}
		if o.expand != nil && !o.expand(item.Node, item.Depth) {
			continue
		}

		succ, err := s.Successors(item.Node.ID())
		if err != nil {
			return out, true, fmt.Errorf("expand %s: %w", item.Node.ID(), err)
		}
		for _, id := range succ {
			if visited[id] {
				continue
			}
			next, ok := s.Node(id)
			if !ok {
				return out, true, fmt.Errorf("expand %s: %w", item.Node.ID(), graph.NewNotFoundError(id))
			}
			visited[id] = true
			queue = append(queue, Step[T]{Node: next, Depth: item.Depth + 1})
		}
	}
	return out, false, nil
}

func nodesOf[T any](steps []Step[T]) []*graph.Node[T] {
	if steps == nil {
		return nil
	}
	nodes := make([]*graph.Node[T], len(steps))
	for i, st := range steps {
		nodes[i] = st.Node
	}
	return nodes
}
