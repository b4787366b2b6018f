package engine

import "github.com/roach88/rulegraph/internal/graph"

// Handshake reports whether the directed edge source→target is justified.
//
// The edge is justified when source holds a rule that can initiate (Outgoing
// or Both) whose target filter, if any, accepts target's data and whose
// predicate holds for (source, target), and target holds a rule that can
// accept (Incoming or Both) whose predicate holds for (target, source).
// Target filters are never applied on the accepting side.
//
// Handshake is not symmetric: Handshake(a, b) and Handshake(b, a) are
// independent questions.
func Handshake[T any](source, target *graph.Node[T]) bool {
	var e Evaluator[T]
	return e.Handshake(source, target)
}

// HandshakeStats counts the work done by an Evaluator.
type HandshakeStats struct {
	// Evaluated is the number of handshakes checked.
	Evaluated int

	// Justified is the number of handshakes that held.
	Justified int

	// PredicateCalls counts match and target filter invocations.
	PredicateCalls int
}

// Evaluator evaluates handshakes and accumulates HandshakeStats.
// The zero value is ready to use.
type Evaluator[T any] struct {
	stats HandshakeStats
}

// Handshake is the counting form of the package-level Handshake.
func (e *Evaluator[T]) Handshake(source, target *graph.Node[T]) bool {
	e.stats.Evaluated++

	// The accepting side is only consulted once an initiating rule held.
	if !e.initiates(source, target) {
		return false
	}
	if !e.accepts(target, source) {
		return false
	}

	e.stats.Justified++
	return true
}

// Stats returns the counters accumulated since the last Reset.
func (e *Evaluator[T]) Stats() HandshakeStats { return e.stats }

// Reset zeroes the counters.
func (e *Evaluator[T]) Reset() { e.stats = HandshakeStats{} }

func (e *Evaluator[T]) initiates(source, target *graph.Node[T]) bool {
	self, other := source.Data(), target.Data()
	found := false
	source.EachRule(func(r graph.Rule[T]) bool {
		if !r.CanInitiate() {
			return true
		}
		if r.HasTargetFilter() {
			e.stats.PredicateCalls++
			if !r.AcceptsTarget(other) {
				return true
			}
		}
		e.stats.PredicateCalls++
		if r.Match(self, other) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (e *Evaluator[T]) accepts(target, source *graph.Node[T]) bool {
	self, other := target.Data(), source.Data()
	found := false
	target.EachRule(func(r graph.Rule[T]) bool {
		if !r.CanAccept() {
			return true
		}
		e.stats.PredicateCalls++
		if r.Match(self, other) {
			found = true
			return false
		}
		return true
	})
	return found
}
