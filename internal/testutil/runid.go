// Package testutil provides deterministic fixtures shared by package tests.
package testutil

// FixedRunID is a run id generator that returns the same id every time, so
// every manager in a scenario logs under one id.
//
// Unlike engine.FixedGenerator, which returns ids in sequence, FixedRunID
// never runs out.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id. An empty id becomes
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed id. Implements engine.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
