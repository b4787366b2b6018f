package compiler

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegraph/internal/engine"
	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
	"github.com/roach88/rulegraph/internal/testutil"
)

func boolPtr(b bool) *bool { return &b }

func obj(kv ...any) payload.Object {
	o := payload.Object{}
	for i := 0; i+1 < len(kv); i += 2 {
		v, err := payload.FromAny(kv[i+1])
		if err != nil {
			panic(err)
		}
		o[kv[i].(string)] = v
	}
	return o
}

func newManager(t *testing.T) *engine.Manager[payload.Object] {
	t.Helper()
	return engine.New(
		engine.WithLogger[payload.Object](slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRunID[payload.Object](testutil.NewFixedRunID("compiler-test")),
	)
}

// =============================================================================
// Predicates
// =============================================================================

func TestCompilePredicate(t *testing.T) {
	eu := obj("zone", "eu", "tier", "web", "tags", []any{"a", "b"})
	eu2 := obj("zone", "eu", "tier", "db", "tags", []any{"b"})
	us := obj("zone", "us", "tags", "c")

	testCases := []struct {
		name  string
		pred  PredicateSpec
		self  payload.Object
		other payload.Object
		want  bool
	}{
		{"always true", PredicateSpec{Always: boolPtr(true)}, eu, us, true},
		{"always false", PredicateSpec{Always: boolPtr(false)}, eu, us, false},
		{"same holds", PredicateSpec{Same: "zone"}, eu, eu2, true},
		{"same fails", PredicateSpec{Same: "zone"}, eu, us, false},
		{"same needs both sides", PredicateSpec{Same: "tier"}, eu, us, false},
		{"differ holds", PredicateSpec{Differ: "zone"}, eu, us, true},
		{"differ needs both sides", PredicateSpec{Differ: "tier"}, eu, us, false},
		{"overlap lists", PredicateSpec{Overlap: "tags"}, eu, eu2, true},
		{"overlap scalar", PredicateSpec{Overlap: "tags"}, eu, us, false},
		{"self equals", PredicateSpec{Self: &FieldTest{Path: "tier", Equals: "web"}}, eu, us, true},
		{"other equals", PredicateSpec{Other: &FieldTest{Path: "tier", Equals: "web"}}, eu, eu2, false},
		{"other in", PredicateSpec{Other: &FieldTest{Path: "tier", In: []any{"db", "cache"}}}, eu, eu2, true},
		{"other exists", PredicateSpec{Other: &FieldTest{Path: "tier", Exists: boolPtr(true)}}, eu, us, false},
		{"other absent", PredicateSpec{Other: &FieldTest{Path: "tier", Exists: boolPtr(false)}}, eu, us, true},
		{"all", PredicateSpec{All: []PredicateSpec{{Same: "zone"}, {Overlap: "tags"}}}, eu, eu2, true},
		{"any", PredicateSpec{Any: []PredicateSpec{{Same: "zone"}, {Overlap: "tags"}}}, eu, us, false},
		{"not", PredicateSpec{Not: &PredicateSpec{Same: "zone"}}, eu, us, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Empty(t, validatePredicate(&tc.pred, "p", false))
			fn, err := compilePredicate(&tc.pred)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fn(tc.self, tc.other))
		})
	}
}

func TestCompileRule_FilterAndDirection(t *testing.T) {
	rs := RuleSpec{
		Direction: "out",
		Match:     &PredicateSpec{Same: "zone"},
		Filter:    &PredicateSpec{Other: &FieldTest{Path: "tier", Equals: "db"}},
	}
	r, err := compileRule(&rs, "fallback")
	require.NoError(t, err)

	assert.Equal(t, "fallback", r.Name())
	assert.Equal(t, graph.DirectionOutgoing, r.Direction())
	assert.True(t, r.HasTargetFilter())
	assert.True(t, r.AcceptsTarget(obj("tier", "db")))
	assert.False(t, r.AcceptsTarget(obj("tier", "web")))
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_Codes(t *testing.T) {
	spec := &NetworkSpec{
		Rules: map[string]RuleSpec{
			"no-match": {},
			"two-forms": {Match: &PredicateSpec{Same: "a", Differ: "b"}},
			"bad-dir":   {Direction: "up", Match: &PredicateSpec{Always: boolPtr(true)}},
			"self-filter": {
				Match:  &PredicateSpec{Always: boolPtr(true)},
				Filter: &PredicateSpec{Not: &PredicateSpec{Same: "zone"}},
			},
			"bad-test": {Match: &PredicateSpec{Self: &FieldTest{Equals: "x", Exists: boolPtr(true)}}},
		},
		Nodes: []NodeSpec{
			{ID: "a", Rules: []RuleRef{{Name: "ghost"}}},
			{ID: "a"},
			{ID: ""},
			{ID: "f", Data: map[string]any{"ratio": 0.5}},
		},
	}

	codes := make(map[string]int)
	for _, e := range Validate(spec) {
		codes[e.Code]++
	}

	assert.Equal(t, 1, codes[ErrNetworkNameEmpty])
	assert.Equal(t, 1, codes[ErrNodeIDEmpty])
	assert.Equal(t, 1, codes[ErrDuplicateNodeID])
	assert.Equal(t, 1, codes[ErrUnknownRule])
	assert.Equal(t, 1, codes[ErrInvalidDirection])
	assert.Equal(t, 2, codes[ErrInvalidPredicate], "missing match and two forms")
	assert.Equal(t, 1, codes[ErrSelfInFilter])
	assert.Equal(t, 2, codes[ErrInvalidFieldTest], "missing path and two checks")
	assert.Equal(t, 1, codes[ErrFloatForbidden])
}

func TestValidate_FieldPaths(t *testing.T) {
	spec := &NetworkSpec{
		Name: "x",
		Nodes: []NodeSpec{
			{ID: "a", Rules: []RuleRef{{Inline: &RuleSpec{
				Match: &PredicateSpec{All: []PredicateSpec{{Always: boolPtr(true)}, {}}},
			}}}},
		},
	}

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, "nodes[0].rules[0].match.all[1]", errs[0].Field)
	assert.Equal(t, "[E106] nodes[0].rules[0].match.all[1]: predicate must set exactly one form, found 0", errs[0].Error())
}

func TestBuild_ReturnsValidationErrors(t *testing.T) {
	_, err := Build(&NetworkSpec{Name: "x", Nodes: []NodeSpec{{ID: "a"}, {ID: "a"}}})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrDuplicateNodeID, verrs[0].Code)
}

// =============================================================================
// Build and apply
// =============================================================================

func TestBuild_MeshMaterializes(t *testing.T) {
	spec, err := LoadFile(filepath.Join("testdata", "mesh.yaml"))
	require.NoError(t, err)
	net, err := Build(spec)
	require.NoError(t, err)

	assert.Equal(t, "service-mesh", net.Name)
	assert.Equal(t, []string{"calls-backend", "serves-frontend"}, net.RuleNames())

	m := newManager(t)
	require.NoError(t, net.Apply(m))

	edges, err := m.Edges()
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{
		{From: "web", To: "api"},
		{From: "web", To: "audit"},
	}, edges)
}

func TestBuild_InlineRuleNamed(t *testing.T) {
	net, err := Build(&NetworkSpec{
		Name: "x",
		Nodes: []NodeSpec{{ID: "a", Rules: []RuleRef{
			{Inline: &RuleSpec{Match: &PredicateSpec{Always: boolPtr(true)}}},
		}}},
	})
	require.NoError(t, err)
	require.Len(t, net.Nodes[0].Rules, 1)
	assert.Equal(t, "inline", net.Nodes[0].Rules[0].Name())
}

func TestNetwork_RulesResolvesAgainstNamed(t *testing.T) {
	spec, err := LoadFile(filepath.Join("testdata", "mesh.yaml"))
	require.NoError(t, err)
	net, err := Build(spec)
	require.NoError(t, err)

	rules, err := net.Rules([]RuleRef{{Name: "serves-frontend"}})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, graph.DirectionIncoming, rules[0].Direction())

	_, err = net.Rules([]RuleRef{{Name: "nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrUnknownRule)
}

func TestNetwork_ApplyReportsDuplicates(t *testing.T) {
	net, err := Build(&NetworkSpec{Name: "x", Nodes: []NodeSpec{{ID: "a"}}})
	require.NoError(t, err)

	m := newManager(t)
	require.NoError(t, net.Apply(m))
	err = net.Apply(m)
	assert.True(t, graph.IsDuplicateID(err))
}
