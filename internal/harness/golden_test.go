package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegraph/internal/graph"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, s.Name, "golden file is named after the scenario")
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestMarshalSnapshot_Canonical(t *testing.T) {
	result := &Result{Edges: []graph.Edge{{From: "b", To: "a"}, {From: "a", To: "b"}}}

	data, err := MarshalSnapshot("pair", result)
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, `{"edge_count":2,"edge_set_hash":"`))
	assert.True(t, strings.HasSuffix(s, `"edges":[{"from":"b","to":"a"},{"from":"a","to":"b"}],"scenario":"pair"}`))
}

func TestMarshalSnapshot_HashIgnoresOrder(t *testing.T) {
	a, err := MarshalSnapshot("x", &Result{Edges: []graph.Edge{{From: "a", To: "b"}, {From: "b", To: "a"}}})
	require.NoError(t, err)
	b, err := MarshalSnapshot("x", &Result{Edges: []graph.Edge{{From: "b", To: "a"}, {From: "a", To: "b"}}})
	require.NoError(t, err)

	hashOf := func(data []byte) string {
		s := string(data)
		start := strings.Index(s, `"edge_set_hash":"`) + len(`"edge_set_hash":"`)
		return s[start : start+64]
	}
	assert.Equal(t, hashOf(a), hashOf(b))
	assert.NotEqual(t, string(a), string(b), "edge order is part of the snapshot")
}
