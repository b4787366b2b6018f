package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: two peers connect
network:
  rules:
    peer: {match: {always: true}}
  nodes:
    - id: a
      rules: [peer]
assertions:
  - type: has_edge
    from: a
    to: b
steps:
  - op: create
    id: b
    rules: [peer]
`

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/service_mesh.yaml")
	require.NoError(t, err)

	assert.Equal(t, "service_mesh", s.Name)
	assert.Len(t, s.Network.Nodes, 4)
	assert.Len(t, s.Network.Rules, 2)
	require.Len(t, s.Steps, 4)
	assert.Equal(t, OpUpdate, s.Steps[0].Op)
	require.Len(t, s.Steps[3].Rules, 1)
	require.NotNil(t, s.Steps[3].Rules[0].Inline)
	assert.Equal(t, "serves-any", s.Steps[3].Rules[0].Inline.Name)
	require.NotNil(t, s.Assertions[6].Step)
	assert.Equal(t, 2, *s.Assertions[6].Step)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Empty(t, s.RunID)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	src := minimalScenario + "assertion: []\n"
	_, err := ParseScenario([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nassertions: [{type: edges_exact}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nassertions: [{type: edges_exact}]\n",
			want: "description is required",
		},
		{
			name: "no assertions",
			yaml: "name: n\ndescription: d\n",
			want: "assertions list is required",
		},
		{
			name: "unknown op",
			yaml: "name: n\ndescription: d\nsteps: [{op: rename, id: a}]\nassertions: [{type: edges_exact}]\n",
			want: `unknown op "rename"`,
		},
		{
			name: "rules on update",
			yaml: "name: n\ndescription: d\nsteps: [{op: update, id: a, rules: [x]}]\nassertions: [{type: edges_exact}]\n",
			want: "rules are only allowed on create",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nassertions: [{type: trace_order}]\n",
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "malformed edge",
			yaml: "name: n\ndescription: d\nassertions: [{type: edges_exact, edges: [a b]}]\n",
			want: `want "from -> to"`,
		},
		{
			name: "has_edge without to",
			yaml: "name: n\ndescription: d\nassertions: [{type: has_edge, from: a}]\n",
			want: "from and to are required",
		},
		{
			name: "bfs without expect",
			yaml: "name: n\ndescription: d\nassertions: [{type: bfs, from: a}]\n",
			want: "expect is required for bfs",
		},
		{
			name: "error step out of range",
			yaml: "name: n\ndescription: d\nassertions: [{type: error, kind: EMPTY_ID, step: 0}]\n",
			want: "step 0 out of range",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadScenario_AllTestdataScenariosParse(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := os.Stat(path)
			require.NoError(t, err)
			_, err = LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}
