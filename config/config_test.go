package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"q.log/milp/progress"
	"q.log/milp/solver"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "milp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultMatchesSolver(t *testing.T) {
	o, err := Default().Options()
	require.NoError(t, err)
	assert.Equal(t, solver.DefaultOptions(), o)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
limits:
  time_limit: 90s
  node_limit: 500
tolerances:
  integrality: 1e-6
branching:
  rule: lowest-index
  floor_first: true
logging:
  verbosity: detailed
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, c.Limits.TimeLimit)
	o, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, 500, o.NodeLimit)
	assert.Equal(t, 1e-6, o.Epsilon)
	assert.Equal(t, solver.BranchLowestIndex, o.Branching)
	assert.True(t, o.FloorFirst)
	assert.Equal(t, progress.Detailed, o.Verbosity)
	// untouched keys keep their defaults
	assert.Equal(t, solver.DefaultOptions().PrimalTol, o.PrimalTol)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "limits:\n  node_limit: 500\n")
	t.Setenv("MILP_NODE_LIMIT", "7")
	t.Setenv("MILP_TIME_LIMIT", "2m")
	t.Setenv("MILP_EPSINT", "0.001")
	t.Setenv("MILP_VERBOSITY", "5")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Limits.NodeLimit)
	assert.Equal(t, 2*time.Minute, c.Limits.TimeLimit)
	assert.Equal(t, 0.001, c.Tolerances.Integrality)
	o, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, progress.Detailed, o.Verbosity)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "limits: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "branching:\n  rule: random\n"))
	assert.ErrorContains(t, err, "branching rule")

	_, err = Load(writeFile(t, "tolerances:\n  integrality: 0.7\n"))
	assert.ErrorIs(t, err, solver.ErrInvalidOption)

	t.Setenv("MILP_NODE_LIMIT", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "MILP_NODE_LIMIT")
}

func TestEnvFloorFirst(t *testing.T) {
	t.Setenv("MILP_FLOOR_FIRST", "TRUE")
	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.Branching.FloorFirst)

	t.Setenv("MILP_FLOOR_FIRST", "yes")
	_, err = Load("")
	assert.ErrorContains(t, err, "MILP_FLOOR_FIRST")
}

func TestMarshalRoundTrip(t *testing.T) {
	c := Default()
	c.Limits.TimeLimit = 5 * time.Second
	c.Branching.Rule = RuleLowestIndex
	data, err := c.Marshal()
	require.NoError(t, err)
	got, err := Load(writeFile(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
