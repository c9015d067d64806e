package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/config"
)

func TestDefaultLeavesPlanCostBoundUnbounded(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, -1, cfg.PlanCostBound)
	require.Equal(t, config.TransformUnchanged, cfg.Transform)
}

func TestLoadOverlaysYAMLOnDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symplan.yaml")
	doc := `
num_plans: 5
simple: true
transform: unit_cost
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 5, cfg.NumPlans)
	require.True(t, cfg.Simple)
	require.Equal(t, config.TransformUnitCost, cfg.Transform)
	// Untouched keys keep their default.
	require.False(t, cfg.Silent)
	require.Equal(t, 1<<16, cfg.CuddInitNodes)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestOverridesApplyOnlySetFields(t *testing.T) {
	cfg := config.Default()
	numPlans := 3
	simple := true
	o := config.Overrides{NumPlans: &numPlans, Simple: &simple}

	cfg = o.Apply(cfg)

	require.Equal(t, 3, cfg.NumPlans)
	require.True(t, cfg.Simple)
	require.False(t, cfg.DumpPlans) // untouched, keeps default
}
