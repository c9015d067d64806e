package planio_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/planio"
	"github.com/speckdavid/symk-sub001/internal/registry"
	"github.com/speckdavid/symk-sub001/internal/task"
)

func sampleTask() *task.StaticTask {
	return &task.StaticTask{
		Domains: []int{2, 2},
		Ops: []task.Operator{
			{ID: 0, Name: "set-a", FacetOf: -1},
			{ID: 1, Name: "set-b", FacetOf: -1},
		},
	}
}

func TestTextManagerWritesOperatorNamesAndCost(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer
	m := planio.NewText(filepath.Join(dir, "sas_plan"), &stdout, zerolog.Nop())

	plan := registry.Plan{OperatorIDs: []int{0, 1}, Cost: 2}
	require.NoError(t, m.SavePlan(plan, sampleTask(), true, false))

	data, err := os.ReadFile(filepath.Join(dir, "sas_plan"))
	require.NoError(t, err)
	require.Contains(t, string(data), "(set-a)")
	require.Contains(t, string(data), "(set-b)")
	require.Contains(t, string(data), "cost = 2")
	require.Equal(t, string(data), stdout.String())
}

func TestTextManagerNumbersMultiplePlanFiles(t *testing.T) {
	dir := t.TempDir()
	m := planio.NewText(filepath.Join(dir, "sas_plan"), &bytes.Buffer{}, zerolog.Nop())

	require.NoError(t, m.SavePlan(registry.Plan{OperatorIDs: []int{0}, Cost: 1}, sampleTask(), false, true))
	require.NoError(t, m.SavePlan(registry.Plan{OperatorIDs: []int{1}, Cost: 1}, sampleTask(), false, true))

	_, err := os.Stat(filepath.Join(dir, "sas_plan.1"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sas_plan.2"))
	require.NoError(t, err)
}

func TestJSONManagerAccumulatesMultiplePlans(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.json")
	m := planio.NewJSON(path, &bytes.Buffer{}, zerolog.Nop())

	require.NoError(t, m.SavePlan(registry.Plan{OperatorIDs: []int{0}, Cost: 1}, sampleTask(), false, true))
	require.NoError(t, m.SavePlan(registry.Plan{OperatorIDs: []int{1}, Cost: 1}, sampleTask(), false, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "set-a")
	require.Contains(t, string(data), "set-b")
}

func TestLoadTaskParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.yaml")
	doc := `
variables:
  - name: p
    domain: 2
  - name: q
    domain: 2
operators:
  - name: set-p
    eff:
      - var: 0
        val: 1
    cost: 1
  - name: set-q
    pre:
      - var: 0
        val: 1
    eff:
      - var: 1
        val: 1
    cost_expr: "1 + 0"
initial_state: [0, 0]
goal:
  - var: 0
    val: 1
  - var: 1
    val: 1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	tk, err := planio.LoadTask(path)
	require.NoError(t, err)
	require.Equal(t, 2, tk.NumVars())
	require.Equal(t, []int{0, 0}, tk.InitialState())
	require.Len(t, tk.Operators(), 2)
	require.Equal(t, 1, tk.Operators()[0].Cost)
	require.Equal(t, "1 + 0", tk.Operators()[1].CostExpr)
	require.Equal(t, -1, tk.Operators()[0].FacetOf)
	require.Len(t, tk.Goal(), 2)
}
