package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const threeVarTaskYAML = `
variables:
  - name: p
    domain: 2
  - name: q
    domain: 2
  - name: r
    domain: 2
operators:
  - name: set-p
    eff:
      - var: 0
        val: 1
    cost: 1
  - name: set-q
    eff:
      - var: 1
        val: 1
    cost: 1
  - name: set-r
    eff:
      - var: 2
        val: 1
    cost: 1
initial_state: [0, 0, 0]
goal:
  - var: 0
    val: 1
  - var: 1
    val: 1
  - var: 2
    val: 1
`

func writeTaskFile(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRunSolveFindsUnitCostPlan(t *testing.T) {
	taskPath := writeTaskFile(t, threeVarTaskYAML)
	dir := filepath.Dir(taskPath)
	planPath := filepath.Join(dir, "sas_plan")

	fl := solveFlags{
		direction:    "bi",
		selectorName: "top_k",
		numPlans:     1,
		planFormat:   "text",
		planFile:     planPath,
		silent:       true,
	}

	require.NoError(t, runSolve(taskPath, fl))

	data, err := os.ReadFile(planPath)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "(set-p)")
	require.Contains(t, content, "(set-q)")
	require.Contains(t, content, "(set-r)")
	require.Contains(t, content, "cost = 3")
}

func TestRunSolveUnknownSelectorErrors(t *testing.T) {
	taskPath := writeTaskFile(t, threeVarTaskYAML)
	fl := solveFlags{
		direction:    "bi",
		selectorName: "not-a-real-selector",
		numPlans:     1,
		planFormat:   "text",
		planFile:     filepath.Join(filepath.Dir(taskPath), "sas_plan"),
		silent:       true,
	}
	err := runSolve(taskPath, fl)
	require.Error(t, err)
}

func TestRunSolveUnknownPlanFormatErrors(t *testing.T) {
	taskPath := writeTaskFile(t, threeVarTaskYAML)
	fl := solveFlags{
		direction:    "bi",
		selectorName: "top_k",
		numPlans:     1,
		planFormat:   "xml",
		planFile:     filepath.Join(filepath.Dir(taskPath), "sas_plan"),
		silent:       true,
	}
	err := runSolve(taskPath, fl)
	require.Error(t, err)
}
