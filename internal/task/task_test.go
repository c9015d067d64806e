package task_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/task"
)

func threeVarTask() *task.StaticTask {
	return &task.StaticTask{
		Domains:  []int{2, 2, 2},
		Derived:  []bool{false, false, false},
		Layers:   []int{0, 0, 0},
		Defaults: []int{0, 0, 0},
		Ops: []task.Operator{
			{ID: 0, Name: "set-p", Pre: nil, Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 0, Val: 1}}}, Cost: 1, FacetOf: -1},
			{ID: 1, Name: "set-q", Pre: nil, Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 1, Val: 1}}}, Cost: 1, FacetOf: -1},
		},
		Initial:  []int{0, 0, 0},
		GoalLits: []task.Literal{{Var: 0, Val: 1}, {Var: 1, Val: 1}},
	}
}

func TestApplyAppliesEffects(t *testing.T) {
	tk := threeVarTask()
	next, ok := task.Apply(tk, tk.InitialState(), 0)
	require.True(t, ok)
	require.Equal(t, []int{1, 0, 0}, next)
}

func TestApplyRejectsUnmetPrecondition(t *testing.T) {
	tk := threeVarTask()
	tk.Ops[0].Pre = []task.Literal{{Var: 2, Val: 1}}
	_, ok := task.Apply(tk, tk.InitialState(), 0)
	require.False(t, ok)
}

func TestIsGoal(t *testing.T) {
	tk := threeVarTask()
	require.False(t, task.IsGoal(tk, tk.InitialState()))
	require.True(t, task.IsGoal(tk, []int{1, 1, 0}))
}

func TestAxiomFixedPoint(t *testing.T) {
	// d1 <- p ∨ q ; d2 <- d1 ∧ r, over p,q,r,d1,d2.
	tk := &task.StaticTask{
		Domains:  []int{2, 2, 2, 2, 2},
		Derived:  []bool{false, false, false, true, true},
		Layers:   []int{0, 0, 0, 0, 1},
		Defaults: []int{0, 0, 0, 0, 0},
		AxiomsList: []task.Axiom{
			{Head: task.Literal{Var: 3, Val: 1}, Body: []task.Literal{{Var: 0, Val: 1}}},
			{Head: task.Literal{Var: 3, Val: 1}, Body: []task.Literal{{Var: 1, Val: 1}}},
			{Head: task.Literal{Var: 4, Val: 1}, Body: []task.Literal{{Var: 3, Val: 1}, {Var: 2, Val: 1}}},
		},
		Ops:     []task.Operator{{ID: 0, Name: "noop", FacetOf: -1}},
		Initial: []int{1, 0, 1, 0, 0},
	}
	next, ok := task.Apply(tk, tk.Initial, 0)
	require.True(t, ok)
	require.Equal(t, 1, next[3], "d1 should settle true: p=1")
	require.Equal(t, 1, next[4], "d2 should settle true: d1∧r")
}

func TestUnitCostTransformOverridesCost(t *testing.T) {
	tk := threeVarTask()
	tk.Ops[0].Cost = 5
	u := task.UnitCostTransform(tk)
	require.Equal(t, 1, u.Operators()[0].Cost)
}

func TestPlusOneTransform(t *testing.T) {
	tk := threeVarTask()
	p := task.PlusOneTransform(tk)
	require.Equal(t, 2, p.Operators()[0].Cost)
}

func TestValidateOperatorIndicesCatchesOutOfRange(t *testing.T) {
	tk := threeVarTask()
	tk.Ops[0].Pre = []task.Literal{{Var: 9, Val: 0}}
	require.Error(t, task.ValidateOperatorIndices(tk))
}
