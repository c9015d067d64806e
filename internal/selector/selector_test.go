package selector_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/registry"
	"github.com/speckdavid/symk-sub001/internal/selector"
	"github.com/speckdavid/symk-sub001/internal/task"
)

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func TestTopKStopsAtNumPlans(t *testing.T) {
	s := selector.NewTopK(2, nopLogger())
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1}, Cost: 2}))
	require.False(t, s.Done())
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{1, 0}, Cost: 2}))
	require.True(t, s.Done())
}

func TestTopKRejectsDuplicateOrdering(t *testing.T) {
	s := selector.NewTopK(5, nopLogger())
	p := registry.Plan{OperatorIDs: []int{0, 1, 2}, Cost: 3}
	require.True(t, s.Accept(p))
	require.False(t, s.Accept(p))
}

func TestIterativeCostOnlyAcceptsStrictlyCheaper(t *testing.T) {
	s := selector.NewIterativeCost(10, nopLogger())
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0}, Cost: 5}))
	require.False(t, s.Accept(registry.Plan{OperatorIDs: []int{1}, Cost: 5}))
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{2}, Cost: 4}))
	require.False(t, s.Done())
	require.False(t, s.Accept(registry.Plan{OperatorIDs: []int{3}, Cost: 11}))
	require.True(t, s.Done())
}

func TestUnorderedDedupsByMultiset(t *testing.T) {
	s := selector.NewUnordered(5, nopLogger())
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1, 2}, Cost: 3}))
	require.False(t, s.Accept(registry.Plan{OperatorIDs: []int{2, 1, 0}, Cost: 3}))
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1}, Cost: 2}))
}

func TestTopKEvenRejectsOddLength(t *testing.T) {
	s := selector.NewTopKEven(5)
	require.False(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1, 2}}))
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1}}))
}

func twoStepTask() *task.StaticTask {
	return &task.StaticTask{
		Domains:  []int{2, 2},
		Derived:  []bool{false, false},
		Layers:   []int{0, 0},
		Defaults: []int{0, 0},
		Ops: []task.Operator{
			{ID: 0, Name: "set-a", Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 0, Val: 1}}}, Cost: 1, FacetOf: -1},
			{ID: 1, Name: "set-b", Pre: []task.Literal{{Var: 0, Val: 1}}, Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 1, Val: 1}}}, Cost: 1, FacetOf: -1},
			{ID: 2, Name: "unset-a", Pre: []task.Literal{{Var: 0, Val: 1}}, Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 0, Val: 0}}}, Cost: 1, FacetOf: -1},
		},
		Initial:  []int{0, 0},
		GoalLits: []task.Literal{{Var: 0, Val: 1}, {Var: 1, Val: 1}},
	}
}

func TestSimpleRejectsLoopingPlan(t *testing.T) {
	tk := twoStepTask()
	s := selector.NewSimple(tk, 5, nopLogger())
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1}, Cost: 2}))
	// 0 then 2 returns to the initial state, then 0 again revisits a
	// previously-seen state: not loopless.
	require.False(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 2, 0, 1}, Cost: 4}))
}

func TestValidationRejectsInapplicablePlan(t *testing.T) {
	tk := twoStepTask()
	s := selector.NewValidation(tk, tk, 5, nopLogger())
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1}, Cost: 2}))
	// set-b before set-a violates set-b's precondition.
	require.False(t, s.Accept(registry.Plan{OperatorIDs: []int{1, 0}, Cost: 2}))
}

func TestCustomUsesSuppliedPredicate(t *testing.T) {
	count := 0
	s := selector.NewCustom(
		func(p registry.Plan) bool { return len(p.OperatorIDs) == 2 },
		func() bool { return count >= 1 },
	)
	require.False(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1, 2}}))
	require.True(t, s.Accept(registry.Plan{OperatorIDs: []int{0, 1}}))
	count++
	require.True(t, s.Done())
}
