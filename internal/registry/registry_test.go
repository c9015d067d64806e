package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/registry"
	"github.com/speckdavid/symk-sub001/internal/search"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
	"github.com/speckdavid/symk-sub001/internal/transition"
)

// p,q,r boolean, goal p∧q∧r, three unit-cost operators each setting one
// variable true; the cheapest plan has cost 3 and must use operators 0,1,2
// in some order.
func threeVarUnitCostTask() *task.StaticTask {
	return &task.StaticTask{
		Domains:  []int{2, 2, 2},
		Derived:  []bool{false, false, false},
		Layers:   []int{0, 0, 0},
		Defaults: []int{0, 0, 0},
		Ops: []task.Operator{
			{ID: 0, Name: "set-p", Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 0, Val: 1}}}, Cost: 1, FacetOf: -1},
			{ID: 1, Name: "set-q", Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 1, Val: 1}}}, Cost: 1, FacetOf: -1},
			{ID: 2, Name: "set-r", Eff: []task.ConditionalEffect{{Lit: task.Literal{Var: 2, Val: 1}}}, Cost: 1, FacetOf: -1},
		},
		Initial:  []int{0, 0, 0},
		GoalLits: []task.Literal{{Var: 0, Val: 1}, {Var: 1, Val: 1}, {Var: 2, Val: 1}},
	}
}

func buildAllRelations(t *testing.T, tk *task.StaticTask, sv *symvars.SymVariables, valid ddkit.Edge) []*transition.Relation {
	var relations []*transition.Relation
	for _, op := range tk.Ops {
		r, err := transition.Build(tk, sv, op, valid)
		require.NoError(t, err)
		relations = append(relations, r)
	}
	return relations
}

// collectingSelector accepts every plan offered until it has seen `want`
// of them.
type collectingSelector struct {
	plans []registry.Plan
	want  int
}

func (s *collectingSelector) Accept(p registry.Plan) bool {
	s.plans = append(s.plans, p)
	return true
}

func (s *collectingSelector) Done() bool { return len(s.plans) >= s.want }

func runToCompletion(t *testing.T, s *search.Search, maxSteps int) {
	t.Helper()
	require.NoError(t, s.Start())
	for i := 0; i < maxSteps && !s.Done(); i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
}

func TestConstructCheaperSolutionsFindsUnitCostPlan(t *testing.T) {
	tk := threeVarUnitCostTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	valid, err := sv.ValidStates()
	require.NoError(t, err)

	relations := buildAllRelations(t, tk, sv, valid)

	initState, err := sv.StateBDD(tk.Initial)
	require.NoError(t, err)
	goalState, err := sv.PartialStateBDD(map[int]int{0: 1, 1: 1, 2: 1})
	require.NoError(t, err)

	var r *registry.Registry
	s := search.New(sv, valid, relations, initState, goalState, search.WithCutHandler(func(c search.SolutionCut) {
		require.NoError(t, r.RegisterSolution(c))
	}))
	r = registry.New(s, registry.Mode{})
	runToCompletion(t, s, 10)

	sel := &collectingSelector{want: 1}
	require.NoError(t, r.ConstructCheaperSolutions(s.UpperBound()+1, sel))

	require.Len(t, sel.plans, 1)
	plan := sel.plans[0]
	require.Equal(t, 3, plan.Cost)
	require.ElementsMatch(t, []int{0, 1, 2}, plan.OperatorIDs)
}

func TestConstructCheaperSolutionsRespectsBound(t *testing.T) {
	tk := threeVarUnitCostTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	valid, err := sv.ValidStates()
	require.NoError(t, err)

	relations := buildAllRelations(t, tk, sv, valid)
	initState, err := sv.StateBDD(tk.Initial)
	require.NoError(t, err)
	goalState, err := sv.PartialStateBDD(map[int]int{0: 1, 1: 1, 2: 1})
	require.NoError(t, err)

	var r *registry.Registry
	s := search.New(sv, valid, relations, initState, goalState, search.WithCutHandler(func(c search.SolutionCut) {
		require.NoError(t, r.RegisterSolution(c))
	}))
	r = registry.New(s, registry.Mode{})
	runToCompletion(t, s, 10)

	sel := &collectingSelector{want: 100}
	require.NoError(t, r.ConstructCheaperSolutions(3, sel))
	require.Empty(t, sel.plans, "bound equal to the cheapest cost excludes it (f < bound)")

	sel2 := &collectingSelector{want: 100}
	require.NoError(t, r.ConstructCheaperSolutions(4, sel2))
	require.NotEmpty(t, sel2.plans)
}

func TestSingleModeStopsAfterFirstPlan(t *testing.T) {
	tk := threeVarUnitCostTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	valid, err := sv.ValidStates()
	require.NoError(t, err)

	relations := buildAllRelations(t, tk, sv, valid)
	initState, err := sv.StateBDD(tk.Initial)
	require.NoError(t, err)
	goalState, err := sv.PartialStateBDD(map[int]int{0: 1, 1: 1, 2: 1})
	require.NoError(t, err)

	var r *registry.Registry
	s := search.New(sv, valid, relations, initState, goalState, search.WithCutHandler(func(c search.SolutionCut) {
		require.NoError(t, r.RegisterSolution(c))
	}))
	r = registry.New(s, registry.Mode{Single: true})
	runToCompletion(t, s, 10)

	sel := &collectingSelector{want: 100}
	require.NoError(t, r.ConstructCheaperSolutions(s.UpperBound()+1, sel))
	require.Len(t, sel.plans, 1)
}
