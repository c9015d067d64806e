package sdac_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/sdac"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
)

func TestSplitProducesOneFacetPerCostValue(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	expr, err := sdac.Parse("x")
	require.NoError(t, err)
	costADD, err := sdac.Eval(expr, sv, varLookup("x", "y"))
	require.NoError(t, err)

	op := task.Operator{ID: 7, FacetOf: -1}
	facets, err := sdac.Split(sv, op, sv.Forest().True(), costADD)
	require.NoError(t, err)
	require.Len(t, facets, 4, "domain size 4 for x means 4 constant-cost facets")

	seen := map[int]bool{}
	for _, fct := range facets {
		require.Equal(t, 7, fct.ParentID)
		seen[fct.Cost] = true
	}
	for c := 0; c < 4; c++ {
		require.True(t, seen[c], "missing facet for cost %d", c)
	}
}

func TestSplitRestrictsPreconditionByBothOriginalAndLevelSet(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	expr, err := sdac.Parse("x")
	require.NoError(t, err)
	costADD, err := sdac.Eval(expr, sv, varLookup("x", "y"))
	require.NoError(t, err)

	origPre, err := sv.PartialStateBDD(map[int]int{1: 1})
	require.NoError(t, err)

	op := task.Operator{ID: 1, FacetOf: -1}
	facets, err := sdac.Split(sv, op, origPre, costADD)
	require.NoError(t, err)
	for _, fct := range facets {
		atY1, err := sv.PartialStateBDD(map[int]int{0: fct.Cost, 1: 1})
		require.NoError(t, err)
		conj, err := sv.Forest().Apply(ddkit.OpAnd, fct.Precondition, atY1)
		require.NoError(t, err)
		require.NotEqual(t, 0, conj.Handle())

		notY1, err := sv.PartialStateBDD(map[int]int{0: fct.Cost, 1: 0})
		require.NoError(t, err)
		conj2, err := sv.Forest().Apply(ddkit.OpAnd, fct.Precondition, notY1)
		require.NoError(t, err)
		require.Equal(t, 0, conj2.Handle(), "facet precondition must not admit y=0 when original precondition fixed y=1")
	}
}

func TestSplitDropsConstantCostZeroFacetWhenPreconditionEmpty(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	costADD, err := sdac.Eval(mustParse(t, "1"), sv, varLookup("x", "y"))
	require.NoError(t, err)

	op := task.Operator{ID: 2, FacetOf: -1}
	facets, err := sdac.Split(sv, op, sv.Forest().False(), costADD)
	require.NoError(t, err)
	require.Empty(t, facets, "an unsatisfiable original precondition must drop every facet")
}

func mustParse(t *testing.T, s string) sdac.Expr {
	e, err := sdac.Parse(s)
	require.NoError(t, err)
	return e
}
