package sdac_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/sdac"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
)

func twoVarTask() *task.StaticTask {
	return &task.StaticTask{
		Domains:  []int{4, 3},
		Derived:  []bool{false, false},
		Layers:   []int{0, 0},
		Defaults: []int{0, 0},
		Ops:      []task.Operator{{ID: 0, FacetOf: -1}},
		Initial:  []int{0, 0},
		GoalLits: nil,
	}
}

func varLookup(names ...string) sdac.VarIndex {
	idx := map[string]int{}
	for i, n := range names {
		idx[n] = i
	}
	return func(name string) (int, bool) { v, ok := idx[name]; return v, ok }
}

func TestEvalConstant(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	e, err := sdac.Parse("3 + 4")
	require.NoError(t, err)
	add, err := sdac.Eval(e, sv, varLookup("x", "y"))
	require.NoError(t, err)
	val, ok := sv.Forest().TerminalValue(add.Handle())
	require.True(t, ok)
	require.Equal(t, 7.0, val)
}

func TestEvalVariableMatchesStateValue(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	e, err := sdac.Parse("x")
	require.NoError(t, err)
	valueADD, err := sdac.Eval(e, sv, varLookup("x", "y"))
	require.NoError(t, err)

	isTwo, err := sdac.Indicator(sv.Forest(), valueADD, 2.0)
	require.NoError(t, err)

	atTwo, err := sv.PartialStateBDD(map[int]int{0: 2})
	require.NoError(t, err)
	atThree, err := sv.PartialStateBDD(map[int]int{0: 3})
	require.NoError(t, err)

	conjAtTwo, err := sv.Forest().Apply(ddkit.OpAnd, atTwo, isTwo)
	require.NoError(t, err)
	require.NotEqual(t, 0, conjAtTwo.Handle(), "x=2 state must satisfy x==2's indicator")

	conjAtThree, err := sv.Forest().Apply(ddkit.OpAnd, atThree, isTwo)
	require.NoError(t, err)
	require.Equal(t, 0, conjAtThree.Handle(), "x=3 state must not satisfy x==2's indicator")
}

func TestEvalDivisionByZeroIsFatal(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	e, err := sdac.Parse("1 / 0")
	require.NoError(t, err)
	_, err = sdac.Eval(e, sv, varLookup("x", "y"))
	require.Error(t, err)
}

func TestEvalUnresolvedVariableErrors(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	e, err := sdac.Parse("z")
	require.NoError(t, err)
	_, err = sdac.Eval(e, sv, varLookup("x", "y"))
	require.Error(t, err)
}

func TestEvalAbsIsAlwaysNonNegative(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	e, err := sdac.Parse("abs(0 - 5)")
	require.NoError(t, err)
	add, err := sdac.Eval(e, sv, varLookup("x", "y"))
	require.NoError(t, err)
	val, ok := sv.Forest().TerminalValue(add.Handle())
	require.True(t, ok)
	require.Equal(t, 5.0, val)
}

func TestEvalComparisonProducesZeroOneTerminals(t *testing.T) {
	tk := twoVarTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)
	e, err := sdac.Parse("2 == 2")
	require.NoError(t, err)
	add, err := sdac.Eval(e, sv, varLookup("x", "y"))
	require.NoError(t, err)
	val, ok := sv.Forest().TerminalValue(add.Handle())
	require.True(t, ok)
	require.Equal(t, 1.0, val)
}
