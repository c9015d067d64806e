package symvars_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
)

func sampleTask() *task.StaticTask {
	return &task.StaticTask{
		Domains:  []int{2, 3, 2},
		Derived:  []bool{false, false, false},
		Layers:   []int{0, 0, 0},
		Defaults: []int{0, 0, 0},
		Ops:      []task.Operator{{ID: 0, Name: "noop", FacetOf: -1}},
		Initial:  []int{0, 0, 0},
		GoalLits: []task.Literal{{Var: 0, Val: 1}},
	}
}

func TestPreBDDDistinctValuesAreDisjoint(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	lit0, err := sv.PreBDD(1, 0)
	require.NoError(t, err)
	lit1, err := sv.PreBDD(1, 1)
	require.NoError(t, err)

	conj, err := sv.Forest().Apply(ddkit.OpAnd, lit0, lit1)
	require.NoError(t, err)
	require.True(t, conj.Handle() == 0, "pre(v)=0 and pre(v)=1 must be disjoint")
}

func TestStateBDDMatchesItself(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	s1, err := sv.StateBDD([]int{0, 1, 0})
	require.NoError(t, err)
	s2, err := sv.StateBDD([]int{0, 1, 0})
	require.NoError(t, err)
	require.Equal(t, s1.Handle(), s2.Handle())

	other, err := sv.StateBDD([]int{1, 1, 0})
	require.NoError(t, err)
	require.NotEqual(t, s1.Handle(), other.Handle())
}

func TestBiimpHoldsOnlyWhenPreEqualsEff(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	b, err := sv.Biimp(0)
	require.NoError(t, err)
	require.NotEqual(t, 0, b.Handle())
	require.NotEqual(t, 1, b.Handle())
}

func TestValidStatesExcludesOutOfRangeEncoding(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	valid, err := sv.ValidStates()
	require.NoError(t, err)

	// variable 1 has domain 3 but 2 bits (4 encodings): value 3 is junk.
	junk, err := sv.PreBDD(1, 3)
	require.NoError(t, err)
	conj, err := sv.Forest().Apply(ddkit.OpAnd, valid, junk)
	require.NoError(t, err)
	require.Equal(t, 0, conj.Handle(), "encoding 3 of a domain-3 variable must not be a valid state")
}

func TestGetCubePreCoversExactlyRequestedVariables(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	cube := sv.GetCubePre([]int{1})
	require.NotEmpty(t, cube)
	other := sv.GetCubePre([]int{0})
	for lvl := range cube {
		require.False(t, other[lvl], "variable 0's pre-levels must not overlap variable 1's")
	}
}

func TestSwapPreEffIsInvolution(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	swap := sv.SwapPreEff([]int{0, 1, 2})
	for k, v := range swap {
		require.Equal(t, k, swap[v], "swapping pre<->eff twice must be the identity")
	}
}

func TestNumStatesCountsReachableEncodings(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, false, 0)
	require.NoError(t, err)

	valid, err := sv.ValidStates()
	require.NoError(t, err)
	// 2 (var0) * 3 (var1, domain size even though 2 bits allocated) * 2 (var2) = 12.
	require.InDelta(t, 12.0, sv.NumStates(valid), 0.001)
}

func TestGamerOrderingPrioritizesGoalConnectedVariables(t *testing.T) {
	tk := sampleTask()
	sv, err := symvars.New(tk, true, 0)
	require.NoError(t, err)
	require.NotNil(t, sv)
}
