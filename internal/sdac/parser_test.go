package sdac_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/sdac"
)

func TestParseRespectsArithmeticPrecedence(t *testing.T) {
	e, err := sdac.Parse("x + y * 2")
	require.NoError(t, err)
	bin, ok := e.(sdac.Binary)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	rhs, ok := bin.Right.(sdac.Binary)
	require.True(t, ok)
	require.Equal(t, "*", rhs.Op)
}

func TestParseHandlesParentheses(t *testing.T) {
	e, err := sdac.Parse("(x + y) * 2")
	require.NoError(t, err)
	bin, ok := e.(sdac.Binary)
	require.True(t, ok)
	require.Equal(t, "*", bin.Op)
	_, ok = bin.Left.(sdac.Binary)
	require.True(t, ok)
}

func TestParseUnaryMinusAndAbs(t *testing.T) {
	e, err := sdac.Parse("abs(-x)")
	require.NoError(t, err)
	u, ok := e.(sdac.Unary)
	require.True(t, ok)
	require.Equal(t, "abs", u.Op)
	inner, ok := u.Expr.(sdac.Unary)
	require.True(t, ok)
	require.Equal(t, "-", inner.Op)
}

func TestParseComparisonAndLogic(t *testing.T) {
	e, err := sdac.Parse("x == 1 && y > 2")
	require.NoError(t, err)
	bin, ok := e.(sdac.Binary)
	require.True(t, ok)
	require.Equal(t, "&&", bin.Op)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := sdac.Parse("x +")
	require.Error(t, err)
}

func TestParsePrefixRoundTrips(t *testing.T) {
	e, err := sdac.ParsePrefix("(+ x 1)")
	require.NoError(t, err)
	bin, ok := e.(sdac.Binary)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	_, ok = bin.Left.(sdac.VarRef)
	require.True(t, ok)
}

func TestParsePrefixUnary(t *testing.T) {
	e, err := sdac.ParsePrefix("(abs x)")
	require.NoError(t, err)
	u, ok := e.(sdac.Unary)
	require.True(t, ok)
	require.Equal(t, "abs", u.Op)
}
