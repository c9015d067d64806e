package sdac

import (
	"math"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
)

// Facet is one constant-cost split of an SDAC operator: the parent operator
// restricted to the states where its cost ADD equals
// Cost, with Precondition further intersected by that level set.
type Facet struct {
	ParentID     int
	Cost         int
	Precondition ddkit.Edge
}

// Split computes the facets of operator op whose cost expression evaluates
// to costADD, conjoining op's original precondition (origPre) with each
// terminal value's level set A(o)^-1(ci). Facets dropped due to an infinite
// (NaN/Inf) terminal are simply omitted: an infinite terminal causes the
// facet to be dropped.
func Split(sv *symvars.SymVariables, op task.Operator, origPre ddkit.Edge, costADD ddkit.Edge) ([]Facet, error) {
	f := sv.Forest()
	values := terminalValues(f, costADD.Handle())

	var facets []Facet
	for _, c := range values {
		if math.IsInf(c, 0) || math.IsNaN(c) {
			continue
		}
		if c != math.Trunc(c) {
			continue
		}
		levelSet, err := indicatorBDD(f, costADD, c)
		if err != nil {
			return nil, err
		}
		pre, err := f.Apply(ddkit.OpAnd, origPre, levelSet)
		if err != nil {
			return nil, err
		}
		if pre.Handle() == 0 {
			continue
		}
		facets = append(facets, Facet{ParentID: op.ID, Cost: int(c), Precondition: pre})
	}
	return facets, nil
}

// terminalValues walks an ADD's reachable terminals, deduplicated.
func terminalValues(f *ddkit.Forest, h int) []float64 {
	seen := map[int]bool{}
	var vals []float64
	var walk func(int)
	walk = func(h int) {
		if seen[h] {
			return
		}
		seen[h] = true
		if v, ok := f.TerminalValue(h); ok {
			vals = append(vals, v)
			return
		}
		if h == 0 || h == 1 {
			vals = append(vals, float64(h))
			return
		}
		lo, hi := f.RawChildren(h)
		walk(lo)
		walk(hi)
	}
	walk(h)
	return vals
}

// Indicator exposes indicatorBDD: the boolean BDD where numeric ADD e
// equals c, useful wherever a later component needs to test an ADD's value
// against a constant as a boolean condition (e.g. C8's goal-cost checks).
func Indicator(f *ddkit.Forest, e ddkit.Edge, c float64) (ddkit.Edge, error) {
	return indicatorBDD(f, e, c)
}

// indicatorBDD builds the boolean BDD A(o)^-1(c): true exactly where the
// numeric ADD e equals c, by recursively mirroring e's structure into
// boolean terminals.
func indicatorBDD(f *ddkit.Forest, e ddkit.Edge, c float64) (ddkit.Edge, error) {
	memo := map[int]int{}
	var walk func(int) (int, error)
	walk = func(h int) (int, error) {
		if r, ok := memo[h]; ok {
			return r, nil
		}
		if v, ok := f.TerminalValue(h); ok {
			if v == c {
				memo[h] = 1
			} else {
				memo[h] = 0
			}
			return memo[h], nil
		}
		if h == 0 || h == 1 {
			// A boolean 0/1 appearing inside an ADD only happens for a
			// degenerate constant-only expression; treat 0/1 as their own
			// numeric value.
			if float64(h) == c {
				memo[h] = 1
			} else {
				memo[h] = 0
			}
			return memo[h], nil
		}
		lo, hi := f.RawChildren(h)
		rlo, err := walk(lo)
		if err != nil {
			return 0, err
		}
		rhi, err := walk(hi)
		if err != nil {
			return 0, err
		}
		node, err := f.CreateReducedNode(&ddkit.UnpackedNode{
			Level: f.LevelOf(h),
			Size:  2,
			Down:  []int{rlo, rhi},
		}, ddkit.BestFit)
		if err != nil {
			return 0, err
		}
		memo[h] = node.Handle()
		return node.Handle(), nil
	}
	h, err := walk(e.Handle())
	if err != nil {
		return ddkit.Edge{}, err
	}
	return f.WrapHandle(h), nil
}
