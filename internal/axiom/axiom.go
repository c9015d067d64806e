// Package axiom implements compiling layered derived-predicate axioms into
// a primary representation BDD per derived variable, expressed purely over
// non-derived (primary) planning variables.
package axiom

import (
	"fmt"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
)

// Compilation holds the compiled primary_rep BDD for every derived variable
// of a task. It never outlives the SymVariables it was built from; callers
// must keep sv alive for as long as a Compilation is in use — Go gives us
// this for free since Compilation only stores ddkit.Edge values, which
// themselves pin their forest, rather than a raw back-pointer.
type Compilation struct {
	// primaryRep[v] holds primary_rep(v) for each derived variable v; zero
	// Edge for non-derived variables.
	primaryRep map[int]ddkit.Edge
}

// Compile runs the layered fixed-point computation over t's axioms, using sv
// to turn literals into BDDs.
func Compile(t task.Task, sv *symvars.SymVariables) (*Compilation, error) {
	f := sv.Forest()
	c := &Compilation{primaryRep: make(map[int]ddkit.Edge)}

	maxLayer := 0
	for v := 0; v < t.NumVars(); v++ {
		if t.IsDerived(v) {
			c.primaryRep[v] = f.False()
			if l := t.AxiomLayer(v); l > maxLayer {
				maxLayer = l
			}
		}
	}

	byLayer := make(map[int][]task.Axiom)
	for _, ax := range t.Axioms() {
		l := t.AxiomLayer(ax.Head.Var)
		byLayer[l] = append(byLayer[l], ax)
	}

	for layer := 0; layer <= maxLayer; layer++ {
		axioms := byLayer[layer]
		if len(axioms) == 0 {
			continue
		}
		changed := true
		for changed {
			changed = false
			for _, ax := range axioms {
				if IsTrivial(t, ax) {
					continue
				}
				bodyBDD, err := c.bodyBDD(sv, ax.Body)
				if err != nil {
					return nil, err
				}
				cur := c.primaryRep[ax.Head.Var]
				updated, err := f.Apply(ddkit.OpOr, cur, bodyBDD)
				if err != nil {
					return nil, err
				}
				if updated.Handle() != cur.Handle() {
					c.primaryRep[ax.Head.Var] = updated
					changed = true
				}
			}
		}
	}
	return c, nil
}

// bodyBDD conjoins an axiom body's literals, each resolved through either
// sv.PreBDD (non-derived, lower-layer-settled) or the same-layer/lower-layer
// primary_rep being solved for derived body literals, evaluating the body
// using primary_rep for same-layer or lower-layer derived variables.
func (c *Compilation) bodyBDD(sv *symvars.SymVariables, body []task.Literal) (ddkit.Edge, error) {
	f := sv.Forest()
	cur := f.True()
	for _, lit := range body {
		var lbdd ddkit.Edge
		var err error
		if rep, ok := c.primaryRep[lit.Var]; ok {
			lbdd = rep
			if lit.Val == 0 {
				lbdd, err = f.Not(lbdd)
				if err != nil {
					return ddkit.Edge{}, err
				}
			}
		} else {
			lbdd, err = sv.PreBDD(lit.Var, lit.Val)
			if err != nil {
				return ddkit.Edge{}, err
			}
		}
		cur, err = f.Apply(ddkit.OpAnd, cur, lbdd)
		if err != nil {
			return ddkit.Edge{}, err
		}
	}
	return cur, nil
}

// PrimaryRepresentation exposes primary_rep(v, val): primary_rep(v) if val
// is non-default, else its negation. Trivial axioms (head value equal to
// the default) never contribute to
// primaryRep[v], so this is the only place default-handling needs to occur.
func (c *Compilation) PrimaryRepresentation(t task.Task, v, val int) (ddkit.Edge, error) {
	rep, ok := c.primaryRep[v]
	if !ok {
		return ddkit.Edge{}, fmt.Errorf("variable %d is not derived", v)
	}
	if val == t.DefaultValue(v) {
		return rep.Forest().Not(rep)
	}
	return rep, nil
}

// IsTrivial reports whether every axiom with this head assigns the
// variable's own default value, meaning the axiom contributes nothing and
// can be skipped entirely.
func IsTrivial(t task.Task, ax task.Axiom) bool {
	return ax.Head.Val == t.DefaultValue(ax.Head.Var)
}
