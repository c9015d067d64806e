// Package transition implements per-operator transition relations over a
// symvars.SymVariables, plus the image/preimage/merge/edeletion operations
// the search core drives.
package transition

import (
	"fmt"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
)

// Relation is one operator's (or SDAC facet's) transition relation BDD:
// pre(pre) ∧ eff(eff) ∧ biimp for every untouched variable, restricted to
// valid_states().
type Relation struct {
	OperatorID int
	Cost       int
	BDD        ddkit.Edge
	effVars    []int
	swap       map[int32]int32
	preCube    map[int32]bool
	effCube    map[int32]bool
}

// Build compiles operator op's transition relation. Only unconditional
// effects are folded into the biimp frame directly; conditional effects are
// compiled as `condition -> eff(eff)`, disjoined with `¬condition ->
// biimp(v)` for the affected variable, which is how original_source's
// sym_transition.cc handles conditional effects.
func Build(t task.Task, sv *symvars.SymVariables, op task.Operator, validStates ddkit.Edge) (*Relation, error) {
	preBDD, err := sv.PartialStateBDD(litMap(op.Pre))
	if err != nil {
		return nil, err
	}
	return buildWithPrecondition(t, sv, op, preBDD, op.Cost, validStates)
}

// BuildFacet compiles one SDAC facet's (sdac.Split, C6) transition
// relation: op's effects under a precomputed facet precondition and
// constant facet cost, rather than op's own literal preconditions. facetOp
// should be a copy of the parent operator with its own ID and FacetOf set
// to the parent's id, so reconstructed plans and the validation selector
// can both trace a facet id back to its original operator.
func BuildFacet(t task.Task, sv *symvars.SymVariables, facetOp task.Operator, precondition ddkit.Edge, cost int, validStates ddkit.Edge) (*Relation, error) {
	return buildWithPrecondition(t, sv, facetOp, precondition, cost, validStates)
}

func buildWithPrecondition(t task.Task, sv *symvars.SymVariables, op task.Operator, preBDD ddkit.Edge, cost int, validStates ddkit.Edge) (*Relation, error) {
	f := sv.Forest()

	touched := map[int]bool{}
	for _, eff := range op.Eff {
		touched[eff.Lit.Var] = true
	}

	effTerms := make([]ddkit.Edge, 0, len(op.Eff))
	for _, eff := range op.Eff {
		term, err := effTerm(f, sv, eff)
		if err != nil {
			return nil, err
		}
		effTerms = append(effTerms, term)
	}
	effConjunct, err := f.And(effTerms...)
	if err != nil {
		return nil, err
	}

	frameTerms := make([]ddkit.Edge, 0, t.NumVars())
	for v := 0; v < t.NumVars(); v++ {
		if touched[v] {
			continue
		}
		b, err := sv.Biimp(v)
		if err != nil {
			return nil, err
		}
		frameTerms = append(frameTerms, b)
	}
	frame, err := f.And(frameTerms...)
	if err != nil {
		return nil, err
	}

	bdd, err := f.And(preBDD, effConjunct, frame, validStates)
	if err != nil {
		return nil, err
	}

	effVars := sortedKeys(touched)
	return &Relation{
		OperatorID: op.ID,
		Cost:       cost,
		BDD:        bdd,
		effVars:    effVars,
		swap:       sv.SwapPreEff(effVars),
		preCube:    sv.GetCubePre(effVars),
		effCube:    sv.GetCubeEff(effVars),
	}, nil
}

// effTerm returns eff(v)=val for an unconditional effect, or
// (condition -> eff(eff)) ∧ (¬condition -> biimp(v)) for a conditional one.
func effTerm(f *ddkit.Forest, sv *symvars.SymVariables, eff task.ConditionalEffect) (ddkit.Edge, error) {
	target, err := sv.EffBDD(eff.Lit.Var, eff.Lit.Val)
	if err != nil {
		return ddkit.Edge{}, err
	}
	if len(eff.Condition) == 0 {
		return target, nil
	}
	cond, err := sv.PartialStateBDD(litMap(eff.Condition))
	if err != nil {
		return ddkit.Edge{}, err
	}
	notCond, err := f.Not(cond)
	if err != nil {
		return ddkit.Edge{}, err
	}
	unchanged, err := sv.Biimp(eff.Lit.Var)
	if err != nil {
		return ddkit.Edge{}, err
	}
	applied, err := f.Apply(ddkit.OpAnd, cond, target)
	if err != nil {
		return ddkit.Edge{}, err
	}
	skipped, err := f.Apply(ddkit.OpAnd, notCond, unchanged)
	if err != nil {
		return ddkit.Edge{}, err
	}
	return f.Apply(ddkit.OpOr, applied, skipped)
}

func litMap(lits []task.Literal) map[int]int {
	out := make(map[int]int, len(lits))
	for _, l := range lits {
		out[l.Var] = l.Val
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Image computes the set of successors of s through r: existentially
// abstract pre_vars(eff_vars) from s ∧ tr, then swap primed↔unprimed.
func (r *Relation) Image(f *ddkit.Forest, s ddkit.Edge) (ddkit.Edge, error) {
	conj, err := f.Apply(ddkit.OpAnd, s, r.BDD)
	if err != nil {
		return ddkit.Edge{}, err
	}
	abstracted, err := f.Exist(conj, r.preCube)
	if err != nil {
		return ddkit.Edge{}, err
	}
	return f.Replace(abstracted, r.swap)
}

// Preimage computes the set of predecessors of s through r: swap
// unprimed↔primed on s, conjoin with tr, existentially abstract eff_vars.
func (r *Relation) Preimage(f *ddkit.Forest, s ddkit.Edge) (ddkit.Edge, error) {
	swapped, err := f.Replace(s, r.swap)
	if err != nil {
		return ddkit.Edge{}, err
	}
	conj, err := f.Apply(ddkit.OpAnd, swapped, r.BDD)
	if err != nil {
		return ddkit.Edge{}, err
	}
	return f.Exist(conj, r.effCube)
}

// Merge disjoins two transition relations of the same cost (used to fold
// several same-cost operators into a single TR bucket for C8), rejecting
// the merge if the resulting BDD would exceed maxNodes.
func Merge(f *ddkit.Forest, a, b *Relation, maxNodes int) (*Relation, error) {
	if a.Cost != b.Cost {
		return nil, fmt.Errorf("transition: cannot merge relations of differing cost %d != %d", a.Cost, b.Cost)
	}
	merged, err := f.Apply(ddkit.OpOr, a.BDD, b.BDD)
	if err != nil {
		return nil, err
	}
	if maxNodes > 0 && f.Produced() > maxNodes {
		return nil, fmt.Errorf("transition: merge exceeds node budget %d", maxNodes)
	}
	effVars := unionSorted(a.effVars, b.effVars)
	return &Relation{
		Cost:    a.Cost,
		BDD:     merged,
		effVars: effVars,
		swap:    mergeMaps(a.swap, b.swap),
		preCube: mergeBoolMaps(a.preCube, b.preCube),
		effCube: mergeBoolMaps(a.effCube, b.effCube),
	}, nil
}

func unionSorted(a, b []int) []int {
	set := map[int]bool{}
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		set[v] = true
	}
	return sortedKeys(set)
}

func mergeMaps(a, b map[int32]int32) map[int32]int32 {
	out := make(map[int32]int32, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func mergeBoolMaps(a, b map[int32]bool) map[int32]bool {
	out := make(map[int32]bool, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Edeletion tightens r by conjoining mutex constraints (one BDD per
// per-fluent mutex group) onto the effect side, so mutex-violating
// successors are never generated by Image/Preimage.
func Edeletion(f *ddkit.Forest, r *Relation, mutexBDDs []ddkit.Edge) (*Relation, error) {
	bdd := r.BDD
	for _, m := range mutexBDDs {
		var err error
		bdd, err = f.Apply(ddkit.OpAnd, bdd, m)
		if err != nil {
			return nil, err
		}
	}
	out := *r
	out.BDD = bdd
	return &out, nil
}
