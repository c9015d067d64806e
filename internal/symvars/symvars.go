// Package symvars implements C4: the mapping from planning-task variables
// to interleaved pre/eff/aux boolean BDD levels, and the derived BDD
// builders (pre_bdd, eff_bdd, biimp, state_bdd, valid_states, ...) the rest
// of the symbolic planner is built on top of.
package symvars

import (
	"math/bits"
	"sort"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/task"
)

// varBinary is one planning variable's binary encoding: how many bits it
// needs and the (pre, eff) BDD level of each bit, interleaved pairwise in
// the forest's global level order.
type varBinary struct {
	bits    int
	preLvls []int32
	effLvls []int32
}

// SymVariables owns a Forest sized for exactly the levels a task's binary
// state/effect encoding (plus a handful of auxiliary levels) requires, and
// exposes the builders C5–C8 are written against.
type SymVariables struct {
	f       *ddkit.Forest
	task    task.Task
	vars    []varBinary
	auxLvls []int32

	preCache map[int64]ddkit.Edge
	effCache map[int64]ddkit.Edge

	// countRank maps every pre- or auxiliary level to its 1-based rank in
	// the dimension NumStates counts over; eff levels are deliberately
	// absent, since no state/frontier/closed BDD ever has eff levels in its
	// support and counting over them would inflate the result by
	// 2^(#eff bits), on top of the aux factor the docs on NumStates divide
	// back out.
	countRank map[int32]int
	countDim  int
}

// New builds a SymVariables over t, allocating 2 levels per bit (pre, eff)
// for every variable, interleaved in either the task's natural order or, if
// gamerOrdering is set, a Gamer-like goal/precondition-connectivity order.
func New(t task.Task, gamerOrdering bool, auxCount int, opts ...ddkit.Option) (*SymVariables, error) {
	order := naturalOrder(t)
	if gamerOrdering {
		order = gamerOrder(t)
	}

	vars := make([]varBinary, t.NumVars())
	level := int32(1)
	for _, v := range order {
		nbits := bitsFor(t.DomainSize(v))
		vb := varBinary{bits: nbits}
		for i := 0; i < nbits; i++ {
			vb.preLvls = append(vb.preLvls, level)
			level++
			vb.effLvls = append(vb.effLvls, level)
			level++
		}
		vars[v] = vb
	}
	aux := make([]int32, auxCount)
	for i := range aux {
		aux[i] = level
		level++
	}

	// Every SymVariables forest pairs an unprimed (pre) and primed (eff)
	// level per variable bit, so it is always a relational forest: the
	// Identity reduction rule, if a caller opts into it via opts, is safe
	// to honor here regardless of what order opts and this option apply in.
	forestOpts := append([]ddkit.Option{ddkit.WithRelational(true)}, opts...)
	f, err := ddkit.NewForest(int(level-1), forestOpts...)
	if err != nil {
		return nil, err
	}
	sv := &SymVariables{
		f:        f,
		task:     t,
		vars:     vars,
		auxLvls:  aux,
		preCache: make(map[int64]ddkit.Edge),
		effCache: make(map[int64]ddkit.Edge),
	}
	sv.buildCountRank()
	return sv, nil
}

// buildCountRank assigns every pre- and auxiliary level a 1-based rank,
// ascending by raw level number, skipping eff levels entirely. This is the
// dimension NumStates's satcount walk counts over.
func (sv *SymVariables) buildCountRank() {
	levels := make([]int32, 0, len(sv.vars)*2+len(sv.auxLvls))
	for _, vb := range sv.vars {
		levels = append(levels, vb.preLvls...)
	}
	levels = append(levels, sv.auxLvls...)
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	sv.countRank = make(map[int32]int, len(levels))
	for i, lvl := range levels {
		sv.countRank[lvl] = i + 1
	}
	sv.countDim = len(levels)
}

func bitsFor(domain int) int {
	if domain <= 1 {
		return 1
	}
	return bits.Len(uint(domain - 1))
}

// naturalOrder allocates variables in task order, the default absent
// gamer_ordering.
func naturalOrder(t task.Task) []int {
	order := make([]int, t.NumVars())
	for i := range order {
		order[i] = i
	}
	return order
}

// gamerOrder is a Gamer-like static reordering heuristic: variables that
// co-occur in the most operator preconditions/effects with the goal
// variables are placed first, approximating the causal-graph-aware ordering
// Gamer's BDD front end uses. This is a lightweight greedy approximation,
// not a reimplementation of Gamer's full merge-and-shrink-based metric.
func gamerOrder(t task.Task) []int {
	n := t.NumVars()
	affinity := make([]int, n)
	goalVars := make(map[int]bool)
	for _, lit := range t.Goal() {
		goalVars[lit.Var] = true
		affinity[lit.Var] += 1000
	}
	for _, op := range t.Operators() {
		touches := map[int]bool{}
		for _, l := range op.Pre {
			touches[l.Var] = true
		}
		for _, e := range op.Eff {
			touches[e.Lit.Var] = true
		}
		goalTouch := false
		for v := range touches {
			if goalVars[v] {
				goalTouch = true
				break
			}
		}
		if goalTouch {
			for v := range touches {
				affinity[v] += len(touches)
			}
		}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// stable selection sort descending by affinity: n is small (planning
	// variable counts rarely exceed a few thousand), so O(n^2) is fine and
	// keeps the ordering deterministic without importing sort's interface
	// ceremony for a one-off.
	for i := 0; i < n; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if affinity[order[j]] > affinity[order[best]] {
				best = j
			}
		}
		order[i], order[best] = order[best], order[i]
	}
	return order
}

// Forest exposes the underlying decision-diagram forest for C5–C8.
func (sv *SymVariables) Forest() *ddkit.Forest { return sv.f }

// NumAuxVars returns the count of auxiliary levels reserved at construction.
func (sv *SymVariables) NumAuxVars() int { return len(sv.auxLvls) }

func bitsOf(val, nbits int) []bool {
	out := make([]bool, nbits)
	for i := 0; i < nbits; i++ {
		out[i] = (val>>uint(i))&1 == 1
	}
	return out
}

func (sv *SymVariables) varAt(v int) *varBinary { return &sv.vars[v] }

// PreBDD returns the conjunction encoding pre(v) = val.
func (sv *SymVariables) PreBDD(v, val int) (ddkit.Edge, error) {
	key := int64(v)<<32 | int64(val)
	if e, ok := sv.preCache[key]; ok {
		return e, nil
	}
	e, err := sv.literalBDD(sv.varAt(v).preLvls, val, sv.varAt(v).bits)
	if err != nil {
		return ddkit.Edge{}, err
	}
	sv.preCache[key] = e
	return e, nil
}

// EffBDD returns the conjunction encoding eff(v) = val.
func (sv *SymVariables) EffBDD(v, val int) (ddkit.Edge, error) {
	key := int64(v)<<32 | int64(val)
	if e, ok := sv.effCache[key]; ok {
		return e, nil
	}
	e, err := sv.literalBDD(sv.varAt(v).effLvls, val, sv.varAt(v).bits)
	if err != nil {
		return ddkit.Edge{}, err
	}
	sv.effCache[key] = e
	return e, nil
}

func (sv *SymVariables) literalBDD(levels []int32, val, nbits int) (ddkit.Edge, error) {
	bitsVal := bitsOf(val, nbits)
	cur := sv.f.True()
	for i := nbits - 1; i >= 0; i-- {
		lit, err := sv.levelLiteral(levels[i], bitsVal[i])
		if err != nil {
			return ddkit.Edge{}, err
		}
		cur, err = sv.f.Apply(ddkit.OpAnd, lit, cur)
		if err != nil {
			return ddkit.Edge{}, err
		}
	}
	return cur, nil
}

func (sv *SymVariables) levelLiteral(level int32, positive bool) (ddkit.Edge, error) {
	varNode, err := sv.f.CreateReducedNode(&ddkit.UnpackedNode{Level: level, Size: 2, Down: []int{0, 1}}, ddkit.BestFit)
	if err != nil {
		return ddkit.Edge{}, err
	}
	if positive {
		return varNode, nil
	}
	return sv.f.Not(varNode)
}

// ValueADD builds the ADD over v's pre-encoding where every minterm for
// v=i maps to the terminal value i, the "Variable" fold case a
// cost-expression evaluator needs. Leaves are numeric terminals (via
// Forest.Terminal), never the boolean 0/1 edges, so the result composes with
// Forest.ApplyNumeric.
func (sv *SymVariables) ValueADD(v int) (ddkit.Edge, error) {
	vb := sv.varAt(v)
	var build func(bitIdx, accum int) (ddkit.Edge, error)
	build = func(bitIdx, accum int) (ddkit.Edge, error) {
		if bitIdx < 0 {
			return sv.f.Terminal(float64(accum)), nil
		}
		lo, err := build(bitIdx-1, accum)
		if err != nil {
			return ddkit.Edge{}, err
		}
		hi, err := build(bitIdx-1, accum+(1<<uint(bitIdx)))
		if err != nil {
			return ddkit.Edge{}, err
		}
		return sv.f.CreateReducedNode(&ddkit.UnpackedNode{
			Level: vb.preLvls[bitIdx],
			Size:  2,
			Down:  []int{lo.Handle(), hi.Handle()},
		}, ddkit.BestFit)
	}
	return build(vb.bits-1, 0)
}

// Biimp returns pre(v) = eff(v), conjoined bit by bit, used to frame an
// unchanged variable across a transition relation.
func (sv *SymVariables) Biimp(v int) (ddkit.Edge, error) {
	vb := sv.varAt(v)
	cur := sv.f.True()
	for i := 0; i < vb.bits; i++ {
		preLit, err := sv.levelLiteral(vb.preLvls[i], true)
		if err != nil {
			return ddkit.Edge{}, err
		}
		effLit, err := sv.levelLiteral(vb.effLvls[i], true)
		if err != nil {
			return ddkit.Edge{}, err
		}
		bit, err := sv.f.Apply(ddkit.OpBiimp, preLit, effLit)
		if err != nil {
			return ddkit.Edge{}, err
		}
		cur, err = sv.f.Apply(ddkit.OpAnd, cur, bit)
		if err != nil {
			return ddkit.Edge{}, err
		}
	}
	return cur, nil
}

// StateBDD conjoins pre(v)=state[v] over every variable.
func (sv *SymVariables) StateBDD(state []int) (ddkit.Edge, error) {
	cur := sv.f.True()
	for v, val := range state {
		lit, err := sv.PreBDD(v, val)
		if err != nil {
			return ddkit.Edge{}, err
		}
		var errA error
		cur, errA = sv.f.Apply(ddkit.OpAnd, cur, lit)
		if errA != nil {
			return ddkit.Edge{}, errA
		}
	}
	return cur, nil
}

// PartialStateBDD conjoins pre(v)=val only for the given assignment.
func (sv *SymVariables) PartialStateBDD(assignment map[int]int) (ddkit.Edge, error) {
	cur := sv.f.True()
	for v, val := range assignment {
		lit, err := sv.PreBDD(v, val)
		if err != nil {
			return ddkit.Edge{}, err
		}
		var errA error
		cur, errA = sv.f.Apply(ddkit.OpAnd, cur, lit)
		if errA != nil {
			return ddkit.Edge{}, errA
		}
	}
	return cur, nil
}

// ValidStates conjoins "value in [0,domain)" over every variable, removing
// junk encodings a variable's bit-width leaves unused when its domain size
// is not a power of two.
func (sv *SymVariables) ValidStates() (ddkit.Edge, error) {
	cur := sv.f.True()
	for v := 0; v < sv.task.NumVars(); v++ {
		valid, err := sv.validRangeBDD(v)
		if err != nil {
			return ddkit.Edge{}, err
		}
		var errA error
		cur, errA = sv.f.Apply(ddkit.OpAnd, cur, valid)
		if errA != nil {
			return ddkit.Edge{}, errA
		}
	}
	return cur, nil
}

func (sv *SymVariables) validRangeBDD(v int) (ddkit.Edge, error) {
	domain := sv.task.DomainSize(v)
	cur := sv.f.False()
	for val := 0; val < domain; val++ {
		lit, err := sv.PreBDD(v, val)
		if err != nil {
			return ddkit.Edge{}, err
		}
		var errA error
		cur, errA = sv.f.Apply(ddkit.OpOr, cur, lit)
		if errA != nil {
			return ddkit.Edge{}, errA
		}
	}
	return cur, nil
}

// GetCubePre returns the set of pre-levels to existentially abstract for the
// given set of planning variables.
func (sv *SymVariables) GetCubePre(vars []int) map[int32]bool {
	out := make(map[int32]bool)
	for _, v := range vars {
		for _, l := range sv.varAt(v).preLvls {
			out[l] = true
		}
	}
	return out
}

// GetCubeEff returns the set of eff-levels to existentially abstract for the
// given set of planning variables.
func (sv *SymVariables) GetCubeEff(vars []int) map[int32]bool {
	out := make(map[int32]bool)
	for _, v := range vars {
		for _, l := range sv.varAt(v).effLvls {
			out[l] = true
		}
	}
	return out
}

// SwapPreEff returns the level-renaming mapping (pre->eff and eff->pre) for
// exactly the given planning variables, the permutation a transition
// relation's image/preimage swap needs.
func (sv *SymVariables) SwapPreEff(vars []int) map[int32]int32 {
	out := make(map[int32]int32)
	for _, v := range vars {
		vb := sv.varAt(v)
		for i := 0; i < vb.bits; i++ {
			out[vb.preLvls[i]] = vb.effLvls[i]
			out[vb.effLvls[i]] = vb.preLvls[i]
		}
	}
	return out
}

// HasAuxVariablesInSupport reports whether any auxiliary level appears
// below bdd's top level — a cheap syntactic over-approximation (true
// whenever the forest has any auxiliary levels at all and bdd is not a
// terminal), since ddkit does not expose a per-node support set. NumStates
// callers should existentially abstract auxiliary levels unconditionally
// rather than relying on this to skip the abstraction.
func (sv *SymVariables) HasAuxVariablesInSupport(e ddkit.Edge) bool {
	return len(sv.auxLvls) > 0 && e.Level() > 0
}

// NumStates estimates |minterms(bdd)| / 2^(#aux): callers must have already
// existentially abstracted auxiliary variables from bdd (HasAuxVariablesInSupport
// is a hint, not a substitute). We approximate minterm counting with a
// per-level doubling walk over the forest rather than ddkit's (absent)
// Satcount, since the forest only tracks structural node counts. The walk
// counts only over the pre-variable and auxiliary dimension (countRank):
// eff levels never appear in a state/frontier/closed BDD's support, and
// counting over them too would inflate every result by a spurious
// 2^(#eff bits) factor on top of the aux factor this divides back out.
func (sv *SymVariables) NumStates(e ddkit.Edge) float64 {
	raw := satcount(sv.f, e.Handle(), 1, sv.countDim, sv.countRank)
	if n := len(sv.auxLvls); n > 0 {
		raw /= pow2(int32(n))
	}
	return raw
}

// satcount walks h, scaling by 2 for every ranked level skipped between a
// node and its parent (fully-reduced BDD semantics). A node whose raw level
// has no rank (an eff level, reached only if a caller passes a BDD that
// still carries eff support) contributes no scaling of its own; its
// children are walked against the same topRank so skipped ranked levels
// further down are still counted correctly.
func satcount(f *ddkit.Forest, h int, scale float64, topRank int, rank map[int32]int) float64 {
	if h == 0 {
		return 0
	}
	if h == 1 {
		return scale * pow2(int32(topRank))
	}
	lvl := f.LevelOf(h)
	lo, hi := f.RawChildren(h)
	r, ok := rank[lvl]
	if !ok {
		return satcount(f, lo, scale, topRank, rank) + satcount(f, hi, scale, topRank, rank)
	}
	below := topRank - r
	return satcount(f, lo, scale*pow2(int32(below)), r-1, rank) + satcount(f, hi, scale*pow2(int32(below)), r-1, rank)
}

func pow2(n int32) float64 {
	if n <= 0 {
		return 1
	}
	r := 1.0
	for i := int32(0); i < n; i++ {
		r *= 2
	}
	return r
}
