// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

// operations.go adapts dalzilio/rudd's hoperations.go (Apply/Ite/Exist/
// AppEx/Replace/Not, all recursive-with-cache over low/high children) to
// the Forest/Edge types, and adds the ADD-arithmetic fold state-dependent
// cost expressions need, which dalzilio/rudd's boolean-only design has no
// equivalent of.

// children returns the low (index 0) and high (index 1) handles of a node,
// or (handle, handle) for any terminal, so callers never need a separate
// terminal branch before recursing.
func (f *Forest) children(handle int) (lo, hi int) {
	if handle == 0 || handle == 1 || handle < 0 {
		return handle, handle
	}
	u := f.storage.FillUnpacked(handle, AsFull)
	if len(u.Down) < 2 {
		return 0, 0
	}
	return u.Down[0], u.Down[1]
}

func isBoolTerminal(h int) bool { return h == 0 || h == 1 }

func boolOf(h int) bool { return h == 1 }

func topLevel(f *Forest, ha, hb int) int32 {
	la, lb := f.levelOf(ha), f.levelOf(hb)
	if la > lb {
		return la
	}
	return lb
}

// Not returns the boolean complement of a, an AppEx-free special case kept
// separate because it never needs the operation cache's operand-b slot.
func (f *Forest) Not(a Edge) (Edge, error) {
	if a.Forest() != f {
		return Edge{}, newError(ErrForestMismatch, "not: edge belongs to a different forest")
	}
	h, err := f.not(a.Handle())
	if err != nil {
		return Edge{}, err
	}
	return newEdge(f, h), nil
}

func (f *Forest) not(h int) (int, error) {
	if isBoolTerminal(h) {
		if h == 0 {
			return 1, nil
		}
		return 0, nil
	}
	key := opKey{kind: opNot, a: h}
	if r, ok := f.ops.lookup(key); ok {
		return r, nil
	}
	lo, hi := f.children(h)
	nlo, err := f.not(lo)
	if err != nil {
		return 0, err
	}
	nhi, err := f.not(hi)
	if err != nil {
		return 0, err
	}
	res, err := f.rebuild(f.levelOf(h), nlo, nhi)
	if err != nil {
		return 0, err
	}
	f.ops.insert(key, res)
	return res, nil
}

// OneState returns a BDD denoting a single satisfying path of a — an
// arbitrarily chosen total assignment over a's visited levels, preferring
// the high branch at each level — the restriction internal/registry's
// simple-planning mode applies to peel one candidate state out of a
// multi-state frontier BDD before continuing the reconstruction walk.
func (f *Forest) OneState(a Edge) (Edge, error) {
	if a.Forest() != f {
		return Edge{}, newError(ErrForestMismatch, "onestate: edge belongs to a different forest")
	}
	h, err := f.oneState(a.Handle())
	if err != nil {
		return Edge{}, err
	}
	return newEdge(f, h), nil
}

func (f *Forest) oneState(h int) (int, error) {
	if h == 0 || h == 1 {
		return h, nil
	}
	lo, hi := f.children(h)
	lvl := f.levelOf(h)
	if hi != 0 {
		sub, err := f.oneState(hi)
		if err != nil {
			return 0, err
		}
		return f.rebuild(lvl, 0, sub)
	}
	sub, err := f.oneState(lo)
	if err != nil {
		return 0, err
	}
	return f.rebuild(lvl, sub, 0)
}

// rebuild is CreateReducedNode's low-level entry point for operations code,
// which already works in raw handles rather than UnpackedNode values.
func (f *Forest) rebuild(level int32, lo, hi int) (int, error) {
	u := &UnpackedNode{Level: level, Size: 2, Down: []int{lo, hi}}
	e, err := f.CreateReducedNode(u, BestFit)
	if err != nil {
		return 0, err
	}
	return e.Handle(), nil
}

// Apply combines a and b with a boolean connective, recursing top-down by
// level and memoizing in the shared operation cache.
func (f *Forest) Apply(op Operator, a, b Edge) (Edge, error) {
	if a.Forest() != f || b.Forest() != f {
		return Edge{}, newError(ErrForestMismatch, "apply: edge belongs to a different forest")
	}
	h, err := f.apply(op, a.Handle(), b.Handle())
	if err != nil {
		return Edge{}, err
	}
	return newEdge(f, h), nil
}

func (f *Forest) apply(op Operator, a, b int) (int, error) {
	if isBoolTerminal(a) && isBoolTerminal(b) {
		if applyBool(op, boolOf(a), boolOf(b)) {
			return 1, nil
		}
		return 0, nil
	}
	if isBoolTerminal(a) {
		if res, isConst, passthrough := applyBoolShortcut(op, true, boolOf(a)); isConst {
			if res {
				return 1, nil
			}
			return 0, nil
		} else if passthrough {
			return b, nil
		}
	}
	if isBoolTerminal(b) {
		if res, isConst, passthrough := applyBoolShortcut(op, true, boolOf(b)); isConst {
			if res {
				return 1, nil
			}
			return 0, nil
		} else if passthrough {
			return a, nil
		}
	}

	lo, hi := a, b
	if a > b {
		lo, hi = b, a // and/or/xor/biimp are commutative; canonicalize cache key
	}
	commutative := op == OpAnd || op == OpOr || op == OpXor || op == OpBiimp
	key := opKey{kind: opApply, op: op, a: a, b: b}
	if commutative {
		key = opKey{kind: opApply, op: op, a: lo, b: hi}
	}
	if r, ok := f.ops.lookup(key); ok {
		return r, nil
	}

	level := topLevel(f, a, b)
	var alo, ahi, blo, bhi int
	if f.levelOf(a) == level {
		alo, ahi = f.children(a)
	} else {
		alo, ahi = a, a
	}
	if f.levelOf(b) == level {
		blo, bhi = f.children(b)
	} else {
		blo, bhi = b, b
	}
	rlo, err := f.apply(op, alo, blo)
	if err != nil {
		return 0, err
	}
	rhi, err := f.apply(op, ahi, bhi)
	if err != nil {
		return 0, err
	}
	res, err := f.rebuild(level, rlo, rhi)
	if err != nil {
		return 0, err
	}
	f.ops.insert(key, res)
	return res, nil
}

// Ite implements if-then-else (a selects between b and c), the workhorse
// transition-relation and image-computation primitive.
func (f *Forest) Ite(a, b, c Edge) (Edge, error) {
	if a.Forest() != f || b.Forest() != f || c.Forest() != f {
		return Edge{}, newError(ErrForestMismatch, "ite: edge belongs to a different forest")
	}
	h, err := f.ite(a.Handle(), b.Handle(), c.Handle())
	if err != nil {
		return Edge{}, err
	}
	return newEdge(f, h), nil
}

func (f *Forest) ite(a, b, c int) (int, error) {
	if a == 1 {
		return b, nil
	}
	if a == 0 {
		return c, nil
	}
	if b == c {
		return b, nil
	}
	if b == 1 && c == 0 {
		return a, nil
	}

	key := opKey{kind: opIte, a: a, b: b, c: c}
	if r, ok := f.ops.lookup(key); ok {
		return r, nil
	}

	level := f.levelOf(a)
	if l := f.levelOf(b); l > level {
		level = l
	}
	if l := f.levelOf(c); l > level {
		level = l
	}
	split := func(h int) (int, int) {
		if f.levelOf(h) == level {
			return f.children(h)
		}
		return h, h
	}
	alo, ahi := split(a)
	blo, bhi := split(b)
	clo, chi := split(c)

	rlo, err := f.ite(alo, blo, clo)
	if err != nil {
		return 0, err
	}
	rhi, err := f.ite(ahi, bhi, chi)
	if err != nil {
		return 0, err
	}
	res, err := f.rebuild(level, rlo, rhi)
	if err != nil {
		return 0, err
	}
	f.ops.insert(key, res)
	return res, nil
}

// Exist existentially quantifies a over the given levels (the boolean
// generalization of dalzilio/rudd's Exist, which ORs a level's two children
// together once that level is reached and skipped).
func (f *Forest) Exist(a Edge, levels map[int32]bool) (Edge, error) {
	return f.AppEx(OpOr, a, a, levels)
}

// AppEx combines a and b, then existentially quantifies the combination over
// levels in a single fused traversal — the workhorse of image/preimage
// computation, where levels is the set of primed (or unprimed) variable
// levels to project away.
func (f *Forest) AppEx(op Operator, a, b Edge, levels map[int32]bool) (Edge, error) {
	if a.Forest() != f || b.Forest() != f {
		return Edge{}, newError(ErrForestMismatch, "appex: edge belongs to a different forest")
	}
	tag := quantTag(levels)
	h, err := f.appex(op, a.Handle(), b.Handle(), levels, tag)
	if err != nil {
		return Edge{}, err
	}
	return newEdge(f, h), nil
}

// quantTag derives a stable cache-key component from a level set; levels are
// always drawn from 1..varnum so a bitset fits comfortably in an int for any
// realistically sized planning task, mirroring quantcache's quantsetID.
func quantTag(levels map[int32]bool) int {
	tag := 0
	for l := range levels {
		tag |= 1 << uint(l)
	}
	return tag
}

func (f *Forest) appex(op Operator, a, b int, levels map[int32]bool, tag int) (int, error) {
	if isBoolTerminal(a) && isBoolTerminal(b) {
		if applyBool(op, boolOf(a), boolOf(b)) {
			return 1, nil
		}
		return 0, nil
	}

	key := opKey{kind: opAppEx, op: op, a: a, b: b, tag: tag}
	if r, ok := f.ops.lookup(key); ok {
		return r, nil
	}

	level := topLevel(f, a, b)
	split := func(h int) (int, int) {
		if f.levelOf(h) == level {
			return f.children(h)
		}
		return h, h
	}
	alo, ahi := split(a)
	blo, bhi := split(b)

	rlo, err := f.appex(op, alo, blo, levels, tag)
	if err != nil {
		return 0, err
	}
	rhi, err := f.appex(op, ahi, bhi, levels, tag)
	if err != nil {
		return 0, err
	}

	var res int
	if levels[level] {
		res, err = f.apply(OpOr, rlo, rhi)
	} else {
		res, err = f.rebuild(level, rlo, rhi)
	}
	if err != nil {
		return 0, err
	}
	f.ops.insert(key, res)
	return res, nil
}

// Replace renames the levels appearing in a according to mapping (e.g. the
// primed/unprimed variable swap a transition-relation image needs), rebuilt
// bottom-up so CreateReducedNode's redundancy check still applies after
// renaming collapses a former distinction.
func (f *Forest) Replace(a Edge, mapping map[int32]int32) (Edge, error) {
	if a.Forest() != f {
		return Edge{}, newError(ErrForestMismatch, "replace: edge belongs to a different forest")
	}
	tag := quantTag(mappingDomainAsLevels(mapping))
	h, err := f.replace(a.Handle(), mapping, tag)
	if err != nil {
		return Edge{}, err
	}
	return newEdge(f, h), nil
}

func mappingDomainAsLevels(mapping map[int32]int32) map[int32]bool {
	out := make(map[int32]bool, len(mapping))
	for k := range mapping {
		out[k] = true
	}
	return out
}

func (f *Forest) replace(h int, mapping map[int32]int32, tag int) (int, error) {
	if isBoolTerminal(h) || h < 0 {
		return h, nil
	}
	key := opKey{kind: opReplace, a: h, tag: tag}
	if r, ok := f.ops.lookup(key); ok {
		return r, nil
	}
	lo, hi := f.children(h)
	rlo, err := f.replace(lo, mapping, tag)
	if err != nil {
		return 0, err
	}
	rhi, err := f.replace(hi, mapping, tag)
	if err != nil {
		return 0, err
	}
	level := f.levelOf(h)
	if nl, ok := mapping[level]; ok {
		level = nl
	}
	res, err := f.rebuild(level, rlo, rhi)
	if err != nil {
		return 0, err
	}
	f.ops.insert(key, res)
	return res, nil
}

// ApplyNumeric combines two ADD-style edges with an arbitrary arithmetic
// fold (Plus, Times, Min, Max), used by the SDAC cost-expression evaluator.
// It has no equivalent in the boolean-only teacher library: the recursion
// shape is the same as Apply, but terminal combination calls combine(x, y)
// on the forest's registered numeric terminal values instead of a fixed
// truth table.
func (f *Forest) ApplyNumeric(combine func(x, y float64) float64, a, b Edge) (Edge, error) {
	if a.Forest() != f || b.Forest() != f {
		return Edge{}, newError(ErrForestMismatch, "apply_numeric: edge belongs to a different forest")
	}
	h, err := f.applyNumeric(combine, a.Handle(), b.Handle())
	if err != nil {
		return Edge{}, err
	}
	return newEdge(f, h), nil
}

func (f *Forest) applyNumeric(combine func(x, y float64) float64, a, b int) (int, error) {
	av, aIsTerm := f.TerminalValue(a)
	bv, bIsTerm := f.TerminalValue(b)
	if aIsTerm && bIsTerm {
		return f.Terminal(combine(av, bv)).Handle(), nil
	}

	key := opKey{kind: opApply, op: Operator(-1), a: a, b: b}
	if r, ok := f.ops.lookup(key); ok {
		return r, nil
	}

	level := topLevel(f, a, b)
	split := func(h int) (int, int) {
		if f.levelOf(h) == level {
			return f.children(h)
		}
		return h, h
	}
	alo, ahi := split(a)
	blo, bhi := split(b)
	rlo, err := f.applyNumeric(combine, alo, blo)
	if err != nil {
		return 0, err
	}
	rhi, err := f.applyNumeric(combine, ahi, bhi)
	if err != nil {
		return 0, err
	}
	res, err := f.rebuild(level, rlo, rhi)
	if err != nil {
		return 0, err
	}
	f.ops.insert(key, res)
	return res, nil
}
