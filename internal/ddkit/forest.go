// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

import "sync"

// Forest is the C3 unique table: it owns one NodeStorage, hash-conses every
// node shape built against it through create_reduced_node, and drives
// garbage collection and reordering. It generalizes dalzilio/rudd's tables
// struct (itself a single unique map[[huddsize]byte]int keyed node table) to
// multiple reduction rules, ranges and edge labelings.
type Forest struct {
	mu sync.Mutex

	cfg     *configs
	storage NodeStorage

	unique map[uint32][]int // hash -> candidate handles, verified by equalUnpacked
	refcnt map[int]int32    // external reference counts, saturating at _MAXREFCOUNT
	incnt  map[int]int32    // internal (child-edge) reference counts, used by GC mark

	terminals    map[float64]int // canonical terminal value -> handle (negative, see terminal.go)
	terminalVals []float64

	levelVars int // number of planning-variable levels (excludes terminals)

	ops *opCache
	gc  gcStats

	produced int
}

// NewForest creates a forest over varnum levels (auto/effect/primed pairs are
// the caller's concern; the Forest only knows about levels 1..varnum).
func NewForest(varnum int, opts ...Option) (*Forest, error) {
	if varnum < 0 {
		return nil, newError(ErrInvalidArgument, "forest: negative varnum %d", varnum)
	}
	cfg := makeConfigs(varnum)
	for _, o := range opts {
		o(cfg)
	}
	if cfg.reduction == Identity && !cfg.relational {
		return nil, newError(ErrInvalidPolicy, "forest: identity reduction requires a relational forest (WithRelational(true))")
	}
	var storage NodeStorage
	switch cfg.storage {
	case StorageCompact:
		storage = NewCompactStorage(cfg.holes, cfg.labeling != MultiTerminal)
	default:
		storage = NewClassicStorage()
	}
	f := &Forest{
		cfg:       cfg,
		storage:   storage,
		unique:    make(map[uint32][]int),
		refcnt:    make(map[int]int32),
		incnt:     make(map[int]int32),
		terminals: make(map[float64]int),
		levelVars: varnum,
		ops:       newOpCache(cfg.cachesize),
	}
	f.refcnt[0] = _MAXREFCOUNT
	f.refcnt[1] = _MAXREFCOUNT
	return f, nil
}

// Varnum returns the number of planning-variable levels in the forest.
func (f *Forest) Varnum() int { return f.levelVars }

// False returns the zero (bottom) terminal edge.
func (f *Forest) False() Edge { return newEdge(f, 0) }

// True returns the one (top) terminal edge.
func (f *Forest) True() Edge { return newEdge(f, 1) }

// levelOf reports the level stored at a raw handle, 0 for any terminal
// (boolean handles 0/1, or a negative encoded numeric terminal).
func (f *Forest) levelOf(handle int) int32 {
	if handle == 0 || handle == 1 || handle < 0 {
		return 0
	}
	return f.storage.Level(handle)
}

// LevelOf exposes levelOf to other packages (symvars' minterm-counting walk
// needs raw-handle level lookups that Edge.Level alone can't give it, since
// it must recurse below the edges it already holds).
func (f *Forest) LevelOf(handle int) int32 { return f.levelOf(handle) }

// RawChildren exposes children to other packages, for the same reason as
// LevelOf.
func (f *Forest) RawChildren(handle int) (lo, hi int) { return f.children(handle) }

// addRef/delRef track external references (Edge lifetimes); the underlying
// node is only eligible for GC once both refcnt and incnt read zero, matching
// the pessimistic policy, or immediately under the optimistic policy when
// incnt alone drops to zero.
func (f *Forest) addRef(handle int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if handle < 0 {
		return // terminal constants, not refcounted
	}
	if f.refcnt[handle] < _MAXREFCOUNT {
		f.refcnt[handle]++
	}
}

func (f *Forest) delRef(handle int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if handle < 0 || handle <= 1 {
		return
	}
	if f.refcnt[handle] > 0 {
		f.refcnt[handle]--
	}
	if f.refcnt[handle] == 0 && f.cfg.gcPolicy == GCOptimistic && f.incnt[handle] == 0 {
		f.reclaim(handle)
	}
}

// Terminal returns the canonical edge for a numeric terminal value,
// hash-consing it the same way CreateReducedNode hash-conses internal
// nodes. Boolean forests should use True/False instead.
func (f *Forest) Terminal(val float64) Edge {
	f.mu.Lock()
	if h, ok := f.terminals[val]; ok {
		f.mu.Unlock()
		return newEdge(f, h)
	}
	id := len(f.terminalVals)
	f.terminalVals = append(f.terminalVals, val)
	handle := -(id + 1)
	f.terminals[val] = handle
	f.mu.Unlock()
	return newEdge(f, handle)
}

// TerminalValue returns the numeric value a negative (terminal) handle
// encodes; ok is false for internal nodes or the boolean 0/1 handles.
func (f *Forest) TerminalValue(handle int) (float64, bool) {
	if handle >= 0 {
		return 0, false
	}
	id := -handle - 1
	if id < 0 || id >= len(f.terminalVals) {
		return 0, false
	}
	return f.terminalVals[id], true
}

// CreateReducedNode canonicalizes u against the forest's reduction rule and
// returns a reference-counted edge to the (possibly pre-existing) result.
// It is the generalization of dalzilio/rudd's makenode: an identity check
// first (under the Identity rule, a single-entry node whose lone index
// matches identityIndex collapses to that child directly), then a
// redundant-node check (every rule but User), then a unique-table lookup,
// and only on a miss a new physical node.
func (f *Forest) CreateReducedNode(u *UnpackedNode, flags NodeFlags) (Edge, error) {
	if u.Level <= 0 || int(u.Level) > f.levelVars {
		return Edge{}, newError(ErrInvalidLevel, "create_reduced_node: level %d out of range [1,%d]", u.Level, f.levelVars)
	}
	if f.cfg.reduction == Identity {
		if idx, down, ok := getSingletonIndex(u); ok && idx == identityIndex {
			return newEdge(f, down), nil
		}
	}
	if f.cfg.reduction != User {
		if down, ok := allChildrenEqual(u); ok {
			return newEdge(f, down), nil
		}
	}

	h := u.Hash()
	f.mu.Lock()
	for _, cand := range f.unique[h] {
		if f.equalStored(cand, u) {
			f.mu.Unlock()
			return newEdge(f, cand), nil
		}
	}
	f.mu.Unlock()

	if f.needsGC() {
		f.RunGC()
	}

	addr, err := f.storage.MakeNode(u, flags)
	if err != nil {
		return Edge{}, err
	}
	f.mu.Lock()
	f.unique[h] = append(f.unique[h], addr)
	f.produced++
	f.mu.Unlock()

	f.bumpIncounts(u)
	return newEdge(f, addr), nil
}

// allChildrenEqual reports whether every declared domain value of u routes
// to the same child (a redundant node under the Fully/Identity/Quasi
// reduction rules), returning that child when so. A sparse node can only
// satisfy this when its domain has a single value and it is present.
func allChildrenEqual(u *UnpackedNode) (int, bool) {
	if u.Sparse {
		if u.Size != 1 || len(u.Index) != 1 || u.Index[0] != 0 {
			return 0, false
		}
		return u.Down[0], true
	}
	if len(u.Down) == 0 {
		return 0, false
	}
	first := u.Down[0]
	for _, d := range u.Down[1:] {
		if d != first {
			return 0, false
		}
	}
	return first, true
}

func (f *Forest) equalStored(addr int, u *UnpackedNode) bool {
	stored := f.storage.FillUnpacked(addr, AsStored)
	return equalUnpacked(stored, u)
}

func (f *Forest) bumpIncounts(u *UnpackedNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, down := range u.Down {
		if down > 1 {
			f.incnt[down]++
		}
	}
}

// Produced returns the lifetime count of distinct nodes created.
func (f *Forest) Produced() int { return f.produced }

// Stats reports storage occupancy and cache behavior for diagnostics.
func (f *Forest) Stats() ForestStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ForestStats{
		Storage:  f.storage.Stats(),
		Produced: f.produced,
		GC:       f.gc,
		Cache:    f.ops.stats(),
	}
}

// ForestStats aggregates the diagnostics exposed by Forest.Stats, consumed
// by the metrics layer.
type ForestStats struct {
	Storage  StorageStats
	Produced int
	GC       gcStats
	Cache    opCacheStats
}
