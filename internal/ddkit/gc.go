// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

// gc.go adapts hkernel.go's gbc/markrec/unmarkall mark-sweep to the forest's
// two GC policies: OPTIMISTIC reclaims a node the instant its
// external and internal reference counts both read zero (delRef does this
// inline, see forest.go); PESSIMISTIC instead lets such nodes go "zombie"
// until an explicit RunGC sweep, so that an operation cache hit naming a
// recycled handle can never be served by coincidence.

// gcStats tracks collector activity for diagnostics and the metrics layer.
type gcStats struct {
	Runs       int
	Reclaimed  int
	Zombies    int
	Compactions int
}

// needsGC reports whether the forest's free-space ratio has fallen below
// its configured threshold, the same trigger hudd.go's makenode checks
// before calling gbc.
func (f *Forest) needsGC() bool {
	if f.cfg.gcPolicy != GCPessimistic {
		return false // optimistic: reclamation is immediate, no sweep needed
	}
	st := f.storage.Stats()
	if st.Allocated == 0 {
		return false
	}
	freePct := 100 * st.Free / st.Allocated
	return freePct < f.cfg.minfreenodes
}

// RunGC sweeps zombie nodes (pessimistic policy) or simply reports current
// occupancy (optimistic policy, where there is nothing left to sweep).
// Nodes with refcnt == 0 and incnt == 0 are reclaimed; the operation cache is
// invalidated for any entry whose result handle was reclaimed, since a stale
// hit would resurrect a dangling reference.
func (f *Forest) RunGC() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gc.Runs++

	reclaimable := make([]int, 0)
	for addr, rc := range f.refcnt {
		if addr <= 1 {
			continue
		}
		if rc == 0 && f.incnt[addr] == 0 {
			reclaimable = append(reclaimable, addr)
		}
	}
	dead := make(map[int]bool, len(reclaimable))
	for _, addr := range reclaimable {
		f.reclaimLocked(addr, dead)
	}
	f.gc.Zombies = 0
	for addr, rc := range f.refcnt {
		if addr > 1 && rc == 0 {
			f.gc.Zombies++
		}
	}
	if len(dead) > 0 {
		f.ops.invalidate(dead)
	}
}

// reclaim acquires the lock and delegates to reclaimLocked; used from delRef
// under the optimistic policy, where the lock is already held by the caller
// and we must not re-lock. The op cache is purged for every handle this call
// reclaims (including cascades) so a stale Apply/Ite/... hit can never name a
// storage slot that gets recycled for something else.
func (f *Forest) reclaim(addr int) {
	dead := make(map[int]bool, 1)
	f.reclaimLocked(addr, dead)
	if len(dead) > 0 {
		f.ops.invalidate(dead)
	}
}

// reclaimLocked physically frees addr's storage and drops the child
// in-counts it was holding, cascading to any child that becomes collectable
// as a result (optimistic policy only; pessimistic defers cascades to the
// next RunGC so concurrent readers never observe a half-swept generation).
// Every reclaimed handle is recorded in dead so the caller can invalidate the
// op cache before the freed slot is handed back out by a later MakeNode.
func (f *Forest) reclaimLocked(addr int, dead map[int]bool) {
	if addr <= 1 {
		return
	}
	u := f.storage.FillUnpacked(addr, AsStored)
	f.removeFromUnique(addr, u)
	f.storage.Recycle(addr)
	delete(f.refcnt, addr)
	delete(f.incnt, addr)
	f.gc.Reclaimed++
	dead[addr] = true

	for _, down := range u.Down {
		if down <= 1 {
			continue
		}
		if f.incnt[down] > 0 {
			f.incnt[down]--
		}
		if f.cfg.gcPolicy == GCOptimistic && f.incnt[down] == 0 && f.refcnt[down] == 0 {
			f.reclaimLocked(down, dead)
		}
	}
}

func (f *Forest) removeFromUnique(addr int, u *UnpackedNode) {
	h := u.Hash()
	list := f.unique[h]
	for i, cand := range list {
		if cand == addr {
			f.unique[h] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(f.unique[h]) == 0 {
		delete(f.unique, h)
	}
}

// Compact rebuilds the forest's storage and unique table from scratch,
// keeping only the currently live nodes, so that freelist/hole fragmentation
// left behind by RunGC is actually reclaimed rather than merely tracked.
// Children are rebuilt before their parents (a plain recursive walk, memoized
// by old address) so the DAG structure survives renumbering even when the
// freelist has handed small addresses to nodes created after their children.
func (f *Forest) Compact() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var fresh NodeStorage
	switch f.cfg.storage {
	case StorageCompact:
		fresh = NewCompactStorage(f.cfg.holes, f.cfg.labeling != MultiTerminal)
	default:
		fresh = NewClassicStorage()
	}

	memo := make(map[int]int, len(f.unique))
	newUnique := make(map[uint32][]int, len(f.unique))

	var rebuild func(old int) int
	rebuild = func(old int) int {
		if old <= 1 || old < 0 {
			return old // terminals pass through unchanged
		}
		if na, ok := memo[old]; ok {
			return na
		}
		u := f.storage.FillUnpacked(old, AsStored)
		down := make([]int, len(u.Down))
		for i, d := range u.Down {
			down[i] = rebuild(d)
		}
		u2 := *u
		u2.Down = down
		na, err := fresh.MakeNode(&u2, BestFit)
		if err != nil {
			// Leave this node (and anything reachable only through it)
			// unrenumbered; the forest keeps working off the old storage.
			return old
		}
		memo[old] = na
		h := u2.Hash()
		newUnique[h] = append(newUnique[h], na)
		return na
	}

	for _, addr := range f.storage.LiveAddrs() {
		rebuild(addr)
	}

	if len(memo) == 0 {
		f.gc.Compactions++
		return
	}

	remapCount := func(m map[int]int32) map[int]int32 {
		out := make(map[int]int32, len(m))
		for addr, v := range m {
			if na, ok := memo[addr]; ok {
				out[na] = v
			} else {
				out[addr] = v
			}
		}
		return out
	}

	f.storage = fresh
	f.unique = newUnique
	f.refcnt = remapCount(f.refcnt)
	f.incnt = remapCount(f.incnt)
	f.gc.Compactions++
}
