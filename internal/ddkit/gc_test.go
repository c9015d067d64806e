// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

import "testing"

func TestReclaimInvalidatesOpCacheAfterAddressReuse(t *testing.T) {
	f, err := NewForest(3)
	if err != nil {
		t.Fatalf("new_forest: %v", err)
	}
	x1 := mkvar(t, f, 1)
	x2 := mkvar(t, f, 2)
	x3 := mkvar(t, f, 3)

	conj, err := f.Apply(OpAnd, x1, x2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	freedAddr := conj.Handle()
	// Bypass the edge finalizer (it only fires on an actual GC cycle, which
	// this test never triggers) and drop the reference directly: under the
	// optimistic policy this reclaims freedAddr immediately.
	f.delRef(freedAddr)

	// A differently-shaped node reuses the freelist slot LIFO, landing on
	// exactly the address apply(and, x1, x2) used to occupy.
	other, err := f.Apply(OpAnd, x1, x3)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if other.Handle() != freedAddr {
		t.Skip("freelist did not reuse the freed address in this run; nothing to assert")
	}

	again, err := f.Apply(OpAnd, x1, x2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	lo, hi := f.children(again.Handle())
	if lo != 0 || f.levelOf(hi) != 2 {
		t.Fatalf("stale op-cache entry served a reclaimed address's repurposed content: got children (%d,%d)", lo, hi)
	}
}

func TestCompactRebuildsStorageAndPreservesDedup(t *testing.T) {
	f, err := NewForest(3)
	if err != nil {
		t.Fatalf("new_forest: %v", err)
	}
	x1 := mkvar(t, f, 1)
	x2 := mkvar(t, f, 2)

	conj, err := f.Apply(OpAnd, x1, x2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	f.delRef(conj.Handle())

	before := f.Stats().Storage.Used
	f.Compact()
	after := f.Stats().Storage.Used
	if after > before {
		t.Fatalf("expected compact to never grow live storage, got before=%d after=%d", before, after)
	}
	if f.Stats().GC.Compactions != 1 {
		t.Fatalf("expected one recorded compaction, got %d", f.Stats().GC.Compactions)
	}

	produced := f.Produced()
	rebuilt, err := f.Apply(OpAnd, x1, x2)
	if err != nil {
		t.Fatalf("apply after compact: %v", err)
	}
	lo, hi := f.children(rebuilt.Handle())
	if lo != 0 || f.levelOf(hi) != 2 {
		t.Fatalf("expected x1∧x2's shape to survive compaction, got children (%d,%d)", lo, hi)
	}

	again, err := f.Apply(OpAnd, x1, x2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if again.Handle() != rebuilt.Handle() {
		t.Fatalf("expected repeated apply(and) to hash-cons post-compaction")
	}
	if f.Produced() != produced+1 {
		t.Fatalf("expected exactly one new node produced rebuilding x1∧x2 after compaction, got delta %d", f.Produced()-produced)
	}
}

func TestRunGCReclaimsUnreferencedNodesUnderPessimisticPolicy(t *testing.T) {
	f, err := NewForest(3, WithGCPolicy(GCPessimistic))
	if err != nil {
		t.Fatalf("new_forest: %v", err)
	}
	x1 := mkvar(t, f, 1)
	x2 := mkvar(t, f, 2)

	conj, err := f.Apply(OpAnd, x1, x2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	f.delRef(conj.Handle())

	before := f.Stats().Storage.Used
	f.RunGC()
	after := f.Stats().Storage.Used
	if after >= before {
		t.Fatalf("expected RunGC to reclaim the dropped node, got before=%d after=%d", before, after)
	}
	if f.Stats().GC.Reclaimed == 0 {
		t.Fatalf("expected RunGC to report at least one reclaimed node")
	}
}
