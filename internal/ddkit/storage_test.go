// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

import "testing"

func TestClassicStorageRoundTrip(t *testing.T) {
	s := NewClassicStorage()
	u := &UnpackedNode{Level: 3, Size: 2, Down: []int{0, 1}}
	addr, err := s.MakeNode(u, BestFit)
	if err != nil {
		t.Fatalf("make_node: %v", err)
	}
	got := s.FillUnpacked(addr, AsFull)
	if got.Level != 3 || len(got.Down) != 2 || got.Down[0] != 0 || got.Down[1] != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestClassicStorageRecycleReusesAddress(t *testing.T) {
	s := NewClassicStorage()
	u := &UnpackedNode{Level: 1, Size: 2, Down: []int{0, 1}}
	a, _ := s.MakeNode(u, BestFit)
	s.Recycle(a)
	b, _ := s.MakeNode(u, BestFit)
	if a != b {
		t.Fatalf("expected recycled classic slot to be reused, got %d want %d", b, a)
	}
}

func TestCompactStoragePackWidthSelection(t *testing.T) {
	s := NewCompactStorage(HoleArrayOfLists, false)
	// A down pointer of 1000 needs 2 bytes signed; an index of 200 needs 1
	// byte unsigned. This is the scenario F boundary: pb=2, ib=1.
	u := &UnpackedNode{Level: 5, Size: 256, Sparse: true, Index: []int{200}, Down: []int{1000}}
	addr, err := s.MakeNode(u, BestFit)
	if err != nil {
		t.Fatalf("make_node: %v", err)
	}
	h := s.handles[addr]
	if h.pb != 2 {
		t.Fatalf("expected pb=2 for down pointer 1000, got %d", h.pb)
	}
	if h.ib != 1 {
		t.Fatalf("expected ib=1 for index 200, got %d", h.ib)
	}
	got := s.FillUnpacked(addr, AsStored)
	if got.Level != 5 || got.Down[0] != 1000 || got.Index[0] != 200 {
		t.Fatalf("round trip mismatch after packing: %+v", got)
	}
}

func TestCompactStoragePackWidthSelectionTenChildrenBoundary(t *testing.T) {
	s := NewCompactStorage(HoleArrayOfLists, false)
	// A node at level 4 with 10 present children out of a 200-value domain:
	// indices 0..9 fit in 1 byte, and the largest down pointer (1000) needs
	// 2 bytes. Compact storage must choose pb=2, ib=1.
	down := []int{10, 20, 30, 40, 1000, 60, 70, 80, 90, 100}
	index := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	u := &UnpackedNode{Level: 4, Size: 200, Sparse: true, Index: index, Down: down}
	addr, err := s.MakeNode(u, BestFit)
	if err != nil {
		t.Fatalf("make_node: %v", err)
	}
	h := s.handles[addr]
	if h.pb != 2 {
		t.Fatalf("expected pb=2 for a 10-child node with max down pointer 1000, got %d", h.pb)
	}
	if h.ib != 1 {
		t.Fatalf("expected ib=1 for indices 0..9, got %d", h.ib)
	}
	got := s.FillUnpacked(addr, AsStored)
	if got.Level != 4 || len(got.Down) != 10 {
		t.Fatalf("round trip mismatch after packing: %+v", got)
	}
	for i := range down {
		if got.Down[i] != down[i] || got.Index[i] != index[i] {
			t.Fatalf("round trip mismatch at entry %d: got down=%d index=%d, want down=%d index=%d", i, got.Down[i], got.Index[i], down[i], index[i])
		}
	}
}

func TestCompactStorageNegativePointerSignExtends(t *testing.T) {
	s := NewCompactStorage(HoleArrayOfLists, false)
	u := &UnpackedNode{Level: 1, Size: 2, Down: []int{0, -1}}
	addr, err := s.MakeNode(u, FullOnly)
	if err != nil {
		t.Fatalf("make_node: %v", err)
	}
	got := s.FillUnpacked(addr, AsFull)
	if got.Down[1] != -1 {
		t.Fatalf("expected sign-extended -1, got %d", got.Down[1])
	}
}

func TestCompactStorageRecycleFreesChunk(t *testing.T) {
	s := NewCompactStorage(HoleArrayOfLists, false)
	u := &UnpackedNode{Level: 1, Size: 2, Down: []int{0, 1}}
	addr, _ := s.MakeNode(u, FullOnly)
	before := s.Stats()
	s.Recycle(addr)
	after := s.Stats()
	if after.Used != before.Used-1 {
		t.Fatalf("expected recycle to reduce used-node count by 1, got before=%d after=%d", before.Used, after.Used)
	}
}
