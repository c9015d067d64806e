// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

// NodeStorage is the C2 contract: turn an UnpackedNode into a stored,
// addressable node and back. A Forest owns exactly one NodeStorage and
// consults it only after the unique table has confirmed the shape is new;
// storage itself never deduplicates.
type NodeStorage interface {
	// MakeNode stores u and returns its address. Callers that want
	// fully-reduced semantics should check getSingletonIndex themselves first
	// (create_reduced_node's job, not storage's).
	MakeNode(u *UnpackedNode, flags NodeFlags) (int, error)
	// FillUnpacked inflates the node at addr back into an UnpackedNode, in
	// the requested style.
	FillUnpacked(addr int, style FillStyle) *UnpackedNode
	// Level returns the level stored at addr without a full unpack.
	Level(addr int) int32
	// Recycle marks addr's storage reusable.
	Recycle(addr int)
	// LiveAddrs returns every address currently holding a node, in no
	// particular order; used by Forest.Compact to enumerate what must survive
	// a rebuild.
	LiveAddrs() []int
	// Stats reports allocator occupancy, for diagnostics and tests.
	Stats() StorageStats
}

// StorageStats summarizes a NodeStorage's backing-array occupancy.
type StorageStats struct {
	Kind       StorageKind
	Used       int // slots/nodes actually holding live data
	Free       int // slots/nodes recycled and available for reuse
	Allocated  int // total backing-array length
	Compactions int
}

// -----------------------------------------------------------------------
// ClassicStorage: one fixed-shape record per node, addressed by slice index,
// grounded on hudd.go's tables{nodes []huddnode} plus hkernel.go's
// setnode/delnode freelist discipline (a deleted node's Down[0] becomes the
// next pointer in the freelist, mirroring huddnode.low/high reuse).
// -----------------------------------------------------------------------

type classicNode struct {
	level  int32
	sparse bool
	index  []int   // sparse only
	down   []int   // full: dense, size Size; sparse: parallel to index
	edge   []int32 // optional, parallel to down
	free   bool
	next   int // freelist link when free
}

// ClassicStorage stores every node as a full Go record in a growable slice;
// addresses are slice indices, stable for the node's lifetime.
type ClassicStorage struct {
	nodes   []classicNode
	freeHd  int // head of freelist, or -1
	freeLen int
}

// NewClassicStorage creates an empty classic node table. Addresses 0 and 1
// are reserved by the Forest for the terminal handles and are never handed
// out by MakeNode.
func NewClassicStorage() *ClassicStorage {
	return &ClassicStorage{
		nodes:  make([]classicNode, 2),
		freeHd: -1,
	}
}

func (s *ClassicStorage) MakeNode(u *UnpackedNode, flags NodeFlags) (int, error) {
	rec := classicNode{level: u.Level}
	switch flags {
	case FullOnly:
		rec.down = append([]int(nil), toFull(u).Down...)
		if u.Edge != nil {
			rec.edge = append([]int32(nil), toFull(u).Edge...)
		}
	case SparseOnly:
		sp := toSparse(u)
		rec.sparse = true
		rec.index = append([]int(nil), sp.Index...)
		rec.down = append([]int(nil), sp.Down...)
		if u.Edge != nil {
			rec.edge = append([]int32(nil), sp.Edge...)
		}
	default: // BestFit
		if u.Sparse {
			if 2*len(u.Index) <= u.Size {
				rec.sparse = true
				rec.index = append([]int(nil), u.Index...)
				rec.down = append([]int(nil), u.Down...)
				if u.Edge != nil {
					rec.edge = append([]int32(nil), u.Edge...)
				}
			} else {
				full := toFull(u)
				rec.down = append([]int(nil), full.Down...)
				if u.Edge != nil {
					rec.edge = append([]int32(nil), full.Edge...)
				}
			}
		} else {
			nz := nonzeroCount(u.Down)
			if 2*nz <= u.Size {
				sp := toSparse(u)
				rec.sparse = true
				rec.index = append([]int(nil), sp.Index...)
				rec.down = append([]int(nil), sp.Down...)
				if u.Edge != nil {
					rec.edge = append([]int32(nil), sp.Edge...)
				}
			} else {
				rec.down = append([]int(nil), u.Down...)
				if u.Edge != nil {
					rec.edge = append([]int32(nil), u.Edge...)
				}
			}
		}
	}

	if s.freeHd != -1 {
		addr := s.freeHd
		s.freeHd = s.nodes[addr].next
		s.freeLen--
		rec.free = false
		s.nodes[addr] = rec
		return addr, nil
	}
	addr := len(s.nodes)
	s.nodes = append(s.nodes, rec)
	return addr, nil
}

func (s *ClassicStorage) FillUnpacked(addr int, style FillStyle) *UnpackedNode {
	rec := s.nodes[addr]
	size := 0
	if rec.sparse {
		for _, idx := range rec.index {
			if idx+1 > size {
				size = idx + 1
			}
		}
	} else {
		size = len(rec.down)
	}
	u := &UnpackedNode{Level: rec.level, Size: size, Sparse: rec.sparse}
	u.Down = append([]int(nil), rec.down...)
	if rec.sparse {
		u.Index = append([]int(nil), rec.index...)
	}
	if rec.edge != nil {
		u.Edge = append([]int32(nil), rec.edge...)
	}
	switch style {
	case AsFull:
		return toFull(u)
	case AsSparse:
		return toSparse(u)
	default:
		return u
	}
}

func (s *ClassicStorage) Level(addr int) int32 { return s.nodes[addr].level }

func (s *ClassicStorage) Recycle(addr int) {
	s.nodes[addr] = classicNode{free: true, next: s.freeHd}
	s.freeHd = addr
	s.freeLen++
}

func (s *ClassicStorage) LiveAddrs() []int {
	addrs := make([]int, 0, len(s.nodes)-s.freeLen)
	for addr := 2; addr < len(s.nodes); addr++ {
		if !s.nodes[addr].free {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func (s *ClassicStorage) Stats() StorageStats {
	return StorageStats{
		Kind:      StorageClassic,
		Used:      len(s.nodes) - s.freeLen,
		Free:      s.freeLen,
		Allocated: len(s.nodes),
	}
}

// -----------------------------------------------------------------------
// CompactStorage: a flat, byte-addressable []int32 arena managed by a C1
// hole manager, with one node's fields packed into the minimal number of
// bytes their values require (pb for down pointers, ib for sparse indices),
// using a byte-packed chunk layout. Layout, low to high byte offset within a
// chunk:
//
//	[0:4)   in-count (unhashed header, always 4 bytes)
//	[4:8)   next-in-unique-table-chain (unhashed header, always 4 bytes)
//	[8:12)  level (hashed header, always 4 bytes, sign included)
//	[12:..) nEntries * pb bytes of down pointers
//	[..:..) sparse only: nEntries * ib bytes of indices
//	[..:..) edge-valued only: nEntries * 4 bytes of edge values
//	[..:..) tail: chunk size in slots (always 4 bytes, also the hole trailer
//	        position once the node is recycled)
// -----------------------------------------------------------------------

const (
	compactHeaderBytes = 12 // in-count + next + level
	compactTailBytes   = 4
)

type compactHandle struct {
	pb, ib int // byte widths actually used, kept for FillUnpacked/stats
}

// CompactStorage packs nodes byte-tight into a []int32 arena, delegating
// free-space bookkeeping to a pluggable C1 hole manager.
type CompactStorage struct {
	words   []int32
	holes   holeManager
	handles map[int]compactHandle
	shapes  map[int]shapeInfo
	edged   bool // whether this storage carries an Edge column
}

// NewCompactStorage creates an empty compact node arena using the given hole
// strategy.
func NewCompactStorage(strategy HoleStrategy, edged bool) *CompactStorage {
	return &CompactStorage{
		words:   make([]int32, 2),
		holes:   newHoleManager(strategy),
		handles: make(map[int]compactHandle),
		shapes:  make(map[int]shapeInfo),
		edged:   edged,
	}
}

// compactChunkWords computes the number of int32 slots a node with the given
// shape and pack widths needs, per the chunk layout above.
func compactChunkWords(entries int, pb, ib int, sparse, edged bool) int {
	total := compactHeaderBytes
	total += entries * pb
	if sparse {
		total += entries * ib
	}
	if edged {
		total += entries * 4
	}
	total += compactTailBytes
	return bytesToWords(total)
}

func (s *CompactStorage) MakeNode(u *UnpackedNode, flags NodeFlags) (int, error) {
	sparse := u.Sparse
	if flags == FullOnly {
		u = toFull(u)
		sparse = false
	} else if flags == SparseOnly {
		u = toSparse(u)
		sparse = true
	} else if !u.Sparse {
		nz := nonzeroCount(u.Down)
		if 2*nz <= u.Size {
			u = toSparse(u)
			sparse = true
		}
	} else if 2*len(u.Index) > u.Size {
		u = toFull(u)
		sparse = false
	}

	entries := len(u.Down)
	pb := 1
	ib := 1
	for _, d := range u.Down {
		if w := minBytesSigned(int64(d)); w > pb {
			pb = w
		}
	}
	if sparse {
		for _, idx := range u.Index {
			if w := minBytesUnsigned(uint64(idx)); w > ib {
				ib = w
			}
		}
	}

	nwords := compactChunkWords(entries, pb, ib, sparse, s.edged)
	addr, err := s.holes.requestChunk(&s.words, nwords)
	if err != nil {
		return 0, wrapError(ErrInsufficientMemory, err, "compact storage: requesting %d-word chunk", nwords)
	}

	byteOf := addr * 4
	writeLE(s.words, byteOf, 4, 0)          // in-count, owned by the forest's unique table
	writeLE(s.words, byteOf+4, 4, -1)       // next-in-chain, owned by the forest's unique table
	writeLE(s.words, byteOf+8, 4, int64(u.Level))
	off := byteOf + compactHeaderBytes
	for _, d := range u.Down {
		writeLE(s.words, off, pb, int64(d))
		off += pb
	}
	if sparse {
		for _, idx := range u.Index {
			writeLE(s.words, off, ib, int64(idx))
			off += ib
		}
	}
	if s.edged {
		for _, e := range u.Edge {
			writeLE(s.words, off, 4, int64(e))
			off += 4
		}
	}
	writeLE(s.words, byteOf+nwords*4-compactTailBytes, 4, int64(nwords))

	s.handles[addr] = compactHandle{pb: pb, ib: ib}
	s.storeShape(addr, entries, sparse)
	return addr, nil
}

// shapeBits packs (entries, sparse) compactly alongside the handle map so
// FillUnpacked can reconstruct a node without re-scanning the arena.
type shapeInfo struct {
	entries int
	sparse  bool
}

func (s *CompactStorage) storeShape(addr, entries int, sparse bool) {
	s.shapes[addr] = shapeInfo{entries: entries, sparse: sparse}
}

func (s *CompactStorage) FillUnpacked(addr int, style FillStyle) *UnpackedNode {
	h := s.handles[addr]
	shape := s.shapes[addr]
	byteOf := addr * 4
	level := int32(readLE(s.words, byteOf+8, 4, true))
	off := byteOf + compactHeaderBytes
	u := &UnpackedNode{Level: level, Sparse: shape.sparse}
	down := make([]int, shape.entries)
	for i := range down {
		down[i] = int(readLE(s.words, off, h.pb, true))
		off += h.pb
	}
	var index []int
	if shape.sparse {
		index = make([]int, shape.entries)
		for i := range index {
			index[i] = int(readLE(s.words, off, h.ib, false))
			off += h.ib
		}
	}
	var edge []int32
	if s.edged {
		edge = make([]int32, shape.entries)
		for i := range edge {
			edge[i] = int32(readLE(s.words, off, 4, true))
			off += 4
		}
	}
	u.Down = down
	u.Index = index
	u.Edge = edge
	if shape.sparse {
		size := 0
		for _, idx := range index {
			if idx+1 > size {
				size = idx + 1
			}
		}
		u.Size = size
	} else {
		u.Size = len(down)
	}
	switch style {
	case AsFull:
		return toFull(u)
	case AsSparse:
		return toSparse(u)
	default:
		return u
	}
}

func (s *CompactStorage) Level(addr int) int32 {
	return int32(readLE(s.words, addr*4+8, 4, true))
}

func (s *CompactStorage) Recycle(addr int) {
	n := s.chunkWords(addr)
	s.holes.recycleChunk(&s.words, addr, n)
	delete(s.handles, addr)
	delete(s.shapes, addr)
}

// chunkWords recomputes a stored node's slot length from its recorded shape
// and pack widths (the same formula MakeNode used to size the request).
func (s *CompactStorage) chunkWords(addr int) int {
	shape := s.shapes[addr]
	h := s.handles[addr]
	return compactChunkWords(shape.entries, h.pb, h.ib, shape.sparse, s.edged)
}

func (s *CompactStorage) LiveAddrs() []int {
	addrs := make([]int, 0, len(s.handles))
	for addr := range s.handles {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (s *CompactStorage) Stats() StorageStats {
	used := 0
	for range s.handles {
		used++
	}
	return StorageStats{
		Kind:      StorageCompact,
		Used:      used,
		Allocated: len(s.words),
	}
}
