// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

// _LARGEHOLE is the size threshold above which the array-of-lists and grid
// strategies stop tracking holes by exact size and fall back to a single
// linear/addressed "large" list.
const _LARGEHOLE int = 128

// holeManager is the C1 contract: a chunk allocator over a single flat
// []int32 array. A hole is a contiguous run of slots whose first and last
// entries both hold the sentinel -length; this lets chunk_after_hole find
// the following chunk without a side table, mirroring the Meddly hole
// managers this spec is modeled on.
type holeManager interface {
	// requestChunk returns the address of a contiguous region of at least n
	// slots, marked used (data[addr] == -n until the caller overwrites it).
	requestChunk(data *[]int32, n int) (int, error)
	// recycleChunk marks n slots starting at addr as a hole, merging with
	// neighbors where the strategy supports it.
	recycleChunk(data *[]int32, addr, n int)
	// chunkAfterHole reads the trailer of the hole at addr and returns the
	// address of the chunk that immediately follows it.
	chunkAfterHole(data []int32, addr int) int
	// clearHolesAndShrink forgets every tracked hole (called after a forest
	// compaction) and, if shrink is true, halves the backing array down to
	// a configured minimum.
	clearHolesAndShrink(data *[]int32, newLast int, shrink bool)
	// smallestChunk returns the minimal trackable hole size for this strategy.
	smallestChunk() int
}

const smallestTrackedChunk = 2

func isHole(data []int32, addr int) bool {
	if addr < 0 || addr >= len(data) {
		return false
	}
	n := int(data[addr])
	if n >= 0 {
		return false
	}
	length := -n
	tail := addr + length - 1
	return tail < len(data) && data[tail] == data[addr]
}

func holeLength(data []int32, addr int) int {
	return int(-data[addr])
}

func markHole(data []int32, addr, n int) {
	data[addr] = int32(-n)
	data[addr+n-1] = int32(-n)
}

// growOrAppend extends *data with n fresh slots at the end and returns the
// address of the first of them, marked as a single untracked hole owned by
// the caller.
func appendChunk(data *[]int32, n int) int {
	addr := len(*data)
	*data = append(*data, make([]int32, n)...)
	return addr
}

// -----------------------------------------------------------------------
// none: holes are never tracked; only a trailing hole touching the tail of
// the array is reclaimed, by simply truncating the backing slice.
// -----------------------------------------------------------------------

type noneHoles struct{}

func newNoneHoles() *noneHoles { return &noneHoles{} }

func (h *noneHoles) requestChunk(data *[]int32, n int) (int, error) {
	return appendChunk(data, n), nil
}

func (h *noneHoles) recycleChunk(data *[]int32, addr, n int) {
	if addr+n == len(*data) {
		*data = (*data)[:addr]
		return
	}
	markHole(*data, addr, n)
}

func (h *noneHoles) chunkAfterHole(data []int32, addr int) int {
	return addr + holeLength(data, addr)
}

func (h *noneHoles) clearHolesAndShrink(data *[]int32, newLast int, shrink bool) {
	*data = (*data)[:newLast]
	if shrink && cap(*data) > 2*len(*data) {
		shrunk := make([]int32, len(*data))
		copy(shrunk, *data)
		*data = shrunk
	}
}

func (h *noneHoles) smallestChunk() int { return smallestTrackedChunk }

// -----------------------------------------------------------------------
// array-of-lists: holes of size < _LARGEHOLE are doubly-linked in a
// per-size list (indexed by size); holes >= _LARGEHOLE share one list
// scanned linearly for first fit.
// -----------------------------------------------------------------------

// Each tracked hole stores, inside the slots between its header and
// trailer sentinels, a doubly linked list: data[addr+1] = next, data[addr+2]
// = prev (or -1 for "none"). This needs a hole of at least 4 slots to track;
// smaller holes are left untracked (merge-only).
type arrayOfListsHoles struct {
	bySize map[int]int // size -> address of first hole of that exact size, or -1
	large  int         // address of first hole with size >= _LARGEHOLE, or -1
}

func newArrayOfListsHoles() *arrayOfListsHoles {
	return &arrayOfListsHoles{bySize: make(map[int]int), large: -1}
}

const holeMinTracked = 4

func (h *arrayOfListsHoles) listHead(size int) int {
	if size >= _LARGEHOLE {
		return h.large
	}
	addr, ok := h.bySize[size]
	if !ok {
		return -1
	}
	return addr
}

func (h *arrayOfListsHoles) setListHead(size, addr int) {
	if size >= _LARGEHOLE {
		h.large = addr
		return
	}
	if addr == -1 {
		delete(h.bySize, size)
		return
	}
	h.bySize[size] = addr
}

func (h *arrayOfListsHoles) unlink(data []int32, addr, size int) {
	next := int(data[addr+1])
	prev := int(data[addr+2])
	if prev != -1 {
		data[prev+1] = int32(next)
	} else {
		h.setListHead(size, next)
	}
	if next != -1 {
		data[next+2] = int32(prev)
	}
}

func (h *arrayOfListsHoles) link(data []int32, addr, size int) {
	head := h.listHead(size)
	data[addr+1] = int32(head)
	data[addr+2] = -1
	if head != -1 {
		data[head+2] = int32(addr)
	}
	h.setListHead(size, addr)
}

func (h *arrayOfListsHoles) track(data []int32, addr, n int) {
	markHole(data, addr, n)
	if n < holeMinTracked {
		return // untracked: reclaimable only by merging with a neighbor
	}
	h.link(data, addr, n)
}

func (h *arrayOfListsHoles) requestChunk(data *[]int32, n int) (int, error) {
	if addr, ok := h.takeExact(*data, n); ok {
		return addr, nil
	}
	if addr, ok := h.takeFirstFit(*data, n); ok {
		return addr, nil
	}
	return appendChunk(data, n), nil
}

func (h *arrayOfListsHoles) takeExact(data []int32, n int) (int, bool) {
	addr := h.listHead(n)
	if addr == -1 {
		return -1, false
	}
	h.unlink(data, addr, n)
	return addr, true
}

func (h *arrayOfListsHoles) takeFirstFit(data []int32, n int) (int, bool) {
	if n >= _LARGEHOLE {
		return -1, false
	}
	addr := h.large
	for addr != -1 {
		size := holeLength(data, addr)
		next := int(data[addr+1])
		if size >= n {
			h.unlink(data, addr, size)
			h.reinsertLeftover(data, addr, size, n)
			return addr, true
		}
		addr = next
	}
	return -1, false
}

func (h *arrayOfListsHoles) reinsertLeftover(data []int32, addr, size, n int) {
	if size == n {
		return
	}
	leftover := size - n
	if leftover < h.smallestChunk() {
		// too small to track: merges back only when a neighbor recycles.
		markHole(data, addr+n, leftover)
		return
	}
	h.track(data, addr+n, leftover)
}

func (h *arrayOfListsHoles) recycleChunk(data *[]int32, addr, n int) {
	addr, n = h.mergeNeighbors(*data, addr, n)
	h.track(*data, addr, n)
}

// mergeNeighbors coalesces addr..addr+n with an adjacent hole on either
// side, unlinking it from its list first.
func (h *arrayOfListsHoles) mergeNeighbors(data []int32, addr, n int) (int, int) {
	if addr+n < len(data) && isHole(data, addr+n) {
		rsize := holeLength(data, addr+n)
		if rsize >= holeMinTracked {
			h.unlink(data, addr+n, rsize)
		}
		n += rsize
	}
	if addr > 0 {
		// find start of a potential left neighbor by checking the slot
		// immediately before addr for a trailer sentinel
		if data[addr-1] < 0 {
			lsize := -int(data[addr-1])
			laddr := addr - lsize
			if laddr >= 0 && isHole(data, laddr) {
				if lsize >= holeMinTracked {
					h.unlink(data, laddr, lsize)
				}
				addr = laddr
				n += lsize
			}
		}
	}
	return addr, n
}

func (h *arrayOfListsHoles) chunkAfterHole(data []int32, addr int) int {
	return addr + holeLength(data, addr)
}

func (h *arrayOfListsHoles) clearHolesAndShrink(data *[]int32, newLast int, shrink bool) {
	h.bySize = make(map[int]int)
	h.large = -1
	*data = (*data)[:newLast]
	if shrink && cap(*data) > 2*len(*data) {
		shrunk := make([]int32, len(*data))
		copy(shrunk, *data)
		*data = shrunk
	}
}

func (h *arrayOfListsHoles) smallestChunk() int { return holeMinTracked }

// -----------------------------------------------------------------------
// grid: a vertical list of "index holes" ordered ascending by size, each
// with a horizontal chain of equal-size non-index holes; large holes
// (>= maxRequestSeen) live in a separate address-ordered list.
// -----------------------------------------------------------------------

// We reuse the array-of-lists implementation for the grid's per-size
// buckets (a size-indexed doubly linked list is exactly a grid row) and add
// an ascending index over the sizes actually in use, so that "first fit"
// walks sizes in order instead of scanning every possible size. The
// distinction from array-of-lists is this size index, which turns first-fit
// from an O(_LARGEHOLE) scan into an O(distinct sizes) walk.
type gridHoles struct {
	inner      *arrayOfListsHoles
	sizeIndex  []int // sorted ascending, distinct hole sizes currently tracked
	maxRequest int   // sizes at or above this go through the large list directly
}

func newGridHoles() *gridHoles {
	return &gridHoles{inner: newArrayOfListsHoles(), maxRequest: _LARGEHOLE}
}

func (h *gridHoles) insertSize(n int) {
	i := searchInt(h.sizeIndex, n)
	if i < len(h.sizeIndex) && h.sizeIndex[i] == n {
		return
	}
	h.sizeIndex = append(h.sizeIndex, 0)
	copy(h.sizeIndex[i+1:], h.sizeIndex[i:])
	h.sizeIndex[i] = n
}

func (h *gridHoles) removeSizeIfEmpty(data []int32, n int) {
	if h.inner.listHead(n) != -1 {
		return
	}
	i := searchInt(h.sizeIndex, n)
	if i < len(h.sizeIndex) && h.sizeIndex[i] == n {
		h.sizeIndex = append(h.sizeIndex[:i], h.sizeIndex[i+1:]...)
	}
}

func searchInt(xs []int, v int) int {
	lo, hi := 0, len(xs)
	for lo < hi {
		mid := (lo + hi) / 2
		if xs[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (h *gridHoles) requestChunk(data *[]int32, n int) (int, error) {
	if n < h.maxRequest {
		i := searchInt(h.sizeIndex, n)
		if i < len(h.sizeIndex) {
			size := h.sizeIndex[i]
			addr, _ := h.inner.takeExact(*data, size)
			h.removeSizeIfEmpty(*data, size)
			h.inner.reinsertLeftover(*data, addr, size, n)
			if leftover := size - n; leftover >= h.inner.smallestChunk() {
				h.insertSize(leftover)
			}
			return addr, nil
		}
	}
	if addr, ok := h.inner.takeFirstFit(*data, n); ok {
		if leftover := holeLengthIfAny(*data, addr, n); leftover >= h.inner.smallestChunk() {
			h.insertSize(leftover)
		}
		return addr, nil
	}
	return appendChunk(data, n), nil
}

// holeLengthIfAny is a helper for the already-split leftover size: after
// takeFirstFit the requested n has already been carved off, so the tracked
// leftover (if any) sits right after addr.
func holeLengthIfAny(data []int32, addr, n int) int {
	if addr+n >= len(data) {
		return 0
	}
	if data[addr+n] >= 0 {
		return 0
	}
	return -int(data[addr+n])
}

func (h *gridHoles) recycleChunk(data *[]int32, addr, n int) {
	addr, n = h.inner.mergeNeighbors(*data, addr, n)
	h.inner.track(*data, addr, n)
	if n < h.maxRequest && n >= h.inner.smallestChunk() {
		h.insertSize(n)
	}
}

func (h *gridHoles) chunkAfterHole(data []int32, addr int) int {
	return h.inner.chunkAfterHole(data, addr)
}

func (h *gridHoles) clearHolesAndShrink(data *[]int32, newLast int, shrink bool) {
	h.inner.clearHolesAndShrink(data, newLast, shrink)
	h.sizeIndex = nil
}

func (h *gridHoles) smallestChunk() int { return h.inner.smallestChunk() }

// -----------------------------------------------------------------------
// heap-per-size: like grid, but within each equal-size bucket addresses
// form a binary min-heap (so the earliest address is always served first),
// and the large-holes bucket is itself a min-heap ordered by address.
// -----------------------------------------------------------------------

type heapPerSizeHoles struct {
	buckets map[int]*addrHeap
	large   *addrHeap
}

func newHeapPerSizeHoles() *heapPerSizeHoles {
	return &heapPerSizeHoles{buckets: make(map[int]*addrHeap), large: newAddrHeap()}
}

func (h *heapPerSizeHoles) bucket(n int) *addrHeap {
	b, ok := h.buckets[n]
	if !ok {
		b = newAddrHeap()
		h.buckets[n] = b
	}
	return b
}

func (h *heapPerSizeHoles) requestChunk(data *[]int32, n int) (int, error) {
	if n < _LARGEHOLE {
		if b, ok := h.buckets[n]; ok && b.len() > 0 {
			addr := b.pop()
			if b.len() == 0 {
				delete(h.buckets, n)
			}
			return addr, nil
		}
	}
	if h.large.len() > 0 {
		// first fit: pop candidates until one is big enough, re-pushing rejects
		var rejected []int
		for h.large.len() > 0 {
			addr := h.large.pop()
			size := holeLength(*data, addr)
			if size >= n {
				h.splitAndTrack(data, addr, size, n)
				for _, r := range rejected {
					h.large.push(r)
				}
				return addr, nil
			}
			rejected = append(rejected, addr)
		}
		for _, r := range rejected {
			h.large.push(r)
		}
	}
	return appendChunk(data, n), nil
}

func (h *heapPerSizeHoles) splitAndTrack(data *[]int32, addr, size, n int) {
	markHole(*data, addr, n)
	leftover := size - n
	if leftover < smallestTrackedChunk {
		return
	}
	laddr := addr + n
	markHole(*data, laddr, leftover)
	if leftover < _LARGEHOLE {
		h.bucket(leftover).push(laddr)
	} else {
		h.large.push(laddr)
	}
}

func (h *heapPerSizeHoles) recycleChunk(data *[]int32, addr, n int) {
	markHole(*data, addr, n)
	if n < _LARGEHOLE {
		h.bucket(n).push(addr)
		return
	}
	h.large.push(addr)
}

func (h *heapPerSizeHoles) chunkAfterHole(data []int32, addr int) int {
	return addr + holeLength(data, addr)
}

func (h *heapPerSizeHoles) clearHolesAndShrink(data *[]int32, newLast int, shrink bool) {
	h.buckets = make(map[int]*addrHeap)
	h.large = newAddrHeap()
	*data = (*data)[:newLast]
	if shrink && cap(*data) > 2*len(*data) {
		shrunk := make([]int32, len(*data))
		copy(shrunk, *data)
		*data = shrunk
	}
}

func (h *heapPerSizeHoles) smallestChunk() int { return smallestTrackedChunk }

// addrHeap is a binary min-heap of addresses, used so the earliest-address
// hole of a given size is always handed out first (keeps compaction
// friendly by biasing reuse toward the low end of the array).
type addrHeap struct{ xs []int }

func newAddrHeap() *addrHeap { return &addrHeap{} }

func (h *addrHeap) len() int { return len(h.xs) }

func (h *addrHeap) push(addr int) {
	h.xs = append(h.xs, addr)
	i := len(h.xs) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.xs[parent] <= h.xs[i] {
			break
		}
		h.xs[parent], h.xs[i] = h.xs[i], h.xs[parent]
		i = parent
	}
}

func (h *addrHeap) pop() int {
	top := h.xs[0]
	last := len(h.xs) - 1
	h.xs[0] = h.xs[last]
	h.xs = h.xs[:last]
	i := 0
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < len(h.xs) && h.xs[left] < h.xs[smallest] {
			smallest = left
		}
		if right < len(h.xs) && h.xs[right] < h.xs[smallest] {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.xs[i], h.xs[smallest] = h.xs[smallest], h.xs[i]
		i = smallest
	}
	return top
}

func newHoleManager(strategy HoleStrategy) holeManager {
	switch strategy {
	case HoleNone:
		return newNoneHoles()
	case HoleGrid:
		return newGridHoles()
	case HoleHeapPerSize:
		return newHeapPerSizeHoles()
	default:
		return newArrayOfListsHoles()
	}
}
