// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

// UnpackedNode is a transient, human-shaped view of a node used for
// construction and iteration. Sparse nodes only populate Index/Down/Edge at
// the positions listed in Index; full nodes populate Down (and optionally
// Edge) densely for 0..Size-1.
type UnpackedNode struct {
	Level  int32
	Size   int
	Sparse bool
	Down   []int   // full: dense children; sparse: parallel to Index
	Index  []int   // sparse only, ascending
	Edge   []int32 // optional per-edge value (EV+/EV* forests); nil for multi-terminal
	hash   uint32
	hashed bool
}

// Hash returns the node's structural hash, computed lazily and cached.
func (u *UnpackedNode) Hash() uint32 {
	if u.hashed {
		return u.hash
	}
	u.hash = hashUnpacked(u)
	u.hashed = true
	return u.hash
}

func hashUnpacked(u *UnpackedNode) uint32 {
	var h uint32 = 2166136261 // FNV-1a offset basis
	mix := func(v uint32) {
		h ^= v
		h *= 16777619
	}
	mix(uint32(u.Level))
	if u.Sparse {
		for k, idx := range u.Index {
			mix(uint32(idx))
			mix(uint32(u.Down[k]))
			if u.Edge != nil {
				mix(uint32(u.Edge[k]))
			}
		}
		return h
	}
	for i, d := range u.Down {
		if d == 0 {
			continue
		}
		mix(uint32(i))
		mix(uint32(d))
		if u.Edge != nil {
			mix(uint32(u.Edge[i]))
		}
	}
	return h
}

// at returns the (index, down[, edge]) pair stored at position k of the
// unpacked node's present-entries view, regardless of full/sparse encoding.
func (u *UnpackedNode) entries() func(yield func(index, down int, edge int32) bool) {
	return func(yield func(index, down int, edge int32) bool) {
		if u.Sparse {
			for k, idx := range u.Index {
				ev := int32(0)
				if u.Edge != nil {
					ev = u.Edge[k]
				}
				if !yield(idx, u.Down[k], ev) {
					return
				}
			}
			return
		}
		for i, d := range u.Down {
			if d == 0 {
				continue
			}
			ev := int32(0)
			if u.Edge != nil {
				ev = u.Edge[i]
			}
			if !yield(i, d, ev) {
				return
			}
		}
	}
}

// equalUnpacked performs the structural equality test are_duplicates is
// built from: same level, same size, same (index, down, edge) multiset in
// order.
func equalUnpacked(a, b *UnpackedNode) bool {
	if a.Level != b.Level || a.Sparse != b.Sparse {
		return false
	}
	if a.Sparse {
		if len(a.Index) != len(b.Index) {
			return false
		}
		for k := range a.Index {
			if a.Index[k] != b.Index[k] || a.Down[k] != b.Down[k] {
				return false
			}
			if a.Edge != nil && a.Edge[k] != b.Edge[k] {
				return false
			}
		}
		return true
	}
	if len(a.Down) != len(b.Down) {
		return false
	}
	for k := range a.Down {
		if a.Down[k] != b.Down[k] {
			return false
		}
		if a.Edge != nil && a.Edge[k] != b.Edge[k] {
			return false
		}
	}
	return true
}

// NodeFlags picks how make_node should encode a shape.
type NodeFlags int

const (
	FullOnly NodeFlags = iota
	SparseOnly
	BestFit // choose whichever of full/sparse is smaller
)

// FillStyle selects how fill_unpacked inflates a stored node.
type FillStyle int

const (
	AsFull FillStyle = iota
	AsSparse
	AsStored
)

// nonzeroCount returns the number of present (nonzero-child) entries in a
// dense Down array, used to decide between full and sparse encodings.
func nonzeroCount(down []int) int {
	n := 0
	for _, d := range down {
		if d != 0 {
			n++
		}
	}
	return n
}

// toSparse converts a dense (full) unpacked node into its sparse form.
func toSparse(u *UnpackedNode) *UnpackedNode {
	if u.Sparse {
		return u
	}
	out := &UnpackedNode{Level: u.Level, Size: u.Size, Sparse: true}
	for i, d := range u.Down {
		if d == 0 {
			continue
		}
		out.Index = append(out.Index, i)
		out.Down = append(out.Down, d)
		if u.Edge != nil {
			out.Edge = append(out.Edge, u.Edge[i])
		}
	}
	return out
}

// toFull converts a sparse unpacked node into its dense (full) form.
func toFull(u *UnpackedNode) *UnpackedNode {
	if !u.Sparse {
		return u
	}
	out := &UnpackedNode{Level: u.Level, Size: u.Size, Sparse: false}
	out.Down = make([]int, u.Size)
	if u.Edge != nil {
		out.Edge = make([]int32, u.Size)
	}
	for k, idx := range u.Index {
		out.Down[idx] = u.Down[k]
		if u.Edge != nil {
			out.Edge[idx] = u.Edge[k]
		}
	}
	return out
}

// identityIndex is the canonical domain position a single-entry node must
// match for CreateReducedNode's Identity rule to collapse it directly into
// its child: index 0 stands for "this level passes its value through
// unchanged" in a relational forest's paired unprimed/primed encoding.
const identityIndex = 0

// getSingletonIndex returns (index, down) if the node has exactly one
// nonzero child, else ok is false — used by CreateReducedNode to rewrite a
// single-entry node whose index equals identityIndex directly into its
// child handle, under the Identity reduction rule.
func getSingletonIndex(u *UnpackedNode) (index, down int, ok bool) {
	if u.Sparse {
		if len(u.Index) != 1 {
			return 0, 0, false
		}
		return u.Index[0], u.Down[0], true
	}
	idx, cnt := -1, 0
	for i, d := range u.Down {
		if d != 0 {
			idx, cnt = i, cnt+1
			if cnt > 1 {
				return 0, 0, false
			}
		}
	}
	if cnt != 1 {
		return 0, 0, false
	}
	return idx, u.Down[idx], true
}
