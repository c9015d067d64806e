// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

import "runtime"

// Edge is an external, reference-counted handle into a Forest, playing the
// role dalzilio/rudd's Node (a finalizer-tracked *int) plays for its single
// global table. It wraps a single pointer so that
// copying an Edge value (passing it around, storing it in a slice) shares
// the same underlying reference rather than duplicating it; the finalizer
// fires, and the forest reference is released, only once every copy is
// unreachable. Zero value is the invalid edge; use Forest.Terminal or
// Forest.CreateReducedNode to obtain one.
type Edge struct {
	ref *edgeRef
}

type edgeRef struct {
	f      *Forest
	handle int
}

// Forest returns the forest an edge belongs to, or nil for the zero Edge.
func (e Edge) Forest() *Forest {
	if e.ref == nil {
		return nil
	}
	return e.ref.f
}

// Handle exposes the raw internal handle, mainly for tests and debugging;
// operations should thread Edge values, not handles.
func (e Edge) Handle() int {
	if e.ref == nil {
		return 0
	}
	return e.ref.handle
}

// IsZero reports whether e is the zero Edge (no forest attached).
func (e Edge) IsZero() bool { return e.ref == nil }

// Level reports the edge's node level, or 0 for a terminal.
func (e Edge) Level() int32 {
	if e.ref == nil {
		return 0
	}
	return e.ref.f.levelOf(e.ref.handle)
}

// WrapHandle returns an external, reference-counted Edge for a raw handle
// obtained from RawChildren/LevelOf-based traversal (e.g. sdac's facet
// splitter, which rebuilds nodes by hand outside the recursive Apply/Ite
// family). Prefer Apply/Ite/CreateReducedNode; use this only when a raw
// handle must cross back out to an Edge-typed API.
func (f *Forest) WrapHandle(h int) Edge { return newEdge(f, h) }

// newEdge wraps handle with an external reference on f and arranges for that
// reference to be released when the last copy of the returned Edge is
// collected, exactly as dalzilio/rudd pins nodes via runtime.SetFinalizer on
// its Node handles.
func newEdge(f *Forest, handle int) Edge {
	f.addRef(handle)
	r := &edgeRef{f: f, handle: handle}
	runtime.SetFinalizer(r, func(r *edgeRef) { r.f.delRef(r.handle) })
	return Edge{ref: r}
}
