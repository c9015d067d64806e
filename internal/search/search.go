// Package search implements bidirectional uniform-cost search over BDDs,
// producing SolutionCuts that internal/registry reconstructs plans from.
package search

import (
	"fmt"
	"sort"
	"time"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/transition"
)

// Direction distinguishes the forward and backward search instances of a
// bidirectional run.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// ZeroSublayer is one intermediate BDD recorded while applying zero-cost
// actions to a fixed point within a single g-layer, giving plan
// reconstruction a total order on same-cost steps.
type ZeroSublayer struct {
	ID  int
	BDD ddkit.Edge
}

// Frontier holds one search direction's open/closed maps and the
// zero-sublayer history recorded at each cost.
type Frontier struct {
	Dir           Direction
	open          map[int]ddkit.Edge
	closed        map[int]ddkit.Edge
	zeroSublayers map[int][]ZeroSublayer
	nextZeroID    int
	start         ddkit.Edge
}

func newFrontier(dir Direction, f *ddkit.Forest, start ddkit.Edge) *Frontier {
	return &Frontier{
		Dir:           dir,
		open:          map[int]ddkit.Edge{0: start},
		closed:        map[int]ddkit.Edge{},
		zeroSublayers: map[int][]ZeroSublayer{},
		start:         start,
	}
}

// Start returns this direction's initial frontier state (the state
// internal/registry's reconstruction walk terminates on).
func (fr *Frontier) Start() ddkit.Edge { return fr.start }

// ClosedAt returns the BDD closed at cost g in this direction, and whether
// that layer has been closed at all.
func (fr *Frontier) ClosedAt(g int) (ddkit.Edge, bool) {
	e, ok := fr.closed[g]
	return e, ok
}

// ZeroSublayers returns the ordered zero-cost sublayers recorded while
// closing cost layer g, giving plan reconstruction a total order on
// zero-cost steps within that layer.
func (fr *Frontier) ZeroSublayers(g int) []ZeroSublayer {
	return fr.zeroSublayers[g]
}

// OpenCosts returns every g-layer currently holding an open BDD, for
// internal/metrics' per-layer frontier-size gauge.
func (fr *Frontier) OpenCosts() []int {
	costs := make([]int, 0, len(fr.open))
	for g := range fr.open {
		costs = append(costs, g)
	}
	return costs
}

// OpenAt returns the open BDD at cost g in this direction, and whether one
// is currently recorded.
func (fr *Frontier) OpenAt(g int) (ddkit.Edge, bool) {
	e, ok := fr.open[g]
	return e, ok
}

// GetClosed returns the union of every closed layer recorded so far. This
// is the fixed form of a dead-code bug in the source this search is
// modeled on, where the union only ever included a subset of layers;
// GetClosed always unions the full closed map.
func (fr *Frontier) GetClosed(f *ddkit.Forest) (ddkit.Edge, error) {
	union := f.False()
	for _, bdd := range fr.closed {
		var err error
		union, err = f.Apply(ddkit.OpOr, union, bdd)
		if err != nil {
			return ddkit.Edge{}, err
		}
	}
	return union, nil
}

// NotClosed returns the complement of GetClosed, intersected with
// validStates — the states this direction has not yet closed.
func (fr *Frontier) NotClosed(f *ddkit.Forest, validStates ddkit.Edge) (ddkit.Edge, error) {
	closed, err := fr.GetClosed(f)
	if err != nil {
		return ddkit.Edge{}, err
	}
	notClosed, err := f.Not(closed)
	if err != nil {
		return ddkit.Edge{}, err
	}
	return f.Apply(ddkit.OpAnd, notClosed, validStates)
}

func (fr *Frontier) lowestOpenCost() (int, bool) {
	best := 0
	found := false
	for g := range fr.open {
		if !found || g < best {
			best = g
			found = true
		}
	}
	return best, found
}

// SolutionCut is a non-empty intersection between this step's successor
// frontier and the opposite direction's closed states, registered with
// internal/registry for plan reconstruction.
type SolutionCut struct {
	GFwd, GBwd int
	States     ddkit.Edge
	F          int
}

// Bucket groups every transition relation of a given constant cost.
type Bucket struct {
	Cost      int
	Relations []*transition.Relation
}

// Search drives uniform-cost search (one or both directions) over a set of
// constant-cost transition-relation buckets.
type Search struct {
	f           *ddkit.Forest
	sv          *symvars.SymVariables
	validStates ddkit.Edge
	buckets     []Bucket // ascending by Cost
	fwd, bwd    *Frontier

	// L is the monotonically increasing lower bound on solution cost; U
	// starts at the configured plan-cost limit and decreases on every cut
	// registered.
	L, U int

	onCut func(SolutionCut)

	maxNodes    int // configured ceiling; 0 means unbounded
	maxNodesCur int // current ceiling, halved on every out-of-memory degrade

	stepDeadline time.Duration // 0 means no per-step wall-clock bound
}

// Option configures a Search at construction.
type Option func(*Search)

// WithCostBound sets the initial upper bound U (the configured plan-cost
// limit).
func WithCostBound(u int) Option { return func(s *Search) { s.U = u } }

// WithMaxNodes sets the node budget Image/Preimage degrade against on
// out-of-memory: exceeding it triggers a forest compaction and halves the
// budget for the next image attempt, repeating until the image fits or the
// halved budget bottoms out, at which point the search fails.
func WithMaxNodes(n int) Option { return func(s *Search) { s.maxNodes = n } }

// WithStepDeadline bounds the wall-clock time a single stepDirection call
// spends expanding buckets at one g-layer. Exceeding it re-queues whatever
// buckets haven't run yet by leaving their accumulated frontier state in
// fr.open[g] for the next call, rather than failing the search outright —
// the cooperative, step-granularity analogue of a BDD engine honouring a
// per-operation time limit.
func WithStepDeadline(d time.Duration) Option { return func(s *Search) { s.stepDeadline = d } }

// WithCutHandler registers the callback invoked for every SolutionCut this
// search produces — normally internal/registry's register_solution.
func WithCutHandler(h func(SolutionCut)) Option { return func(s *Search) { s.onCut = h } }

// New builds a Search over sv's forest. relations is every operator's (or
// SDAC facet's) transition relation; fwdInit/bwdInit are the forward and
// backward start BDDs. bwdInit may be the zero Edge for a forward-only
// search.
func New(sv *symvars.SymVariables, validStates ddkit.Edge, relations []*transition.Relation, fwdInit, bwdInit ddkit.Edge, opts ...Option) *Search {
	s := &Search{
		f:           sv.Forest(),
		sv:          sv,
		validStates: validStates,
		buckets:     bucketize(relations),
		fwd:         newFrontier(Forward, sv.Forest(), fwdInit),
		U:           1 << 30,
	}
	if !bwdInit.IsZero() {
		s.bwd = newFrontier(Backward, sv.Forest(), bwdInit)
	}
	for _, o := range opts {
		o(s)
	}
	s.maxNodesCur = s.maxNodes
	return s
}

func bucketize(relations []*transition.Relation) []Bucket {
	byCost := map[int][]*transition.Relation{}
	for _, r := range relations {
		byCost[r.Cost] = append(byCost[r.Cost], r)
	}
	costs := make([]int, 0, len(byCost))
	for c := range byCost {
		costs = append(costs, c)
	}
	sort.Ints(costs)
	out := make([]Bucket, len(costs))
	for i, c := range costs {
		out[i] = Bucket{Cost: c, Relations: byCost[c]}
	}
	return out
}

// Start checks the initial frontiers against each other for a trivial
// solution cut (init intersects goal directly, or vice versa) before any
// step runs — the "goal already reachable from the initial state" case.
func (s *Search) Start() error {
	if s.bwd == nil {
		return nil
	}
	fwdInit, ok := s.fwd.open[0]
	if !ok {
		return nil
	}
	bwdInit, ok := s.bwd.open[0]
	if !ok {
		return nil
	}
	inter, err := s.f.Apply(ddkit.OpAnd, fwdInit, bwdInit)
	if err != nil {
		return err
	}
	if inter.Handle() == 0 {
		return nil
	}
	cut := SolutionCut{GFwd: 0, GBwd: 0, States: inter, F: 0}
	if cut.F < s.U {
		s.U = cut.F
	}
	if s.onCut != nil {
		s.onCut(cut)
	}
	return nil
}

// Bidirectional reports whether this search runs both directions.
func (s *Search) Bidirectional() bool { return s.bwd != nil }

// LowerBound and UpperBound expose the current L/U values driving
// termination.
func (s *Search) LowerBound() int { return s.L }
func (s *Search) UpperBound() int { return s.U }

// Done reports whether the search has exhausted both directions' open
// frontiers, or L has met or exceeded U.
func (s *Search) Done() bool {
	if s.L >= s.U {
		return true
	}
	_, fwdOpen := s.fwd.lowestOpenCost()
	if fwdOpen {
		return false
	}
	if s.bwd != nil {
		if _, bwdOpen := s.bwd.lowestOpenCost(); bwdOpen {
			return false
		}
	}
	return true
}

// step expands one frontier's lowest open layer, applying every
// constant-cost bucket low-to-high, handling the zero-cost bucket as a
// fixed point, and registering solution cuts against the opposite
// direction's closed states.
func (s *Search) stepDirection(fr *Frontier, opposite *Frontier) (bool, error) {
	g, ok := fr.lowestOpenCost()
	if !ok {
		return false, nil
	}
	open := fr.open[g]
	delete(fr.open, g)

	var deadline time.Time
	if s.stepDeadline > 0 {
		deadline = time.Now().Add(s.stepDeadline)
	}
	timedOut := func() bool { return !deadline.IsZero() && time.Now().After(deadline) }

	// Expand zero-cost actions to a fixed point first, since a cost-c action
	// may follow a chain of zero-cost ones within the same g-layer; the
	// resulting accumulated frontier is what gets closed at g and what
	// every constant-cost bucket expands from.
	for _, bucket := range s.buckets {
		if bucket.Cost != 0 {
			continue
		}
		if timedOut() {
			fr.open[g] = open
			return true, nil
		}
		accumulated, err := s.expandZeroCostFixedPoint(fr, opposite, g, bucket, open)
		if err != nil {
			return false, err
		}
		open = accumulated
	}

	for _, bucket := range s.buckets {
		if bucket.Cost == 0 {
			continue
		}
		if timedOut() {
			fr.open[g] = open
			return true, nil
		}
		succ, err := s.applyBucket(fr.Dir, bucket, open)
		if err != nil {
			return false, err
		}
		if err := s.insertSuccessor(fr, opposite, g+bucket.Cost, succ); err != nil {
			return false, err
		}
	}

	merged, err := s.f.Apply(ddkit.OpOr, fr.closed[g], open)
	if err != nil {
		return false, err
	}
	fr.closed[g] = merged
	if g > s.L {
		s.L = g
	}
	return true, nil
}

// applyBucket folds every relation in bucket's image (or preimage) into a
// single successor BDD. On out-of-memory (the forest's live node count
// exceeding the current budget) it compacts the forest, halves the budget,
// and retries the whole bucket; persistent failure once the budget bottoms
// out is fatal and propagates to the caller.
func (s *Search) applyBucket(dir Direction, bucket Bucket, states ddkit.Edge) (ddkit.Edge, error) {
	for {
		result := s.f.False()
		for _, r := range bucket.Relations {
			var succ ddkit.Edge
			var err error
			if dir == Forward {
				succ, err = r.Image(s.f, states)
			} else {
				succ, err = r.Preimage(s.f, states)
			}
			if err != nil {
				return ddkit.Edge{}, err
			}
			result, err = s.f.Apply(ddkit.OpOr, result, succ)
			if err != nil {
				return ddkit.Edge{}, err
			}
		}
		if !s.nodeBudgetExceeded() {
			return result, nil
		}
		if !s.degradeNodeBudget() {
			return ddkit.Edge{}, fmt.Errorf("search: node budget exhausted building image (last limit %d)", s.maxNodesCur)
		}
	}
}

// nodeBudgetExceeded reports whether the forest's live (not yet reclaimed)
// node count has grown past the current (possibly already halved) budget.
// A zero budget means unbounded.
func (s *Search) nodeBudgetExceeded() bool {
	return s.maxNodesCur > 0 && s.f.Stats().Storage.Used > s.maxNodesCur
}

// degradeNodeBudget reclaims whatever the forest's GC policy allows, asks
// the storage layer to compact, and halves the current node budget,
// reporting whether the budget could still shrink (false once it has
// bottomed out at 1, the point at which degrading further can't help).
func (s *Search) degradeNodeBudget() bool {
	if s.maxNodesCur <= 1 {
		return false
	}
	s.f.RunGC()
	s.f.Compact()
	s.maxNodesCur /= 2
	return true
}

// expandZeroCostFixedPoint repeatedly applies zero-cost actions to open's
// successors until no new states appear, recording each intermediate BDD as
// an ordered zero sublayer.
func (s *Search) expandZeroCostFixedPoint(fr *Frontier, opposite *Frontier, g int, bucket Bucket, initial ddkit.Edge) (ddkit.Edge, error) {
	frontierState := initial
	for {
		succ, err := s.applyBucket(fr.Dir, bucket, frontierState)
		if err != nil {
			return ddkit.Edge{}, err
		}
		notClosed, err := fr.NotClosed(s.f, s.validStates)
		if err != nil {
			return ddkit.Edge{}, err
		}
		succ, err = s.f.Apply(ddkit.OpAnd, succ, notClosed)
		if err != nil {
			return ddkit.Edge{}, err
		}
		newMask, err := s.f.Not(frontierState)
		if err != nil {
			return ddkit.Edge{}, err
		}
		fresh, err := s.f.Apply(ddkit.OpAnd, succ, newMask)
		if err != nil {
			return ddkit.Edge{}, err
		}
		if fresh.Handle() == 0 {
			return frontierState, nil
		}
		id := fr.nextZeroID
		fr.nextZeroID++
		fr.zeroSublayers[g] = append(fr.zeroSublayers[g], ZeroSublayer{ID: id, BDD: fresh})
		if opposite != nil {
			if err := s.detectCuts(fr, opposite, g, fresh); err != nil {
				return ddkit.Edge{}, err
			}
		}
		frontierState, err = s.f.Apply(ddkit.OpOr, frontierState, fresh)
		if err != nil {
			return ddkit.Edge{}, err
		}
	}
}

// insertSuccessor inserts succ into fr.open at cost newG, subtracting every
// already-closed layer in fr, and checks for solution cuts against
// opposite's closed states.
func (s *Search) insertSuccessor(fr, opposite *Frontier, newG int, succ ddkit.Edge) error {
	if succ.IsZero() || succ.Handle() == 0 {
		return nil
	}
	notClosed, err := fr.NotClosed(s.f, s.validStates)
	if err != nil {
		return err
	}
	succ, err = s.f.Apply(ddkit.OpAnd, succ, notClosed)
	if err != nil {
		return err
	}
	if succ.Handle() == 0 {
		return nil
	}
	cur, ok := fr.open[newG]
	if !ok {
		cur = s.f.False()
	}
	merged, err := s.f.Apply(ddkit.OpOr, cur, succ)
	if err != nil {
		return err
	}
	fr.open[newG] = merged

	if opposite != nil {
		if err := s.detectCuts(fr, opposite, newG, succ); err != nil {
			return err
		}
	}
	return nil
}

// detectCuts intersects succ (closed at newG in fr's direction) with every
// layer opposite has already closed, registering a SolutionCut for each
// non-empty intersection.
func (s *Search) detectCuts(fr, opposite *Frontier, g int, succ ddkit.Edge) error {
	for h, closedAtH := range opposite.closed {
		inter, err := s.f.Apply(ddkit.OpAnd, succ, closedAtH)
		if err != nil {
			return err
		}
		if inter.Handle() == 0 {
			continue
		}
		var cut SolutionCut
		if fr.Dir == Forward {
			cut = SolutionCut{GFwd: g, GBwd: h, States: inter, F: g + h}
		} else {
			cut = SolutionCut{GFwd: h, GBwd: g, States: inter, F: g + h}
		}
		if cut.F < s.U {
			s.U = cut.F
		}
		if s.onCut != nil {
			s.onCut(cut)
		}
	}
	return nil
}

// Step advances whichever direction has the lower open cost next (forward
// first on ties), returning false once both directions are exhausted.
func (s *Search) Step() (bool, error) {
	fg, fok := s.fwd.lowestOpenCost()
	var bg int
	var bok bool
	if s.bwd != nil {
		bg, bok = s.bwd.lowestOpenCost()
	}
	switch {
	case fok && (!bok || fg <= bg):
		return s.stepDirection(s.fwd, s.bwd)
	case bok:
		return s.stepDirection(s.bwd, s.fwd)
	default:
		return false, nil
	}
}

// Forward and Backward expose the two frontiers (Backward is nil for a
// forward-only search).
func (s *Search) ForwardFrontier() *Frontier  { return s.fwd }
func (s *Search) BackwardFrontier() *Frontier { return s.bwd }

// Buckets exposes the ascending-cost transition-relation buckets this
// search expands, the same buckets internal/registry walks in reverse
// during plan reconstruction.
func (s *Search) Buckets() []Bucket { return s.buckets }

// Forest and SymVars expose the underlying decision-diagram forest and
// variable encoding for internal/registry's reconstruction walk.
func (s *Search) Forest() *ddkit.Forest          { return s.f }
func (s *Search) SymVars() *symvars.SymVariables { return s.sv }
func (s *Search) ValidStates() ddkit.Edge        { return s.validStates }
