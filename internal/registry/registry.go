// Package registry implements a priority-ordered reconstruction walk over a
// Search's closed layers, turning SolutionCuts into concrete operator-id
// plans and handing them to a Selector.
package registry

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/search"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/transition"
)

// Plan is a concrete sequence of operator ids (referring to the original
// task, never to an SDAC facet) and its total cost.
type Plan struct {
	OperatorIDs []int
	Cost        int
}

// Selector decides which reconstructed plans are accepted and when enough
// plans have been produced. internal/selector's implementations satisfy
// this; it is defined here, not imported, so registry never depends on
// selector.
type Selector interface {
	Accept(p Plan) bool
	Done() bool
}

// ReconstructionInconsistency reports that plan reconstruction referenced a
// closed-list layer that was never populated — a programmer error, not a
// search failure, under a strictly-defensive failure model.
type ReconstructionInconsistency struct {
	Cost int
	Dir  string
}

func (e *ReconstructionInconsistency) Error() string {
	return fmt.Sprintf("registry: closed list at cost %d missing for %s direction", e.Cost, e.Dir)
}

// Mode bundles the combinable reconstruction pruning modes.
type Mode struct {
	Single    bool // stop on first accepted plan
	Simple    bool // never revisit a visited state
	Justified bool // stop expanding a node after its first plan
}

// node is a reconstruction node, generalized away from the source's raw
// predecessor/successor back-pointers (a raw-pointer hazard) into two
// directly-accumulated operator-id slices instead: no node outlives the
// walk that produced it, and nothing needs an owning back-reference.
type node struct {
	g, h      int
	zeroLayer int // -1 once this g/h layer's zero-sublayer structure is exhausted
	states    ddkit.Edge
	visited   ddkit.Edge
	fwdPhase  bool // true: walking predecessor-wards toward the initial state

	// opsToAnchor accumulates, innermost-first, the operators needed to
	// walk from this node's own state forward to the cut anchor that
	// spawned this fwdPhase chain.
	opsToAnchor []int

	// anchorStates/anchorH/anchorPrefix are carried unchanged through every
	// node of a fwdPhase chain: once g reaches 0, anchorStates/anchorH seed
	// the backward twin that resumes expansion from the cut itself toward
	// the goal, with anchorPrefix holding opsToAnchor's final value.
	anchorStates ddkit.Edge
	anchorH      int
	anchorPrefix []int

	// opsFromAnchor accumulates, in order, the operators walked from the
	// cut anchor toward the goal (twin/successor-wards nodes only).
	opsFromAnchor []int

	planCost   int
	planLength int
	index      int // heap bookkeeping
}

// priorityQueue is a min-heap over nodes ordered by remaining cost, then
// direction (forward before backward), then zero-layer index, then plan
// length (lengthFirst swaps the primary key to plan length, for unit-cost
// simple planning). Grounded on the
// container/heap min-heap idiom the pack's GOAP planner uses for its own
// A* open list.
type priorityQueue struct {
	items       []*node
	lengthFirst bool
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if pq.lengthFirst && a.planLength != b.planLength {
		return a.planLength < b.planLength
	}
	ra, rb := a.g+a.h, b.g+b.h
	if ra != rb {
		return ra < rb
	}
	if a.fwdPhase != b.fwdPhase {
		return a.fwdPhase // forward before backward
	}
	if a.zeroLayer != b.zeroLayer {
		return a.zeroLayer < b.zeroLayer
	}
	return a.planLength < b.planLength
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := x.(*node)
	n.index = len(pq.items)
	pq.items = append(pq.items, n)
}

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	pq.items = old[:n-1]
	return item
}

// cutGroup merges every registered SolutionCut with the same (g,h) via BDD
// union: two cuts at the same (g,h) must be merged, not kept separate.
type cutGroup struct {
	g, h   int
	f      int
	states ddkit.Edge
}

// Registry holds the cut groups accumulated from a Search and reconstructs
// concrete plans from them on demand.
type Registry struct {
	f  *ddkit.Forest
	sv *symvars.SymVariables
	s  *search.Search

	mode Mode

	groups map[int]map[int]*cutGroup // groups[g][h]

	singleSolutionBest *cutGroup
}

// New builds a Registry over s. Callers register cuts as they are produced
// by passing RegisterSolution as s's search.WithCutHandler callback.
func New(s *search.Search, mode Mode) *Registry {
	return &Registry{
		f:      s.Forest(),
		sv:     s.SymVars(),
		s:      s,
		mode:   mode,
		groups: map[int]map[int]*cutGroup{},
	}
}

// RegisterSolution merges cut into the matching (g,h) group, or keeps only
// the best cut in single-solution mode.
func (r *Registry) RegisterSolution(cut search.SolutionCut) error {
	if r.mode.Single {
		if r.singleSolutionBest == nil || cut.F < r.singleSolutionBest.f {
			r.singleSolutionBest = &cutGroup{g: cut.GFwd, h: cut.GBwd, f: cut.F, states: cut.States}
		}
		return nil
	}
	byH, ok := r.groups[cut.GFwd]
	if !ok {
		byH = map[int]*cutGroup{}
		r.groups[cut.GFwd] = byH
	}
	existing, ok := byH[cut.GBwd]
	if !ok {
		byH[cut.GBwd] = &cutGroup{g: cut.GFwd, h: cut.GBwd, f: cut.F, states: cut.States}
		return nil
	}
	merged, err := r.f.Apply(ddkit.OpOr, existing.states, cut.States)
	if err != nil {
		return err
	}
	existing.states = merged
	return nil
}

func (r *Registry) sortedGroups(bound int) []*cutGroup {
	if r.mode.Single {
		if r.singleSolutionBest == nil || r.singleSolutionBest.f >= bound {
			return nil
		}
		return []*cutGroup{r.singleSolutionBest}
	}
	var out []*cutGroup
	for _, byH := range r.groups {
		for _, g := range byH {
			if g.f < bound {
				out = append(out, g)
			}
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].f > out[j].f; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// ConstructCheaperSolutions runs the priority-ordered DFS over every cut
// group with f < bound, in ascending f, handing materialized plans to
// selector and stopping once selector.Done() or the mode's pruning rule is
// satisfied.
func (r *Registry) ConstructCheaperSolutions(bound int, selector Selector) error {
	groups := r.sortedGroups(bound)
	if len(groups) == 0 {
		return nil
	}

	bwdPresent := r.s.BackwardFrontier() != nil

	pq := &priorityQueue{lengthFirst: r.mode.Simple}
	heap.Init(pq)

	for _, grp := range groups {
		n := &node{
			g:            grp.g,
			h:            grp.h,
			zeroLayer:    -1,
			states:       grp.states,
			visited:      r.f.False(),
			fwdPhase:     true, // a forward closed list always exists (search.New always builds it)
			anchorStates: grp.states,
			anchorH:      grp.h,
			planCost:     grp.f,
		}
		heap.Push(pq, n)
		if bwdPresent && grp.g == 0 {
			heap.Push(pq, r.spawnTwin(n))
		}
	}

	justifiedDone := map[*node]bool{}
	var anyPlanErr error

	for pq.Len() > 0 {
		if selector.Done() {
			break
		}
		cur := heap.Pop(pq).(*node)

		if r.mode.Simple {
			r.restrictToOneState(cur)
		}

		if !cur.fwdPhase && cur.h == 0 {
			atGoal, err := r.atTerminus(cur)
			if err != nil {
				return err
			}
			if atGoal {
				plan := materializePlan(cur)
				if !justifiedDone[cur] && selector.Accept(plan) {
					if r.mode.Justified {
						justifiedDone[cur] = true
					}
					if r.mode.Single {
						return nil
					}
				}
				continue
			}
		}
		if cur.fwdPhase && cur.g == 0 {
			// The twin for this anchor was already scheduled when this
			// node was created (or at initial cut registration); there is
			// nothing further to walk predecessor-wards.
			continue
		}
		if r.mode.Justified && justifiedDone[cur] {
			continue
		}

		if err := r.expand(pq, cur); err != nil {
			var inconsistent *ReconstructionInconsistency
			if errors.As(err, &inconsistent) {
				// Strictly defensive: skip this cut's reconstruction, keep
				// draining the rest of the queue.
				anyPlanErr = err
				continue
			}
			return err
		}
	}
	_ = anyPlanErr // surfaced via logging at the CLI layer, not fatal here
	return nil
}

// spawnTwin builds the backward (successor-wards) twin for a fwdPhase node
// that has just resolved its prefix back to the initial state, the
// "phase swap" that lets a bidirectional reconstruction continue from the
// other search direction.
func (r *Registry) spawnTwin(n *node) *node {
	return &node{
		g:             0,
		h:             n.anchorH,
		zeroLayer:     -1,
		states:        n.anchorStates,
		visited:       n.visited,
		fwdPhase:      false,
		anchorPrefix:  append([]int(nil), n.opsToAnchor...),
		opsFromAnchor: nil,
		planCost:      n.planCost,
		planLength:    n.planLength,
	}
}

// atTerminus reports whether cur's states intersect the start set of the
// direction cur is walking toward (the forward start for a predecessor
// walk, the backward start — i.e. the goal set — for a successor walk).
func (r *Registry) atTerminus(cur *node) (bool, error) {
	var start ddkit.Edge
	if cur.fwdPhase {
		start = r.s.ForwardFrontier().Start()
	} else {
		bwd := r.s.BackwardFrontier()
		if bwd == nil {
			return true, nil
		}
		start = bwd.Start()
	}
	inter, err := r.f.Apply(ddkit.OpAnd, cur.states, start)
	if err != nil {
		return false, err
	}
	return inter.Handle() != 0, nil
}

// restrictToOneState picks a single state out of cur.states (if more than
// one remains), the simple-mode restriction that keeps the visited-state
// set finite, and folds it into visited.
func (r *Registry) restrictToOneState(cur *node) {
	if cur.states.Handle() == 0 {
		return
	}
	one, err := r.f.OneState(cur.states)
	if err != nil {
		return
	}
	visited, err := r.f.Apply(ddkit.OpOr, cur.visited, one)
	if err != nil {
		return
	}
	cur.states = one
	cur.visited = visited
}

// nextZeroLayer returns the zero-sublayer index a predecessor/successor
// step through a zero-cost bucket should restrict to: the last-recorded
// sublayer on first entry to cost, walking one sublayer earlier each
// subsequent call, or -1 once the sublayer history for cost is exhausted
// (meaning cost's zero-cost structure has been fully unwound).
func nextZeroLayer(fr *search.Frontier, cost, parentZeroLayer int) int {
	subs := fr.ZeroSublayers(cost)
	if len(subs) == 0 {
		return -1
	}
	if parentZeroLayer < 0 {
		return len(subs) - 1
	}
	return parentZeroLayer - 1
}

// expand walks cur one step further — predecessor-wards (preimage) if
// cur.fwdPhase, successor-wards (image) otherwise — pushing a child node
// for every non-empty successor.
func (r *Registry) expand(pq *priorityQueue, cur *node) error {
	buckets := r.s.Buckets()
	fr := r.s.ForwardFrontier()
	if !cur.fwdPhase && r.s.BackwardFrontier() != nil {
		fr = r.s.BackwardFrontier()
	}

	remaining := cur.g
	if !cur.fwdPhase {
		remaining = cur.h
	}

	for i := len(buckets) - 1; i >= 0; i-- {
		bucket := buckets[i]
		newCost := remaining - bucket.Cost
		if newCost < 0 {
			continue
		}

		var zeroLayer int
		if bucket.Cost == 0 {
			zeroLayer = nextZeroLayer(fr, newCost, cur.zeroLayer)
			if zeroLayer < 0 {
				// This zero-cost bucket has nothing left to unwind at this
				// layer; applying it again would only regenerate states
				// already folded into this node.
				continue
			}
		} else {
			zeroLayer = -1
		}

		closedAt, ok := fr.ClosedAt(newCost)
		if !ok {
			dir := "forward"
			if !cur.fwdPhase {
				dir = "backward"
			}
			return &ReconstructionInconsistency{Cost: newCost, Dir: dir}
		}

		for _, rel := range bucket.Relations {
			succ, err := r.stepRelation(cur, rel)
			if err != nil {
				return err
			}
			succ, err = r.f.Apply(ddkit.OpAnd, succ, closedAt)
			if err != nil {
				return err
			}
			if zeroLayer >= 0 {
				sub := fr.ZeroSublayers(newCost)
				succ, err = r.f.Apply(ddkit.OpAnd, succ, sub[zeroLayer].BDD)
				if err != nil {
					return err
				}
			}
			if r.mode.Simple {
				notVisited, err := r.f.Not(cur.visited)
				if err != nil {
					return err
				}
				succ, err = r.f.Apply(ddkit.OpAnd, succ, notVisited)
				if err != nil {
					return err
				}
			}
			if succ.Handle() == 0 {
				continue
			}

			child := r.makeChild(cur, rel, newCost, zeroLayer, succ)
			heap.Push(pq, child)

			if cur.fwdPhase && child.g == 0 && r.s.BackwardFrontier() != nil {
				atStart, err := r.atTerminus(child)
				if err == nil && atStart {
					heap.Push(pq, r.spawnTwin(child))
				}
			}
		}
	}
	return nil
}

func (r *Registry) stepRelation(cur *node, rel *transition.Relation) (ddkit.Edge, error) {
	if cur.fwdPhase {
		return rel.Preimage(r.f, cur.states)
	}
	return rel.Image(r.f, cur.states)
}

func (r *Registry) makeChild(cur *node, rel *transition.Relation, newCost, zeroLayer int, succ ddkit.Edge) *node {
	child := &node{
		states:       succ,
		visited:      cur.visited,
		fwdPhase:     cur.fwdPhase,
		zeroLayer:    zeroLayer,
		anchorStates: cur.anchorStates,
		anchorH:      cur.anchorH,
		planCost:     cur.planCost,
		planLength:   cur.planLength + 1,
	}
	if cur.fwdPhase {
		child.g = newCost
		child.h = cur.h
		child.opsToAnchor = append([]int{rel.OperatorID}, cur.opsToAnchor...)
	} else {
		child.g = cur.g
		child.h = newCost
		child.anchorPrefix = cur.anchorPrefix
		child.opsFromAnchor = append(append([]int(nil), cur.opsFromAnchor...), rel.OperatorID)
	}
	return child
}

// materializePlan returns the concrete operator-id sequence and cost for a
// twin node that has just resolved h to 0 at the goal.
func materializePlan(cur *node) Plan {
	ids := append(append([]int(nil), cur.anchorPrefix...), cur.opsFromAnchor...)
	return Plan{OperatorIDs: ids, Cost: cur.planCost}
}
