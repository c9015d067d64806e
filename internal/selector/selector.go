// Package selector implements the standard Selector implementations, each
// satisfying internal/registry's Selector interface without registry ever
// importing this package.
package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/speckdavid/symk-sub001/internal/registry"
	"github.com/speckdavid/symk-sub001/internal/task"
)

// seenSets tracks two hash-indexed sets: plans already accepted and plans
// already rejected, each keyed by an
// order-sensitive hash (two different operator orderings of the same plan
// are distinct plans) so a selector never re-judges the same candidate
// twice.
type seenSets struct {
	accepted map[string]bool
	rejected map[string]bool
}

func newSeenSets() seenSets {
	return seenSets{accepted: map[string]bool{}, rejected: map[string]bool{}}
}

func orderedHash(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

func commutativeHash(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	return orderedHash(sorted)
}

func (s *seenSets) markAccepted(p registry.Plan) { s.accepted[orderedHash(p.OperatorIDs)] = true }
func (s *seenSets) markRejected(p registry.Plan) { s.rejected[orderedHash(p.OperatorIDs)] = true }
func (s *seenSets) judged(p registry.Plan) bool {
	h := orderedHash(p.OperatorIDs)
	return s.accepted[h] || s.rejected[h]
}

// TopK accepts every distinct plan it is offered until NumPlans have been
// collected.
type TopK struct {
	NumPlans int
	Log      zerolog.Logger

	seen  seenSets
	plans []registry.Plan
}

// NewTopK returns a TopK selector collecting numPlans plans.
func NewTopK(numPlans int, log zerolog.Logger) *TopK {
	return &TopK{NumPlans: numPlans, Log: log, seen: newSeenSets()}
}

func (s *TopK) Accept(p registry.Plan) bool {
	if s.seen.judged(p) {
		return false
	}
	s.seen.markAccepted(p)
	s.plans = append(s.plans, p)
	s.Log.Debug().Int("cost", p.Cost).Int("count", len(s.plans)).Msg("top_k accepted plan")
	return true
}

func (s *TopK) Done() bool  { return len(s.plans) >= s.NumPlans }
func (s *TopK) Plans() []registry.Plan { return s.plans }

// IterativeCost accepts the first plan strictly cheaper than the last
// reported cost, and stops once a considered plan's cost exceeds Bound.
type IterativeCost struct {
	Bound int
	Log   zerolog.Logger

	seen       seenSets
	plans      []registry.Plan
	lastCost   int
	haveLast   bool
	exceeded   bool
}

func NewIterativeCost(bound int, log zerolog.Logger) *IterativeCost {
	return &IterativeCost{Bound: bound, Log: log, seen: newSeenSets()}
}

func (s *IterativeCost) Accept(p registry.Plan) bool {
	if p.Cost > s.Bound {
		s.exceeded = true
		return false
	}
	if s.seen.judged(p) {
		return false
	}
	if s.haveLast && p.Cost >= s.lastCost {
		s.seen.markRejected(p)
		return false
	}
	s.seen.markAccepted(p)
	s.lastCost = p.Cost
	s.haveLast = true
	s.plans = append(s.plans, p)
	s.Log.Debug().Int("cost", p.Cost).Msg("iterative_cost accepted cheaper plan")
	return true
}

func (s *IterativeCost) Done() bool          { return s.exceeded }
func (s *IterativeCost) Plans() []registry.Plan { return s.plans }

// Simple accepts only loopless plans: executing the operator sequence
// against Task from InitialState must never revisit a prior state.
type Simple struct {
	Task     task.Task
	NumPlans int
	Log      zerolog.Logger

	seen  seenSets
	plans []registry.Plan
}

func NewSimple(t task.Task, numPlans int, log zerolog.Logger) *Simple {
	return &Simple{Task: t, NumPlans: numPlans, Log: log, seen: newSeenSets()}
}

func (s *Simple) Accept(p registry.Plan) bool {
	if s.seen.judged(p) {
		return false
	}
	if !s.loopless(p) {
		s.seen.markRejected(p)
		return false
	}
	s.seen.markAccepted(p)
	s.plans = append(s.plans, p)
	return true
}

func (s *Simple) loopless(p registry.Plan) bool {
	visited := map[string]bool{}
	state := append([]int(nil), s.Task.InitialState()...)
	visited[stateKey(state)] = true
	for _, opID := range p.OperatorIDs {
		next, ok := task.Apply(s.Task, state, opID)
		if !ok {
			return false
		}
		key := stateKey(next)
		if visited[key] {
			return false
		}
		visited[key] = true
		state = next
	}
	return true
}

func stateKey(state []int) string {
	parts := make([]string, len(state))
	for i, v := range state {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

func (s *Simple) Done() bool          { return len(s.plans) >= s.NumPlans }
func (s *Simple) Plans() []registry.Plan { return s.plans }

// Unordered accepts a plan only if its multiset of operator ids has never
// been seen before, regardless of order.
type Unordered struct {
	NumPlans int
	Log      zerolog.Logger

	accepted map[string]bool
	plans    []registry.Plan
}

func NewUnordered(numPlans int, log zerolog.Logger) *Unordered {
	return &Unordered{NumPlans: numPlans, Log: log, accepted: map[string]bool{}}
}

func (s *Unordered) Accept(p registry.Plan) bool {
	h := commutativeHash(p.OperatorIDs)
	if s.accepted[h] {
		return false
	}
	s.accepted[h] = true
	s.plans = append(s.plans, p)
	return true
}

func (s *Unordered) Done() bool          { return len(s.plans) >= s.NumPlans }
func (s *Unordered) Plans() []registry.Plan { return s.plans }

// TopKEven accepts only plans of even length.
type TopKEven struct {
	NumPlans int

	seen  seenSets
	plans []registry.Plan
}

func NewTopKEven(numPlans int) *TopKEven {
	return &TopKEven{NumPlans: numPlans, seen: newSeenSets()}
}

func (s *TopKEven) Accept(p registry.Plan) bool {
	if s.seen.judged(p) {
		return false
	}
	if len(p.OperatorIDs)%2 != 0 {
		s.seen.markRejected(p)
		return false
	}
	s.seen.markAccepted(p)
	s.plans = append(s.plans, p)
	return true
}

func (s *TopKEven) Done() bool          { return len(s.plans) >= s.NumPlans }
func (s *TopKEven) Plans() []registry.Plan { return s.plans }

// Validation re-executes a candidate plan against the original,
// non-transformed task (OriginalTask), translating any SDAC facet
// operator id back to its parent via FacetOf, accepting only plans that
// are applicable step by step and reach the goal.
type Validation struct {
	OriginalTask task.Task
	SearchTask   task.Task // the facet-expanded task the plan's operator ids refer to
	NumPlans     int
	Log          zerolog.Logger

	seen  seenSets
	plans []registry.Plan
}

func NewValidation(original, searchTask task.Task, numPlans int, log zerolog.Logger) *Validation {
	return &Validation{OriginalTask: original, SearchTask: searchTask, NumPlans: numPlans, Log: log, seen: newSeenSets()}
}

func (s *Validation) Accept(p registry.Plan) bool {
	if s.seen.judged(p) {
		return false
	}
	if !s.validates(p) {
		s.seen.markRejected(p)
		s.Log.Debug().Ints("ops", p.OperatorIDs).Msg("validation selector rejected plan")
		return false
	}
	s.seen.markAccepted(p)
	s.plans = append(s.plans, p)
	return true
}

func (s *Validation) validates(p registry.Plan) bool {
	state := append([]int(nil), s.OriginalTask.InitialState()...)
	for _, opID := range p.OperatorIDs {
		origID := s.originalOperatorID(opID)
		next, ok := task.Apply(s.OriginalTask, state, origID)
		if !ok {
			return false
		}
		state = next
	}
	return task.IsGoal(s.OriginalTask, state)
}

func (s *Validation) originalOperatorID(opID int) int {
	for _, op := range s.SearchTask.Operators() {
		if op.ID == opID {
			if op.FacetOf != -1 {
				return op.FacetOf
			}
			return op.ID
		}
	}
	return opID
}

func (s *Validation) Done() bool          { return len(s.plans) >= s.NumPlans }
func (s *Validation) Plans() []registry.Plan { return s.plans }

// Custom wraps an arbitrary acceptance predicate and stop condition (e.g. an
// "even length" moral-permissibility filter) for a domain-specific selector
// that doesn't fit any of the named strategies above.
type Custom struct {
	AcceptFn func(registry.Plan) bool
	DoneFn   func() bool

	seen  seenSets
	plans []registry.Plan
}

func NewCustom(accept func(registry.Plan) bool, done func() bool) *Custom {
	return &Custom{AcceptFn: accept, DoneFn: done, seen: newSeenSets()}
}

func (s *Custom) Accept(p registry.Plan) bool {
	if s.seen.judged(p) {
		return false
	}
	if !s.AcceptFn(p) {
		s.seen.markRejected(p)
		return false
	}
	s.seen.markAccepted(p)
	s.plans = append(s.plans, p)
	return true
}

func (s *Custom) Done() bool          { return s.DoneFn() }
func (s *Custom) Plans() []registry.Plan { return s.plans }
