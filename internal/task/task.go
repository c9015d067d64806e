// Package task defines the read-only planning-task collaborator the rest of
// the planner consumes: variables, axioms, operators, initial state and
// goal. It deliberately knows nothing about BDDs — SymVariables (C4) is the
// only component that turns a Task into decision-diagram form.
package task

import "fmt"

// Literal is a single variable/value assignment, the atom conditions and
// effects are built from.
type Literal struct {
	Var int
	Val int
}

// Axiom is a derived-predicate rule head <- body, body being a conjunction
// of literals over already-settled or same-layer variables.
type Axiom struct {
	Head Literal
	Body []Literal
}

// ConditionalEffect assigns Lit when every entry of Condition holds; an
// unconditional effect has an empty Condition.
type ConditionalEffect struct {
	Condition []Literal
	Lit       Literal
}

// Operator is a planning action: a conjunction of preconditions, a set of
// (conditional) effects, and either a constant cost or a cost expression
// string to be parsed by internal/sdac.
type Operator struct {
	ID        int
	Name      string
	Pre       []Literal
	Eff       []ConditionalEffect
	Cost      int
	CostExpr  string
	FacetOf   int // -1 for an original operator; original operator id for an SDAC facet
}

// Task is the read-only interface the symbolic planner consumes. Domain
// size, derived-ness and axiom layering are all per-variable.
type Task interface {
	NumVars() int
	DomainSize(v int) int
	IsDerived(v int) bool
	AxiomLayer(v int) int // undefined (0) for non-derived variables
	DefaultValue(v int) int
	Axioms() []Axiom
	Operators() []Operator
	InitialState() []int
	Goal() []Literal
}

// StaticTask is a plain in-memory Task, the shape internal/planio's YAML
// reader decodes into and the shape tests build directly.
type StaticTask struct {
	Domains    []int
	Derived    []bool
	Layers     []int
	Defaults   []int
	AxiomsList []Axiom
	Ops        []Operator
	Initial    []int
	GoalLits   []Literal

	// Names holds each variable's source name, in Domains order. It is
	// only populated by readers that had names to begin with (planio's
	// YAML task loader); nil otherwise. sdac cost-expression evaluation
	// is the only consumer — everything else addresses variables by index.
	Names []string
}

// VarIndex resolves name against Names, satisfying sdac.VarIndex.
func (t *StaticTask) VarIndex(name string) (int, bool) {
	for i, n := range t.Names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (t *StaticTask) NumVars() int             { return len(t.Domains) }
func (t *StaticTask) DomainSize(v int) int      { return t.Domains[v] }
func (t *StaticTask) IsDerived(v int) bool      { return v < len(t.Derived) && t.Derived[v] }
func (t *StaticTask) AxiomLayer(v int) int      { return t.Layers[v] }
func (t *StaticTask) DefaultValue(v int) int    { return t.Defaults[v] }
func (t *StaticTask) Axioms() []Axiom           { return t.AxiomsList }
func (t *StaticTask) Operators() []Operator     { return t.Ops }
func (t *StaticTask) InitialState() []int       { return t.Initial }
func (t *StaticTask) Goal() []Literal           { return t.GoalLits }

// Apply executes operator opID against state (one entry per variable) and
// reports the successor and whether the operator was applicable. Used only
// by the validation plan selector, never on the hot BDD path.
func Apply(t Task, state []int, opID int) ([]int, bool) {
	var op *Operator
	for i := range t.Operators() {
		if t.Operators()[i].ID == opID {
			op = &t.Operators()[i]
			break
		}
	}
	if op == nil {
		return nil, false
	}
	for _, lit := range op.Pre {
		if state[lit.Var] != lit.Val {
			return nil, false
		}
	}
	next := append([]int(nil), state...)
	for _, eff := range op.Eff {
		applicable := true
		for _, cond := range eff.Condition {
			if state[cond.Var] != cond.Val {
				applicable = false
				break
			}
		}
		if applicable {
			next[eff.Lit.Var] = eff.Lit.Val
		}
	}
	applyAxioms(t, next)
	return next, true
}

// applyAxioms evaluates derived variables bottom-up by layer, the plain-state
// analogue of internal/axiom's BDD fixed point, used only by Apply/IsGoal.
func applyAxioms(t Task, state []int) {
	maxLayer := 0
	for v := 0; v < t.NumVars(); v++ {
		if t.IsDerived(v) && t.AxiomLayer(v) > maxLayer {
			maxLayer = t.AxiomLayer(v)
		}
	}
	for v := 0; v < t.NumVars(); v++ {
		if t.IsDerived(v) {
			state[v] = t.DefaultValue(v)
		}
	}
	for layer := 0; layer <= maxLayer; layer++ {
		changed := true
		for changed {
			changed = false
			for _, ax := range t.Axioms() {
				if t.AxiomLayer(ax.Head.Var) != layer {
					continue
				}
				if state[ax.Head.Var] == ax.Head.Val {
					continue
				}
				ok := true
				for _, lit := range ax.Body {
					if state[lit.Var] != lit.Val {
						ok = false
						break
					}
				}
				if ok {
					state[ax.Head.Var] = ax.Head.Val
					changed = true
				}
			}
		}
	}
}

// IsGoal reports whether state satisfies every goal literal.
func IsGoal(t Task, state []int) bool {
	for _, lit := range t.Goal() {
		if state[lit.Var] != lit.Val {
			return false
		}
	}
	return true
}

// ValidateOperatorIndices ensures every literal in every operator and axiom
// names an in-range variable/value, the sanity check internal/planio's YAML
// loader runs right after decoding.
func ValidateOperatorIndices(t Task) error {
	checkLit := func(l Literal) error {
		if l.Var < 0 || l.Var >= t.NumVars() {
			return fmt.Errorf("variable index %d out of range [0,%d)", l.Var, t.NumVars())
		}
		if l.Val < 0 || l.Val >= t.DomainSize(l.Var) {
			return fmt.Errorf("value %d out of range for variable %d (domain %d)", l.Val, l.Var, t.DomainSize(l.Var))
		}
		return nil
	}
	for _, op := range t.Operators() {
		for _, l := range op.Pre {
			if err := checkLit(l); err != nil {
				return fmt.Errorf("operator %q precondition: %w", op.Name, err)
			}
		}
		for _, e := range op.Eff {
			if err := checkLit(e.Lit); err != nil {
				return fmt.Errorf("operator %q effect: %w", op.Name, err)
			}
		}
	}
	for _, l := range t.Goal() {
		if err := checkLit(l); err != nil {
			return fmt.Errorf("goal: %w", err)
		}
	}
	return nil
}
