package planio

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/speckdavid/symk-sub001/internal/task"
)

// yamlLiteral mirrors task.Literal in wire form: a variable index and a
// value, both resolved against the position of the matching entry in
// yamlTaskFile.Variables.
type yamlLiteral struct {
	Var int `yaml:"var"`
	Val int `yaml:"val"`
}

type yamlVariable struct {
	Name    string `yaml:"name"`
	Domain  int    `yaml:"domain"`
	Derived bool   `yaml:"derived"`
	Layer   int    `yaml:"layer"`
	Default int    `yaml:"default"`
}

type yamlAxiom struct {
	Head yamlLiteral   `yaml:"head"`
	Body []yamlLiteral `yaml:"body"`
}

type yamlConditionalEffect struct {
	Condition []yamlLiteral `yaml:"condition"`
	Var       int           `yaml:"var"`
	Val       int           `yaml:"val"`
}

type yamlOperator struct {
	Name     string                  `yaml:"name"`
	Pre      []yamlLiteral           `yaml:"pre"`
	Eff      []yamlConditionalEffect `yaml:"eff"`
	Cost     *int                    `yaml:"cost"`
	CostExpr string                  `yaml:"cost_expr"`
}

// yamlTaskFile is the on-disk task format: variables, derived markers
// inline on each variable, axioms, operators, initial state and goal,
// chosen as YAML the way the rest of the pack (cuemby/warren, opal)
// encodes structured input files.
type yamlTaskFile struct {
	Variables    []yamlVariable `yaml:"variables"`
	Axioms       []yamlAxiom    `yaml:"axioms"`
	Operators    []yamlOperator `yaml:"operators"`
	InitialState []int          `yaml:"initial_state"`
	Goal         []yamlLiteral  `yaml:"goal"`
}

// LoadTask reads a YAML task file from path and decodes it into a
// task.StaticTask.
func LoadTask(path string) (*task.StaticTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planio: reading task file %s: %w", path, err)
	}
	return ParseTask(data)
}

// ParseTask decodes a YAML task document's bytes into a task.StaticTask.
func ParseTask(data []byte) (*task.StaticTask, error) {
	var doc yamlTaskFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("planio: parsing task file: %w", err)
	}

	t := &task.StaticTask{
		Domains:  make([]int, len(doc.Variables)),
		Derived:  make([]bool, len(doc.Variables)),
		Layers:   make([]int, len(doc.Variables)),
		Defaults: make([]int, len(doc.Variables)),
		Names:    make([]string, len(doc.Variables)),
		Initial:  doc.InitialState,
	}
	for i, v := range doc.Variables {
		t.Domains[i] = v.Domain
		t.Derived[i] = v.Derived
		t.Layers[i] = v.Layer
		t.Defaults[i] = v.Default
		t.Names[i] = v.Name
	}
	for _, ax := range doc.Axioms {
		t.AxiomsList = append(t.AxiomsList, task.Axiom{
			Head: task.Literal{Var: ax.Head.Var, Val: ax.Head.Val},
			Body: toLiterals(ax.Body),
		})
	}
	for id, op := range doc.Operators {
		converted := task.Operator{
			ID:      id,
			Name:    op.Name,
			Pre:     toLiterals(op.Pre),
			FacetOf: -1,
		}
		for _, eff := range op.Eff {
			converted.Eff = append(converted.Eff, task.ConditionalEffect{
				Condition: toLiterals(eff.Condition),
				Lit:       task.Literal{Var: eff.Var, Val: eff.Val},
			})
		}
		if op.Cost != nil {
			converted.Cost = *op.Cost
		} else {
			converted.CostExpr = op.CostExpr
		}
		t.Ops = append(t.Ops, converted)
	}
	for _, g := range doc.Goal {
		t.GoalLits = append(t.GoalLits, task.Literal{Var: g.Var, Val: g.Val})
	}
	return t, nil
}

func toLiterals(in []yamlLiteral) []task.Literal {
	out := make([]task.Literal, len(in))
	for i, l := range in {
		out[i] = task.Literal{Var: l.Var, Val: l.Val}
	}
	return out
}
