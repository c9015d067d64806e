package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/speckdavid/symk-sub001/internal/axiom"
	"github.com/speckdavid/symk-sub001/internal/config"
	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/metrics"
	"github.com/speckdavid/symk-sub001/internal/planio"
	"github.com/speckdavid/symk-sub001/internal/registry"
	"github.com/speckdavid/symk-sub001/internal/sdac"
	"github.com/speckdavid/symk-sub001/internal/search"
	"github.com/speckdavid/symk-sub001/internal/selector"
	"github.com/speckdavid/symk-sub001/internal/symvars"
	"github.com/speckdavid/symk-sub001/internal/task"
	"github.com/speckdavid/symk-sub001/internal/transition"
)

type solveFlags struct {
	configPath    string
	direction     string
	selectorName  string
	numPlans      int
	planCostBound int
	simple        bool
	silent        bool
	dumpPlans     bool
	transform     string
	planFormat    string
	planFile      string
	metricsAddr   string
	dotFile       string

	// changed records which flags the user actually passed, so
	// applyFlagOverrides only overlays flags onto a loaded config that
	// were explicitly set — a bool flag's zero value must not stomp a
	// config file's true.
	changed map[string]bool
}

func (fl solveFlags) isSet(name string) bool { return fl.changed[name] }

func newSolveCmd() *cobra.Command {
	var fl solveFlags

	cmd := &cobra.Command{
		Use:   "solve <task.yaml>",
		Short: "Find plans for a classical planning task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fl.changed = map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { fl.changed[f.Name] = true })
			return runSolve(args[0], fl)
		},
	}

	var f *pflag.FlagSet = cmd.Flags()
	f.StringVar(&fl.configPath, "config", "", "YAML configuration file (see planio task file keys)")
	f.StringVar(&fl.direction, "direction", "bi", "search direction: fw, bw, or bi (a cut only ever fires in bidirectional mode)")
	f.StringVar(&fl.selectorName, "selector", "top_k", "plan selector: top_k, iterative_cost, simple, unordered, top_k_even, validation")
	f.IntVarP(&fl.numPlans, "num-plans", "n", 0, "target plan count (0 keeps the config/default value)")
	f.IntVar(&fl.planCostBound, "plan-cost-bound", 0, "upper-bound cap for the iterative-cost selector (0 keeps the config/default value)")
	f.BoolVar(&fl.simple, "simple", false, "enable simple-plan pruning in the registry")
	f.BoolVar(&fl.silent, "silent", false, "suppress per-step bound/queue logging")
	f.BoolVar(&fl.dumpPlans, "dump-plans", false, "echo accepted plans to stdout")
	f.StringVar(&fl.transform, "transform", "", "task-transform: unchanged, unit_cost, or plus_one")
	f.StringVar(&fl.planFormat, "plan-format", "text", "plan manager output format: text or json")
	f.StringVar(&fl.planFile, "plan-file", "sas_plan", "plan manager output filename (without the .N suffix Text adds)")
	f.StringVar(&fl.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this host:port while searching")
	f.StringVar(&fl.dotFile, "dot-file", "", "if set, write a Graphviz dump of the initial- and goal-state BDDs to this path before searching")

	return cmd
}

func runSolve(taskPath string, fl solveFlags) error {
	cfg := config.Default()
	if fl.configPath != "" {
		loaded, err := config.Load(fl.configPath)
		if err != nil {
			return fmt.Errorf("symplan: loading config: %w", err)
		}
		cfg = loaded
	}
	cfg = applyFlagOverrides(cfg, fl)

	log := newLogger(cfg.Silent)

	original, err := planio.LoadTask(taskPath)
	if err != nil {
		return fmt.Errorf("symplan: loading task: %w", err)
	}

	var t task.Task = original
	switch cfg.Transform {
	case config.TransformUnitCost:
		t = task.UnitCostTransform(original)
	case config.TransformPlusOne:
		t = task.PlusOneTransform(original)
	default:
		t = task.IdentityTransform(original)
	}

	svOpts := []ddkit.Option{ddkit.Nodesize(cfg.CuddInitNodes), ddkit.Cachesize(cfg.CuddInitCacheSize)}
	if cfg.IdentityReduction {
		svOpts = append(svOpts, ddkit.WithReduction(ddkit.Identity))
	}
	sv, err := symvars.New(t, cfg.GamerOrdering, 0, svOpts...)
	if err != nil {
		return fmt.Errorf("symplan: building symbolic variables: %w", err)
	}

	axioms, err := axiom.Compile(t, sv)
	if err != nil {
		return fmt.Errorf("symplan: compiling axioms: %w", err)
	}

	validStates, err := sv.ValidStates()
	if err != nil {
		return fmt.Errorf("symplan: building valid-states BDD: %w", err)
	}

	searchTask, relations, err := buildRelations(t, original, sv, validStates)
	if err != nil {
		return fmt.Errorf("symplan: building transition relations: %w", err)
	}

	initState, err := sv.StateBDD(t.InitialState())
	if err != nil {
		return fmt.Errorf("symplan: building initial-state BDD: %w", err)
	}
	goalState, err := literalsBDD(sv, axioms, t, t.Goal())
	if err != nil {
		return fmt.Errorf("symplan: building goal BDD: %w", err)
	}

	if fl.dotFile != "" {
		if err := dumpDOT(fl.dotFile, sv.Forest(), initState, goalState); err != nil {
			return fmt.Errorf("symplan: writing dot dump: %w", err)
		}
	}

	var bwdInit ddkit.Edge
	if fl.direction != "fw" {
		bwdInit = goalState
	}

	searchOpts := []search.Option{search.WithCutHandler(func(c search.SolutionCut) {
		if err := reg.RegisterSolution(c); err != nil {
			log.Warn().Err(err).Msg("dropping unregisterable solution cut")
		}
	})}
	if cfg.CuddInitAvailableMemory > 0 {
		searchOpts = append(searchOpts, search.WithMaxNodes(cfg.CuddInitAvailableMemory))
	}
	var reg *registry.Registry
	s := search.New(sv, validStates, relations, initState, bwdInit, searchOpts...)
	reg = registry.New(s, registry.Mode{Simple: cfg.Simple, Single: cfg.NumPlans == 1})

	var mc *metrics.Collectors
	if fl.metricsAddr != "" {
		promReg := prometheus.NewRegistry()
		mc = metrics.Register(promReg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: fl.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if err := s.Start(); err != nil {
		return fmt.Errorf("symplan: starting search: %w", err)
	}
	for !s.Done() {
		more, err := s.Step()
		if err != nil {
			return fmt.Errorf("symplan: search step: %w", err)
		}
		if !cfg.Silent {
			log.Info().Int("lower_bound", s.LowerBound()).Int("upper_bound", s.UpperBound()).Msg("search step")
		}
		if mc != nil {
			mc.ObserveForest("fwd", s.Forest())
			mc.ObserveFrontier("fwd", s.ForwardFrontier(), sv)
			mc.ObserveClosed("fwd", s.ForwardFrontier(), s.Forest(), sv)
			if s.Bidirectional() {
				mc.ObserveFrontier("bwd", s.BackwardFrontier(), sv)
				mc.ObserveClosed("bwd", s.BackwardFrontier(), s.Forest(), sv)
			}
		}
		if !more {
			break
		}
	}

	sel, err := buildSelector(fl, cfg, original, searchTask, log)
	if err != nil {
		return err
	}

	bound := s.UpperBound() + 1
	if cfg.PlanCostBound >= 0 {
		bound = cfg.PlanCostBound + 1
	}
	if err := reg.ConstructCheaperSolutions(bound, sel); err != nil {
		return fmt.Errorf("symplan: reconstructing plans: %w", err)
	}

	mgr, err := buildPlanManager(fl, log)
	if err != nil {
		return err
	}

	toOriginal := originalOperatorIDs(searchTask)
	plans := sel.Plans()
	if mc != nil {
		for range plans {
			mc.RecordAccepted()
		}
	}
	for i, p := range plans {
		if err := mgr.SavePlan(translatePlan(p, toOriginal), original, cfg.DumpPlans, len(plans) > 1); err != nil {
			return fmt.Errorf("symplan: saving plan %d: %w", i, err)
		}
	}
	if len(plans) == 0 {
		log.Warn().Msg("no plan found")
	}
	return nil
}

func applyFlagOverrides(cfg config.Config, fl solveFlags) config.Config {
	var o config.Overrides
	if fl.isSet("simple") {
		o.Simple = &fl.simple
	}
	if fl.isSet("silent") {
		o.Silent = &fl.silent
	}
	if fl.isSet("dump-plans") {
		o.DumpPlans = &fl.dumpPlans
	}
	if fl.isSet("num-plans") || fl.numPlans > 0 {
		o.NumPlans = &fl.numPlans
	}
	if fl.isSet("plan-cost-bound") || fl.planCostBound > 0 {
		o.PlanCostBound = &fl.planCostBound
	}
	if fl.transform != "" {
		tr := config.Transform(fl.transform)
		o.Transform = &tr
	}
	return o.Apply(cfg)
}

// buildRelations compiles one transition.Relation per operator, splitting
// any SDAC (state-dependent-cost) operator into facets first (C6) and
// folding the facets into a copy of t whose Operators() list replaces the
// parent with its facets, each tagged FacetOf the parent's id.
func buildRelations(t task.Task, names *task.StaticTask, sv *symvars.SymVariables, validStates ddkit.Edge) (task.Task, []*transition.Relation, error) {
	var facetOps []task.Operator
	var relations []*transition.Relation
	nextID := 0
	for _, op := range t.Operators() {
		if op.ID >= nextID {
			nextID = op.ID + 1
		}
	}

	for _, op := range t.Operators() {
		if op.CostExpr == "" {
			rel, err := transition.Build(t, sv, op, validStates)
			if err != nil {
				return nil, nil, err
			}
			relations = append(relations, rel)
			facetOps = append(facetOps, op)
			continue
		}
		expr, err := sdac.Parse(op.CostExpr)
		if err != nil {
			return nil, nil, fmt.Errorf("operator %q: %w", op.Name, err)
		}
		costADD, err := sdac.Eval(expr, sv, names.VarIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("operator %q: %w", op.Name, err)
		}
		origPre, err := sv.PartialStateBDD(litMap(op.Pre))
		if err != nil {
			return nil, nil, err
		}
		facets, err := sdac.Split(sv, op, origPre, costADD)
		if err != nil {
			return nil, nil, err
		}
		for i, facet := range facets {
			facetOp := op
			facetOp.ID = nextID
			facetOp.Name = fmt.Sprintf("%s#%d", op.Name, i)
			facetOp.Cost = facet.Cost
			facetOp.CostExpr = ""
			facetOp.FacetOf = op.ID
			nextID++

			rel, err := transition.BuildFacet(t, sv, facetOp, facet.Precondition, facet.Cost, validStates)
			if err != nil {
				return nil, nil, err
			}
			relations = append(relations, rel)
			facetOps = append(facetOps, facetOp)
		}
	}

	return &facetedTask{Task: t, ops: facetOps}, relations, nil
}

// facetedTask overrides Operators() with a (possibly facet-expanded) list,
// the task whose ids internal/registry's reconstructed plans actually use.
type facetedTask struct {
	task.Task
	ops []task.Operator
}

func (t *facetedTask) Operators() []task.Operator { return t.ops }

func litMap(lits []task.Literal) map[int]int {
	m := make(map[int]int, len(lits))
	for _, l := range lits {
		m[l.Var] = l.Val
	}
	return m
}

// literalsBDD conjoins a set of literals, substituting each derived
// variable's literal with its compiled primary representation (C5) rather
// than addressing the derived variable's own bits directly.
func literalsBDD(sv *symvars.SymVariables, axioms *axiom.Compilation, t task.Task, lits []task.Literal) (ddkit.Edge, error) {
	f := sv.Forest()
	terms := make([]ddkit.Edge, 0, len(lits))
	for _, lit := range lits {
		var term ddkit.Edge
		var err error
		if t.IsDerived(lit.Var) {
			term, err = axioms.PrimaryRepresentation(t, lit.Var, lit.Val)
		} else {
			term, err = sv.PartialStateBDD(map[int]int{lit.Var: lit.Val})
		}
		if err != nil {
			return ddkit.Edge{}, err
		}
		terms = append(terms, term)
	}
	return f.And(terms...)
}

// plansCollector is satisfied by every internal/selector implementation;
// buildSelector returns it alongside the plain registry.Selector view so
// runSolve can drain the accepted plans once reconstruction finishes.
type plansCollector interface {
	registry.Selector
	Plans() []registry.Plan
}

func buildSelector(fl solveFlags, cfg config.Config, original, searchTask task.Task, log zerolog.Logger) (plansCollector, error) {
	numPlans := cfg.NumPlans
	if numPlans <= 0 {
		numPlans = 1
	}
	switch fl.selectorName {
	case "top_k", "":
		return selector.NewTopK(numPlans, log), nil
	case "iterative_cost":
		bound := cfg.PlanCostBound
		if bound < 0 {
			bound = numPlans
		}
		return selector.NewIterativeCost(bound, log), nil
	case "simple":
		return selector.NewSimple(searchTask, numPlans, log), nil
	case "unordered":
		return selector.NewUnordered(numPlans, log), nil
	case "top_k_even":
		return selector.NewTopKEven(numPlans), nil
	case "validation":
		return selector.NewValidation(original, searchTask, numPlans, log), nil
	default:
		return nil, fmt.Errorf("symplan: unknown selector %q", fl.selectorName)
	}
}

// originalOperatorIDs maps every id a Relation may carry (a facet's own id)
// back to the id its plan is reported under — the parent's id if it is an
// SDAC facet, its own id otherwise. registry.Plan.OperatorIDs must refer to
// the original task, never a facet.
func originalOperatorIDs(searchTask task.Task) map[int]int {
	m := make(map[int]int, len(searchTask.Operators()))
	for _, op := range searchTask.Operators() {
		if op.FacetOf != -1 {
			m[op.ID] = op.FacetOf
		} else {
			m[op.ID] = op.ID
		}
	}
	return m
}

func translatePlan(p registry.Plan, toOriginal map[int]int) registry.Plan {
	ids := make([]int, len(p.OperatorIDs))
	for i, id := range p.OperatorIDs {
		if orig, ok := toOriginal[id]; ok {
			ids[i] = orig
		} else {
			ids[i] = id
		}
	}
	return registry.Plan{OperatorIDs: ids, Cost: p.Cost}
}

// dumpDOT writes a Graphviz rendering of roots to path, for inspecting the
// initial- and goal-state BDDs a run started from.
func dumpDOT(path string, f *ddkit.Forest, roots ...ddkit.Edge) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.DOT(out, roots...)
}

func buildPlanManager(fl solveFlags, log zerolog.Logger) (planio.Manager, error) {
	switch fl.planFormat {
	case "text", "":
		return planio.NewText(fl.planFile, os.Stdout, log), nil
	case "json":
		return planio.NewJSON(fl.planFile, os.Stdout, log), nil
	default:
		return nil, fmt.Errorf("symplan: unknown plan format %q", fl.planFormat)
	}
}
