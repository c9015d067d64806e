// Package metrics implements pure read-outs of state internal/ddkit,
// internal/search and internal/registry already maintain, registered on a
// caller-supplied *prometheus.Registry. It owns no planning logic, only
// instrumentation hooks called after each step or registration.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/search"
	"github.com/speckdavid/symk-sub001/internal/symvars"
)

// Collectors bundles every metric this package registers.
type Collectors struct {
	NodesActive   *prometheus.GaugeVec
	NodesProduced *prometheus.CounterVec
	GCRuns        *prometheus.CounterVec
	CacheHitRatio *prometheus.GaugeVec
	FrontierSize  *prometheus.GaugeVec
	ClosedSize    *prometheus.GaugeVec
	PlansAccepted prometheus.Counter
	PlansRejected prometheus.Counter

	// lastProduced tracks Forest.Stats().Produced's last-seen value per
	// forest label, since that field is a lifetime total but
	// NodesProduced must only ever be incremented by the delta.
	lastProduced map[string]int
}

// Register creates and registers every collector on reg.
func Register(reg *prometheus.Registry) *Collectors {
	c := &Collectors{
		NodesActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ddkit_nodes_active",
			Help: "Live node count per forest.",
		}, []string{"forest"}),
		NodesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddkit_nodes_produced_total",
			Help: "Nodes ever allocated in a forest.",
		}, []string{"forest"}),
		GCRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddkit_gc_runs_total",
			Help: "Optimistic/pessimistic GC sweeps run.",
		}, []string{"forest", "mode"}),
		CacheHitRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ddkit_cache_hit_ratio",
			Help: "Per-cache hit ratio.",
		}, []string{"forest", "cache"}),
		FrontierSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "search_frontier_size",
			Help: "Open-list size per cost layer.",
		}, []string{"direction", "g"}),
		ClosedSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "search_closed_size",
			Help: "Total closed states (BDD-sized estimate via satcount).",
		}, []string{"direction"}),
		PlansAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_plans_accepted_total",
			Help: "Plans accepted by the active selector.",
		}),
		PlansRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_plans_rejected_total",
			Help: "Plans rejected by the active selector.",
		}),
		lastProduced: map[string]int{},
	}
	reg.MustRegister(
		c.NodesActive, c.NodesProduced, c.GCRuns, c.CacheHitRatio,
		c.FrontierSize, c.ClosedSize, c.PlansAccepted, c.PlansRejected,
	)
	return c
}

// ObserveForest reads forest's current Stats and updates the per-forest
// gauges/counters; label identifies the forest (e.g. "fwd", "bwd").
func (c *Collectors) ObserveForest(label string, f *ddkit.Forest) {
	st := f.Stats()
	c.NodesActive.WithLabelValues(label).Set(float64(st.Storage.Used))

	delta := st.Produced - c.lastProduced[label]
	if delta > 0 {
		c.NodesProduced.WithLabelValues(label).Add(float64(delta))
	}
	c.lastProduced[label] = st.Produced

	total := st.Cache.Hits + st.Cache.Misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(st.Cache.Hits) / float64(total)
	}
	c.CacheHitRatio.WithLabelValues(label, "ops").Set(ratio)
}

// ObserveFrontier updates search_frontier_size for every g-layer fr
// currently holds open, using sv to turn each layer's BDD into a state
// count estimate.
func (c *Collectors) ObserveFrontier(direction string, fr *search.Frontier, sv *symvars.SymVariables) {
	for _, g := range fr.OpenCosts() {
		e, ok := fr.OpenAt(g)
		if !ok {
			continue
		}
		c.FrontierSize.WithLabelValues(direction, fmt.Sprintf("%d", g)).Set(sv.NumStates(e))
	}
}

// ObserveClosed updates search_closed_size with fr's total closed state
// count (the union of every closed layer).
func (c *Collectors) ObserveClosed(direction string, fr *search.Frontier, f *ddkit.Forest, sv *symvars.SymVariables) {
	closed, err := fr.GetClosed(f)
	if err != nil {
		return
	}
	c.ClosedSize.WithLabelValues(direction).Set(sv.NumStates(closed))
}

// RecordGCRun increments the GC-runs counter for forest/mode.
func (c *Collectors) RecordGCRun(forest, mode string) {
	c.GCRuns.WithLabelValues(forest, mode).Inc()
}

// RecordAccepted/RecordRejected track selector decisions.
func (c *Collectors) RecordAccepted() { c.PlansAccepted.Inc() }
func (c *Collectors) RecordRejected() { c.PlansRejected.Inc() }
