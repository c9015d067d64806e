// Package config implements the planner's configuration-key table, loaded
// from YAML and overridable from CLI flags.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Transform names the task-transform configuration value (the
// "transform: task-transform" key); the planner-level enum of
// internal/task's concrete Transform constructors.
type Transform string

const (
	TransformUnchanged Transform = "unchanged"
	TransformUnitCost  Transform = "unit_cost"
	TransformPlusOne   Transform = "plus_one"
)

// Config mirrors the planner's configuration-key table one field at a time.
// The Cudd*-named sizing hints keep their original names for continuity
// with that table even though this engine is not CUDD-backed.
type Config struct {
	NumPlans      int  `yaml:"num_plans"`
	DumpPlans     bool `yaml:"dump_plans"`
	Simple        bool `yaml:"simple"`
	Silent        bool `yaml:"silent"`
	PlanCostBound int  `yaml:"plan_cost_bound"`

	GamerOrdering     bool `yaml:"gamer_ordering"`
	DynamicReordering bool `yaml:"dynamic_reordering"`

	CuddInitNodes           int `yaml:"cudd_init_nodes"`
	CuddInitCacheSize       int `yaml:"cudd_init_cache_size"`
	CuddInitAvailableMemory int `yaml:"cudd_init_available_memory"`

	// IdentityReduction enables the Identity reduction rule on the symbolic
	// variables' forest, collapsing single-entry "unchanged" nodes directly
	// into their child instead of leaving them as ordinary internal nodes.
	IdentityReduction bool `yaml:"identity_reduction"`

	Transform Transform `yaml:"transform"`
}

// Default returns the configuration a bare `symplan solve` invocation runs
// with, absent a config file or flag overrides.
func Default() Config {
	return Config{
		NumPlans:                1,
		DumpPlans:               false,
		Simple:                  false,
		Silent:                  false,
		PlanCostBound:           -1, // unbounded
		GamerOrdering:           false,
		DynamicReordering:       false,
		CuddInitNodes:           1 << 16,
		CuddInitCacheSize:       1 << 14,
		CuddInitAvailableMemory: 0, // 0 means "no cap"
		Transform:               TransformUnchanged,
	}
}

// Load reads a YAML config file at path, overlaying its fields on top of
// Default(). A missing key keeps the default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Overrides carries CLI-flag values to layer on top of a loaded Config; a
// nil pointer field means "flag not set, keep the config/default value".
type Overrides struct {
	NumPlans          *int
	DumpPlans         *bool
	Simple            *bool
	Silent            *bool
	PlanCostBound     *int
	GamerOrdering     *bool
	DynamicReordering *bool
	Transform         *Transform
}

// Apply layers any set override fields onto cfg, CLI flags winning over
// whatever Load (or Default) produced.
func (o Overrides) Apply(cfg Config) Config {
	if o.NumPlans != nil {
		cfg.NumPlans = *o.NumPlans
	}
	if o.DumpPlans != nil {
		cfg.DumpPlans = *o.DumpPlans
	}
	if o.Simple != nil {
		cfg.Simple = *o.Simple
	}
	if o.Silent != nil {
		cfg.Silent = *o.Silent
	}
	if o.PlanCostBound != nil {
		cfg.PlanCostBound = *o.PlanCostBound
	}
	if o.GamerOrdering != nil {
		cfg.GamerOrdering = *o.GamerOrdering
	}
	if o.DynamicReordering != nil {
		cfg.DynamicReordering = *o.DynamicReordering
	}
	if o.Transform != nil {
		cfg.Transform = *o.Transform
	}
	return cfg
}
