// Package workflows expands campaign configuration blocks into concrete
// workflows. Each workflow type has a Factory that builds the command line
// for its pipeline tool; subcampaign types expand one block into several
// workflows.
package workflows

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/me/campman/pkg/model"
)

// Factory builds the workflows described by one configuration block. A block
// for a plain type yields one workflow; subcampaign types yield several.
type Factory func(cfg map[string]any) ([]*model.Workflow, error)

// Registry maps workflow type names to factories. Construct it explicitly at
// startup; there is no package-level registration.
type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "workflow-registry"),
	}
}

// Register adds a factory under a workflow type name.
func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
	r.logger.Debug("workflow type registered", "type", typ)
}

// Get returns the factory for a workflow type.
func (r *Registry) Get(typ string) (Factory, error) {
	f, ok := r.factories[typ]
	if !ok {
		return nil, &model.ConfigError{Section: typ, Message: "unknown workflow type"}
	}
	return f, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Expand builds all workflows for a set of configuration blocks, keyed by
// workflow type. Blocks expand in sorted type order so the resulting IDs are
// stable; unknown types are an error before anything is submitted.
func (r *Registry) Expand(blocks map[string]map[string]any) ([]*model.Workflow, error) {
	types := make([]string, 0, len(blocks))
	for t := range blocks {
		types = append(types, t)
	}
	sort.Strings(types)

	var all []*model.Workflow
	for _, typ := range types {
		f, err := r.Get(typ)
		if err != nil {
			return nil, err
		}
		wfs, err := f(blocks[typ])
		if err != nil {
			return nil, err
		}
		for _, w := range wfs {
			w.ID = len(all) + 1
			all = append(all, w)
		}
		r.logger.Debug("workflow block expanded", "type", typ, "workflows", len(wfs))
	}
	return all, nil
}

// DefaultRegistry returns a Registry with the built-in workflow types.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register("ml-mapmaking", MLMapmaking)
	r.Register("sat-sims", SATSim)
	r.Register("ml-null-tests.time-tests", TimeNullTests)
	r.Register("ml-null-tests.direction-tests", DirectionNullTests)
	r.Register("ml-null-tests.wafer-tests", WaferNullTests)
	r.Register("ml-null-tests.day-night-tests", binarySplitTests("ml-null-tests.day-night-tests", "day-night", []string{"day", "night"}))
	r.Register("ml-null-tests.elevation-tests", binarySplitTests("ml-null-tests.elevation-tests", "elevation", []string{"low", "high"}))
	r.Register("ml-null-tests.moon-close-tests", binarySplitTests("ml-null-tests.moon-close-tests", "moon-distance", []string{"close", "far"}))
	r.Register("ml-null-tests.moonrise-tests", binarySplitTests("ml-null-tests.moonrise-tests", "moon-sky", []string{"insky", "outsky"}))
	r.Register("ml-null-tests.pwv-tests", binarySplitTests("ml-null-tests.pwv-tests", "pwv", []string{"high", "low"}))
	r.Register("ml-null-tests.sun-close-tests", binarySplitTests("ml-null-tests.sun-close-tests", "sun-distance", []string{"close", "far"}))
	return r
}

// SubcampaignMap names the member tables of each subcampaign block; config
// loading uses it to flatten nested tables into dotted workflow types.
func SubcampaignMap() map[string][]string {
	return map[string][]string{
		"ml-null-tests": {
			"time-tests", "direction-tests", "wafer-tests",
			"day-night-tests", "elevation-tests", "moon-close-tests",
			"moonrise-tests", "pwv-tests", "sun-close-tests",
		},
	}
}

// --- config block helpers ---

func strField(cfg map[string]any, key string) (string, bool) {
	v, ok := cfg[key].(string)
	return v, ok
}

func requireStr(typ string, cfg map[string]any, key string) (string, error) {
	v, ok := strField(cfg, key)
	if !ok || v == "" {
		return "", &model.ConfigError{Section: typ, Field: key, Message: "required field missing"}
	}
	return v, nil
}

func intField(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// resourceMap pulls the normalized resource request out of a block. The
// config loader has already converted memory to MB and runtime to minutes.
func resourceMap(cfg map[string]any) map[string]float64 {
	out := make(map[string]float64)
	raw, ok := cfg["resources"].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		}
	}
	return out
}

func environment(cfg map[string]any) map[string]string {
	raw, ok := cfg["environment"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func dependsOn(cfg map[string]any) []string {
	switch v := cfg["depends_on"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// extraArgs renders every block key outside the skip set as a --key=value
// flag, in sorted key order so the command line is reproducible.
func extraArgs(cfg map[string]any, skip map[string]bool) []string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--%s=%s", k, renderValue(cfg[k])))
	}
	return args
}

func renderValue(v any) string {
	if list, ok := v.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", v)
}

// commonSkip is the set of block keys every variant consumes itself rather
// than passing through as a flag.
func commonSkip(extra ...string) map[string]bool {
	skip := map[string]bool{
		"name":        true,
		"executable":  true,
		"subcommand":  true,
		"context":     true,
		"environment": true,
		"resources":   true,
		"depends_on":  true,
	}
	for _, k := range extra {
		skip[k] = true
	}
	return skip
}
