// Package config loads campaign documents. A document is a TOML or YAML
// file with a [campaign] table holding the campaign-level settings, one
// sub-table per workflow type and optional [resources] tables describing
// clusters outside the built-in catalog.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/me/campman/internal/cluster"
	"github.com/me/campman/internal/workflows"
	"github.com/me/campman/pkg/model"
)

// Settings holds the process-level options of a campman run.
type Settings struct {
	ConfigPath string
	DryRun     bool   // simulate instead of submitting to the scheduler
	Listen     string // status server address, empty disables it
	LogLevel   string // debug, info, warn, error
	LogFormat  string // text, json
	DBPath     string // run-record database, ":memory:" for testing
}

// DefaultSettings returns sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:  "info",
		LogFormat: "text",
		DBPath:    filepath.Join(os.TempDir(), "campman.db"),
	}
}

// Document is a fully parsed campaign configuration: the campaign with its
// expanded workflows, plus the resource catalog it can target.
type Document struct {
	Campaign  *model.Campaign
	Resources map[string]*model.Resource
}

// Load reads and parses a campaign document, expanding workflow blocks
// through the given registry. The file extension selects the format.
func Load(path string, registry *workflows.Registry, logger *slog.Logger) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading campaign config: %w", err)
	}

	raw := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, &model.ConfigError{Section: "campaign", Message: err.Error()}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &model.ConfigError{Section: "campaign", Message: err.Error()}
		}
	default:
		return nil, &model.ConfigError{Section: "campaign", Message: fmt.Sprintf("unsupported config format %q", ext)}
	}

	return Parse(raw, registry, logger)
}

// Parse builds a Document from a decoded configuration tree.
func Parse(raw map[string]any, registry *workflows.Registry, logger *slog.Logger) (*Document, error) {
	campaignData, ok := raw["campaign"].(map[string]any)
	if !ok {
		return nil, &model.ConfigError{Section: "campaign", Message: "missing [campaign] table"}
	}

	c := &model.Campaign{ID: 1, Policy: "time", TargetResource: "tiger3"}
	if v, ok := campaignData["policy"].(string); ok && v != "" {
		c.Policy = v
	}
	if v, ok := campaignData["resource"].(string); ok && v != "" {
		c.TargetResource = v
	}
	if v, ok := campaignData["deadline"]; ok {
		minutes, err := parseMinutes(v)
		if err != nil {
			return nil, &model.ConfigError{Section: "campaign", Field: "deadline", Message: err.Error()}
		}
		c.Deadline = minutes
	}
	if v, ok := campaignData["requested_resources"]; ok {
		c.RequestedResources = toFloat(v)
	}

	blocks := workflowBlocks(campaignData, workflows.SubcampaignMap())
	for typ, block := range blocks {
		if err := normalizeResources(typ, block); err != nil {
			return nil, err
		}
	}
	wfs, err := registry.Expand(blocks)
	if err != nil {
		return nil, err
	}
	if len(wfs) == 0 {
		return nil, &model.ConfigError{Section: "campaign", Message: "no workflow blocks"}
	}
	c.Workflows = wfs

	resources := cluster.Catalog()
	if err := parseResources(raw, resources); err != nil {
		return nil, err
	}
	if _, ok := resources[c.TargetResource]; !ok {
		return nil, &model.ConfigError{Section: "campaign", Field: "resource",
			Message: fmt.Sprintf("unknown resource %q", c.TargetResource)}
	}

	logger.Info("campaign config loaded",
		"workflows", len(wfs),
		"resource", c.TargetResource,
		"policy", c.Policy,
		"deadline_minutes", c.Deadline)
	return &Document{Campaign: c, Resources: resources}, nil
}

// workflowBlocks collects the workflow sub-tables of the campaign table.
// Subcampaign tables expand into one dotted entry per member, with the
// subcampaign's shared keys merged over each member's own.
func workflowBlocks(campaign map[string]any, subMap map[string][]string) map[string]map[string]any {
	blocks := make(map[string]map[string]any)
	for key, value := range campaign {
		table, ok := value.(map[string]any)
		if !ok {
			continue
		}
		members, isSub := subMap[key]
		if !isSub {
			blocks[key] = table
			continue
		}
		memberSet := make(map[string]bool, len(members))
		for _, m := range members {
			memberSet[m] = true
		}
		common := make(map[string]any)
		for k, v := range table {
			if !memberSet[k] {
				common[k] = v
			}
		}
		for _, member := range members {
			memberTable, ok := table[member].(map[string]any)
			if !ok {
				continue
			}
			merged := make(map[string]any, len(memberTable)+len(common))
			for k, v := range memberTable {
				merged[k] = v
			}
			for k, v := range common {
				merged[k] = v
			}
			blocks[key+"."+member] = merged
		}
	}
	return blocks
}

// normalizeResources converts the human-readable resource request of one
// block in place: memory sizes to MB, runtimes to minutes.
func normalizeResources(typ string, block map[string]any) error {
	raw, ok := block["resources"].(map[string]any)
	if !ok {
		return &model.ConfigError{Section: typ, Field: "resources", Message: "required table missing"}
	}
	if v, ok := raw[model.ResourceMemory]; ok {
		mb, err := parseMemoryMB(v)
		if err != nil {
			return &model.ConfigError{Section: typ, Field: "resources.memory", Message: err.Error()}
		}
		raw[model.ResourceMemory] = mb
	}
	if v, ok := raw[model.ResourceRuntime]; ok {
		minutes, err := parseMinutes(v)
		if err != nil {
			return &model.ConfigError{Section: typ, Field: "resources.runtime", Message: err.Error()}
		}
		raw[model.ResourceRuntime] = minutes
	}
	return nil
}

// parseResources merges [resources.NAME] tables into the catalog.
func parseResources(raw map[string]any, out map[string]*model.Resource) error {
	tables, ok := raw["resources"].(map[string]any)
	if !ok {
		return nil
	}
	for name, value := range tables {
		table, ok := value.(map[string]any)
		if !ok {
			continue
		}
		section := "resources." + name
		res := &model.Resource{Name: name}
		res.Nodes = int(toFloat(table["nodes"]))
		res.CoresPerNode = int(toFloat(table["cores_per_node"]))
		if res.Nodes <= 0 || res.CoresPerNode <= 0 {
			return &model.ConfigError{Section: section, Message: "nodes and cores_per_node are required"}
		}
		if v, ok := table["memory_per_node"]; ok {
			mb, err := parseMemoryMB(v)
			if err != nil {
				return &model.ConfigError{Section: section, Field: "memory_per_node", Message: err.Error()}
			}
			res.MemoryPerNode = int64(mb)
		}
		if v, ok := table["default_qos"].(string); ok {
			res.DefaultQos = v
		}
		if qosList, ok := table["qos"].([]any); ok {
			for _, q := range qosList {
				qt, ok := q.(map[string]any)
				if !ok {
					continue
				}
				policy := model.QosPolicy{
					MaxJobs:  int(toFloat(qt["max_jobs"])),
					MaxCores: int(toFloat(qt["max_cores"])),
				}
				policy.Name, _ = qt["name"].(string)
				if policy.Name == "" {
					return &model.ConfigError{Section: section, Field: "qos.name", Message: "required field missing"}
				}
				if v, ok := qt["max_walltime"]; ok {
					minutes, err := parseMinutes(v)
					if err != nil {
						return &model.ConfigError{Section: section, Field: "qos.max_walltime", Message: err.Error()}
					}
					policy.MaxWalltime = int(minutes)
				}
				res.Qos = append(res.Qos, policy)
			}
		}
		out[name] = res
	}
	return nil
}

// parseMemoryMB accepts a humanized size string ("40GB") or a bare number
// already in MB.
func parseMemoryMB(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		bytes, err := humanize.ParseBytes(val)
		if err != nil {
			return 0, err
		}
		return float64(bytes) / 1e6, nil
	default:
		return toFloat(v), nil
	}
}

// parseMinutes accepts a duration string ("2h30m") or a bare number already
// in minutes.
func parseMinutes(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, err
		}
		return d.Minutes(), nil
	default:
		return toFloat(v), nil
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
