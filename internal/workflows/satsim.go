package workflows

import (
	"fmt"
	"sort"

	"github.com/me/campman/pkg/model"
)

// satsimFlagNames maps block keys to the dotted flag names toast_so_sim
// expects; keys not listed here use the key itself.
var satsimFlagNames = map[string]string{
	"sim_hwpss_atmo_data":        "sim_hwpss.atmo_data",
	"pixels_healpix_radec_nside": "pixels_healpix_radec.nside",
	"filterbin_name":             "filterbin.name",
	"processing_mask_file":       "processing_mask.file",
}

// SATSim expands one sat-sims block into a single toast_so_sim workflow.
// Boolean keys toggle operator flags (--key.enable / --key.disable); the
// rest become --key=value with the toast dotted-name translation applied.
func SATSim(cfg map[string]any) ([]*model.Workflow, error) {
	const typ = "sat-sims"

	outputDir, err := requireStr(typ, cfg, "output_dir")
	if err != nil {
		return nil, err
	}
	name, ok := strField(cfg, "name")
	if !ok {
		name = "sat-msss"
	}
	executable, ok := strField(cfg, "executable")
	if !ok {
		executable = "toast_so_sim"
	}
	context, _ := strField(cfg, "context")
	resources := resourceMap(cfg)

	args := []string{"--out", outputDir}
	if ranks, ok := resources[model.ResourceRanks]; ok && ranks >= 1 {
		args = append(args, fmt.Sprintf("--job_group_size=%d", int(ranks)))
	}

	skip := commonSkip("output_dir")
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if b, ok := cfg[k].(bool); ok {
			if b {
				args = append(args, fmt.Sprintf("--%s.enable", k))
			} else {
				args = append(args, fmt.Sprintf("--%s.disable", k))
			}
			continue
		}
		flag := k
		if t, ok := satsimFlagNames[k]; ok {
			flag = t
		}
		args = append(args, fmt.Sprintf("--%s=%s", flag, renderValue(cfg[k])))
	}

	return []*model.Workflow{{
		Name:        name,
		Executable:  executable,
		Context:     context,
		Args:        args,
		Environment: environment(cfg),
		Resources:   resources,
		DependsOn:   dependsOn(cfg),
	}}, nil
}
