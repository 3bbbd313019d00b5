package workflows

import "github.com/me/campman/pkg/model"

// MLMapmaking expands one ml-mapmaking block into a single workflow running
// so-site-pipeline make-ml-map. Positional arguments are query, area and
// output directory; every other block key becomes a --key=value flag.
func MLMapmaking(cfg map[string]any) ([]*model.Workflow, error) {
	const typ = "ml-mapmaking"

	area, err := requireStr(typ, cfg, "area")
	if err != nil {
		return nil, err
	}
	outputDir, err := requireStr(typ, cfg, "output_dir")
	if err != nil {
		return nil, err
	}
	query, ok := strField(cfg, "query")
	if !ok {
		query = "1"
	}
	name, ok := strField(cfg, "name")
	if !ok {
		name = "ml-mapmaking"
	}
	executable, ok := strField(cfg, "executable")
	if !ok {
		executable = "so-site-pipeline"
	}
	subcommand, ok := strField(cfg, "subcommand")
	if !ok {
		subcommand = "make-ml-map"
	}
	context, _ := strField(cfg, "context")

	args := []string{query, area, outputDir}
	args = append(args, extraArgs(cfg, commonSkip("area", "output_dir", "query"))...)

	return []*model.Workflow{{
		Name:        name,
		Executable:  executable,
		Subcommand:  subcommand,
		Context:     context,
		Args:        args,
		Environment: environment(cfg),
		Resources:   resourceMap(cfg),
		DependsOn:   dependsOn(cfg),
	}}, nil
}
