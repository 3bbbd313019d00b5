package workflows

import (
	"fmt"
	"strings"

	"github.com/me/campman/pkg/model"
)

// nullTestBlock is the part of a null-test configuration block shared by all
// null-test variants. Null tests run the same mapmaking pipeline as
// ml-mapmaking over a subset of the data, so the defaults match it.
type nullTestBlock struct {
	name       string
	executable string
	subcommand string
	context    string
	area       string
	outputDir  string
	query      string
	cfg        map[string]any
}

func parseNullTestBlock(typ string, cfg map[string]any) (*nullTestBlock, error) {
	area, err := requireStr(typ, cfg, "area")
	if err != nil {
		return nil, err
	}
	outputDir, err := requireStr(typ, cfg, "output_dir")
	if err != nil {
		return nil, err
	}
	b := &nullTestBlock{area: area, outputDir: outputDir, cfg: cfg}
	if b.query, _ = strField(cfg, "query"); b.query == "" {
		b.query = "1"
	}
	if b.name, _ = strField(cfg, "name"); b.name == "" {
		b.name = strings.ReplaceAll(typ, ".", "-")
	}
	if b.executable, _ = strField(cfg, "executable"); b.executable == "" {
		b.executable = "so-site-pipeline"
	}
	if b.subcommand, _ = strField(cfg, "subcommand"); b.subcommand == "" {
		b.subcommand = "make-ml-map"
	}
	b.context, _ = strField(cfg, "context")
	return b, nil
}

// workflow builds one split's workflow. The split's own flags come first so
// a later block key cannot be mistaken for the split selector.
func (b *nullTestBlock) workflow(name, outputDir string, splitFlags []string, skip map[string]bool) *model.Workflow {
	args := []string{b.query, b.area, outputDir}
	args = append(args, splitFlags...)
	args = append(args, extraArgs(b.cfg, skip)...)
	return &model.Workflow{
		Name:        name,
		Executable:  b.executable,
		Subcommand:  b.subcommand,
		Context:     b.context,
		Args:        args,
		Environment: environment(b.cfg),
		Resources:   resourceMap(b.cfg),
		DependsOn:   dependsOn(b.cfg),
	}
}

// TimeNullTests expands one block into nsplits workflows, each mapping an
// interleaved time split of the observations into its own output directory.
// The pipeline selects the observations for one split from --nsplits and
// --split.
func TimeNullTests(cfg map[string]any) ([]*model.Workflow, error) {
	const typ = "ml-null-tests.time-tests"
	b, err := parseNullTestBlock(typ, cfg)
	if err != nil {
		return nil, err
	}
	nsplits := intField(cfg, "nsplits", 8)
	if nsplits < 1 {
		return nil, &model.ConfigError{Section: typ, Field: "nsplits", Message: "must be at least 1"}
	}
	skip := commonSkip("area", "output_dir", "query", "nsplits", "chunk_nobs")

	wfs := make([]*model.Workflow, 0, nsplits)
	for i := 1; i <= nsplits; i++ {
		wfs = append(wfs, b.workflow(
			fmt.Sprintf("%s-split-%d", b.name, i),
			fmt.Sprintf("%s/mission_split_%d", b.outputDir, i),
			[]string{fmt.Sprintf("--nsplits=%d", nsplits), fmt.Sprintf("--split=%d", i)},
			skip,
		))
	}
	return wfs, nil
}

// directions are the scan-direction buckets of a direction null test.
var directions = []string{"rising", "setting", "middle"}

// DirectionNullTests expands one block into one workflow per scan direction
// and time split. nsplits defaults to 2.
func DirectionNullTests(cfg map[string]any) ([]*model.Workflow, error) {
	const typ = "ml-null-tests.direction-tests"
	b, err := parseNullTestBlock(typ, cfg)
	if err != nil {
		return nil, err
	}
	nsplits := intField(cfg, "nsplits", 2)
	if nsplits < 1 {
		return nil, &model.ConfigError{Section: typ, Field: "nsplits", Message: "must be at least 1"}
	}
	skip := commonSkip("area", "output_dir", "query", "nsplits", "chunk_nobs")

	var wfs []*model.Workflow
	for _, dir := range directions {
		for i := 1; i <= nsplits; i++ {
			wfs = append(wfs, b.workflow(
				fmt.Sprintf("%s-%s-split-%d", b.name, dir, i),
				fmt.Sprintf("%s/%s_split_%d", b.outputDir, dir, i),
				[]string{
					fmt.Sprintf("--direction=%s", dir),
					fmt.Sprintf("--nsplits=%d", nsplits),
					fmt.Sprintf("--split=%d", i),
				},
				skip,
			))
		}
	}
	return wfs, nil
}

// binarySplitTests builds the factory for null tests that bucket the
// observations into two categories and interleave nsplits time splits within
// each, like the direction tests with a different selector flag. The pipeline
// resolves the category from the flag against the observation database.
func binarySplitTests(typ, flag string, categories []string) Factory {
	return func(cfg map[string]any) ([]*model.Workflow, error) {
		b, err := parseNullTestBlock(typ, cfg)
		if err != nil {
			return nil, err
		}
		nsplits := intField(cfg, "nsplits", 2)
		if nsplits < 1 {
			return nil, &model.ConfigError{Section: typ, Field: "nsplits", Message: "must be at least 1"}
		}
		skip := commonSkip("area", "output_dir", "query", "nsplits", "chunk_nobs")

		var wfs []*model.Workflow
		for _, cat := range categories {
			for i := 1; i <= nsplits; i++ {
				wfs = append(wfs, b.workflow(
					fmt.Sprintf("%s-%s-split-%d", b.name, cat, i),
					fmt.Sprintf("%s/%s_split_%d", b.outputDir, cat, i),
					[]string{
						fmt.Sprintf("--%s=%s", flag, cat),
						fmt.Sprintf("--nsplits=%d", nsplits),
						fmt.Sprintf("--split=%d", i),
					},
					skip,
				))
			}
		}
		return wfs, nil
	}
}

// WaferNullTests expands one block into one workflow per wafer slot named in
// the block's wafers list.
func WaferNullTests(cfg map[string]any) ([]*model.Workflow, error) {
	const typ = "ml-null-tests.wafer-tests"
	b, err := parseNullTestBlock(typ, cfg)
	if err != nil {
		return nil, err
	}
	wafers := stringList(cfg["wafers"])
	if len(wafers) == 0 {
		return nil, &model.ConfigError{Section: typ, Field: "wafers", Message: "required field missing"}
	}
	skip := commonSkip("area", "output_dir", "query", "wafers")

	wfs := make([]*model.Workflow, 0, len(wafers))
	for _, wafer := range wafers {
		wfs = append(wfs, b.workflow(
			fmt.Sprintf("%s-%s", b.name, wafer),
			fmt.Sprintf("%s/wafer_%s", b.outputDir, wafer),
			[]string{fmt.Sprintf("--wafer=%s", wafer)},
			skip,
		))
	}
	return wfs, nil
}

// stringList accepts either a comma-separated string or a list of strings.
func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
