package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/campman/internal/workflows"
	"github.com/me/campman/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const campaignTOML = `
[campaign]
deadline = "48h"
resource = "tiger3"
policy = "time"
requested_resources = 1000000

[campaign.ml-mapmaking]
area = "file://geometry.fits"
output_dir = "/scratch/maps"
query = "obs_id='x'"
maxiter = 300

[campaign.ml-mapmaking.resources]
ranks = 8
threads = 4
memory = "40GB"
runtime = "2h"

[campaign.ml-null-tests]
area = "file://geometry.fits"
depends_on = "ml-mapmaking"

[campaign.ml-null-tests.resources]
ranks = 4
memory = "10GB"
runtime = "30m"

[campaign.ml-null-tests.wafer-tests]
output_dir = "/scratch/null"
wafers = "w25,w26"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadTOMLCampaign(t *testing.T) {
	path := writeConfig(t, "campaign.toml", campaignTOML)
	doc, err := Load(path, workflows.DefaultRegistry(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := doc.Campaign
	if c.Deadline != 2880 {
		t.Errorf("deadline = %v, want 2880 minutes", c.Deadline)
	}
	if c.TargetResource != "tiger3" || c.Policy != "time" {
		t.Errorf("resource/policy = %s/%s", c.TargetResource, c.Policy)
	}
	// One mapmaking workflow plus two wafer splits.
	if len(c.Workflows) != 3 {
		t.Fatalf("workflows = %d, want 3", len(c.Workflows))
	}

	mapmaking := c.WorkflowByName("ml-mapmaking")
	if mapmaking == nil {
		t.Fatal("no ml-mapmaking workflow")
	}
	if mapmaking.MemoryMB() != 40000 {
		t.Errorf("memory = %v MB, want 40000", mapmaking.MemoryMB())
	}
	if mapmaking.RuntimeMinutes() != 120 {
		t.Errorf("runtime = %v, want 120", mapmaking.RuntimeMinutes())
	}

	// Subcampaign members inherit the shared area, resources and dependency.
	wafer := c.WorkflowByName("ml-null-tests-wafer-tests-w25")
	if wafer == nil {
		t.Fatalf("no wafer workflow, have %v", names(c))
	}
	if wafer.RuntimeMinutes() != 30 {
		t.Errorf("wafer runtime = %v, want 30", wafer.RuntimeMinutes())
	}
	if len(wafer.DependsOn) != 1 || wafer.DependsOn[0] != "ml-mapmaking" {
		t.Errorf("wafer depends_on = %v", wafer.DependsOn)
	}

	if _, ok := doc.Resources["tiger3"]; !ok {
		t.Error("catalog missing tiger3")
	}
}

func names(c *model.Campaign) []string {
	out := make([]string, len(c.Workflows))
	for i, w := range c.Workflows {
		out[i] = w.Name
	}
	return out
}

func TestLoadYAMLCampaign(t *testing.T) {
	const doc = `
campaign:
  deadline: "24h"
  resource: universe
  ml-mapmaking:
    area: "file://geometry.fits"
    output_dir: /scratch/maps
    resources:
      ranks: 8
      memory: 4096
      runtime: 90
`
	path := writeConfig(t, "campaign.yaml", doc)
	parsed, err := Load(path, workflows.DefaultRegistry(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if parsed.Campaign.TargetResource != "universe" {
		t.Errorf("resource = %s, want universe", parsed.Campaign.TargetResource)
	}
	w := parsed.Campaign.WorkflowByName("ml-mapmaking")
	if w == nil || w.RuntimeMinutes() != 90 || w.MemoryMB() != 4096 {
		t.Errorf("bare numeric resources should pass through unchanged: %+v", w)
	}
}

func TestLoadCustomResource(t *testing.T) {
	const doc = campaignTOML + `
[resources.mycluster]
nodes = 16
cores_per_node = 64
memory_per_node = "512GB"
default_qos = "batch"

[[resources.mycluster.qos]]
name = "batch"
max_walltime = "24h"
max_jobs = 10
`
	path := writeConfig(t, "campaign.toml", doc)
	parsed, err := Load(path, workflows.DefaultRegistry(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, ok := parsed.Resources["mycluster"]
	if !ok {
		t.Fatal("custom resource not in catalog")
	}
	if res.Nodes != 16 || res.CoresPerNode != 64 {
		t.Errorf("shape = %dx%d, want 16x64", res.Nodes, res.CoresPerNode)
	}
	if res.MemoryPerNode != 512000 {
		t.Errorf("memory_per_node = %d MB, want 512000", res.MemoryPerNode)
	}
	if len(res.Qos) != 1 || res.Qos[0].MaxWalltime != 1440 {
		t.Errorf("qos = %+v, want one 1440-minute tier", res.Qos)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing campaign table", `[other]` + "\n" + `x = 1`},
		{"no workflow blocks", "[campaign]\ndeadline = \"1h\""},
		{"bad deadline", "[campaign]\ndeadline = \"soon\"\n[campaign.sat-sims]\noutput_dir = \"/o\"\n[campaign.sat-sims.resources]\nranks = 1"},
		{"missing resources table", "[campaign]\n[campaign.sat-sims]\noutput_dir = \"/o\""},
		{"unknown target resource", "[campaign]\nresource = \"nonesuch\"\n[campaign.sat-sims]\noutput_dir = \"/o\"\n[campaign.sat-sims.resources]\nranks = 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "campaign.toml", tc.doc)
			_, err := Load(path, workflows.DefaultRegistry(testLogger()), testLogger())
			var cfgErr *model.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "campaign.json", `{}`)
	_, err := Load(path, workflows.DefaultRegistry(testLogger()), testLogger())
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}
