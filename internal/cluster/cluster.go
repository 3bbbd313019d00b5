// Package cluster holds the built-in catalog of compute resources a
// campaign can target. Campaign configuration may add or override entries.
package cluster

import "github.com/me/campman/pkg/model"

// Catalog returns the built-in resources keyed by name. Callers own the
// returned map and may merge configured resources into it.
func Catalog() map[string]*model.Resource {
	return map[string]*model.Resource{
		"tiger3":     Tiger3(),
		"perlmutter": Perlmutter(),
		"universe":   Universe(),
	}
}

// Tiger3 is Princeton's Tiger cluster.
func Tiger3() *model.Resource {
	return &model.Resource{
		Name:          "tiger3",
		Nodes:         492,
		CoresPerNode:  112,
		MemoryPerNode: 1000000,
		DefaultQos:    "normal",
		Qos: []model.QosPolicy{
			{Name: "test", MaxWalltime: 60, MaxJobs: 1, MaxCores: 8000},
			{Name: "vshort", MaxWalltime: 300},
			{Name: "short", MaxWalltime: 1440, MaxJobs: 50, MaxCores: 8000},
			{Name: "medium", MaxWalltime: 4320, MaxJobs: 80, MaxCores: 4000},
			{Name: "long", MaxWalltime: 8640, MaxJobs: 16, MaxCores: 1000},
			{Name: "vlong", MaxWalltime: 21600, MaxJobs: 8, MaxCores: 900},
		},
	}
}

// Perlmutter is NERSC's Perlmutter cluster.
func Perlmutter() *model.Resource {
	return &model.Resource{
		Name:          "perlmutter",
		Nodes:         3072,
		CoresPerNode:  128,
		MemoryPerNode: 1000000,
		DefaultQos:    "regular",
		Qos: []model.QosPolicy{
			{Name: "regular", MaxWalltime: 2880, MaxJobs: 5000, MaxCores: 393216},
			{Name: "interactive", MaxWalltime: 240, MaxJobs: 2, MaxCores: 512},
			{Name: "shared_interactive", MaxWalltime: 240, MaxJobs: 2, MaxCores: 64},
			{Name: "debug", MaxWalltime: 30, MaxJobs: 5, MaxCores: 1024},
		},
	}
}

// Universe is the Simons Observatory analysis cluster.
func Universe() *model.Resource {
	return &model.Resource{
		Name:          "universe",
		Nodes:         28,
		CoresPerNode:  224,
		MemoryPerNode: 1000000,
		DefaultQos:    "main",
		Qos: []model.QosPolicy{
			{Name: "main", MaxWalltime: 43200, MaxJobs: 5000, MaxCores: 6272},
		},
	}
}
