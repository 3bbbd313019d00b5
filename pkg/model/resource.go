package model

import "sort"

// QosPolicy is one queue class of a cluster. A zero MaxWalltime means the
// tier is unbounded and satisfies any runtime.
type QosPolicy struct {
	Name        string `json:"name"`
	MaxWalltime int    `json:"max_walltime,omitempty"` // minutes, 0 = unbounded
	MaxJobs     int    `json:"max_jobs,omitempty"`
	MaxCores    int    `json:"max_cores,omitempty"`
}

// Resource is the static description of a compute cluster. Instances are
// immutable after construction and looked up by name.
type Resource struct {
	Name          string      `json:"name"`
	Nodes         int         `json:"nodes"`
	CoresPerNode  int         `json:"cores_per_node"`
	MemoryPerNode int64       `json:"memory_per_node"` // MB
	DefaultQos    string      `json:"default_qos,omitempty"`
	Qos           []QosPolicy `json:"qos"`
}

// TotalCores returns the core count of the whole cluster.
func (r *Resource) TotalCores() int {
	return r.Nodes * r.CoresPerNode
}

// MaximumWalltime returns the largest tier walltime in minutes, or 0 when
// every tier is unbounded.
func (r *Resource) MaximumWalltime() int {
	max := 0
	for _, q := range r.Qos {
		if q.MaxWalltime > max {
			max = q.MaxWalltime
		}
	}
	return max
}

// SelectQos returns the name of the cheapest QoS tier whose maximum walltime
// covers the given runtime (minutes), scanning tiers in ascending walltime
// order. Unbounded tiers cover any runtime. When no tier covers the runtime
// the tier with the largest walltime is returned; the real scheduler may
// still reject the submission, which is the accepted failure mode.
func (r *Resource) SelectQos(runtimeMinutes float64) string {
	if len(r.Qos) == 0 {
		return ""
	}

	tiers := make([]QosPolicy, len(r.Qos))
	copy(tiers, r.Qos)
	// Unbounded tiers sort last so bounded tiers are preferred when they fit.
	sort.SliceStable(tiers, func(i, j int) bool {
		wi, wj := tiers[i].MaxWalltime, tiers[j].MaxWalltime
		if wi == 0 {
			return false
		}
		if wj == 0 {
			return true
		}
		return wi < wj
	})

	for _, q := range tiers {
		if q.MaxWalltime == 0 || float64(q.MaxWalltime) >= runtimeMinutes {
			return q.Name
		}
	}
	return tiers[len(tiers)-1].Name
}
