package cluster

import "testing"

func TestCatalogEntriesAreConsistent(t *testing.T) {
	catalog := Catalog()
	for _, name := range []string{"tiger3", "perlmutter", "universe"} {
		res, ok := catalog[name]
		if !ok {
			t.Fatalf("catalog missing %s", name)
		}
		if res.Name != name {
			t.Errorf("%s: Name = %q", name, res.Name)
		}
		if res.Nodes <= 0 || res.CoresPerNode <= 0 {
			t.Errorf("%s: bad shape %d nodes x %d cores", name, res.Nodes, res.CoresPerNode)
		}
		if len(res.Qos) == 0 {
			t.Errorf("%s: no QoS tiers", name)
		}
	}
}

func TestCatalogReturnsFreshCopies(t *testing.T) {
	a := Catalog()
	a["tiger3"].Nodes = 1
	b := Catalog()
	if b["tiger3"].Nodes != 492 {
		t.Error("catalog entries are shared between calls")
	}
}

func TestTiger3QosSelection(t *testing.T) {
	res := Tiger3()
	cases := []struct {
		runtime float64
		want    string
	}{
		{30, "test"},
		{90, "vshort"},
		{1000, "short"},
		{4000, "medium"},
		{9000, "vlong"},
		{50000, "vlong"}, // nothing fits, largest tier wins
	}
	for _, tc := range cases {
		if got := res.SelectQos(tc.runtime); got != tc.want {
			t.Errorf("SelectQos(%v) = %q, want %q", tc.runtime, got, tc.want)
		}
	}
}
