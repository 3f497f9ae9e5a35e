package registry

import "testing"

type fakePool struct {
	name, category string
	stats          Stats
}

func (f *fakePool) Name() string     { return f.name }
func (f *fakePool) Category() string { return f.category }
func (f *fakePool) Stats() Stats     { return f.stats }

func TestRegisterAndFindByName(t *testing.T) {
	r := New()
	p := &fakePool{name: "VideoPool", category: "Video", stats: Stats{Free: 2, Filled: 1, Total: 4, MemoryBytes: 1024}}

	id := r.RegisterPool(p, p.name, p.category)
	if id == 0 {
		t.Fatal("registry ids must be non-zero")
	}

	if found := r.FindByName("VideoPool"); found != p {
		t.Fatalf("FindByName returned %v, want the registered pool", found)
	}
	if got := r.GetPoolCount(); got != 1 {
		t.Fatalf("GetPoolCount = %d, want 1", got)
	}

	r.UnregisterPool(id)
	if found := r.FindByName("VideoPool"); found != nil {
		t.Fatalf("FindByName after unregister = %v, want nil", found)
	}
	if got := r.GetPoolCount(); got != 0 {
		t.Fatalf("GetPoolCount after unregister = %d, want 0", got)
	}
}

func TestGlobalStatsAggregatesAcrossPools(t *testing.T) {
	r := New()
	r.RegisterPool(&fakePool{name: "a", category: "Display", stats: Stats{Free: 1, Filled: 1, Total: 2, MemoryBytes: 100}}, "a", "Display")
	r.RegisterPool(&fakePool{name: "b", category: "Video", stats: Stats{Free: 3, Filled: 0, Total: 3, MemoryBytes: 200}}, "b", "Video")

	g := r.GetGlobalStats()
	if g.TotalPools != 2 || g.TotalBuffer != 5 || g.TotalFree != 4 || g.TotalFilled != 1 || g.TotalMemory != 300 {
		t.Fatalf("unexpected global stats: %+v", g)
	}
}

func TestGetPoolsByCategory(t *testing.T) {
	r := New()
	r.RegisterPool(&fakePool{name: "a", category: "Display"}, "a", "Display")
	r.RegisterPool(&fakePool{name: "b", category: "Video"}, "b", "Video")
	r.RegisterPool(&fakePool{name: "c", category: "Display"}, "c", "Display")

	pools := r.GetPoolsByCategory("Display")
	if len(pools) != 2 {
		t.Fatalf("GetPoolsByCategory(Display) returned %d pools, want 2", len(pools))
	}
}

func TestDuplicateNamesPermitted(t *testing.T) {
	r := New()
	id1 := r.RegisterPool(&fakePool{name: "dup"}, "dup", "")
	id2 := r.RegisterPool(&fakePool{name: "dup"}, "dup", "")
	if id1 == id2 {
		t.Fatal("registry ids must be unique even for duplicate names")
	}
	if r.GetPoolCount() != 2 {
		t.Fatalf("GetPoolCount = %d, want 2 (duplicates permitted)", r.GetPoolCount())
	}
}
