package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Stats is the snapshot a Pool reports to the registry: enough to
// compute aggregate statistics without the registry knowing anything
// about buffer pool internals.
type Stats struct {
	Free        int
	Filled      int
	Total       int
	MemoryBytes uint64
}

// Pool is the surface a BufferPool exposes to the registry. Defined here
// (rather than depending on package bufferpool) so registry has no
// import back to bufferpool; bufferpool depends on registry, not the
// other way around.
type Pool interface {
	Name() string
	Category() string
	Stats() Stats
}

type entry struct {
	pool     Pool
	id       uint64
	name     string
	category string
	created  time.Time
}

// Registry is a process-wide directory mapping names/ids to live pools.
// All operations are guarded by a single mutex, matching
// BufferPoolRegistry.hpp: this is purely observational bookkeeping, no
// correctness path in bufferpool depends on it.
type Registry struct {
	mu       sync.Mutex
	byID     map[uint64]*entry
	byName   map[string]uint64
	nextID   uint64
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process-wide Registry singleton, created on first
// use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// New constructs an independent Registry. Most callers want Global; New
// exists so tests do not share state across pools created in different
// test cases.
func New() *Registry {
	return &Registry{
		byID:   make(map[uint64]*entry),
		byName: make(map[string]uint64),
		nextID: 1,
	}
}

// RegisterPool records a pool under name/category and returns its
// registry-unique, monotonic id. Duplicate names are permitted and
// logged as a warning, matching spec.md §4.5.
func (r *Registry) RegisterPool(pool Pool, name, category string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		slog.Warn("registry: duplicate pool name", "name", name)
	}

	id := r.nextID
	r.nextID++

	r.byID[id] = &entry{pool: pool, id: id, name: name, category: category, created: time.Now()}
	r.byName[name] = id
	return id
}

// UnregisterPool removes a previously registered pool. No-op if id is
// unknown (already unregistered).
func (r *Registry) UnregisterPool(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if r.byName[e.name] == id {
		delete(r.byName, e.name)
	}
}

// GetAllPools returns every currently registered pool.
func (r *Registry) GetAllPools() []Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pools := make([]Pool, 0, len(r.byID))
	for _, e := range r.byID {
		pools = append(pools, e.pool)
	}
	return pools
}

// FindByName returns the most recently registered pool under name, or
// nil if none is registered.
func (r *Registry) FindByName(name string) Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byName[name]
	if !ok {
		return nil
	}
	return r.byID[id].pool
}

// GetPoolsByCategory returns every pool registered under category.
func (r *Registry) GetPoolsByCategory(category string) []Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pools []Pool
	for _, e := range r.byID {
		if e.category == category {
			pools = append(pools, e.pool)
		}
	}
	return pools
}

// GetPoolCount returns the number of currently registered pools.
func (r *Registry) GetPoolCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// GlobalStats is the sum of every registered pool's counts and memory
// usage.
type GlobalStats struct {
	TotalPools  int
	TotalBuffer int
	TotalFree   int
	TotalFilled int
	TotalMemory uint64
}

// GetGlobalStats aggregates Stats across every registered pool.
func (r *Registry) GetGlobalStats() GlobalStats {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.byID))
	for _, e := range r.byID {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	var g GlobalStats
	g.TotalPools = len(entries)
	for _, e := range entries {
		s := e.pool.Stats()
		g.TotalBuffer += s.Total
		g.TotalFree += s.Free
		g.TotalFilled += s.Filled
		g.TotalMemory += s.MemoryBytes
	}
	return g
}

// String renders GlobalStats for structured logging call sites, the Go
// equivalent of BufferPoolRegistry::printAllStats's box-drawing report
// without printing to stdout from library code.
func (g GlobalStats) String() string {
	return fmt.Sprintf("pools=%d buffers=%d free=%d filled=%d memory=%.2fMB",
		g.TotalPools, g.TotalBuffer, g.TotalFree, g.TotalFilled,
		float64(g.TotalMemory)/(1024*1024))
}

// LogAllStats logs one structured record per registered pool plus the
// aggregate, the reporting counterpart of printAllStats/printAllBuffers.
func (r *Registry) LogAllStats() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.byID))
	for _, e := range r.byID {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		s := e.pool.Stats()
		slog.Info("registry: pool stats",
			"id", e.id,
			"name", e.name,
			"category", e.category,
			"total", s.Total,
			"free", s.Free,
			"filled", s.Filled,
			"memory_bytes", s.MemoryBytes,
			"created", e.created,
		)
	}
	slog.Info("registry: global stats", "summary", r.GetGlobalStats().String())
}
