package bufferpool

import "github.com/e7canasta/vidframe/registry"

// PoolStats is the richer snapshot a library consumer can ask a Pool for
// directly, beyond the minimal registry.Stats shape Stats() reports.
type PoolStats struct {
	registry.Stats
	Name        string
	Category    string
	BufferSize  int
	MaxCapacity int
	Transient   int
}

// DetailedStats returns the pool's full current snapshot.
func (p *Pool) DetailedStats() PoolStats {
	p.transientMu.Lock()
	transient := len(p.transientBuffers)
	p.transientMu.Unlock()

	return PoolStats{
		Stats:       p.Stats(),
		Name:        p.name,
		Category:    p.category,
		BufferSize:  p.GetBufferSize(),
		MaxCapacity: p.maxCapacity,
		Transient:   transient,
	}
}
