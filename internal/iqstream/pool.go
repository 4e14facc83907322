package iqstream

import (
	"sync"
	"sync/atomic"

	"github.com/tphakala/hackrf-stream/internal/logger"
)

// PoolStats is a snapshot of pool counters
type PoolStats struct {
	Hits           uint64 // acquires served from an idle list
	Misses         uint64 // acquires that allocated
	Releases       uint64 // buffers returned
	DoubleReleases uint64 // releases of buffers already idle
	Dropped        uint64 // releases discarded because the idle list was full
	Idle           int    // idle buffers across all sizes
}

// Pool caches idle buffers keyed by exact capacity. Safe for concurrent use.
type Pool struct {
	mu             sync.Mutex
	free           map[int][]*Buffer
	maxIdlePerSize int

	hits           atomic.Uint64
	misses         atomic.Uint64
	releases       atomic.Uint64
	doubleReleases atomic.Uint64
	dropped        atomic.Uint64
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// WithMaxIdlePerSize bounds the idle buffers kept per capacity; 0 keeps all
func WithMaxIdlePerSize(n int) PoolOption {
	return func(p *Pool) {
		p.maxIdlePerSize = max(n, 0)
	}
}

// NewPool creates an empty pool
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{free: make(map[int][]*Buffer)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var (
	sharedPool     *Pool
	sharedPoolOnce sync.Once
)

// Shared returns the process-wide pool
func Shared() *Pool {
	sharedPoolOnce.Do(func() {
		sharedPool = NewPool()
	})
	return sharedPool
}

// Acquire returns a held buffer of exactly size bytes in cleared write mode
func (p *Pool) Acquire(size int) *Buffer {
	size = max(size, 0)

	p.mu.Lock()
	var b *Buffer
	if list := p.free[size]; len(list) > 0 {
		b = list[len(list)-1]
		list[len(list)-1] = nil
		p.free[size] = list[:len(list)-1]
	}
	p.mu.Unlock()

	if b != nil {
		p.hits.Add(1)
	} else {
		p.misses.Add(1)
		b = newBuffer(size, p)
	}

	b.owner.Store(ownerHeld)
	return b
}

// Release clears b and returns it to its idle list. Releasing an idle buffer is
// ignored and counted.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		return
	}

	if b.owner.Swap(ownerIdle) == ownerIdle {
		p.doubleReleases.Add(1)
		GetLogger().Warn("buffer released twice",
			logger.Int("capacity", b.Capacity()))
		return
	}

	b.reset()
	b.pool = p
	p.releases.Add(1)

	size := b.Capacity()
	p.mu.Lock()
	if p.maxIdlePerSize > 0 && len(p.free[size]) >= p.maxIdlePerSize {
		p.mu.Unlock()
		p.dropped.Add(1)
		return
	}
	p.free[size] = append(p.free[size], b)
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	idle := 0
	for _, list := range p.free {
		idle += len(list)
	}
	p.mu.Unlock()

	return PoolStats{
		Hits:           p.hits.Load(),
		Misses:         p.misses.Load(),
		Releases:       p.releases.Load(),
		DoubleReleases: p.doubleReleases.Load(),
		Dropped:        p.dropped.Load(),
		Idle:           idle,
	}
}
