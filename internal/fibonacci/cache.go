package fibonacci

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// ─────────────────────────────────────────────────────────────────────────────
// Period Table Cache
// ─────────────────────────────────────────────────────────────────────────────

// TableCacheConfig holds configuration for the period table cache.
type TableCacheConfig struct {
	// MaxEntries is the maximum number of cached tables (one per modulus).
	// Default: 64 entries
	MaxEntries int

	// Enabled controls whether caching is active. When disabled every
	// lookup rebuilds the table.
	// Default: true
	Enabled bool
}

// DefaultTableCacheConfig returns the default cache configuration.
func DefaultTableCacheConfig() TableCacheConfig {
	return TableCacheConfig{
		MaxEntries: 64,
		Enabled:    true,
	}
}

// TableCache is a thread-safe LRU cache of Pisano period tables keyed by
// modulus. Concurrent misses for the same modulus share a single build.
type TableCache struct {
	mu        sync.RWMutex
	config    TableCacheConfig
	tables    *lru.Cache[uint64, *Table]
	group     singleflight.Group
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewTableCache creates a period table cache with the given config.
// A non-positive MaxEntries disables caching.
func NewTableCache(config TableCacheConfig) *TableCache {
	tc := &TableCache{}
	tc.configure(config)
	return tc
}

func (tc *TableCache) configure(config TableCacheConfig) {
	if config.MaxEntries <= 0 {
		config.Enabled = false
	}
	tc.config = config
	tc.tables = nil
	if !config.Enabled {
		return
	}
	// lru.NewWithEvict only fails for a non-positive size, excluded above.
	tc.tables, _ = lru.NewWithEvict(config.MaxEntries, func(uint64, *Table) {
		tc.evictions.Add(1)
	})
}

// globalTableCache is the package-level table cache.
var globalTableCache *TableCache
var tableCacheOnce sync.Once

// DefaultTableCache returns the shared period table cache.
func DefaultTableCache() *TableCache {
	tableCacheOnce.Do(func() {
		globalTableCache = NewTableCache(DefaultTableCacheConfig())
	})
	return globalTableCache
}

// SetTableCacheConfig replaces the shared cache configuration. Cached
// tables are dropped.
func SetTableCacheConfig(config TableCacheConfig) {
	cache := DefaultTableCache()
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.configure(config)
}

// Get returns the period table for m, building it on a miss.
func (tc *TableCache) Get(ctx context.Context, m uint64) (*Table, error) {
	tc.mu.RLock()
	tables := tc.tables
	tc.mu.RUnlock()

	if tables == nil {
		tc.misses.Add(1)
		return NewTable(ctx, m)
	}
	if table, ok := tables.Get(m); ok {
		tc.hits.Add(1)
		return table, nil
	}
	tc.misses.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The shared build outlives any single caller; each caller waits on its
	// own context.
	buildCtx := context.WithoutCancel(ctx)
	ch := tc.group.DoChan(strconv.FormatUint(m, 10), func() (any, error) {
		table, err := NewTable(buildCtx, m)
		if err != nil {
			return nil, err
		}
		tables.Add(m, table)
		return table, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CacheStats reports cache activity.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	HitRate   float64
}

// Stats returns current cache statistics.
func (tc *TableCache) Stats() CacheStats {
	tc.mu.RLock()
	size := 0
	if tc.tables != nil {
		size = tc.tables.Len()
	}
	tc.mu.RUnlock()

	hits := tc.hits.Load()
	misses := tc.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Hits:      hits,
		Misses:    misses,
		Evictions: tc.evictions.Load(),
		Size:      size,
		HitRate:   hitRate,
	}
}

// Shared cache statistics, read at scrape time.
var (
	tableCacheHits = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "fibsquares_table_cache_hits_total",
		Help: "Period table lookups served from the cache",
	}, func() float64 { return float64(DefaultTableCache().Stats().Hits) })
	tableCacheMisses = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "fibsquares_table_cache_misses_total",
		Help: "Period table lookups that built a table",
	}, func() float64 { return float64(DefaultTableCache().Stats().Misses) })
	tableCacheEvictions = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "fibsquares_table_cache_evictions_total",
		Help: "Period tables evicted from the cache",
	}, func() float64 { return float64(DefaultTableCache().Stats().Evictions) })
	tableCacheEntries = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fibsquares_table_cache_entries",
		Help: "Period tables currently cached",
	}, func() float64 { return float64(DefaultTableCache().Stats().Size) })
)
