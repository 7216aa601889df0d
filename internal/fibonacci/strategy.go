package fibonacci

import "context"

// PisanoScan is the reference strategy: every call rescans the Pisano period
// of m, stopping early once index k is reached.
type PisanoScan struct{}

// Name returns the display name of the strategy.
func (PisanoScan) Name() string { return "Pisano Scan" }

// FibModCore returns F(k) mod m with the reference scan.
func (PisanoScan) FibModCore(ctx context.Context, k, m uint64) (uint64, error) {
	return scanFibonacciMod(ctx, k, m)
}

// CachedPeriod looks F(k) mod m up in a full period table kept in a
// TableCache. The first call for a modulus pays for the table; later calls
// are a single index operation.
type CachedPeriod struct {
	// Cache is the table cache to use. Nil selects DefaultTableCache.
	Cache *TableCache
}

// Name returns the display name of the strategy.
func (CachedPeriod) Name() string { return "Cached Period Table" }

// FibModCore returns F(k) mod m from the cached period table.
func (c CachedPeriod) FibModCore(ctx context.Context, k, m uint64) (uint64, error) {
	cache := c.Cache
	if cache == nil {
		cache = DefaultTableCache()
	}
	table, err := cache.Get(ctx, m)
	if err != nil {
		return 0, err
	}
	return table.At(k), nil
}

// FastDoubling computes F(k) mod m in O(log k) without any period table.
type FastDoubling struct{}

// Name returns the display name of the strategy.
func (FastDoubling) Name() string { return "Fast Doubling" }

// FibModCore returns F(k) mod m with the fast doubling identities.
func (FastDoubling) FibModCore(ctx context.Context, k, m uint64) (uint64, error) {
	fk, _, err := fastDoublingMod(ctx, k, m)
	return fk, err
}
