package broker

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/shopspring/decimal"
)

// CachedQuoteSource remembers successful prices for a short TTL so repeated
// CLI invocations and overlapping refreshes do not hit the provider again.
// Absent prices and errors are never cached.
type CachedQuoteSource struct {
	next  QuoteSource
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedQuoteSource wraps next with a TTL cache.
func NewCachedQuoteSource(next QuoteSource, ttl time.Duration) (*CachedQuoteSource, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedQuoteSource{next: next, cache: c, ttl: ttl}, nil
}

// GetPrice returns a cached price or fetches and caches a fresh one.
func (c *CachedQuoteSource) GetPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error) {
	key := normalizeTicker(ticker)
	if v, ok := c.cache.Get(key); ok {
		if p, ok := v.(decimal.Decimal); ok {
			return decimal.NewNullDecimal(p), nil
		}
	}

	price, err := c.next.GetPrice(ctx, ticker)
	if err != nil || !price.Valid {
		return price, err
	}

	c.cache.SetWithTTL(key, price.Decimal, 1, c.ttl)
	return price, nil
}

// Wait blocks until pending cache writes are visible.
func (c *CachedQuoteSource) Wait() {
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *CachedQuoteSource) Close() {
	c.cache.Close()
}
