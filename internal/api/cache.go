package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/sale"
)

const cacheTTL = 30 * time.Second

type cacheEntry struct {
	sales     []domain.Sale
	expiresAt time.Time
}

// listCache caches sale listings per filter for a short TTL. Mutating
// handlers clear it so fresh listings follow writes immediately.
type listCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newListCache() *listCache {
	return &listCache{
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey formats: "{mint}|{seller}"
func cacheKey(f sale.Filter) string {
	return fmt.Sprintf("%s|%s", f.TokenType, f.Seller)
}

func (c *listCache) get(key string) ([]domain.Sale, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.sales, true
}

func (c *listCache) set(key string, sales []domain.Sale) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		sales:     sales,
		expiresAt: time.Now().Add(cacheTTL),
	}
}

func (c *listCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
}
