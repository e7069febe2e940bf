package service

import (
	"slices"
	"sync"
	"time"

	"github.com/set-night/loyaltyledger/internal/domain"
)

type tierEntry struct {
	tiers    []domain.Tier
	cachedAt time.Time
}

// TierCache holds each tenant's tier ladder for ttl. A zero ttl disables caching.
type TierCache struct {
	mu      sync.RWMutex
	entries map[string]tierEntry
	ttl     time.Duration
}

func NewTierCache(ttl time.Duration) *TierCache {
	return &TierCache{entries: make(map[string]tierEntry), ttl: ttl}
}

func (c *TierCache) Get(tenantID string) ([]domain.Tier, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[tenantID]
	if !ok || time.Since(e.cachedAt) > c.ttl {
		return nil, false
	}
	return slices.Clone(e.tiers), true
}

func (c *TierCache) Set(tenantID string, tiers []domain.Tier) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID] = tierEntry{tiers: slices.Clone(tiers), cachedAt: time.Now()}
}

// Invalidate drops a tenant's ladder, e.g. after the tiers were reseeded.
func (c *TierCache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
}
