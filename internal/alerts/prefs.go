// Package alerts holds the per-store alert preference cache and the
// best-effort alert dispatcher.
package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/model"
	"github.com/vendora/inventory-core/internal/store"
)

// Defaults returns the hard-coded preference tier used when a store has
// never configured alerting.
func Defaults(storeID string) model.AlertPreferences {
	return model.AlertPreferences{
		StoreID:                  storeID,
		EnableLowStockAlerts:     true,
		EnableOutOfStockAlerts:   true,
		EnableRestockAlerts:      false,
		DefaultLowStockThreshold: 10,
		DeadStockDays:            90,
	}
}

// PrefsCache is a three-tier cache-aside store for alert preferences:
// in-memory map, then the durable store, then Defaults. Misses for the same
// store serialize on a per-store guard so a cold key produces a single
// durable read no matter how many readers race it.
type PrefsCache struct {
	store store.Store
	log   *zap.Logger

	mu      sync.RWMutex
	entries map[string]model.AlertPreferences

	guardMu sync.Mutex
	guards  map[string]*sync.Mutex
}

// NewPrefsCache constructs an empty cache over the durable store.
func NewPrefsCache(st store.Store, log *zap.Logger) *PrefsCache {
	return &PrefsCache{
		store:   st,
		log:     log,
		entries: make(map[string]model.AlertPreferences),
		guards:  make(map[string]*sync.Mutex),
	}
}

// guard returns the mutex owned by storeID, creating it on first use.
func (c *PrefsCache) guard(storeID string) *sync.Mutex {
	c.guardMu.Lock()
	defer c.guardMu.Unlock()
	g, ok := c.guards[storeID]
	if !ok {
		g = &sync.Mutex{}
		c.guards[storeID] = g
	}
	return g
}

// Get returns the store's preferences, warming the cache on miss.
func (c *PrefsCache) Get(ctx context.Context, storeID string) (model.AlertPreferences, error) {
	c.mu.RLock()
	p, ok := c.entries[storeID]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	g := c.guard(storeID)
	g.Lock()
	defer g.Unlock()

	// Another reader holding the guard may have warmed the entry already.
	c.mu.RLock()
	p, ok = c.entries[storeID]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, _, err := c.store.GetPreferences(ctx, storeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return model.AlertPreferences{}, err
		}
		p = Defaults(storeID)
	}
	c.mu.Lock()
	c.entries[storeID] = p
	c.mu.Unlock()
	return p, nil
}

// Set persists new preferences. The cached entry is invalidated before the
// durable write starts so a racing reader can never observe a stale value
// once the write is underway; the next Get repopulates lazily.
func (c *PrefsCache) Set(ctx context.Context, p model.AlertPreferences) error {
	c.Invalidate(p.StoreID)

	now := time.Now().UTC()
	p.UpdatedAt = now

	_, version, err := c.store.GetPreferences(ctx, p.StoreID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		p.CreatedAt = now
		version = 0
	}
	if err := c.store.PutPreferences(ctx, p, version); err != nil {
		return err
	}
	c.log.Info("alert_preferences_updated", zap.String("store_id", p.StoreID))
	return nil
}

// Invalidate drops the cached entry for a store.
func (c *PrefsCache) Invalidate(storeID string) {
	c.mu.Lock()
	delete(c.entries, storeID)
	c.mu.Unlock()
}
