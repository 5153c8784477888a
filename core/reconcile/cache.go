package reconcile

import (
	"context"
	"sync"
	"time"

	"asset-bank/core/asset"

	"golang.org/x/sync/singleflight"
)

// Cache holds disk indices per root for a TTL.
type Cache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	indices map[string]*Indices
	sf      singleflight.Group
}

// NewCache creates a cache. A zero ttl disables caching but still collapses
// concurrent scans.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, indices: make(map[string]*Indices)}
}

func (c *Cache) fresh(idx *Indices) bool {
	return c.ttl > 0 && time.Since(idx.Built) <= c.ttl
}

// GetOrScan returns the cached indices of root, scanning when they are missing
// or expired.
func (c *Cache) GetOrScan(ctx context.Context, root string, registry *asset.Registry, isAsset IsAsset) (*Indices, error) {
	c.mu.RLock()
	idx, ok := c.indices[root]
	c.mu.RUnlock()
	if ok && c.fresh(idx) {
		return idx, nil
	}

	v, err, _ := c.sf.Do(root, func() (any, error) {
		c.mu.RLock()
		idx, ok := c.indices[root]
		c.mu.RUnlock()
		if ok && c.fresh(idx) {
			return idx, nil
		}

		idx, err := ScanDisk(ctx, root, registry, isAsset)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.indices[root] = idx
		c.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Indices), nil
}

// Invalidate drops the cached indices of root.
func (c *Cache) Invalidate(root string) {
	c.mu.Lock()
	delete(c.indices, root)
	c.mu.Unlock()
}
