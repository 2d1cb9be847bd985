package diskcache

import (
	"fmt"
	"slices"
	"strings"
)

// evict shrinks the cache to targetRatio*maxBytes, removing whole owner
// entries in strict least-recently-accessed order. Entries with equal
// access times fall back to owner id order so the pass is deterministic.
// Metadata is persisted once at the end.
func (c *Cache) evict() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxBytes <= 0 || c.meta.TotalSizeBytes <= c.maxBytes {
		return nil
	}
	target := int64(float64(c.maxBytes) * c.targetRatio)

	victims := make([]*entry, 0, len(c.meta.Entries))
	for _, ent := range c.meta.Entries {
		victims = append(victims, ent)
	}
	slices.SortFunc(victims, func(a, b *entry) int {
		if a.LastAccessedAt.Before(b.LastAccessedAt) {
			return -1
		}
		if a.LastAccessedAt.After(b.LastAccessedAt) {
			return 1
		}
		return strings.Compare(a.OwnerID, b.OwnerID)
	})

	var freed int64
	remaining := c.meta.TotalSizeBytes
	for _, ent := range victims {
		if remaining <= target {
			break
		}
		if err := removeOwnerDir(c.dir, ent.Dir); err != nil {
			return fmt.Errorf("remove owner dir %q: %w", ent.Dir, err)
		}
		delete(c.meta.Entries, ent.OwnerID)
		remaining -= ent.SizeBytes
		freed += ent.SizeBytes
		c.log().Debug("evicted owner", "owner", ent.OwnerID, "size", ent.SizeBytes, "last_access", ent.LastAccessedAt)
	}

	c.meta.TotalSizeBytes = remaining
	c.meta.LastCleanupAt = c.now()
	if err := c.meta.persist(c.dir); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	c.log().Info("eviction pass complete", "freed", freed, "remaining", remaining, "target", target)
	return nil
}
