package application

import (
	"slices"
	"strconv"
	"sync"
	"time"
)

// resolutionCache keeps resolution reports per record version so repeated
// polling of an unchanged rendez-vous skips the tally and overlap queries.
// Entries expire after ttl because overlaps depend on other records.
type resolutionCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]resolutionCacheEntry
}

type resolutionCacheEntry struct {
	report    ResolutionReport
	expiresAt time.Time
}

func newResolutionCache(ttl time.Duration, maxEntries int, now func() time.Time) *resolutionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &resolutionCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]resolutionCacheEntry),
	}
}

func resolutionCacheKey(id string, version int64) string {
	return id + "@" + strconv.FormatInt(version, 10)
}

func (c *resolutionCache) Get(id string, version int64) (ResolutionReport, bool) {
	if c == nil {
		return ResolutionReport{}, false
	}
	key := resolutionCacheKey(id, version)
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ResolutionReport{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return ResolutionReport{}, false
	}
	return cloneReport(entry.report), true
}

func (c *resolutionCache) Store(report ResolutionReport) {
	if c == nil {
		return
	}
	entry := resolutionCacheEntry{report: cloneReport(report), expiresAt: c.now().Add(c.ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[resolutionCacheKey(report.RendezVousID, report.Version)] = entry
}

// Forget drops every cached version of id.
func (c *resolutionCache) Forget(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.report.RendezVousID == id {
			delete(c.entries, key)
		}
	}
}

func (c *resolutionCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *resolutionCache) evictOneLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneReport(report ResolutionReport) ResolutionReport {
	out := report
	out.Resolution.Scores = slices.Clone(report.Resolution.Scores)
	out.Overlaps = slices.Clone(report.Overlaps)
	return out
}
