// Package respcache caches final aggregated answers keyed by competition,
// normalized query, and response kind.
//
// Only single-topology, non-degraded outcomes are cached: multi-handler or
// degraded answers depend on conversation history and caching them risks
// serving a mismatched answer to a structurally similar follow-up. A hit
// short-circuits classification, routing, and execution entirely.
package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/executor"
	"github.com/fyrsmithlabs/questd/internal/router"
)

// Entry is one cached answer.
type Entry struct {
	Text      string
	CreatedAt time.Time
	expiresAt time.Time
	accessed  time.Time
}

// Cache is a thread-safe TTL + LRU cache for final answers.
//
// A TTL of zero disables expiry; entries then live until LRU eviction.
// Staleness is otherwise bounded only by corpus re-population, so the TTL
// is configuration, never a hard-coded interval.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	ttl        time.Duration
	maxEntries int
	metrics    *Metrics
}

// New creates a cache from configuration. Metrics may be nil.
func New(cfg config.CacheConfig, metrics *Metrics) *Cache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &Cache{
		entries:    make(map[string]*Entry),
		ttl:        cfg.TTL.Duration(),
		maxEntries: maxEntries,
		metrics:    metrics,
	}
}

// Get returns the cached answer for (competition, query, kind), if present
// and unexpired. Expired entries are removed on access.
func (c *Cache) Get(competitionID, query, kind string) (string, bool) {
	key := Key(competitionID, query, kind)

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		if c.metrics != nil {
			c.metrics.RecordMiss()
		}
		return "", false
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.removeExpired(key, entry)
		if c.metrics != nil {
			c.metrics.RecordMiss()
		}
		return "", false
	}

	c.mu.Lock()
	entry.accessed = time.Now()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordHit()
	}
	return entry.Text, true
}

// PutOutcome stores the outcome's final text if and only if the cacheability
// invariant holds: single topology and not degraded. Reports whether the
// entry was stored.
func (c *Cache) PutOutcome(competitionID, query, kind string, out executor.Outcome) bool {
	if out.Mode != router.TopologySingle || out.Degraded {
		return false
	}
	c.put(competitionID, query, kind, out.FinalText)
	return true
}

func (c *Cache) put(competitionID, query, kind, text string) {
	key := Key(competitionID, query, kind)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}

	entry := &Entry{
		Text:      text,
		CreatedAt: now,
		accessed:  now,
	}
	if c.ttl > 0 {
		entry.expiresAt = now.Add(c.ttl)
	}
	c.entries[key] = entry

	if c.metrics != nil {
		c.metrics.SetSize(len(c.entries))
	}
}

// removeExpired deletes an entry observed as expired outside the write
// lock. It only removes the exact entry it saw: a concurrent put may have
// replaced it with a fresh one under the same key, which must survive.
func (c *Cache) removeExpired(key string, stale *Entry) {
	c.mu.Lock()
	if current, ok := c.entries[key]; ok && current == stale {
		delete(c.entries, key)
	}
	size := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetSize(size)
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLRU removes the least recently accessed entry. Caller must hold the
// write lock.
func (c *Cache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	first := true
	for key, entry := range c.entries {
		if first || entry.accessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.accessed
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Key derives the cache key: sha256 over competition id, the normalized
// query, and the response kind. Normalization lower-cases and collapses
// whitespace so trivial rephrasings of a simple factual question collide.
func Key(competitionID, query, kind string) string {
	h := sha256.New()
	h.Write([]byte(competitionID))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(query)))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize lower-cases the query and collapses runs of whitespace.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
