package suggest

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// DefaultSweepThreshold is the entry count above which Set sweeps expired entries.
const DefaultSweepThreshold = 100

// Key identifies one cached suggestion request.
type Key struct {
	EntityID      string
	Types         []apptype.EntityType
	ExcludeIDs    []string
	MaxResults    int
	IncludeTags   bool
	IncludeReason bool
}

// NewKey normalizes opts into a cache key. Type and exclude lists are sorted
// and deduplicated so argument order does not matter.
func NewKey(entityID string, opts apptype.GenerateOptions) Key {
	types := make([]string, 0, len(opts.TypeFilter))
	for _, t := range opts.TypeFilter {
		types = append(types, string(t))
	}
	types = sortedUnique(types)
	typed := make([]apptype.EntityType, len(types))
	for i, t := range types {
		typed[i] = apptype.EntityType(t)
	}
	return Key{
		EntityID:      entityID,
		Types:         typed,
		ExcludeIDs:    sortedUnique(append([]string(nil), opts.ExcludeIDs...)),
		MaxResults:    opts.MaxResults,
		IncludeTags:   opts.IncludeTags,
		IncludeReason: opts.IncludeReason,
	}
}

// String encodes the key with every id length-prefixed, so ids containing
// separator characters cannot collide with a different key.
func (k Key) String() string {
	var b strings.Builder
	writeField(&b, k.EntityID)
	b.WriteString(strconv.Itoa(len(k.Types)))
	b.WriteByte('[')
	for _, t := range k.Types {
		writeField(&b, string(t))
	}
	b.WriteByte(']')
	b.WriteString(strconv.Itoa(len(k.ExcludeIDs)))
	b.WriteByte('[')
	for _, id := range k.ExcludeIDs {
		writeField(&b, id)
	}
	b.WriteByte(']')
	b.WriteString(strconv.Itoa(k.MaxResults))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(k.IncludeTags))
	b.WriteByte(',')
	b.WriteString(strconv.FormatBool(k.IncludeReason))
	return b.String()
}

func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func sortedUnique(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, s := range in {
		if i > 0 && s == in[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

type cacheEntry struct {
	source    string
	value     []apptype.Suggestion
	createdAt time.Time
	ttl       time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Cache is a TTL cache of suggestion lists. Expired entries are dropped on
// read, and Set sweeps every expired entry once the cache grows past its
// threshold. There is no LRU eviction.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]*cacheEntry
	threshold int
	now       func() time.Time
	logger    *zap.Logger
}

// NewCache creates a cache. A nil clock uses time.Now; a non-positive
// threshold uses DefaultSweepThreshold.
func NewCache(threshold int, now func() time.Time, logger *zap.Logger) *Cache {
	if threshold <= 0 {
		threshold = DefaultSweepThreshold
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries:   make(map[string]*cacheEntry),
		threshold: threshold,
		now:       now,
		logger:    logger,
	}
}

// Get returns a copy of the cached list for key, or false on a miss.
func (c *Cache) Get(key Key) ([]apptype.Suggestion, bool) {
	k := key.String()
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// Another writer may have replaced it meanwhile.
		if cur, still := c.entries[k]; still && cur == e {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return nil, false
	}
	return cloneSuggestions(e.value), true
}

// Set stores value under key for ttl. Last writer wins.
func (c *Cache) Set(key Key, value []apptype.Suggestion, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = &cacheEntry{
		source:    key.EntityID,
		value:     cloneSuggestions(value),
		createdAt: now,
		ttl:       ttl,
	}
	if len(c.entries) > c.threshold {
		c.sweepLocked(now)
	}
}

// sweepLocked evicts every expired entry. Caller holds the write lock.
func (c *Cache) sweepLocked(now time.Time) {
	evicted := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			evicted++
		}
	}
	c.logger.Debug("suggestion cache sweep",
		zap.Int("evicted", evicted),
		zap.Int("remaining", len(c.entries)),
	)
}

// Invalidate drops every entry computed for entityID and returns how many were removed.
func (c *Cache) Invalidate(entityID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.source == entityID {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneSuggestions(in []apptype.Suggestion) []apptype.Suggestion {
	out := make([]apptype.Suggestion, len(in))
	for i, s := range in {
		if len(s.Tags) > 0 {
			s.Tags = append([]string(nil), s.Tags...)
		}
		out[i] = s
	}
	return out
}
