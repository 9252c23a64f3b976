package suggestcache

import (
	"container/list"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
)

// DefaultSize is the bound used when a non-positive size is configured.
const DefaultSize = 64

// Key identifies a cached result list. Cell is the viewport geohash for location mode.
type Key struct {
	Mode  mode.Mode
	Query string
	Cell  string
}

type entry struct {
	key         Key
	suggestions []result.Suggestion
	lastAccess  time.Time
}

// Cache is a bounded LRU of query -> ordered suggestions.
type Cache struct {
	mu        sync.Mutex
	size      int
	items     map[Key]*list.Element
	evictList *list.List
	now       func() time.Time

	cacheTotal *prometheus.CounterVec
}

// New creates a Cache holding at most size entries.
// cacheTotal is a counter vec with labels "mode" and "result" ("hit"/"miss"), passed explicitly. May be nil.
func New(size int, cacheTotal *prometheus.CounterVec) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		size:       size,
		items:      make(map[Key]*list.Element, size),
		evictList:  list.New(),
		now:        time.Now,
		cacheTotal: cacheTotal,
	}
}

// Get returns a copy of the cached suggestions and marks the entry most recently used.
func (c *Cache) Get(key Key) ([]result.Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.inc(key.Mode, "miss")
		return nil, false
	}
	c.inc(key.Mode, "hit")
	c.evictList.MoveToFront(el)
	ent := el.Value.(*entry)
	ent.lastAccess = c.now()
	return slices.Clone(ent.suggestions), true
}

// Put stores suggestions under key. Empty lists are not cached.
// Inserting past the bound evicts the least recently used entry.
func (c *Cache) Put(key Key, suggestions []result.Suggestion) {
	if len(suggestions) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		ent := el.Value.(*entry)
		ent.suggestions = slices.Clone(suggestions)
		ent.lastAccess = c.now()
		return
	}

	el := c.evictList.PushFront(&entry{
		key:         key,
		suggestions: slices.Clone(suggestions),
		lastAccess:  c.now(),
	})
	c.items[key] = el

	for c.evictList.Len() > c.size {
		c.removeElement(c.evictList.Back())
	}
}

// Purge drops every entry for m. Used when a mode's source changes underneath it.
func (c *Cache) Purge(m mode.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for k, el := range c.items {
		if k.Mode == m {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.removeElement(el)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Oldest returns the least recently used key and its last access time.
func (c *Cache) Oldest() (Key, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el := c.evictList.Back()
	if el == nil {
		return Key{}, time.Time{}, false
	}
	ent := el.Value.(*entry)
	return ent.key, ent.lastAccess, true
}

func (c *Cache) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

func (c *Cache) inc(m mode.Mode, res string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(string(m), res).Inc()
	}
}
