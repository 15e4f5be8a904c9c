package template

import "sync"

// Cache memoizes parsed templates by source text.
// Parse errors are cached too, so a broken definition is only lexed once.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	tmpl *Template
	err  error
}

var defaultCache = NewCache()

// NewCache creates an empty template cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the parsed template for src, parsing it on first use.
func (c *Cache) Get(src, file string) (*Template, error) {
	key := file + "\x00" + src

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e.tmpl, e.err
	}

	tmpl, err := Parse(src, file)

	c.mu.Lock()
	c.entries[key] = cacheEntry{tmpl: tmpl, err: err}
	c.mu.Unlock()

	return tmpl, err
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup parses src through the shared cache. file names the template in error positions.
func Lookup(src, file string) (*Template, error) {
	return defaultCache.Get(src, file)
}
