package tiles

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"helioscope/internal/common"
)

// Cache keeps recently downloaded tile bytes in memory
type Cache struct {
	entries *lru.Cache[string, []byte]
}

// NewCache creates a cache holding at most size tiles
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 256
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

func cacheKey(provider common.Provider, tile Tile) string {
	return string(provider) + "/" + tile.String()
}

// Get returns cached tile bytes
func (c *Cache) Get(provider common.Provider, tile Tile) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(cacheKey(provider, tile))
}

// Set stores tile bytes
func (c *Cache) Set(provider common.Provider, tile Tile, data []byte) {
	if c == nil {
		return
	}
	c.entries.Add(cacheKey(provider, tile), data)
}

// Len returns the number of cached tiles
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// Purge drops every cached tile
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}
