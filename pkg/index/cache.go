package index

import (
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ajitpratap0/trackpool/pkg/codec"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
)

// DefaultCacheSize is the number of indexes a Cache keeps when none is given.
const DefaultCacheSize = 64

// Cache shares loaded indexes between every handle on a file. Concurrent
// misses for the same file load it once.
type Cache struct {
	entries *lru.Cache[string, *Index]
	group   singleflight.Group
}

// NewCache creates a cache holding up to size indexes.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Index](size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "creating index cache")
	}
	return &Cache{entries: entries}, nil
}

// Get returns the current index of path, loading or building it on a miss.
// A cached index whose data file changed is dropped and rebuilt.
func (c *Cache) Get(path string, cd codec.Codec, fallback *genome.Dictionary) (*Index, error) {
	key := cd.Name() + "\x00" + path

	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "stat track file").WithDetail("path", path)
	}
	if x, ok := c.entries.Get(key); ok {
		if x.Matches(st) {
			return x, nil
		}
		c.entries.Remove(key)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		x, err := LoadOrBuild(path, cd, fallback)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, x)
		return x, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every cached index.
func (c *Cache) Purge() { c.entries.Purge() }
