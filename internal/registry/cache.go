package registry

import (
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

// recordCache keeps recently read or written records keyed by derived key.
// Entries are refreshed after every commit that touches them; the TTL bounds
// staleness when another process writes the same SQLite file.
type recordCache struct {
	cache  *gocache.Cache
	logger *slog.Logger
}

func newRecordCache(ttl time.Duration, logger *slog.Logger) *recordCache {
	if ttl <= 0 {
		return nil
	}
	return &recordCache{
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (c *recordCache) get(id uint64) (ir.Record, bool) {
	if c == nil {
		return ir.Record{}, false
	}
	key := layout.DeriveKey(id).String()
	value, found := c.cache.Get(key)
	if !found {
		return ir.Record{}, false
	}
	rec, ok := value.(ir.Record)
	if !ok {
		c.logger.Error("wrong type in record cache", "key", key)
		c.cache.Delete(key)
		return ir.Record{}, false
	}
	return rec, true
}

func (c *recordCache) put(rec ir.Record) {
	if c == nil {
		return
	}
	c.cache.SetDefault(layout.DeriveKey(rec.ID).String(), rec)
}

func (c *recordCache) flush() {
	if c == nil {
		return
	}
	c.cache.Flush()
}
