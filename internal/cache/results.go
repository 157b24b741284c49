package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sedn/nbn-facade/internal/core/model"
	"github.com/sedn/nbn-facade/internal/core/observability"
)

// Results stores QueryResults under a process-wide TTL. Store failures and
// undecodable entries are logged and behave as misses.
type Results struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewResults(store Store, ttl time.Duration, logger *slog.Logger) *Results {
	if store == nil {
		store = Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Results{store: store, ttl: ttl, logger: logger}
}

func (c *Results) Store() Store { return c.store }

func (c *Results) TTL() time.Duration { return c.ttl }

func (c *Results) Get(ctx context.Context, kind model.Kind, key string) (model.QueryResult, bool) {
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "err", err)
	}
	if err != nil || !found {
		observability.IncCacheMiss(string(kind))
		return model.QueryResult{}, false
	}

	var res model.QueryResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("cache entry undecodable; treating as miss", "key", key, "err", err)
		observability.IncCacheMiss(string(kind))
		return model.QueryResult{}, false
	}
	observability.IncCacheHit(string(kind))
	return res, true
}

// Put stores res under key. Only OK results are kept.
func (c *Results) Put(ctx context.Context, key string, res model.QueryResult) {
	if !res.OK() {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "err", err)
	}
}

// Purge removes every entry whose key starts with prefix.
func (c *Results) Purge(ctx context.Context, prefix string) (int, error) {
	return c.store.DelPrefix(ctx, prefix)
}
