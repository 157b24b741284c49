// Package memstore is the in-process result store, backed by go-cache.
package memstore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sedn/nbn-facade/internal/cache"
	"github.com/sedn/nbn-facade/internal/core/config"
	"github.com/sedn/nbn-facade/internal/core/observability"
)

func init() {
	cache.Register(cache.DriverMemory, func(_ context.Context, cfg config.Config, logger *slog.Logger) (cache.Store, error) {
		logger.Info("cache store ready", "driver", cache.DriverMemory, "ttl", cfg.CacheTTL.String())
		return New(cfg.CacheTTL), nil
	})
}

type Store struct {
	c *gocache.Cache
}

var _ cache.Store = (*Store)(nil)

// New returns a store whose janitor sweeps expired entries every ttl.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	return &Store{c: gocache.New(ttl, ttl)}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("get", err, -1)
		return nil, false, err
	}
	v, ok := s.c.Get(key)
	observability.ObserveCacheOp("get", nil, -1)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	return b, ok, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("set", err, -1)
		return err
	}
	// copy so later writes by the caller do not leak into the cache
	s.c.Set(key, append([]byte(nil), val...), ttl)
	observability.ObserveCacheOp("set", nil, -1)
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.c.Delete(k)
	}
	observability.ObserveCacheOp("del", nil, -1)
	return nil
}

func (s *Store) DelPrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix) {
			s.c.Delete(k)
			n++
		}
	}
	observability.ObserveCacheOp("del_prefix", nil, -1)
	return n, nil
}

// Len reports the number of unexpired entries.
func (s *Store) Len() int { return len(s.c.Items()) }
