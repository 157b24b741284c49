package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sedn/nbn-facade/internal/core/config"
)

// Factory opens a store for the given configuration.
type Factory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error)

const (
	DriverNone   = "none"
	DriverMemory = "memory"
)

var (
	regMu sync.RWMutex
	reg   = map[string]Factory{
		DriverNone: func(context.Context, config.Config, *slog.Logger) (Store, error) { return Nop{}, nil },
	}
)

// Register makes a driver available to Open. Store packages call it from
// init.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	reg[name] = f
}

// Drivers lists the registered driver names.
func Drivers() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Open builds the store named by cfg.CacheDriver. An unknown driver falls back
// to the memory store.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	regMu.RLock()
	f, ok := reg[cfg.CacheDriver]
	fallback, haveFallback := reg[DriverMemory]
	regMu.RUnlock()

	if ok {
		return f(ctx, cfg, logger)
	}
	if haveFallback {
		logger.Warn("unknown cache driver; falling back to memory", "driver", cfg.CacheDriver)
		return fallback(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("no factory for cache driver %q and no memory driver registered", cfg.CacheDriver)
}
