// Package cache holds the result cache: a keyed byte store with a fixed TTL
// and the typed wrapper the query service talks to.
package cache

import (
	"context"
	"time"
)

// Store is the key/value collaborator behind the result cache. A missing or
// expired key reports found=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix removes every key starting with prefix and reports how many
	// were removed.
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// Pinger is implemented by stores with a remote backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}

// Nop never stores anything; every Get is a miss.
type Nop struct{}

var _ Store = Nop{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Del(context.Context, ...string) error                     { return nil }
func (Nop) DelPrefix(context.Context, string) (int, error)           { return 0, nil }
