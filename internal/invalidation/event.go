// Package invalidation defines the cache purge events published on Kafka.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sedn/nbn-facade/internal/cache/keys"
	"github.com/sedn/nbn-facade/internal/core/model"
)

const (
	Version = 1
	OpPurge = "purge"
)

// Event asks every facade instance to drop cached results. An empty Kind
// covers every query kind; an empty Search covers every entry of the kind.
type Event struct {
	Version int       `json:"version"`
	ID      string    `json:"id"`
	Op      string    `json:"op"`
	Kind    string    `json:"kind,omitempty"`
	Search  string    `json:"search,omitempty"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func NewPurge(id, kind, search, source string, now time.Time) Event {
	return Event{
		Version: Version,
		ID:      id,
		Op:      OpPurge,
		Kind:    kind,
		Search:  search,
		TS:      now.UTC(),
		Source:  source,
	}
}

func (e Event) Validate() error {
	if e.Version != Version {
		return fmt.Errorf("version must be %d", Version)
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("id is required")
	}
	if e.Op != OpPurge {
		return fmt.Errorf("op must be %s", OpPurge)
	}
	if e.Kind != "" && !model.Kind(e.Kind).Valid() {
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	return nil
}

// Prefixes lists the cache key prefixes the event removes.
func (e Event) Prefixes() []string {
	if e.Kind != "" {
		return []string{keys.Prefix(e.Kind, e.Search)}
	}
	kinds := model.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, keys.Prefix(string(k), e.Search))
	}
	return out
}

// Label is the metrics label for the event's kind.
func (e Event) Label() string {
	if e.Kind == "" {
		return "all"
	}
	return e.Kind
}
