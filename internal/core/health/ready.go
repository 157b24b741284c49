package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is a dependency that must answer for the service to be ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessReporter is implemented by the invalidation consumer.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

const pingTimeout = 500 * time.Millisecond

// Readiness reports ready when the cache store answers a ping and, if
// present, the consumer holds its partitions. Either argument may be nil.
func Readiness(store Pinger, consumer ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string  `json:"status"`
			Cache      string  `json:"cache,omitempty"`
			Partitions []int32 `json:"partitions,omitempty"`
		}
		out := resp{Status: "ready"}
		ready := true

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			err := store.Ping(ctx)
			cancel()
			if err != nil {
				ready = false
				out.Cache = err.Error()
			} else {
				out.Cache = "ok"
			}
		}
		if consumer != nil {
			ok, parts := consumer.Readiness()
			if ok {
				out.Partitions = parts
			} else {
				ready = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			out.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
