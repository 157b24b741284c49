package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sedn/nbn-facade/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for _, ln := range strings.Split(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Enabled: true, Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)
	t.Cleanup(func() { observability.Init(nil, false) })

	observability.ObserveUpstreamLatency("nbn", 0.120)
	observability.IncCacheHit("get-species-list")
	observability.IncCacheMiss("get-records")
	observability.ObserveCacheOp("get", nil, 0.002)
	observability.ObserveInvalidation("get-records", 2, 3*time.Millisecond, nil)
	observability.IncKafkaConsumerError("decode")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`upstream_latency_seconds_bucket{upstream="nbn"`,
		`redis_operation_duration_seconds_count{op="get"} `,
		`cache_invalidated_keys_total `,
		`kafka_consumer_errors_total{kind="decode"} `,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "cache_results_total",
		`kind="get-species-list"`, `outcome="hit"`)
	assertHasMetricLine(t, body, "cache_results_total",
		`kind="get-records"`, `outcome="miss"`)
	assertHasMetricLine(t, body, "nbn_facade_build_info",
		`version="test"`)
}
