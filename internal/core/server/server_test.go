package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/sedn/nbn-facade/internal/cache"
	"github.com/sedn/nbn-facade/internal/cache/memstore"
	"github.com/sedn/nbn-facade/internal/core/gateway"
	"github.com/sedn/nbn-facade/internal/core/observability"
	"github.com/sedn/nbn-facade/internal/core/records"
	"github.com/sedn/nbn-facade/internal/metrics"
	"github.com/sedn/nbn-facade/internal/query"
)

func TestHandler_EndToEnd(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, "https://records-ws.nbnatlas.org/occurrences/search",
		httpmock.NewStringResponder(http.StatusOK, `{"totalRecords":1,"occurrences":[{"uuid":"u1","year":2020,"locationId":"A","latLong":"52.1,-2.1"}]}`))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := query.New(records.DefaultEndpoint(),
		gateway.New(logger, &http.Client{Transport: mt}),
		cache.NewResults(memstore.New(time.Minute), time.Minute, logger),
		logger)

	p := metrics.Init(metrics.Config{Enabled: true})
	observability.Init(p.Registerer(), true)
	t.Cleanup(func() { observability.Init(nil, false) })

	srv := httptest.NewServer(Handler(logger, Deps{Service: svc, Metrics: p}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/species/Abies%20alba/records")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"sites":{"A":{"locationId":"A","coordinates":[52.1,-2.1]}}`) {
		t.Fatalf("body=%s", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		r, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = r.Body.Close()
		if r.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d", path, r.StatusCode)
		}
	}

	mr, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	mb, _ := io.ReadAll(mr.Body)
	_ = mr.Body.Close()
	if !strings.Contains(string(mb), `http_requests_total{method="GET",route="/api/v1/species/{name}/records",status="200"}`) {
		t.Fatalf("route metric missing:\n%s", mb)
	}
	if !strings.Contains(string(mb), `query_results_total{kind="get-records",status="OK"} 1`) {
		t.Fatalf("query metric missing:\n%s", mb)
	}
}
