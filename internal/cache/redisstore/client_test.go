package redisstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/sedn/nbn-facade/internal/cache"
	"github.com/sedn/nbn-facade/internal/core/config"
	"github.com/sedn/nbn-facade/internal/core/model"
	"github.com/sedn/nbn-facade/internal/core/observability"
	"github.com/sedn/nbn-facade/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr(), WithOpTimeout(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, "k1")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("Get got=%q ok=%v err=%v", got, ok, err)
	}

	if _, ok, err := rc.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key ok=%v err=%v", ok, err)
	}

	if err := rc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "k1"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestTTLExpiry_IsAMiss(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "ttl-key", []byte("v"), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "ttl-key"); !ok {
		t.Fatal("pre expiry miss")
	}

	mr.FastForward(3 * time.Second)

	if _, ok, err := rc.Get(ctx, "ttl-key"); ok || err != nil {
		t.Fatalf("post expiry ok=%v err=%v", ok, err)
	}
}

func TestDelPrefix_RemovesOnlyMatches(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for i := 0; i < 1200; i++ {
		_ = rc.Set(ctx, fmt.Sprintf("get-records-quercus-%04d", i), []byte("v"), time.Minute)
	}
	_ = rc.Set(ctx, "get-records-fagus-0", []byte("v"), time.Minute)
	_ = rc.Set(ctx, "get-sites-quercus", []byte("v"), time.Minute)
	_ = rc.Set(ctx, "get-records-quercus*x", []byte("v"), time.Minute)

	n, err := rc.DelPrefix(ctx, "get-records-quercus")
	if err != nil {
		t.Fatalf("DelPrefix: %v", err)
	}
	if n != 1201 {
		t.Fatalf("removed=%d want 1201", n)
	}
	if !mr.Exists("get-records-fagus-0") || !mr.Exists("get-sites-quercus") {
		t.Fatalf("unrelated keys removed: %v", mr.Keys())
	}
}

func TestContextCanceled_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestNew_PingFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, addr, WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatal("expected ping error")
	}
	if _, err := New(ctx, ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestOpen_RedisDriver(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := config.Config{CacheDriver: DriverName, RedisAddr: mr.Addr(), CacheTTL: time.Minute}
	st, err := cache.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c, ok := st.(*Client)
	if !ok {
		t.Fatalf("Open = %T", st)
	}
	defer func() { _ = c.Close() }()

	rc := cache.NewResults(st, time.Minute, nil)
	rc.Put(context.Background(), "get-sites-shrews", model.QueryResult{
		Status: model.StatusOK,
		Facets: []model.FacetEntry{{Label: "Shrewsbury", Count: 4}},
	})
	got, ok := rc.Get(context.Background(), model.KindSiteList, "get-sites-shrews")
	if !ok || len(got.Facets) != 1 || got.Facets[0].Label != "Shrewsbury" {
		t.Fatalf("got=%+v ok=%v", got, ok)
	}
	if ttl := mr.TTL("get-sites-shrews"); ttl != time.Minute {
		t.Fatalf("ttl=%s", ttl)
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer(), true)
	t.Cleanup(func() { observability.Init(nil, false) })

	rc, _ := newMini(t)
	ctx := context.Background()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _, _ = rc.Get(ctx, "m1")
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `cache_op_total{op="set"`) ||
		!strings.Contains(body, `cache_op_total{op="get"`) ||
		!strings.Contains(body, `cache_op_total{op="del"`) {
		t.Fatalf("missing cache_op_total metrics; got:\n%s", body)
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing redis_operation_duration_seconds histogram; got:\n%s", body)
	}
}
