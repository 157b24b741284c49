package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOutbound_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := NewOutbound("nbn-facade/1.2.3")
	if c.Timeout != 0 {
		t.Fatalf("timeout=%s want none", c.Timeout)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if got != "nbn-facade/1.2.3" {
		t.Fatalf("user agent=%q", got)
	}
}
