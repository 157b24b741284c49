package redisstore

import "testing"

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob(`get-a*b?[c]\`); got != `get-a\*b\?\[c\]\\` {
		t.Fatalf("got %q", got)
	}
}
