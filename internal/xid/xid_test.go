package xid

import (
	"strings"
	"testing"
)

func TestNewIsPrefixedUniqueAndOrdered(t *testing.T) {
	prev := ""
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := New("inv")
		if !strings.HasPrefix(id, "inv-") {
			t.Fatalf("expected inv- prefix, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		if id <= prev {
			t.Fatalf("expected %q to sort after %q", id, prev)
		}
		seen[id] = struct{}{}
		prev = id
	}
}
