package ids

import (
	"strings"
	"testing"
)

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("id %q has length %d, want 26", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewRecordKeyIsLowercase(t *testing.T) {
	key := NewRecordKey()
	if key != strings.ToLower(key) {
		t.Fatalf("record key %q is not lowercase", key)
	}
}
