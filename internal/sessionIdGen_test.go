package internal

import "testing"

func TestRandomSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := RandomSessionID()
		if len(id) != 8 {
			t.Fatalf("id %q has length %d, want 8", id, len(id))
		}
		seen[string(id)] = true
	}
	if len(seen) < 90 {
		t.Fatalf("only %d distinct ids out of 100", len(seen))
	}
}
