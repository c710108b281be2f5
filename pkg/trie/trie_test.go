package trie

import "testing"

func TestContains(t *testing.T) {
	tr := NewFromSlice([]string{"append", "insert", "extend", "pop", "sort"})

	cases := []struct {
		key  string
		want bool
	}{
		{"append", true},
		{"insert", true},
		{"sort", true},
		{"appendix", false},
		{"app", false},
		{"", false},
		{"popitem", false}, // not inserted, distinct from "pop"
	}

	for _, c := range cases {
		if got := tr.Contains(c.key); got != c.want {
			t.Errorf("Contains(%q) = %v, want %v", c.key, got, c.want)
		}
	}
}

func TestInsertIdempotent(t *testing.T) {
	tr := New()
	tr.Insert("draw")
	tr.Insert("draw")
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
}

func TestNonASCIIIgnored(t *testing.T) {
	tr := New()
	tr.Insert("café") // 'é' is multi-byte in UTF-8, > 127
	if tr.Contains("café") {
		t.Fatalf("expected non-ASCII key to not round-trip")
	}
}

func TestMutatorAndImpureSets(t *testing.T) {
	mutators := NewFromSlice([]string{
		"append", "insert", "extend", "pop", "remove", "reverse", "sort",
		"popitem", "update", "clear", "add", "discard", "resize",
	})
	impure := NewFromSlice([]string{"input", "raw_input", "draw"})

	if !mutators.Contains("append") || !mutators.Contains("discard") {
		t.Fatalf("expected mutator trie to contain seeded names")
	}
	if mutators.Contains("input") {
		t.Fatalf("mutator trie should not contain impure names")
	}
	if !impure.Contains("draw") {
		t.Fatalf("expected impure trie to contain draw")
	}
}
