package reach

import (
	"testing"

	"github.com/pymemo-dev/pymemo/pkg/shadow"
)

func TestInternDedupes(t *testing.T) {
	tr := New(shadow.New())
	a := tr.Intern([]string{"cache", "entries"})
	b := tr.Intern([]string{"cache", "entries"})
	if a != b {
		t.Fatalf("expected identical segment paths to intern to the same Name")
	}
	if a.String() != "cache.entries" {
		t.Fatalf("unexpected rendering: %q", a.String())
	}
}

func TestNoteGlobalRootFirstWins(t *testing.T) {
	tr := New(shadow.New())
	tr.NoteGlobalRoot("cache", 0x100)
	tr.NoteGlobalRoot("alias", 0x100)

	name, ok := tr.NameOf(0x100)
	if !ok || len(name) != 1 || name[0] != "cache" {
		t.Fatalf("expected first root name to stick, got %v, %v", name, ok)
	}
}

func TestNoteContainmentPropagates(t *testing.T) {
	tr := New(shadow.New())
	tr.NoteGlobalRoot("cache", 0x100)
	tr.NoteContainment(0x100, 0x200, "entries")

	name, ok := tr.NameOf(0x200)
	if !ok || name[0] != "cache" || name[1] != "entries" {
		t.Fatalf("unexpected propagated name: %v, %v", name, ok)
	}
}

func TestNoteContainmentSkippedWithoutKnownParent(t *testing.T) {
	tr := New(shadow.New())
	tr.NoteContainment(0x999, 0x200, "entries")

	if _, ok := tr.NameOf(0x200); ok {
		t.Fatalf("expected no name to propagate from an untracked parent")
	}
}

func TestRootLookup(t *testing.T) {
	tr := New(shadow.New())
	tr.NoteGlobalRoot("cache", 0x100)
	if addr, ok := tr.Root("cache"); !ok || addr != 0x100 {
		t.Fatalf("Root lookup failed: %v, %v", addr, ok)
	}
	tr.ForgetRoot("cache")
	if _, ok := tr.Root("cache"); ok {
		t.Fatalf("expected root to be forgotten")
	}
}
