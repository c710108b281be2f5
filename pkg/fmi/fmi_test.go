package fmi

import (
	"testing"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
)

func TestNeverMemoizableIsSticky(t *testing.T) {
	info := NewInfo("f [/a.py]", codeunit.CodeDependency{ArgCount: 1})
	info.MarkMemoizable()
	info.MarkNeverMemoizable("called open() with write mode")
	info.MarkMemoizable()

	if info.Status() != StatusNeverMemoizable {
		t.Fatalf("expected StatusNeverMemoizable to stick, got %v", info.Status())
	}
	if info.Reason() == "" {
		t.Fatalf("expected a recorded reason")
	}
}

func TestRefreshCodeResetsMemoizableVerdict(t *testing.T) {
	code1 := codeunit.CodeDependency{Bytecode: []byte{1}, ArgCount: 1}
	code2 := codeunit.CodeDependency{Bytecode: []byte{2}, ArgCount: 1}

	info := NewInfo("f [/a.py]", code1)
	info.MarkMemoizable()
	info.RefreshCode(code2)

	if info.Status() != StatusUnknown {
		t.Fatalf("expected code change to reset to StatusUnknown, got %v", info.Status())
	}
}

func TestRefreshCodeSameCodeIsNoop(t *testing.T) {
	code := codeunit.CodeDependency{Bytecode: []byte{1}, ArgCount: 1}
	info := NewInfo("f [/a.py]", code)
	info.MarkMemoizable()
	info.RefreshCode(code)

	if info.Status() != StatusMemoizable {
		t.Fatalf("expected unchanged code to leave status alone, got %v", info.Status())
	}
}

func TestTableGetOrCreateAndStats(t *testing.T) {
	tbl := NewTable()
	code := codeunit.CodeDependency{ArgCount: 0}

	a := tbl.GetOrCreate("f [/a.py]", code)
	b := tbl.GetOrCreate("f [/a.py]", code)
	if a != b {
		t.Fatalf("expected GetOrCreate to return the same record")
	}

	a.RecordHit()
	a.RecordMiss()
	stats := a.Snapshot()
	if stats.Calls != 2 || stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	all := tbl.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 tracked function, got %d", len(all))
	}

	tbl.Delete("f [/a.py]")
	if _, ok := tbl.Get("f [/a.py]"); ok {
		t.Fatalf("expected record to be gone after Delete")
	}
}
