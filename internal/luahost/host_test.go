package luahost

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestLuaToGoRoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	tbl.RawSetInt(1, lua.LNumber(1))
	tbl.RawSetInt(2, lua.LNumber(2))
	tbl.RawSetString("name", lua.LString("ada"))

	goVal, err := luaToGo(tbl)
	if err != nil {
		t.Fatalf("luaToGo failed: %v", err)
	}
	back := goToLua(L, goVal)
	backTbl, ok := back.(*lua.LTable)
	if !ok {
		t.Fatalf("expected a table back, got %T", back)
	}
	if backTbl.RawGetString("name").String() != "ada" {
		t.Fatalf("expected name to round-trip, got %v", backTbl.RawGetString("name"))
	}
}

// A luaNumericArray embeds luaValue but is a distinct concrete type, so
// Host must recognize it through the luaBacked interface rather than a
// type assertion on luaValue specifically, or a numeric-array global
// would fail to pickle and wrongly disqualify its caller.
func TestHostPicklesLuaNumericArray(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	h := NewHost(L)

	tbl := L.NewTable()
	tbl.RawSetInt(1, lua.LNumber(1.5))
	tbl.RawSetInt(2, lua.LNumber(2.5))

	wrapped := wrapGlobalValue(tbl)
	na, ok := wrapped.(luaNumericArray)
	if !ok {
		t.Fatalf("expected wrapGlobalValue to produce a luaNumericArray for a flat number table, got %T", wrapped)
	}

	pickled, err := h.Pickle(na)
	if err != nil {
		t.Fatalf("Pickle failed for a luaNumericArray: %v", err)
	}
	if len(pickled) == 0 {
		t.Fatalf("expected non-empty pickled bytes")
	}

	other := L.NewTable()
	other.RawSetInt(1, lua.LNumber(1.5))
	other.RawSetInt(2, lua.LNumber(2.5))
	if !h.StructuralEqual(na, wrapGlobalValue(other)) {
		t.Fatalf("expected two equal numeric arrays to compare structurally equal")
	}
}

func TestLuaToGoRejectsFunctions(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	fn := L.NewFunction(func(L *lua.LState) int { return 0 })
	if _, err := luaToGo(fn); err == nil {
		t.Fatalf("expected an error converting a function value")
	}
}

func TestHostPickleAndDecodeResultsRoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	h := NewHost(L)

	results := []lua.LValue{lua.LNumber(42), lua.LString("ok")}
	b, err := h.Pickle(wrapResults(results))
	if err != nil {
		t.Fatalf("Pickle failed: %v", err)
	}

	decoded, err := decodeResults(L, b)
	if err != nil {
		t.Fatalf("decodeResults failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 decoded results, got %d", len(decoded))
	}
	if n, ok := decoded[0].(lua.LNumber); !ok || n != 42 {
		t.Fatalf("expected first result 42, got %v", decoded[0])
	}
	if decoded[1].String() != "ok" {
		t.Fatalf("expected second result \"ok\", got %v", decoded[1])
	}
}

func TestHostStructuralEqual(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	h := NewHost(L)

	a := L.NewTable()
	a.RawSetString("x", lua.LNumber(1))
	b := L.NewTable()
	b.RawSetString("x", lua.LNumber(1))

	if !h.StructuralEqual(wrapValue(a), wrapValue(b)) {
		t.Fatalf("expected structurally identical tables to compare equal")
	}

	c := L.NewTable()
	c.RawSetString("x", lua.LNumber(2))
	if h.StructuralEqual(wrapValue(a), wrapValue(c)) {
		t.Fatalf("expected differing tables to compare unequal")
	}
}

func TestHostDeepCopyIsIndependent(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	h := NewHost(L)

	orig := L.NewTable()
	orig.RawSetString("x", lua.LNumber(1))

	copied := h.DeepCopy(wrapValue(orig))
	copiedLV, ok := copied.(luaValue)
	if !ok {
		t.Fatalf("expected a luaValue back")
	}
	copiedTbl, ok := copiedLV.lv.(*lua.LTable)
	if !ok {
		t.Fatalf("expected a table back")
	}
	if copiedTbl == orig {
		t.Fatalf("expected DeepCopy to allocate a distinct table")
	}

	orig.RawSetString("x", lua.LNumber(99))
	if copiedTbl.RawGetString("x") != lua.LNumber(1) {
		t.Fatalf("expected copy to be unaffected by a later mutation of the original")
	}
}

func TestHostHashIsDeterministic(t *testing.T) {
	h := &Host{}
	a := h.Hash([]byte("same input"))
	b := h.Hash([]byte("same input"))
	if a != b {
		t.Fatalf("expected Hash to be deterministic, got %q and %q", a, b)
	}
	if h.Hash([]byte("different")) == a {
		t.Fatalf("expected different input to hash differently")
	}
}

func TestHostFileModTimeMissingFile(t *testing.T) {
	h := &Host{}
	if _, ok := h.FileModTime("/does/not/exist/pymemo-test"); ok {
		t.Fatalf("expected ok=false for a nonexistent file")
	}
}
