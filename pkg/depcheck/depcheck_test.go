package depcheck

import (
	"testing"
	"time"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
	"github.com/pymemo-dev/pymemo/pkg/value"
)

type fakeValue struct{ kind string }

func (f fakeValue) Identity() uintptr { return 0 }
func (f fakeValue) Mutable() bool     { return false }
func (f fakeValue) Kind() string      { return f.kind }

type fakeHost struct{}

func (fakeHost) DeepCopy(v value.Value) value.Value     { return v }
func (fakeHost) StructuralEqual(a, b value.Value) bool  { return a == b }
func (fakeHost) Pickle(v value.Value) ([]byte, error)   { return []byte(v.Kind()), nil }
func (fakeHost) Hash(b []byte) string                   { return string(b) }
func (fakeHost) FileModTime(string) (time.Time, bool)   { return time.Time{}, false }
func (fakeHost) InstructionCounter() uint64             { return 0 }

type fakeResolver struct {
	globals map[string]value.Value
	files   map[string]time.Time
	code    map[string]codeunit.CodeDependency
}

func (r fakeResolver) GlobalValue(name []string) (value.Value, bool) {
	v, ok := r.globals[joinName(name)]
	return v, ok
}
func (r fakeResolver) FileModTime(path string) (time.Time, bool) {
	t, ok := r.files[path]
	return t, ok
}
func (r fakeResolver) CodeOf(canonical string) (codeunit.CodeDependency, bool) {
	c, ok := r.code[canonical]
	return c, ok
}

func TestValidWhenNothingChanged(t *testing.T) {
	code := codeunit.CodeDependency{ArgCount: 1}
	res := fakeResolver{
		globals: map[string]value.Value{"limit": fakeValue{kind: "int-10"}},
		files:   map[string]time.Time{"/tmp/a.txt": time.Unix(100, 0)},
		code:    map[string]codeunit.CodeDependency{"f [/a.py]": code, "g [/b.py]": code},
	}
	rec := Record{
		OwnCode: code,
		Globals: []GlobalDep{{Name: []string{"limit"}, Hash: "int-10"}},
		Files:   []FileDep{{Path: "/tmp/a.txt", ModTime: time.Unix(100, 0)}},
		Called:  []CalledCodeDep{{Canonical: "g [/b.py]", Code: code}},
	}

	c := NewChecker(fakeHost{}, nil)
	ok, reason := c.Valid("f [/a.py]", rec, res)
	if !ok {
		t.Fatalf("expected valid, got invalid: %s", reason)
	}
}

func TestInvalidWhenGlobalChanged(t *testing.T) {
	code := codeunit.CodeDependency{ArgCount: 1}
	res := fakeResolver{
		globals: map[string]value.Value{"limit": fakeValue{kind: "int-20"}},
		code:    map[string]codeunit.CodeDependency{"f [/a.py]": code},
	}
	rec := Record{
		OwnCode: code,
		Globals: []GlobalDep{{Name: []string{"limit"}, Hash: "int-10"}},
	}

	c := NewChecker(fakeHost{}, nil)
	ok, _ := c.Valid("f [/a.py]", rec, res)
	if ok {
		t.Fatalf("expected invalid due to changed global")
	}
}

func TestInvalidWhenOwnCodeChanged(t *testing.T) {
	oldCode := codeunit.CodeDependency{Bytecode: []byte{1}, ArgCount: 1}
	newCode := codeunit.CodeDependency{Bytecode: []byte{2}, ArgCount: 1}
	res := fakeResolver{code: map[string]codeunit.CodeDependency{"f [/a.py]": newCode}}
	rec := Record{OwnCode: oldCode}

	c := NewChecker(fakeHost{}, nil)
	ok, reason := c.Valid("f [/a.py]", rec, res)
	if ok {
		t.Fatalf("expected invalid due to changed own code")
	}
	if reason == "" {
		t.Fatalf("expected a reason")
	}
}

func TestInvalidWhenFileChanged(t *testing.T) {
	code := codeunit.CodeDependency{}
	res := fakeResolver{
		files: map[string]time.Time{"/tmp/a.txt": time.Unix(200, 0)},
		code:  map[string]codeunit.CodeDependency{"f [/a.py]": code},
	}
	rec := Record{
		OwnCode: code,
		Files:   []FileDep{{Path: "/tmp/a.txt", ModTime: time.Unix(100, 0)}},
	}

	c := NewChecker(fakeHost{}, nil)
	ok, _ := c.Valid("f [/a.py]", rec, res)
	if ok {
		t.Fatalf("expected invalid due to changed file mtime")
	}
}

func TestCycleIsTreatedAsValidAtTheInnerCheck(t *testing.T) {
	code := codeunit.CodeDependency{}
	res := fakeResolver{code: map[string]codeunit.CodeDependency{"a": code, "b": code}}

	c := NewChecker(fakeHost{}, nil)
	c.inProgress["a"] = true
	ok, _ := c.Valid("a", Record{OwnCode: code}, res)
	if !ok {
		t.Fatalf("expected cycle re-entry to be optimistically valid")
	}
}
