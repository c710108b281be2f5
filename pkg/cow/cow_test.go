package cow

import (
	"testing"
	"time"

	"github.com/pymemo-dev/pymemo/pkg/value"
)

type fakeValue struct {
	id      uintptr
	mutable bool
	tag     string
}

func (f fakeValue) Identity() uintptr { return f.id }
func (f fakeValue) Mutable() bool     { return f.mutable }
func (f fakeValue) Kind() string      { return "table" }

type testHost struct{ copies int }

func (h *testHost) DeepCopy(v value.Value) value.Value {
	h.copies++
	fv := v.(fakeValue)
	return fakeValue{id: fv.id, mutable: fv.mutable, tag: fv.tag + "-copy"}
}
func (h *testHost) StructuralEqual(a, b value.Value) bool { return a == b }
func (h *testHost) Pickle(v value.Value) ([]byte, error)  { return nil, nil }
func (h *testHost) Hash(b []byte) string                  { return "" }
func (h *testHost) FileModTime(p string) (time.Time, bool) {
	return time.Time{}, false
}
func (h *testHost) InstructionCounter() uint64 { return 0 }

func TestValueAtReturnsLiveValueWhenUntouched(t *testing.T) {
	host := &testHost{}
	r := New(host)
	v := fakeValue{id: 1, mutable: true, tag: "orig"}
	r.Track(v)

	got := r.ValueAt(v).(fakeValue)
	if got.tag != "orig" {
		t.Fatalf("expected live value, got %+v", got)
	}
	if host.copies != 0 {
		t.Fatalf("expected no deep copy before mutation, got %d", host.copies)
	}
}

func TestCheckMutationMaterializesCopyOnce(t *testing.T) {
	host := &testHost{}
	r := New(host)
	v := fakeValue{id: 1, mutable: true, tag: "orig"}
	r.Track(v)

	r.CheckMutation(v)
	r.CheckMutation(v)

	if host.copies != 1 {
		t.Fatalf("expected exactly one deep copy, got %d", host.copies)
	}
	got := r.ValueAt(v).(fakeValue)
	if got.tag != "orig-copy" {
		t.Fatalf("expected snapshot copy after mutation, got %+v", got)
	}
}

func TestImmutableValuesAreNeverTracked(t *testing.T) {
	host := &testHost{}
	r := New(host)
	v := fakeValue{id: 1, mutable: false, tag: "orig"}
	r.Track(v)
	if r.Tracked(v) {
		t.Fatalf("expected immutable value to not be tracked")
	}
	r.CheckMutation(v)
	if host.copies != 0 {
		t.Fatalf("expected no copy for immutable value")
	}
}

func TestUntrackAndReset(t *testing.T) {
	host := &testHost{}
	r := New(host)
	v := fakeValue{id: 1, mutable: true, tag: "orig"}
	r.Track(v)
	r.Untrack(v)
	if r.Tracked(v) {
		t.Fatalf("expected Untrack to remove tracking")
	}

	r.Track(v)
	r.Reset()
	if r.Tracked(v) {
		t.Fatalf("expected Reset to clear all tracking")
	}
}
