package inspector

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
	"github.com/pymemo-dev/pymemo/pkg/diskcache"
	"github.com/pymemo-dev/pymemo/pkg/engine"
	"github.com/pymemo-dev/pymemo/pkg/ignore"
	"github.com/pymemo-dev/pymemo/pkg/naming"
	"github.com/pymemo-dev/pymemo/pkg/readline"
	"github.com/pymemo-dev/pymemo/pkg/value"
)

type fakeValue struct{ n int }

func (v fakeValue) Identity() uintptr { return 0 }
func (v fakeValue) Mutable() bool     { return false }
func (v fakeValue) Kind() string      { return "int" }

type fakeHost struct{ clock uint64 }

func (h *fakeHost) DeepCopy(v value.Value) value.Value    { return v }
func (h *fakeHost) StructuralEqual(a, b value.Value) bool { return a == b }
func (h *fakeHost) Pickle(v value.Value) ([]byte, error)  { return []byte("x"), nil }
func (h *fakeHost) Hash(b []byte) string                  { return string(b) }
func (h *fakeHost) FileModTime(path string) (time.Time, bool) { return time.Time{}, false }
func (h *fakeHost) InstructionCounter() uint64 {
	h.clock++
	return h.clock
}

func newTestInspector(t *testing.T) (*Inspector, *engine.Engine, *bytes.Buffer) {
	t.Helper()
	reg := value.NewRegistry()
	reg.Register("int", value.Traits{Picklable: true, HasEquality: true})
	eng := engine.New(engine.Config{
		Host:     &fakeHost{},
		Registry: reg,
		Cache:    diskcache.New(t.TempDir()),
		Ignore:   ignore.New(),
	})
	out := &bytes.Buffer{}
	in := New(eng, &Config{Output: out, Input: strings.NewReader("")})
	return in, eng, out
}

func TestRecordHistoryTruncatesToMaxHistory(t *testing.T) {
	in, _, _ := newTestInspector(t)
	in.maxHistory = 2
	in.Record(Decision{Canonical: "a", Verb: "MEMOIZED"})
	in.Record(Decision{Canonical: "b", Verb: "MEMOIZED"})
	in.Record(Decision{Canonical: "c", Verb: "MEMOIZED"})
	if len(in.history) != 2 {
		t.Fatalf("expected history capped at 2, got %d", len(in.history))
	}
	if in.history[0].Canonical != "b" || in.history[1].Canonical != "c" {
		t.Fatalf("expected oldest entry evicted, got %+v", in.history)
	}
}

func TestBreakpointLifecycle(t *testing.T) {
	in, _, out := newTestInspector(t)
	if in.ShouldBreak("square [/a.py]") {
		t.Fatalf("expected no breakpoint set initially")
	}
	if err := in.handleCommand("break square [/a.py]"); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if !in.ShouldBreak("square [/a.py]") {
		t.Fatalf("expected breakpoint to be armed")
	}
	if err := in.handleCommand("delete square [/a.py]"); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if in.ShouldBreak("square [/a.py]") {
		t.Fatalf("expected breakpoint to be cleared")
	}
	_ = out
}

func TestWatchLifecycle(t *testing.T) {
	in, _, _ := newTestInspector(t)
	if err := in.handleCommand("watch cache"); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if !in.Watching("cache") {
		t.Fatalf("expected cache to be watched")
	}
	if err := in.handleCommand("unwatch cache"); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if in.Watching("cache") {
		t.Fatalf("expected cache to no longer be watched")
	}
}

func TestListAndStatsReflectEngine(t *testing.T) {
	in, eng, out := newTestInspector(t)
	d := naming.Descriptor{FuncName: "square", AbsPath: "/app/main.py"}
	code := codeunit.CodeDependency{ArgCount: 1}
	eng.Enter(d, code, []byte("arg:3"))
	if _, err := eng.Exit(fakeValue{n: 9}); err != nil {
		t.Fatalf("Exit failed: %v", err)
	}

	out.Reset()
	if err := in.handleCommand("list"); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if !strings.Contains(out.String(), "square") {
		t.Fatalf("expected function listing to contain canonical name, got %q", out.String())
	}

	out.Reset()
	if err := in.handleCommand("stats"); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if !strings.Contains(out.String(), "tracked functions: 1") {
		t.Fatalf("expected aggregate stats to show one tracked function, got %q", out.String())
	}
}

func TestClearCommandDelegatesToEngine(t *testing.T) {
	in, eng, out := newTestInspector(t)
	d := naming.Descriptor{FuncName: "square", AbsPath: "/app/main.py"}
	code := codeunit.CodeDependency{ArgCount: 1}
	eng.Enter(d, code, []byte("arg:3"))
	eng.Exit(fakeValue{n: 9})

	out.Reset()
	if err := in.handleCommand("clear"); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if !strings.Contains(out.String(), "cleared the entire cache") {
		t.Fatalf("expected clear confirmation, got %q", out.String())
	}
}

func TestPauseReturnsOnContinueAndPrintsLabel(t *testing.T) {
	in, _, out := newTestInspector(t)
	in.reader = readline.NewReader(&readline.Config{
		Input:  strings.NewReader("stats\ncontinue\n"),
		Output: out,
	})
	if err := in.Pause("square [/a.py]"); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if !strings.Contains(out.String(), "paused: square [/a.py]") {
		t.Fatalf("expected pause label in output, got %q", out.String())
	}
	if !strings.Contains(out.String(), "tracked functions:") {
		t.Fatalf("expected the 'stats' command to have run before continue, got %q", out.String())
	}
}

func TestCommandLoopResetsRunningBetweenCalls(t *testing.T) {
	// A prior Run/Pause call leaves in.running set; a second call must
	// not immediately return before processing any command, or the
	// inspector could only ever be entered once.
	in, _, out := newTestInspector(t)
	in.reader = readline.NewReader(&readline.Config{
		Input:  strings.NewReader("continue\n"),
		Output: out,
	})
	if err := in.Pause("first"); err != nil {
		t.Fatalf("first Pause failed: %v", err)
	}

	in.reader = readline.NewReader(&readline.Config{
		Input:  strings.NewReader("stats\ncontinue\n"),
		Output: out,
	})
	out.Reset()
	if err := in.Pause("second"); err != nil {
		t.Fatalf("second Pause failed: %v", err)
	}
	if !strings.Contains(out.String(), "tracked functions:") {
		t.Fatalf("expected 'stats' to run on the second pause, got %q", out.String())
	}
}

func TestUnknownCommandDoesNotError(t *testing.T) {
	in, _, out := newTestInspector(t)
	if err := in.handleCommand("bogus"); err != nil {
		t.Fatalf("unknown command should not return an error: %v", err)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("expected unknown-command message, got %q", out.String())
	}
}
