package luahost

import (
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
	"github.com/pymemo-dev/pymemo/pkg/diskcache"
	"github.com/pymemo-dev/pymemo/pkg/engine"
	"github.com/pymemo-dev/pymemo/pkg/ignore"
	"github.com/pymemo-dev/pymemo/pkg/inspector"
	"github.com/pymemo-dev/pymemo/pkg/naming"
	"github.com/pymemo-dev/pymemo/pkg/value"
)

// impureBuiltins are builtins this adapter treats as permanently
// disqualifying a function that calls them, since re-running them on a
// cache miss would produce a different value than any cached call did.
var impureBuiltins = []string{
	"os.time",
	"os.clock",
	"os.date",
	"math.random",
}

// selfMutatingMethods are library functions that mutate their first
// argument in place rather than returning a new value.
var selfMutatingMethods = []string{
	"table.insert",
	"table.remove",
	"table.sort",
}

// registerKinds records the value.Value kinds this adapter produces.
// Functions, userdata, and threads are never registered, so
// Registry.IsPicklable conservatively rejects them.
func registerKinds(reg *value.Registry) {
	for _, k := range []string{"nil", "boolean", "number", "string", "table"} {
		reg.Register(k, value.Traits{Picklable: true, HasEquality: true})
	}
	reg.Register("multi", value.Traits{Picklable: true, HasEquality: false})
	reg.RegisterComparator(value.AllClose(globalTolerance))
}

// globalTolerance is the relative/absolute tolerance depcheck falls back
// to when a global dependency's exact hash no longer matches but both
// the recorded and live values are flat numeric arrays: floating point
// drift from an equivalent but differently ordered computation should
// not by itself force a cache miss.
const globalTolerance = 1e-9

// DecisionLogger receives one line of text per memoization decision the
// runtime makes, e.g. for a REPL or file log. It may be nil.
type DecisionLogger func(canonical, verb, detail string)

// Config configures a new Runtime.
type Config struct {
	// CacheDir is the on-disk cache root.
	CacheDir string
	// IgnorePrefixes are absolute path prefixes excluded from tracking.
	IgnorePrefixes []string
	// Log receives memoization decisions as they happen.
	Log DecisionLogger
}

// Runtime wires a gopher-lua interpreter to a memoization engine: it
// loads a script, discovers the top-level functions it defines, and
// replaces each with a wrapper that consults the engine before running
// the original body.
type Runtime struct {
	L      *lua.LState
	host   *Host
	eng    *engine.Engine
	ignore *ignore.Filter
	log    DecisionLogger

	scriptPath       string
	sourceLines      []string
	globalCandidates []string

	insp        *inspector.Inspector
	watchedHash map[string]string
}

// New returns a Runtime with a fresh interpreter and engine, but no
// script loaded yet.
func New(cfg Config) *Runtime {
	L := lua.NewState()
	host := NewHost(L)
	reg := value.NewRegistry()
	registerKinds(reg)
	ign := ignore.NewFromPrefixes(cfg.IgnorePrefixes)

	r := &Runtime{
		L:      L,
		host:   host,
		ignore: ign,
		log:    cfg.Log,
	}
	r.eng = engine.New(engine.Config{
		Host:                host,
		Registry:            reg,
		Cache:                diskcache.New(cfg.CacheDir),
		Ignore:              ign,
		Lookup:              r.lookupGlobal,
		ImpureBuiltins:      impureBuiltins,
		SelfMutatingMethods: selfMutatingMethods,
	})
	return r
}

// Engine returns the underlying engine, e.g. for an introspection
// surface (pkg/inspector, internal/mcp) to consult.
func (r *Runtime) Engine() *engine.Engine { return r.eng }

// Close releases the interpreter's resources.
func (r *Runtime) Close() { r.L.Close() }

// SetInspector arms insp so a breakpoint set on a canonical name pauses
// execution at that function's next call, and a watch set on a global
// pauses execution the next time that global's value changes. Must be
// called before Load for breakpoints on functions the script defines at
// load time to have any effect, since Load runs the whole script.
func (r *Runtime) SetInspector(insp *inspector.Inspector) {
	r.insp = insp
	r.watchedHash = make(map[string]string)
}

// AddLog chains an additional decision logger after whatever was set in
// Config, e.g. so both a persistent run log and an interactive
// inspector can observe the same stream of decisions.
func (r *Runtime) AddLog(fn DecisionLogger) {
	prev := r.log
	r.log = func(canonical, verb, detail string) {
		if prev != nil {
			prev(canonical, verb, detail)
		}
		fn(canonical, verb, detail)
	}
}

// lookupGlobal resolves a compound global name against the live
// interpreter state, for the engine's staleness check on a cache hit.
// Only a single-segment name (a bare global) is supported; a dotted path
// into a table is never recorded as a dependency by this adapter (see
// the package doc comment), so the engine never asks for one.
func (r *Runtime) lookupGlobal(name []string) (value.Value, bool) {
	if len(name) != 1 {
		return nil, false
	}
	lv := r.L.GetGlobal(name[0])
	if lv == lua.LNil {
		return nil, false
	}
	return wrapGlobalValue(lv), true
}

// Load runs path as a Lua chunk, then wraps every top-level function it
// left bound as a global so subsequent calls are memoized.
func (r *Runtime) Load(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("luahost: read script: %w", err)
	}
	r.scriptPath = path
	r.sourceLines = strings.Split(string(src), "\n")
	r.globalCandidates = scanFreeGlobals(string(src))

	r.wireBuiltins()

	before, err := r.globalFunctionNames()
	if err != nil {
		return err
	}
	if err := r.L.DoString(string(src)); err != nil {
		return fmt.Errorf("luahost: run script: %w", err)
	}
	after, err := r.globalFunctionNames()
	if err != nil {
		return err
	}

	for name := range after {
		if before[name] {
			continue
		}
		r.wrapForMemoization(name)
	}
	return nil
}

// namesProbe is run as a Lua chunk to list every global currently bound
// to a function. gopher-lua's public API has no direct Go accessor for
// the globals table, so this adapter reads it the same way any Lua code
// would: with pairs(_G).
const namesProbe = `
local names = {}
local n = 0
for k, v in pairs(_G) do
  if type(v) == "function" then
    n = n + 1
    names[n] = k
  end
end
return names
`

// globalFunctionNames snapshots the names of every global currently
// bound to a function.
func (r *Runtime) globalFunctionNames() (map[string]bool, error) {
	if err := r.L.DoString(namesProbe); err != nil {
		return nil, fmt.Errorf("luahost: scan globals: %w", err)
	}
	result := r.L.Get(-1)
	r.L.Pop(1)

	names := make(map[string]bool)
	tbl, ok := result.(*lua.LTable)
	if !ok {
		return names, nil
	}
	tbl.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			names[string(s)] = true
		}
	})
	return names, nil
}

// wrapForMemoization replaces the global function name with a wrapper
// that consults the engine before running the original body. Only names
// this call itself just discovered as newly bound functions are ever
// passed in, so original is always the script's own Lua function, never
// a host builtin.
func (r *Runtime) wrapForMemoization(name string) {
	original, ok := r.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return
	}
	desc := naming.Descriptor{FuncName: name, AbsPath: r.scriptPath, SourceFile: r.scriptPath}
	code := fingerprintFunction(name, r.sourceLines)
	canonical, err := naming.Canonical(desc)
	if err != nil {
		canonical = name
	}

	r.L.SetGlobal(name, r.L.NewFunction(func(L *lua.LState) int {
		return r.callMemoized(L, desc, canonical, code, original)
	}))
}

// reportGlobalReads reports every candidate free-variable global
// currently bound to a trackable value to the engine. On a cache hit
// the engine has no in-flight call state, so the OnGlobalRead reports
// are dropped; the OnGlobalBind reports below still reach the
// reachability tracker. A global bound to a function is
// never reported: calling another script function is already covered
// by the whole-script code fingerprint, and a library or script
// function value would fail to pickle and wrongly disqualify the call
// if reported here.
//
// A candidate currently bound to a table is also reported to
// OnGlobalBind, seeding the reachability tracker's root set. Without
// this, a self-mutating call against a table reached only through a
// global would never register as mutating something globally reachable,
// since the engine's own OnMutation only disqualifies a call once the
// reachability tracker already knows the mutated identity's name.
func (r *Runtime) reportGlobalReads() {
	for _, name := range r.globalCandidates {
		lv := r.L.GetGlobal(name)
		if lv == lua.LNil {
			continue
		}
		if _, isFunc := lv.(*lua.LFunction); isFunc {
			continue
		}
		if t, ok := lv.(*lua.LTable); ok {
			r.eng.OnGlobalBind(name, wrapValue(t))
		}
		r.eng.OnGlobalRead([]string{name}, wrapGlobalValue(lv))
	}
}

// checkInspector pauses the interpreter if canonical has an armed
// breakpoint, then checks whether any watched global changed since the
// last call boundary. It is a no-op when no inspector is attached.
func (r *Runtime) checkInspector(canonical string) {
	if r.insp == nil {
		return
	}
	if r.insp.ShouldBreak(canonical) {
		if err := r.insp.Pause(canonical); err != nil {
			fmt.Fprintf(os.Stderr, "inspector: %v\n", err)
		}
	}
	r.checkWatches()
}

// checkWatches pauses the inspector when a watched global's pickled hash
// differs from the value it had at the previous call boundary.
func (r *Runtime) checkWatches() {
	for _, name := range r.globalCandidates {
		if !r.insp.Watching(name) {
			continue
		}
		lv := r.L.GetGlobal(name)
		if lv == lua.LNil {
			continue
		}
		if _, isFunc := lv.(*lua.LFunction); isFunc {
			continue
		}
		pickled, err := r.host.Pickle(wrapGlobalValue(lv))
		if err != nil {
			continue
		}
		hash := r.host.Hash(pickled)
		prev, seen := r.watchedHash[name]
		r.watchedHash[name] = hash
		if !seen || prev == hash {
			continue
		}
		r.insp.NoteWatch(name, "value changed")
		if err := r.insp.Pause(name); err != nil {
			fmt.Fprintf(os.Stderr, "inspector: %v\n", err)
		}
	}
}

func (r *Runtime) callMemoized(L *lua.LState, desc naming.Descriptor, canonical string, code codeunit.CodeDependency, original *lua.LFunction) int {
	r.checkInspector(canonical)

	nargs := L.GetTop()
	args := make([]lua.LValue, nargs)
	for i := 0; i < nargs; i++ {
		args[i] = L.Get(i + 1)
	}

	argsPickled, err := r.host.Pickle(wrapResults(args))
	if err != nil {
		// Arguments themselves can't be used as a cache key; just run it.
		return callThrough(L, original)
	}

	outcome := r.eng.Enter(desc, code, argsPickled)
	r.reportGlobalReads()
	if outcome.Hit {
		results, err := decodeResults(L, outcome.Entry.Result)
		if err != nil {
			// A corrupt entry should not take the script down; fall back
			// to actually running the call.
			r.eng.Exit(wrapValue(lua.LNil))
			return r.runAndRecord(L, canonical, original)
		}
		if len(outcome.Entry.Stdout) > 0 {
			fmt.Fprint(os.Stdout, string(outcome.Entry.Stdout))
		}
		if len(outcome.Entry.Stderr) > 0 {
			fmt.Fprint(os.Stderr, string(outcome.Entry.Stderr))
		}
		r.eng.Exit(wrapValue(lua.LNil))
		r.logDecision(canonical, "SKIPPED", "replayed cached result")
		for _, res := range results {
			L.Push(res)
		}
		return len(results)
	}

	return r.runAndRecord(L, canonical, original)
}

func (r *Runtime) runAndRecord(L *lua.LState, canonical string, original *lua.LFunction) int {
	nret := callThrough(L, original)
	top := L.GetTop()
	results := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		results[i] = L.Get(top - nret + i + 1)
	}

	entry, err := r.eng.Exit(wrapResults(results))
	switch {
	case err != nil:
		r.logDecision(canonical, "ERROR", err.Error())
	case entry != nil:
		r.logDecision(canonical, "MEMOIZED", "recorded a fresh cache entry")
	default:
		r.logDecision(canonical, "CANNOT_MEMOIZE", "not memoizable")
	}
	return nret
}

func (r *Runtime) logDecision(canonical, verb, detail string) {
	if r.log != nil {
		r.log(canonical, verb, detail)
	}
}

// callThrough invokes fn with whatever arguments are currently on L's
// stack and returns the number of results it produced.
func callThrough(L *lua.LState, fn lua.LValue) int {
	nargs := L.GetTop()
	args := make([]lua.LValue, nargs)
	for i := 0; i < nargs; i++ {
		args[i] = L.Get(i + 1)
	}
	L.Push(fn)
	for _, a := range args {
		L.Push(a)
	}
	L.Call(nargs, lua.MultRet)
	return L.GetTop() - nargs
}

// fingerprintFunction derives name's code-change fingerprint. gopher-lua's
// public API exposes no per-function bytecode or source-range accessor,
// so this adapter fingerprints on the whole script's source text instead
// of just the one function's body: editing any part of a script
// invalidates every cached call in it, a coarser signal than a true
// per-function bytecode hash but one that never produces a stale hit.
func fingerprintFunction(name string, sourceLines []string) codeunit.CodeDependency {
	body := strings.Join(sourceLines, "\n")
	return codeunit.CodeDependency{
		Bytecode: []byte(name + "\x00" + body),
	}
}
