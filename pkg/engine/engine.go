// Package engine implements the central memoization policy: it decides,
// for every call the host interpreter reports, whether to skip execution
// and replay a cached result, or to run the call while recording the
// dependency set that will let a future identical call be skipped.
//
// The engine touches no concrete dynamic-language runtime. It is driven
// entirely by the host adapter's callback events (call entry/exit,
// global reads/binds, container access, mutation, file I/O, and builtin
// dispatch) and by the value.HostServices a host adapter supplies.
package engine

import (
	"bytes"
	"fmt"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
	"github.com/pymemo-dev/pymemo/pkg/cow"
	"github.com/pymemo-dev/pymemo/pkg/depcheck"
	"github.com/pymemo-dev/pymemo/pkg/diskcache"
	"github.com/pymemo-dev/pymemo/pkg/fmi"
	"github.com/pymemo-dev/pymemo/pkg/frame"
	"github.com/pymemo-dev/pymemo/pkg/ignore"
	"github.com/pymemo-dev/pymemo/pkg/naming"
	"github.com/pymemo-dev/pymemo/pkg/reach"
	"github.com/pymemo-dev/pymemo/pkg/shadow"
	"github.com/pymemo-dev/pymemo/pkg/trie"
	"github.com/pymemo-dev/pymemo/pkg/value"
)

// GlobalLookup resolves the live value currently bound at a compound
// global name. The host adapter supplies this; the engine has no notion
// of the host's global namespace on its own.
type GlobalLookup func(name []string) (value.Value, bool)

// Config configures a new Engine.
type Config struct {
	Host                value.HostServices
	Registry            *value.Registry
	Cache               *diskcache.Cache
	Ignore              *ignore.Filter
	Lookup              GlobalLookup
	ImpureBuiltins      []string
	SelfMutatingMethods []string
}

// Engine is the memoization state machine. One Engine instance is shared
// across every call on a single logical thread of control; it is not
// safe for concurrent use from multiple threads of control at once,
// matching the single-threaded, cooperative execution model of the
// dynamic-language runtimes it embeds into.
type Engine struct {
	host     value.HostServices
	registry *value.Registry
	cache    *diskcache.Cache
	ignore   *ignore.Filter
	lookup   GlobalLookup

	impureBuiltins      *trie.Trie
	selfMutatingMethods *trie.Trie

	reach      *reach.Tracker
	fmis       *fmi.Table
	depChecker *depcheck.Checker

	stack *frame.Stack
	calls []*callState
}

// callState is the engine's bookkeeping for one in-flight, tracked call.
type callState struct {
	canonical string
	code      codeunit.CodeDependency
	funcHash  string
	argHash   string

	cow *cow.Registry

	globals    []depcheck.GlobalDep
	globalSeen map[string]bool

	files     []depcheck.FileDep
	fileSeen  map[string]bool

	called     []depcheck.CalledCodeDep
	calledSeen map[string]bool

	stdout     bytes.Buffer
	stderr     bytes.Buffer
	fileWrites []diskcache.FileWrite

	dirty bool
}

// New returns a ready Engine.
func New(cfg Config) *Engine {
	return &Engine{
		host:                cfg.Host,
		registry:            cfg.Registry,
		cache:               cfg.Cache,
		ignore:              cfg.Ignore,
		lookup:              cfg.Lookup,
		impureBuiltins:      trie.NewFromSlice(cfg.ImpureBuiltins),
		selfMutatingMethods: trie.NewFromSlice(cfg.SelfMutatingMethods),
		reach:               reach.New(shadow.New()),
		fmis:                fmi.NewTable(),
		depChecker:          depcheck.NewChecker(cfg.Host, cfg.Registry),
		stack:               frame.NewStack(),
	}
}

// Outcome tells the host adapter what to do about one call.
type Outcome struct {
	// Hit is true if a valid cached entry was found; the host adapter
	// must not execute the call body and should instead replay Entry.
	Hit   bool
	Entry *diskcache.Entry
}

// Enter is called by the host adapter at function-call time, before the
// call body (potentially) runs. argsPickled is the pickled argument
// tuple, used as the cache key alongside the function's canonical name.
func (e *Engine) Enter(d naming.Descriptor, code codeunit.CodeDependency, argsPickled []byte) Outcome {
	canonical, ignored := naming.Classify(d, e.ignore)
	if ignored {
		e.stack.Push(canonical, e.host.InstructionCounter())
		e.calls = append(e.calls, nil)
		return Outcome{}
	}

	info := e.fmis.GetOrCreate(canonical, code)
	info.RefreshCode(code)

	funcHash := e.host.Hash([]byte(canonical))
	argHash := e.host.Hash(argsPickled)

	// A call already in flight for this same function cannot be resolved
	// from cache: its own result, the thing a cache entry would be
	// keyed on, has not been computed yet.
	recursive := e.stack.Contains(canonical)

	if !recursive && info.Status() != fmi.StatusNeverMemoizable {
		if entry, err := e.cache.Get(funcHash, argHash); err == nil {
			var rec depcheck.Record
			if decodeErr := decodeRecord(entry.Deps, &rec); decodeErr == nil {
				res := resolverAdapter{lookup: e.lookup, host: e.host, fmis: e.fmis}
				if ok, _ := e.depChecker.Valid(canonical, rec, res); ok {
					info.RecordHit()
					e.stack.Push(canonical, e.host.InstructionCounter())
					e.calls = append(e.calls, nil)
					return Outcome{Hit: true, Entry: entry}
				}
			}
		}
	}

	info.RecordMiss()
	e.stack.Push(canonical, e.host.InstructionCounter())
	cs := &callState{
		canonical:  canonical,
		code:       code,
		funcHash:   funcHash,
		argHash:    argHash,
		cow:        cow.New(e.host),
		globalSeen: make(map[string]bool),
		fileSeen:   make(map[string]bool),
		calledSeen: make(map[string]bool),
	}
	e.calls = append(e.calls, cs)
	return Outcome{}
}

// Exit is called by the host adapter once a call's body finishes
// running, or immediately after a cache hit with nothing to run. result
// is the value the call produced (the replayed value, on a hit).
func (e *Engine) Exit(result value.Value) (*diskcache.Entry, error) {
	e.stack.Pop()
	n := len(e.calls)
	cs := e.calls[n-1]
	e.calls = e.calls[:n-1]
	if cs == nil {
		// Ignored code, or a cache hit: nothing was tracked for this frame.
		return nil, nil
	}

	info, ok := e.fmis.Get(cs.canonical)
	if !ok {
		return nil, fmt.Errorf("engine: no fmi record for %q", cs.canonical)
	}

	if cs.dirty {
		info.MarkNeverMemoizable("call observed a disqualifying event")
		return nil, nil
	}
	if info.Status() == fmi.StatusNeverMemoizable {
		return nil, nil
	}

	if !e.registry.IsPicklable(result) {
		info.MarkNeverMemoizable("return value is not picklable")
		return nil, nil
	}

	pickledResult, err := e.host.Pickle(result)
	if err != nil {
		info.MarkNeverMemoizable("return value failed to pickle: " + err.Error())
		return nil, nil
	}

	rec := depcheck.Record{
		OwnCode: cs.code,
		Globals: cs.globals,
		Files:   cs.files,
		Called:  cs.called,
	}
	depsBlob, err := encodeRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("engine: encode dependency record: %w", err)
	}

	entry := &diskcache.Entry{
		Result:     pickledResult,
		Stdout:     cs.stdout.Bytes(),
		Stderr:     cs.stderr.Bytes(),
		FileWrites: cs.fileWrites,
		Deps:       depsBlob,
	}
	if err := e.cache.Put(cs.funcHash, cs.argHash, entry); err != nil {
		return nil, fmt.Errorf("engine: write cache entry: %w", err)
	}
	info.MarkMemoizable()
	return entry, nil
}

func (e *Engine) currentCallState() *callState {
	if len(e.calls) == 0 {
		return nil
	}
	return e.calls[len(e.calls)-1]
}

// taintAllCalls marks every currently tracked ancestor call dirty, since
// all of them transitively depend on whatever the innermost one just did.
func (e *Engine) taintAllCalls() {
	for _, cs := range e.calls {
		if cs != nil {
			cs.dirty = true
		}
	}
}

// Stats returns per-function memoization statistics, e.g. for an
// introspection surface.
func (e *Engine) Stats() []fmi.Stats {
	return e.fmis.All()
}

// ClearCache wipes the on-disk cache and all in-memory verdicts.
func (e *Engine) ClearCache() error {
	for _, s := range e.fmis.All() {
		e.fmis.Delete(s.Canonical)
	}
	return e.cache.Clear()
}

// ClearFunction wipes the cache and in-memory verdict for one function.
func (e *Engine) ClearFunction(canonical string) error {
	funcHash := e.host.Hash([]byte(canonical))
	e.fmis.Delete(canonical)
	return e.cache.DeleteFunc(funcHash)
}
