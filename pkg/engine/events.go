package engine

import (
	"strings"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
	"github.com/pymemo-dev/pymemo/pkg/depcheck"
	"github.com/pymemo-dev/pymemo/pkg/diskcache"
	"github.com/pymemo-dev/pymemo/pkg/value"
)

func joinName(segments []string) string {
	return strings.Join(segments, ".")
}

// OnGlobalRead is called by the host adapter whenever the currently
// executing call reads a global variable. The value is hashed and
// recorded as a dependency; a global that cannot be pickled disqualifies
// the call, since there is no way to later detect that it changed.
func (e *Engine) OnGlobalRead(name []string, v value.Value) {
	cs := e.currentCallState()
	if cs == nil {
		return
	}
	key := joinName(name)
	if cs.globalSeen[key] {
		return
	}
	cs.globalSeen[key] = true

	if !e.registry.IsPicklable(v) {
		e.disqualifyCurrent("read unpicklable global: " + key)
		return
	}
	pickled, err := e.host.Pickle(v)
	if err != nil {
		e.disqualifyCurrent("global failed to pickle: " + key)
		return
	}
	dep := depcheck.GlobalDep{
		Name: append([]string(nil), name...),
		Hash: e.host.Hash(pickled),
	}
	if na, ok := v.(value.NumericArray); ok {
		dep.Floats = append([]float64(nil), na.Floats()...)
	}
	cs.globals = append(cs.globals, dep)
}

// OnGlobalBind is called whenever a value is bound to a global variable,
// whether by simple assignment or by the module initializing it. It
// seeds the reachability tracker's root set so later container accesses
// rooted at this global can be named.
func (e *Engine) OnGlobalBind(name string, v value.Value) {
	if !v.Mutable() {
		return
	}
	e.reach.NoteGlobalRoot(name, v.Identity())
}

// OnContainerAccess is called whenever a value reached by accessing an
// attribute, key, or index of parent yields child, e.g. `parent.field`
// or `parent[key]`. It extends the reachability tracker's naming of
// child if parent is already known to be reachable from a global.
func (e *Engine) OnContainerAccess(parent, child value.Value, accessor string) {
	if !child.Mutable() {
		return
	}
	e.reach.NoteContainment(parent.Identity(), child.Identity(), accessor)
}

// OnFileOpen is called when the currently executing call opens path for
// reading. Its modification time at open is recorded as a dependency.
func (e *Engine) OnFileOpen(path string) {
	cs := e.currentCallState()
	if cs == nil {
		return
	}
	if cs.fileSeen[path] {
		return
	}
	cs.fileSeen[path] = true
	mtime, ok := e.host.FileModTime(path)
	if !ok {
		e.disqualifyCurrent("opened unreadable file: " + path)
		return
	}
	cs.files = append(cs.files, depcheck.FileDep{Path: path, ModTime: mtime})
}

// OnFileWrite records that the currently executing call wrote content to
// path. The write is stored in the cache entry's FileWrites; it is not
// written back to disk on a future cache hit.
func (e *Engine) OnFileWrite(path string, content []byte) {
	cs := e.currentCallState()
	if cs == nil {
		return
	}
	cs.fileWrites = append(cs.fileWrites, diskcache.FileWrite{
		Path:    path,
		Content: append([]byte(nil), content...),
	})
}

// OnStdout/OnStderr capture console output produced by the currently
// executing call so it can be replayed verbatim on a future hit.
func (e *Engine) OnStdout(b []byte) {
	if cs := e.currentCallState(); cs != nil {
		cs.stdout.Write(b)
	}
}

func (e *Engine) OnStderr(b []byte) {
	if cs := e.currentCallState(); cs != nil {
		cs.stderr.Write(b)
	}
}

// OnMutation is called whenever a mutable value is about to be changed
// in place (table set, list append, attribute assignment). Mutating an
// object already known to be reachable from a global is a side effect
// that cannot be skipped on replay, so it disqualifies the call; other
// mutations (e.g. of a value the call itself allocated) are harmless and
// only drive the copy-on-write registry.
func (e *Engine) OnMutation(v value.Value) {
	cs := e.currentCallState()
	if cs != nil {
		cs.cow.CheckMutation(v)
	}
	if _, reachable := e.reach.NameOf(v.Identity()); reachable {
		e.disqualifyCurrent("mutated a globally reachable object")
	}
}

// OnSelfMutatingCall is called when the host dispatches a method known
// to mutate its receiver in place (e.g. a list's in-place sort). It is
// equivalent to OnMutation(receiver), applied only when methodName is in
// the engine's own self-mutating-method trie; other names are ignored.
func (e *Engine) OnSelfMutatingCall(methodName string, receiver value.Value) {
	if !e.selfMutatingMethods.Contains(methodName) {
		return
	}
	e.OnMutation(receiver)
}

// OnBuiltinCall is called whenever the currently executing call invokes
// a host builtin by name. A known-impure builtin (I/O, randomness, time,
// process control) permanently disqualifies the function, not just this
// one call, since the same call will reach the same builtin every time.
func (e *Engine) OnBuiltinCall(name string) {
	if !e.impureBuiltins.Contains(name) {
		return
	}
	cs := e.currentCallState()
	if cs == nil {
		return
	}
	if info, ok := e.fmis.Get(cs.canonical); ok {
		info.MarkNeverMemoizable("called known-impure builtin: " + name)
	}
	e.taintAllCalls()
}

// OnCall records that the currently executing call invoked another
// tracked function. The callee's code becomes part of this call's
// dependency set: if the callee's code later changes, this call's cached
// result can no longer be trusted even though none of its own globals or
// files changed.
func (e *Engine) OnCall(calleeCanonical string, calleeCode codeunit.CodeDependency) {
	cs := e.currentCallState()
	if cs == nil {
		return
	}
	if cs.calledSeen[calleeCanonical] {
		return
	}
	cs.calledSeen[calleeCanonical] = true
	cs.called = append(cs.called, depcheck.CalledCodeDep{
		Canonical: calleeCanonical,
		Code:      calleeCode,
	})
}

func (e *Engine) disqualifyCurrent(reason string) {
	cs := e.currentCallState()
	if cs == nil {
		return
	}
	if info, ok := e.fmis.Get(cs.canonical); ok {
		info.MarkNeverMemoizable(reason)
	}
	e.taintAllCalls()
}
