package luahost

import (
	lua "github.com/yuin/gopher-lua"
)

// wireBuiltins replaces a handful of standard library entries with
// wrappers that report their calls to the engine: time/randomness
// builtins as permanently disqualifying, table mutators as self-mutating
// calls against their receiver, and io.open as a file-open dependency.
func (r *Runtime) wireBuiltins() {
	r.wrapLibFunc("os", "time")
	r.wrapLibFunc("os", "clock")
	r.wrapLibFunc("os", "date")
	r.wrapLibFunc("math", "random")

	r.wrapMutatingFunc("table", "insert")
	r.wrapMutatingFunc("table", "remove")
	r.wrapMutatingFunc("table", "sort")

	r.wrapFileOpen()
}

func (r *Runtime) libTable(lib string) *lua.LTable {
	tbl, ok := r.L.GetGlobal(lib).(*lua.LTable)
	if !ok {
		return nil
	}
	return tbl
}

// wrapLibFunc reports lib.name to OnBuiltinCall on every call, then runs
// the original.
func (r *Runtime) wrapLibFunc(lib, name string) {
	tbl := r.libTable(lib)
	if tbl == nil {
		return
	}
	original, ok := tbl.RawGetString(name).(*lua.LFunction)
	if !ok {
		return
	}
	qualified := lib + "." + name
	r.L.SetField(tbl, name, r.L.NewFunction(func(L *lua.LState) int {
		r.eng.OnBuiltinCall(qualified)
		return callThrough(L, original)
	}))
}

// wrapMutatingFunc reports a mutation against the function's first
// argument (its receiver, by Lua library convention) before running the
// original.
func (r *Runtime) wrapMutatingFunc(lib, name string) {
	tbl := r.libTable(lib)
	if tbl == nil {
		return
	}
	original, ok := tbl.RawGetString(name).(*lua.LFunction)
	if !ok {
		return
	}
	qualified := lib + "." + name
	r.L.SetField(tbl, name, r.L.NewFunction(func(L *lua.LState) int {
		if L.GetTop() >= 1 {
			r.eng.OnSelfMutatingCall(qualified, wrapValue(L.Get(1)))
		}
		return callThrough(L, original)
	}))
}

// wrapFileOpen reports the path argument of io.open to OnFileOpen. It
// does not wrap file writes: OnFileWrite exists on the engine but this
// adapter never calls it, since capturing exactly what bytes a file
// handle's :write calls produced would mean wrapping every handle
// userdata gopher-lua hands back from io.open, not just the open call
// itself.
func (r *Runtime) wrapFileOpen() {
	tbl := r.libTable("io")
	if tbl == nil {
		return
	}
	original, ok := tbl.RawGetString("open").(*lua.LFunction)
	if !ok {
		return
	}
	r.L.SetField(tbl, "open", r.L.NewFunction(func(L *lua.LState) int {
		if L.GetTop() >= 1 {
			if path, ok := L.Get(1).(lua.LString); ok {
				r.eng.OnFileOpen(string(path))
			}
		}
		return callThrough(L, original)
	}))
}
