// Package luahost embeds the memoization engine into a gopher-lua
// interpreter: after a script loads, every top-level function it defines
// (beyond what the standard library and this package's own builtin
// wrappers already provide) is replaced with a wrapper that consults the
// engine before running the original body.
//
// gopher-lua's public API has no instruction-level trap on global-table
// or upvalue access comparable to a bytecode tracer, so this adapter
// cannot intercept every global read or bind as it happens. Instead it
// statically scans each loaded script's source once (freevars.go) for
// candidate free-variable identifiers, then reports whichever of those
// are actually bound at each call boundary to engine.OnGlobalRead and,
// for table-valued globals, engine.OnGlobalBind (see
// Runtime.reportGlobalReads). engine.OnContainerAccess is not wired:
// naming an object reached through an arbitrary field/index chain off a
// known root has no equivalent source-level approximation the way a
// bare identifier read or a top-level assignment does.
package luahost

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/pymemo-dev/pymemo/pkg/value"
)

// luaValue wraps a single Lua value as a value.Value.
type luaValue struct {
	lv lua.LValue
}

func wrapValue(lv lua.LValue) luaValue { return luaValue{lv: lv} }

func (v luaValue) Identity() uintptr {
	if t, ok := v.lv.(*lua.LTable); ok {
		return reflect.ValueOf(t).Pointer()
	}
	return 0
}

func (v luaValue) Mutable() bool {
	_, ok := v.lv.(*lua.LTable)
	return ok
}

func (v luaValue) Kind() string {
	return v.lv.Type().String()
}

// lValue returns the wrapped Lua value. luaNumericArray promotes this
// method through its embedded luaValue, so host.go can recover the
// underlying lua.LValue from either wrapper via the luaBacked interface
// without caring which concrete type it was handed.
func (v luaValue) lValue() lua.LValue { return v.lv }

// luaBacked is implemented by every value.Value this package hands to a
// Host: asserting against this interface instead of the concrete
// luaValue type means a wrapper that embeds luaValue for extra
// capabilities (luaNumericArray) is still recognized, since Go's type
// assertions check the concrete type exactly and do not see through
// embedding on their own.
type luaBacked interface {
	lValue() lua.LValue
}

// multiValue wraps the tuple of values a Lua call returned, since Lua
// functions may return zero or more values but the engine caches one
// result per call.
type multiValue struct {
	values []lua.LValue
}

func wrapResults(values []lua.LValue) multiValue { return multiValue{values: values} }

func (v multiValue) Identity() uintptr { return 0 }
func (v multiValue) Mutable() bool     { return false }
func (v multiValue) Kind() string      { return "multi" }

// luaNumericArray is a luaValue that additionally satisfies
// value.NumericArray, letting the registered AllClose comparator apply
// when an exact hash comparison on a global dependency fails.
type luaNumericArray struct {
	luaValue
	floats []float64
}

func (v luaNumericArray) Floats() []float64 { return v.floats }

// wrapGlobalValue wraps lv the same way wrapValue does, except a table
// that is a pure flat sequence of numbers (no holes, no non-integer
// keys) is additionally wrapped as a luaNumericArray. Only values
// reached through this path (global reads, for the depcheck "all close"
// fallback) get that extra capability; ordinary table values elsewhere
// in the engine are never mistaken for a numeric array.
func wrapGlobalValue(lv lua.LValue) value.Value {
	if t, ok := lv.(*lua.LTable); ok {
		if floats, ok := luaTableFloats(t); ok {
			return luaNumericArray{luaValue: wrapValue(lv), floats: floats}
		}
	}
	return wrapValue(lv)
}

// luaTableFloats reports the flat []float64 contents of t, and whether t
// is in fact a pure array of numbers: every key from 1 to t.Len() present
// and numeric, with no other keys.
func luaTableFloats(t *lua.LTable) ([]float64, bool) {
	n := t.Len()
	if n == 0 {
		return nil, false
	}
	floats := make([]float64, n)
	for i := 1; i <= n; i++ {
		num, ok := t.RawGetInt(i).(lua.LNumber)
		if !ok {
			return nil, false
		}
		floats[i-1] = float64(num)
	}
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })
	if count != n {
		return nil, false
	}
	return floats, true
}
