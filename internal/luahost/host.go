package luahost

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/pymemo-dev/pymemo/pkg/value"
)

func init() {
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

// Host implements value.HostServices against a gopher-lua interpreter.
// It has no notion of Lua bytecode or global-table hooks; everything it
// does works by converting Lua values to and from a plain Go tree
// (nil, bool, float64, string, []interface{}, map[string]interface{})
// and encoding that tree with gob.
type Host struct {
	L       *lua.LState
	counter uint64
}

// NewHost returns a Host bound to L.
func NewHost(L *lua.LState) *Host {
	return &Host{L: L}
}

// DeepCopy returns a value with its own table identity, so a callee that
// mutates its argument cannot affect the caller's copy.
func (h *Host) DeepCopy(v value.Value) value.Value {
	lb, ok := v.(luaBacked)
	if !ok {
		return v
	}
	return luaValue{lv: deepCopyLua(h.L, lb.lValue(), make(map[*lua.LTable]*lua.LTable))}
}

func deepCopyLua(L *lua.LState, v lua.LValue, seen map[*lua.LTable]*lua.LTable) lua.LValue {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return v
	}
	if copied, ok := seen[tbl]; ok {
		return copied
	}
	out := L.NewTable()
	seen[tbl] = out
	tbl.ForEach(func(k, val lua.LValue) {
		out.RawSet(k, deepCopyLua(L, val, seen))
	})
	return out
}

// StructuralEqual compares two values by their converted Go shape, not by
// table identity.
func (h *Host) StructuralEqual(a, b value.Value) bool {
	ab, aok := a.(luaBacked)
	bb, bok := b.(luaBacked)
	if !aok || !bok {
		return false
	}
	ga, errA := luaToGo(ab.lValue())
	gb, errB := luaToGo(bb.lValue())
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(ga, gb)
}

// Pickle encodes a value (or a tuple of return values, via multiValue)
// into a gob stream over its plain Go shape.
func (h *Host) Pickle(v value.Value) ([]byte, error) {
	var goVal interface{}
	switch vv := v.(type) {
	case luaBacked:
		gv, err := luaToGo(vv.lValue())
		if err != nil {
			return nil, err
		}
		goVal = gv
	case multiValue:
		arr := make([]interface{}, len(vv.values))
		for i, lv := range vv.values {
			gv, err := luaToGo(lv)
			if err != nil {
				return nil, err
			}
			arr[i] = gv
		}
		goVal = arr
	default:
		return nil, fmt.Errorf("luahost: cannot pickle %T", v)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&goVal); err != nil {
		return nil, fmt.Errorf("luahost: encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// Hash returns the hex-encoded sha256 digest of b.
func (h *Host) Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FileModTime stats path directly; Lua scripts have no virtual filesystem
// layered over the host's.
func (h *Host) FileModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// InstructionCounter has no real per-instruction hook in this adapter; it
// is a monotonic call-sequence counter good enough for ordering decisions
// in history and logs.
func (h *Host) InstructionCounter() uint64 {
	return atomic.AddUint64(&h.counter, 1)
}

// decodeResults reverses Pickle for a multiValue-shaped tuple, rebuilding
// live Lua values bound to L.
func decodeResults(L *lua.LState, b []byte) ([]lua.LValue, error) {
	var goVal interface{}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&goVal); err != nil {
		return nil, fmt.Errorf("luahost: decode result: %w", err)
	}
	arr, ok := goVal.([]interface{})
	if !ok {
		return nil, fmt.Errorf("luahost: cached result is not a tuple")
	}
	out := make([]lua.LValue, len(arr))
	for i, elem := range arr {
		out[i] = goToLua(L, elem)
	}
	return out, nil
}

// luaToGo converts a Lua value into a plain Go tree. Functions, userdata,
// and threads are not representable and make the whole value unpicklable.
func luaToGo(lv lua.LValue) (interface{}, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		return float64(v), nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		return luaTableToGo(v)
	default:
		return nil, fmt.Errorf("luahost: value of type %s is not picklable", lv.Type().String())
	}
}

func luaTableToGo(t *lua.LTable) (interface{}, error) {
	arr := []interface{}{}
	obj := map[string]interface{}{}
	isArray := true
	var convErr error

	t.ForEach(func(k, val lua.LValue) {
		if convErr != nil {
			return
		}
		goVal, err := luaToGo(val)
		if err != nil {
			convErr = err
			return
		}
		if n, ok := k.(lua.LNumber); ok && int(n) == len(arr)+1 && float64(int(n)) == float64(n) {
			arr = append(arr, goVal)
			return
		}
		isArray = false
		obj[k.String()] = goVal
	})
	if convErr != nil {
		return nil, convErr
	}
	if isArray {
		return arr, nil
	}
	for i, goVal := range arr {
		obj[fmt.Sprintf("%d", i+1)] = goVal
	}
	return obj, nil
}

// goToLua reverses luaToGo, materializing fresh tables bound to L.
func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch vv := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(vv)
	case float64:
		return lua.LNumber(vv)
	case string:
		return lua.LString(vv)
	case []interface{}:
		tbl := L.NewTable()
		for i, elem := range vv {
			tbl.RawSetInt(i+1, goToLua(L, elem))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, elem := range vv {
			tbl.RawSetString(k, goToLua(L, elem))
		}
		return tbl
	default:
		return lua.LNil
	}
}
