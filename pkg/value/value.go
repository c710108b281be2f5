// Package value abstracts over the dynamic-language values that flow
// through the memoization engine: function arguments, return values, and
// the values bound to globals. It defines the boundary interfaces the
// core consumes from the host interpreter, and the duck-typed
// picklability/equality predicates used instead of reflecting on host
// methods.
package value

import "time"

// Value is an arbitrary value as seen by the engine. Concrete
// implementations wrap whatever the host's runtime uses internally (see
// internal/luahost for a gopher-lua-backed implementation).
type Value interface {
	// Identity is an address-equivalent identifier used to key the
	// shadow metadata map and detect aliasing. Immutable values may all
	// report the zero identity; see Mutable.
	Identity() uintptr
	// Mutable reports whether this is a compound/mutable object (table,
	// list, custom object) as opposed to an interned immutable (number,
	// string, bool, nil). Only mutable values acquire shadow metadata.
	Mutable() bool
	// Kind names the dynamic type, used as the key into a Registry's
	// type-dispatch table.
	Kind() string
}

// HostServices are the facilities the host interpreter must provide for
// the engine to operate. The engine never touches a concrete dynamic
// runtime directly — every package in this module is written against
// this interface.
type HostServices interface {
	// DeepCopy returns a fully independent copy of v, recursing into any
	// compound sub-structure.
	DeepCopy(v Value) Value
	// StructuralEqual performs host-level deep equality between a and b,
	// used for dependency comparisons and as a fallback when no
	// registered comparator applies.
	StructuralEqual(a, b Value) bool
	// Pickle serializes v, returning an error if v (or something it
	// contains) cannot be serialized.
	Pickle(v Value) ([]byte, error)
	// Hash returns a strong hash over b, used to build cache paths of the
	// form <root>/<hash(func-name)>.cache/<hash(pickle(arg_list))>.entry.
	Hash(b []byte) string
	// FileModTime returns the modification time of path. ok is false if
	// the file does not exist or cannot be stat'd.
	FileModTime(path string) (mtime time.Time, ok bool)
	// InstructionCounter returns the host's monotonically increasing
	// executed-instruction counter (the "logical time" of the glossary).
	InstructionCounter() uint64
}

// NumericArray is implemented by Value kinds that expose a flat slice of
// float64 elements, enabling a pluggable all-close comparator so the
// engine is not tied to any one numeric library.
type NumericArray interface {
	Floats() []float64
}
