// Package depcheck validates a memoized call's recorded dependency set
// against the interpreter's current state: has the function's own code
// changed, has any global value it read changed, has any file it opened
// been touched since, and has the code of any function it called
// changed. Any "no" turns an otherwise-matching cache entry into a miss.
package depcheck

import (
	"time"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
	"github.com/pymemo-dev/pymemo/pkg/value"
)

// GlobalDep is one global variable read during a memoized call, recorded
// as a hash of its pickled value rather than the value itself so the
// dependency record stays small and comparable without a full
// deserialize.
type GlobalDep struct {
	Name []string
	Hash string
	// Floats holds the global's flat numeric contents when it was a pure
	// number array at record time, so a later exact-hash mismatch can
	// still be accepted via the registered AllClose comparator. Nil for
	// any other kind of value.
	Floats []float64
}

// FileDep is one file opened (for reading) during a memoized call.
type FileDep struct {
	Path    string
	ModTime time.Time
}

// CalledCodeDep is the code fingerprint of another tracked function this
// call invoked. A change to a callee's code can change this call's
// result even though none of its own globals or files changed.
type CalledCodeDep struct {
	Canonical string
	Code      codeunit.CodeDependency
}

// Record is the full dependency set for one memoized call.
type Record struct {
	OwnCode codeunit.CodeDependency
	Globals []GlobalDep
	Files   []FileDep
	Called  []CalledCodeDep
}

// Resolver supplies the interpreter's current state. depcheck never
// touches the host directly; it only asks Resolver for live values and
// compares them against what Record recorded.
type Resolver interface {
	GlobalValue(name []string) (value.Value, bool)
	FileModTime(path string) (time.Time, bool)
	CodeOf(canonical string) (codeunit.CodeDependency, bool)
}

// Checker validates Records against a Resolver, using host to hash live
// global values for comparison against the recorded hashes.
type Checker struct {
	host       value.HostServices
	registry   *value.Registry
	inProgress map[string]bool
}

// NewChecker returns a Checker backed by host. registry's comparators
// (e.g. an "all close" numeric tolerance) are consulted as a fallback
// when a global dependency's exact hash no longer matches; it may be nil,
// in which case every global comparison falls back to exact hashing only.
func NewChecker(host value.HostServices, registry *value.Registry) *Checker {
	return &Checker{host: host, registry: registry, inProgress: make(map[string]bool)}
}

// Valid reports whether rec's dependency set still holds for canonical
// against res's current state. If invalid, reason names which
// dependency broke.
//
// For each called function, Valid compares only the callee's current code
// fingerprint with the recorded one; it does not load or check the
// callee's own recorded globals, files or callees. A re-entrant Valid
// call for a canonical name already being checked returns true at once.
func (c *Checker) Valid(canonical string, rec Record, res Resolver) (ok bool, reason string) {
	if c.inProgress[canonical] {
		return true, ""
	}
	c.inProgress[canonical] = true
	defer delete(c.inProgress, canonical)

	if cur, found := res.CodeOf(canonical); !found || !cur.Equal(rec.OwnCode) {
		return false, "own code changed"
	}

	for _, g := range rec.Globals {
		live, found := res.GlobalValue(g.Name)
		if !found {
			return false, "global no longer bound: " + joinName(g.Name)
		}
		pickled, err := c.host.Pickle(live)
		if err != nil {
			return false, "global no longer picklable: " + joinName(g.Name)
		}
		if c.host.Hash(pickled) == g.Hash {
			continue
		}
		if g.Floats != nil && c.registry != nil && c.registry.Equal(floatArray{g.Floats}, live, c.host) {
			continue
		}
		return false, "global value changed: " + joinName(g.Name)
	}

	for _, f := range rec.Files {
		mt, found := res.FileModTime(f.Path)
		if !found || !mt.Equal(f.ModTime) {
			return false, "file changed: " + f.Path
		}
	}

	for _, called := range rec.Called {
		cur, found := res.CodeOf(called.Canonical)
		if !found || !cur.Equal(called.Code) {
			return false, "called function's code changed: " + called.Canonical
		}
	}

	return true, ""
}

// floatArray is a minimal value.Value implementing value.NumericArray over
// a GlobalDep's persisted float snapshot, used only to re-run the
// registered AllClose comparator when a global's exact hash no longer
// matches. It is never compared structurally: host.StructuralEqual
// returns false for any value it doesn't recognize, so only a comparator
// that works purely off NumericArray (like AllClose) can ever accept it.
type floatArray struct{ floats []float64 }

func (f floatArray) Identity() uintptr  { return 0 }
func (f floatArray) Mutable() bool      { return false }
func (f floatArray) Kind() string       { return "numeric-array-snapshot" }
func (f floatArray) Floats() []float64  { return f.floats }

func joinName(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
