// Package reach tracks, for every mutable object the engine has ever
// seen reachable from a global variable, the canonical compound name of
// the path that first reached it: "cache", "cache.entries", a string key
// or integer index segment, and so on. The engine consults these names
// only in OnMutation, through NameOf, to decide whether a mutated object
// is reachable from a global.
//
// Propagation is first-reached-wins and is never revised: once an object
// acquires a container name, later aliasing or reassignment does not
// change it. A name left stale by address reuse is still reported by
// NameOf; nothing re-validates it.
package reach

import (
	"strings"

	"github.com/pymemo-dev/pymemo/pkg/shadow"
)

// Name is an interned compound name: a root global variable name
// followed by zero or more attribute/key/index accessor segments.
type Name struct {
	segments []string
}

// Segments returns the path segments making up the name.
func (n *Name) Segments() []string {
	return append([]string(nil), n.segments...)
}

// String renders the name as a dotted path, e.g. "cache.entries".
func (n *Name) String() string {
	return strings.Join(n.segments, ".")
}

// Tracker interns compound names and drives a shadow.Map's container
// field as the engine discovers new containment edges.
type Tracker struct {
	shadow   *shadow.Map
	interned map[string]*Name
	roots    map[string]uintptr
}

// New returns a Tracker layered over an existing shadow metadata map.
func New(s *shadow.Map) *Tracker {
	return &Tracker{
		shadow:   s,
		interned: make(map[string]*Name),
		roots:    make(map[string]uintptr),
	}
}

// Intern returns the shared Name for the given path segments, creating
// it on first use.
func (t *Tracker) Intern(segments []string) *Name {
	key := strings.Join(segments, "\x00")
	if n, ok := t.interned[key]; ok {
		return n
	}
	n := &Name{segments: append([]string(nil), segments...)}
	t.interned[key] = n
	return n
}

// NoteGlobalRoot records that the mutable object at addr is currently
// bound to the global variable globalName. If addr has no container name
// yet, globalName becomes its root name.
func (t *Tracker) NoteGlobalRoot(globalName string, addr uintptr) {
	t.roots[globalName] = addr
	if _, ok := t.shadow.Container(addr); !ok {
		t.shadow.SetContainer(addr, []string{globalName})
	}
}

// ForgetRoot removes globalName from the root set, e.g. when the host
// rebinds or deletes the global. Objects already given a container name
// derived from globalName keep that name; it is a hint, not a live
// reachability proof.
func (t *Tracker) ForgetRoot(globalName string) {
	delete(t.roots, globalName)
}

// NoteContainment records that childAddr was reached by applying
// accessor (an attribute name, string key, or stringified index) to
// parentAddr. If parentAddr has no known container name, nothing is
// recorded: the edge is not (yet) known to be reachable from a global.
// If childAddr already has a name, the existing name wins.
func (t *Tracker) NoteContainment(parentAddr, childAddr uintptr, accessor string) {
	parentName, ok := t.shadow.Container(parentAddr)
	if !ok {
		return
	}
	if _, already := t.shadow.Container(childAddr); already {
		return
	}
	childName := append(append([]string(nil), parentName...), accessor)
	t.shadow.SetContainer(childAddr, childName)
}

// NameOf returns the compound name previously recorded for addr.
func (t *Tracker) NameOf(addr uintptr) (segments []string, ok bool) {
	return t.shadow.Container(addr)
}

// Root reports the object currently bound to globalName, if tracked.
func (t *Tracker) Root(globalName string) (addr uintptr, ok bool) {
	addr, ok = t.roots[globalName]
	return addr, ok
}
