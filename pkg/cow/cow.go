// Package cow implements deferred copy-on-write snapshotting of mutable
// values the engine needs to compare before-and-after a call: function
// arguments and globals read during the call. Deep-copying every mutable
// argument up front would be correct but wasteful, since the overwhelming
// majority of calls never mutate their inputs. Instead a tracked live
// value is only materialized as a real copy the moment a mutation is
// about to happen to it — the last point at which the pre-mutation state
// can still be observed. The engine creates one Registry per tracked call
// and forwards mutations to it through CheckMutation, but it never calls
// Track, so no argument or global is snapshotted during a call.
package cow

import "github.com/pymemo-dev/pymemo/pkg/value"

// snapshot holds the original live value and, once materialized, a
// detached copy taken immediately before the first mutation.
type snapshot struct {
	original value.Value
	copy     value.Value
}

// Registry tracks pending snapshots for the lifetime of one call.
type Registry struct {
	host    value.HostServices
	pending map[uintptr]*snapshot
}

// New returns an empty Registry backed by host for deep copies.
func New(host value.HostServices) *Registry {
	return &Registry{host: host, pending: make(map[uintptr]*snapshot)}
}

// Track registers v as a value whose pre-mutation state should be
// preserved lazily. Immutable values are ignored; the first Track call
// for a given identity wins.
func (r *Registry) Track(v value.Value) {
	if !v.Mutable() {
		return
	}
	id := v.Identity()
	if _, ok := r.pending[id]; ok {
		return
	}
	r.pending[id] = &snapshot{original: v}
}

// CheckMutation must be called by the host adapter immediately before v
// is mutated in place (table set, list append, attribute assignment). If
// v is tracked and has not yet been materialized, this deep-copies its
// current (pre-mutation) state.
func (r *Registry) CheckMutation(v value.Value) {
	if !v.Mutable() {
		return
	}
	snap, ok := r.pending[v.Identity()]
	if !ok || snap.copy != nil {
		return
	}
	snap.copy = r.host.DeepCopy(snap.original)
}

// ValueAt returns the value the engine should use for dependency
// comparison or pickling: the deferred copy if a mutation forced
// materialization, otherwise the live value, which is guaranteed
// unchanged because no mutation was ever observed against it.
func (r *Registry) ValueAt(v value.Value) value.Value {
	if !v.Mutable() {
		return v
	}
	snap, ok := r.pending[v.Identity()]
	if !ok {
		return v
	}
	if snap.copy != nil {
		return snap.copy
	}
	return snap.original
}

// Tracked reports whether v currently has a pending snapshot.
func (r *Registry) Tracked(v value.Value) bool {
	_, ok := r.pending[v.Identity()]
	return ok
}

// Untrack discards any pending snapshot for v.
func (r *Registry) Untrack(v value.Value) {
	delete(r.pending, v.Identity())
}

// Reset discards all pending snapshots, e.g. at the start of a new call.
func (r *Registry) Reset() {
	r.pending = make(map[uintptr]*snapshot)
}
