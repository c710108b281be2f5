// Package fmi implements the per-function memoization record (a
// "FunctionMemoInfo"): the single piece of state the engine consults on
// every call to decide, before doing any real work, whether the function
// is even a candidate for memoization.
package fmi

import (
	"sync"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
)

// Status is the coarse-grained memoizability verdict for a function.
type Status int

const (
	// StatusUnknown means no call has completed yet; the function must
	// be run and its dependencies observed before a verdict is reached.
	StatusUnknown Status = iota
	// StatusMemoizable means at least one call has completed with a
	// tracked dependency set and no disqualifying event was observed.
	StatusMemoizable
	// StatusNeverMemoizable means the function is permanently excluded:
	// it called a known-impure builtin, mutated a globally reachable
	// object (directly or through a self-mutating method), or otherwise
	// did something the engine
	// cannot safely record a dependency set for. This verdict never
	// reverts for the life of the process.
	StatusNeverMemoizable
)

// String renders a Status for display surfaces.
func (s Status) String() string {
	switch s {
	case StatusMemoizable:
		return "memoizable"
	case StatusNeverMemoizable:
		return "never-memoizable"
	default:
		return "unknown"
	}
}

// Info is the mutable per-function record. It is safe for concurrent use
// even though the engine itself runs calls one at a time, because cache
// statistics may be read by an introspection surface concurrently.
type Info struct {
	mu sync.Mutex

	Canonical string
	code      codeunit.CodeDependency

	status Status
	reason string

	calls   uint64
	hits    uint64
	misses  uint64
}

// NewInfo returns a fresh record for canonical, starting at StatusUnknown.
func NewInfo(canonical string, code codeunit.CodeDependency) *Info {
	return &Info{Canonical: canonical, code: code}
}

// Code returns the currently tracked code fingerprint.
func (i *Info) Code() codeunit.CodeDependency {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.code
}

// Status returns the current verdict.
func (i *Info) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Reason returns the human-readable reason recorded alongside
// StatusNeverMemoizable, if any.
func (i *Info) Reason() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reason
}

// MarkNeverMemoizable permanently disqualifies the function. Once set,
// further calls to MarkNeverMemoizable or MarkMemoizable are no-ops: the
// verdict never reverts.
func (i *Info) MarkNeverMemoizable(reason string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status == StatusNeverMemoizable {
		return
	}
	i.status = StatusNeverMemoizable
	i.reason = reason
}

// MarkMemoizable records that a call completed cleanly with a usable
// dependency set. It has no effect if the function was already
// disqualified.
func (i *Info) MarkMemoizable() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status == StatusNeverMemoizable {
		return
	}
	i.status = StatusMemoizable
}

// RefreshCode updates the tracked code fingerprint. If it differs from
// what was previously recorded, any StatusMemoizable verdict reverts to
// StatusUnknown, since cached entries keyed to the old code body can no
// longer be trusted to answer for the new one. A StatusNeverMemoizable
// verdict is unaffected: code that is known to misbehave stays excluded
// regardless of further edits.
func (i *Info) RefreshCode(code codeunit.CodeDependency) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.code.Equal(code) {
		return
	}
	i.code = code
	if i.status == StatusMemoizable {
		i.status = StatusUnknown
	}
}

// RecordHit/RecordMiss update call statistics; they do not affect Status.
func (i *Info) RecordHit() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	i.hits++
}

func (i *Info) RecordMiss() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	i.misses++
}

// Stats is a point-in-time, read-only snapshot suitable for an
// introspection surface.
type Stats struct {
	Canonical string
	Status    Status
	Reason    string
	Calls     uint64
	Hits      uint64
	Misses    uint64
}

// Snapshot returns the current statistics.
func (i *Info) Snapshot() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Stats{
		Canonical: i.Canonical,
		Status:    i.status,
		Reason:    i.reason,
		Calls:     i.calls,
		Hits:      i.hits,
		Misses:    i.misses,
	}
}

// Table indexes Info records by canonical function name.
type Table struct {
	mu     sync.Mutex
	byName map[string]*Info
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Info)}
}

// GetOrCreate returns the existing record for canonical, or creates one
// seeded with code if none exists yet.
func (t *Table) GetOrCreate(canonical string, code codeunit.CodeDependency) *Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	if info, ok := t.byName[canonical]; ok {
		return info
	}
	info := NewInfo(canonical, code)
	t.byName[canonical] = info
	return info
}

// Get returns the record for canonical, if one has been created.
func (t *Table) Get(canonical string) (*Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.byName[canonical]
	return info, ok
}

// All returns a stable snapshot of every tracked function's statistics.
func (t *Table) All() []Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Stats, 0, len(t.byName))
	for _, info := range t.byName {
		out = append(out, info.Snapshot())
	}
	return out
}

// Delete removes canonical from the table entirely, e.g. when its cache
// is cleared and its in-memory verdict should no longer be trusted.
func (t *Table) Delete(canonical string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byName, canonical)
}
