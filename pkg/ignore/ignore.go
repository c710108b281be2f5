// Package ignore implements the path-prefix filter that decides whether a
// source file belongs to "ignored" code: the standard library, or a
// user-configured prefix.
package ignore

import (
	"strings"
)

// Filter holds the set of absolute-path prefixes under which CodeUnits are
// considered ignored (standard library paths, user-configured prefixes).
type Filter struct {
	prefixes []string
	// cache is a fast-rejection membership cache: once a full path has been
	// classified, remember the verdict so repeated lookups for the same
	// code unit (every call) don't re-walk the prefix list.
	cache map[string]bool
}

// New returns a Filter with no configured prefixes.
func New() *Filter {
	return &Filter{cache: make(map[string]bool)}
}

// NewFromPrefixes builds a Filter from a list of directory prefixes. Each
// prefix is normalized to end in "/" so matching never crosses a directory
// boundary (e.g. "/usr/lib2" must not match prefix "/usr/lib").
func NewFromPrefixes(prefixes []string) *Filter {
	f := New()
	for _, p := range prefixes {
		f.AddPrefix(p)
	}
	return f
}

// AddPrefix registers an additional ignore-prefix. A trailing "/" is
// appended if not already present.
func (f *Filter) AddPrefix(p string) {
	if p == "" {
		return
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	f.prefixes = append(f.prefixes, p)
	f.cache = make(map[string]bool) // prefixes changed, invalidate cache
}

// Prefixes returns the configured prefixes, each already trailing-slashed.
func (f *Filter) Prefixes() []string {
	out := make([]string, len(f.prefixes))
	copy(out, f.prefixes)
	return out
}

// Ignored reports whether absPath falls under any configured prefix.
func (f *Filter) Ignored(absPath string) bool {
	if v, ok := f.cache[absPath]; ok {
		return v
	}
	v := f.matches(absPath)
	f.cache[absPath] = v
	return v
}

func (f *Filter) matches(absPath string) bool {
	for _, p := range f.prefixes {
		if strings.HasPrefix(absPath, p) {
			return true
		}
	}
	return false
}
