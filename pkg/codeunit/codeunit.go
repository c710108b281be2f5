// Package codeunit models a compiled function/method in the host and its
// serializable fingerprint, CodeDependency.
package codeunit

import (
	"bytes"

	"github.com/pymemo-dev/pymemo/pkg/naming"
)

// CodeUnit is a compiled function/method as the host reports it. It is
// created once when the host compiles the code and is pinned for the
// process lifetime.
type CodeUnit struct {
	Canonical string // canonical name, see pkg/naming
	Ignore    bool
	Dep       CodeDependency
}

// CodeDependency is a serializable, comparable snapshot of a CodeUnit's
// body: bytecode bytes, constants, and argument count. Two CodeDependency
// values compare equal iff the underlying code is bytewise and
// constant-wise identical.
type CodeDependency struct {
	Bytecode []byte
	Consts   []string // constants rendered to a stable string form
	ArgCount int
}

// Equal reports whether d and other describe identical code.
func (d CodeDependency) Equal(other CodeDependency) bool {
	if d.ArgCount != other.ArgCount {
		return false
	}
	if !bytes.Equal(d.Bytecode, other.Bytecode) {
		return false
	}
	if len(d.Consts) != len(other.Consts) {
		return false
	}
	for i := range d.Consts {
		if d.Consts[i] != other.Consts[i] {
			return false
		}
	}
	return true
}

// New builds a CodeUnit from a naming.Descriptor, a code fingerprint, and
// a prefix checker used to decide the ignore flag.
func New(d naming.Descriptor, dep CodeDependency, prefixes naming.PrefixChecker) CodeUnit {
	canon, ignored := naming.Classify(d, prefixes)
	return CodeUnit{Canonical: canon, Ignore: ignored, Dep: dep}
}
