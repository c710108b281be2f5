// Package naming computes the canonical textual identity of a code unit
// and combines it with path-prefix ignore rules.
package naming

import "fmt"

// AnonymousLambda is the display-name sentinel for an anonymous function
// literal; a code unit with this name is always treated as ignored.
const AnonymousLambda = "<lambda>"

// sentinelFilenames are synthetic source filenames that never denote a
// real, trackable file on disk.
var sentinelFilenames = map[string]struct{}{
	"<string>": {},
	"<stdin>":  {},
	"<???>":    {},
}

// Descriptor carries the facts about a code unit needed to name it and
// decide whether it is ignored. It is supplied by the host adapter as
// soon as the host compiles the function or method.
type Descriptor struct {
	ClassName   string // empty for a plain function
	FuncName    string
	AbsPath     string // absolute path of the source file
	SourceFile  string // filename as reported by the host compiler
	IsGenerator bool
}

// PrefixChecker reports whether an absolute path falls under an ignored
// prefix. pkg/ignore.Filter satisfies this.
type PrefixChecker interface {
	Ignored(absPath string) bool
}

// Canonical builds the canonical name "[class::]name [abs-path]". It
// returns an error when a name cannot be constructed; callers treat that
// as itself a reason to mark the code unit ignored.
func Canonical(d Descriptor) (string, error) {
	if d.FuncName == "" {
		return "", fmt.Errorf("naming: empty function name for %q", d.AbsPath)
	}
	if d.AbsPath == "" {
		return "", fmt.Errorf("naming: empty absolute path for %q", d.FuncName)
	}
	name := d.FuncName
	if d.ClassName != "" {
		name = d.ClassName + "::" + d.FuncName
	}
	return fmt.Sprintf("%s [%s]", name, d.AbsPath), nil
}

// Classify computes the canonical name for d and whether it should be
// ignored. prefixes may be nil, in which case the prefix-filter
// condition is skipped (useful in tests).
func Classify(d Descriptor, prefixes PrefixChecker) (canonicalName string, ignored bool) {
	name, err := Canonical(d)
	if err != nil {
		return "", true
	}
	if d.IsGenerator {
		return name, true
	}
	if d.FuncName == AnonymousLambda {
		return name, true
	}
	if _, sentinel := sentinelFilenames[d.SourceFile]; sentinel {
		return name, true
	}
	if prefixes != nil && prefixes.Ignored(d.AbsPath) {
		return name, true
	}
	return name, false
}
