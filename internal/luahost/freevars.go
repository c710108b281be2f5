package luahost

import "regexp"

var (
	luaStringLiteral = regexp.MustCompile(`"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`)
	luaLineComment   = regexp.MustCompile(`--[^\n]*`)
	luaIdentifier    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "if": true,
	"in": true, "local": true, "nil": true, "not": true, "or": true,
	"repeat": true, "return": true, "then": true, "true": true, "until": true,
	"while": true,
}

// stdlibTableRoots are global tables this adapter deliberately never
// reports as a free-variable dependency: they hold library functions,
// which fail to pickle and would permanently disqualify any function
// that so much as mentions math.* or os.*. The specific library calls
// that matter (os.time, table.insert, io.open, ...) are already
// intercepted more precisely by wireBuiltins.
var stdlibTableRoots = map[string]bool{
	"_G": true, "arg": true,
	"os": true, "math": true, "table": true, "string": true, "io": true,
	"coroutine": true, "debug": true, "utf8": true, "bit32": true,
}

// scanFreeGlobals returns every identifier appearing in src that is a
// candidate free-variable global read: not a Lua keyword, and not a
// field or method name (immediately preceded by '.' or ':'). String and
// comment contents are stripped first so literal text never contributes
// a false candidate.
//
// The scan runs over the whole script, not a single function's body:
// gopher-lua's public API exposes no per-function source range (the same
// constraint fingerprintFunction documents), so this adapter cannot
// isolate one function's text without parsing Lua itself. Treating the
// whole script as the candidate set for every wrapped function is
// coarser than a true per-function free-variable analysis, but it is
// conservative rather than unsound: a name that is not actually read by
// a given function just becomes a harmless extra dependency that can
// only force an unnecessary cache invalidation, never mask a real one.
//
// Whether a candidate actually names a live global, and whether that
// global's current value is one this adapter tracks at all, is decided
// later at call time by Runtime.reportGlobalReads.
func scanFreeGlobals(src string) []string {
	src = luaStringLiteral.ReplaceAllString(src, "")
	src = luaLineComment.ReplaceAllString(src, "")

	seen := make(map[string]bool)
	var names []string
	for _, loc := range luaIdentifier.FindAllStringIndex(src, -1) {
		start, end := loc[0], loc[1]
		if start > 0 {
			switch src[start-1] {
			case '.', ':':
				continue
			}
		}
		name := src[start:end]
		if luaKeywords[name] || stdlibTableRoots[name] || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
