// Package inspector provides an interactive, readline-driven console for
// watching the memoization engine make decisions as a script runs: which
// functions hit cache, which missed, and which got permanently
// disqualified, plus live per-function statistics and on-disk cache
// management. A host adapter feeds it Decision events as they happen and
// consults its Breakpoint/Watch sets before each call; the console itself
// never touches the engine's internals directly, only Engine.Stats,
// Engine.ClearCache, and Engine.ClearFunction.
package inspector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pymemo-dev/pymemo/pkg/engine"
	"github.com/pymemo-dev/pymemo/pkg/fmi"
	"github.com/pymemo-dev/pymemo/pkg/readline"
)

// Decision records one memoization verdict reached for a single call, for
// display in the history ring buffer.
type Decision struct {
	Canonical string
	Verb      string // MEMOIZED, SKIPPED, CANNOT_MEMOIZE, ERROR, WATCH
	Detail    string
}

// Config holds inspector configuration.
type Config struct {
	MaxHistory int
	Input      io.Reader
	Output     io.Writer
	// HistoryFile, if set, persists the command line history (not the
	// decision history) across inspector sessions.
	HistoryFile string
}

// Inspector is the interactive console. It holds no reference to any host
// runtime value; it only reads the engine's introspection surface and its
// own breakpoint/watch/history state.
type Inspector struct {
	eng *engine.Engine

	breakpoints map[string]bool
	watches     map[string]bool

	history    []Decision
	maxHistory int

	paused  bool
	running bool

	reader *readline.Reader
	output io.Writer
}

// New returns a console attached to eng.
func New(eng *engine.Engine, config *Config) *Inspector {
	if config == nil {
		config = &Config{}
	}
	if config.MaxHistory == 0 {
		config.MaxHistory = 200
	}
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}

	return &Inspector{
		eng:         eng,
		breakpoints: make(map[string]bool),
		watches:     make(map[string]bool),
		maxHistory:  config.MaxHistory,
		reader: readline.NewReader(&readline.Config{
			Prompt:      "inspect> ",
			HistoryFile: config.HistoryFile,
			MaxHistory:  config.MaxHistory,
			Input:       config.Input,
			Output:      config.Output,
		}),
		output: config.Output,
	}
}

// Record appends one decision to the history ring buffer. Host adapters
// call this immediately after Engine.Exit resolves a call, whether it
// returns a cache hit, a freshly written entry, or neither.
func (in *Inspector) Record(d Decision) {
	if len(in.history) >= in.maxHistory {
		in.history = in.history[1:]
	}
	in.history = append(in.history, d)
}

// ShouldBreak reports whether canonical has a breakpoint set, i.e.
// whether the host adapter should drop into Run before letting the call
// proceed.
func (in *Inspector) ShouldBreak(canonical string) bool {
	return in.breakpoints[canonical]
}

// Watching reports whether globalName is on the watch list, i.e. whether
// the host adapter should call NoteWatch whenever that global is bound.
func (in *Inspector) Watching(globalName string) bool {
	return in.watches[globalName]
}

// NoteWatch records a change to a watched global as a WATCH entry in the
// decision history and sets the paused flag. It does not itself enter
// the console; the host adapter calls Pause for that.
func (in *Inspector) NoteWatch(globalName, detail string) {
	in.Record(Decision{Canonical: globalName, Verb: "WATCH", Detail: detail})
	in.paused = true
}

// Run starts the interactive console loop. It blocks on stdin (or
// Config.Input) between breakpoint hits, so a host adapter typically
// calls Run once up front to let the user arm breakpoints/watches, then
// calls ShouldBreak/Watching from its own call-dispatch loop and calls
// Pause (a lighter-weight re-entry into the same loop) whenever one
// fires.
func (in *Inspector) Run() error {
	in.printBanner()
	in.displayStats()
	return in.commandLoop()
}

// Pause drops into the interactive command loop without the startup
// banner or stats, because a breakpoint or watch fired mid-run rather
// than at session start. label identifies what triggered the pause (a
// canonical function name for a breakpoint, a global's name for a
// watch). It returns once the user issues continue/c, or on EOF/quit.
func (in *Inspector) Pause(label string) error {
	fmt.Fprintf(in.output, "paused: %s\n", label)
	return in.commandLoop()
}

// commandLoop reads and dispatches commands until the user types
// continue (returning nil so the caller resumes) or the input stream
// ends (also returning nil, since EOF during an interactive session
// means there is nothing left to drive it).
func (in *Inspector) commandLoop() error {
	in.running = false
	for {
		line, err := in.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}

		if err := in.handleCommand(cmd); err != nil {
			fmt.Fprintf(in.output, "error: %v\n", err)
		}
		if in.running {
			return nil
		}
	}
}

func (in *Inspector) handleCommand(cmd string) error {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "h", "help", "?":
		in.printHelp()

	case "l", "list":
		in.displayList()

	case "show":
		if len(parts) < 2 {
			fmt.Fprintln(in.output, "Usage: show <canonical>")
		} else {
			in.displayDetail(strings.Join(parts[1:], " "))
		}

	case "b", "break":
		if len(parts) < 2 {
			in.listBreakpoints()
		} else {
			in.setBreakpoint(strings.Join(parts[1:], " "))
		}

	case "d", "delete":
		if len(parts) < 2 {
			fmt.Fprintln(in.output, "Usage: delete <canonical>")
		} else {
			in.deleteBreakpoint(strings.Join(parts[1:], " "))
		}

	case "w", "watch":
		if len(parts) < 2 {
			in.listWatches()
		} else {
			in.setWatch(parts[1])
		}

	case "unwatch":
		if len(parts) < 2 {
			fmt.Fprintln(in.output, "Usage: unwatch <global>")
		} else {
			delete(in.watches, parts[1])
			fmt.Fprintf(in.output, "no longer watching %s\n", parts[1])
		}

	case "history", "hist":
		in.displayHistory()

	case "stats":
		in.displayStats()

	case "clear":
		if len(parts) < 2 {
			if err := in.eng.ClearCache(); err != nil {
				return err
			}
			fmt.Fprintln(in.output, "cleared the entire cache")
		} else {
			canonical := strings.Join(parts[1:], " ")
			if err := in.eng.ClearFunction(canonical); err != nil {
				return err
			}
			fmt.Fprintf(in.output, "cleared cache for %s\n", canonical)
		}

	case "c", "continue":
		in.paused = false
		fmt.Fprintln(in.output, "continuing")
		in.running = true

	case "q", "quit", "exit":
		fmt.Fprintln(in.output, "goodbye")
		os.Exit(0)

	default:
		fmt.Fprintf(in.output, "unknown command: %s (type 'help' for commands)\n", parts[0])
	}

	return nil
}

func (in *Inspector) printBanner() {
	fmt.Fprintln(in.output, "pymemo inspector")
	fmt.Fprintln(in.output, "Type 'help' for commands, 'list' for tracked functions")
	fmt.Fprintln(in.output)
}

func (in *Inspector) printHelp() {
	fmt.Fprintln(in.output, "Commands:")
	fmt.Fprintln(in.output, "  l/list              - List every tracked function")
	fmt.Fprintln(in.output, "  show <canonical>    - Show one function's memoization record")
	fmt.Fprintln(in.output, "  b/break <canonical> - Break before calls to <canonical>")
	fmt.Fprintln(in.output, "  d/delete <canonical>- Delete a breakpoint")
	fmt.Fprintln(in.output, "  w/watch <global>    - Break when <global> is rebound")
	fmt.Fprintln(in.output, "  unwatch <global>    - Stop watching <global>")
	fmt.Fprintln(in.output, "  history             - Show the decision history")
	fmt.Fprintln(in.output, "  stats               - Show aggregate cache statistics")
	fmt.Fprintln(in.output, "  clear [canonical]   - Clear the whole cache, or one function's")
	fmt.Fprintln(in.output, "  c/continue          - Resume execution")
	fmt.Fprintln(in.output, "  q/quit              - Exit the process")
}

func (in *Inspector) setBreakpoint(canonical string) {
	in.breakpoints[canonical] = true
	fmt.Fprintf(in.output, "breakpoint set on %s\n", canonical)
}

func (in *Inspector) deleteBreakpoint(canonical string) {
	delete(in.breakpoints, canonical)
	fmt.Fprintf(in.output, "breakpoint deleted on %s\n", canonical)
}

func (in *Inspector) listBreakpoints() {
	if len(in.breakpoints) == 0 {
		fmt.Fprintln(in.output, "no breakpoints set")
		return
	}
	names := make([]string, 0, len(in.breakpoints))
	for name := range in.breakpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(in.output, "Breakpoints:")
	for _, name := range names {
		fmt.Fprintf(in.output, "  %s\n", name)
	}
}

func (in *Inspector) setWatch(globalName string) {
	in.watches[globalName] = true
	fmt.Fprintf(in.output, "watching %s\n", globalName)
}

func (in *Inspector) listWatches() {
	if len(in.watches) == 0 {
		fmt.Fprintln(in.output, "no watches set")
		return
	}
	names := make([]string, 0, len(in.watches))
	for name := range in.watches {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(in.output, "Watches:")
	for _, name := range names {
		fmt.Fprintf(in.output, "  %s\n", name)
	}
}

func (in *Inspector) displayList() {
	stats := in.eng.Stats()
	if len(stats) == 0 {
		fmt.Fprintln(in.output, "no functions tracked yet")
		return
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Canonical < stats[j].Canonical })

	fmt.Fprintln(in.output, "┌──────────────────────────────────────────────────────────────┐")
	fmt.Fprintln(in.output, "│ Function                          Status            Hits/Calls│")
	fmt.Fprintln(in.output, "├──────────────────────────────────────────────────────────────┤")
	for _, s := range stats {
		name := truncate(s.Canonical, 34)
		fmt.Fprintf(in.output, "│ %-34s %-17s %5d/%-5d │\n", name, s.Status, s.Hits, s.Calls)
	}
	fmt.Fprintln(in.output, "└──────────────────────────────────────────────────────────────┘")
}

func (in *Inspector) displayDetail(canonical string) {
	for _, s := range in.eng.Stats() {
		if s.Canonical != canonical {
			continue
		}
		fmt.Fprintln(in.output, "┌──────────────────────────────────────────────────────────────┐")
		fmt.Fprintf(in.output, "│ %-63s│\n", s.Canonical)
		fmt.Fprintln(in.output, "├──────────────────────────────────────────────────────────────┤")
		fmt.Fprintf(in.output, "│ status: %-55s│\n", s.Status)
		if s.Reason != "" {
			fmt.Fprintf(in.output, "│ reason: %-55s│\n", truncate(s.Reason, 55))
		}
		fmt.Fprintf(in.output, "│ calls: %-5d  hits: %-5d  misses: %-5d               │\n", s.Calls, s.Hits, s.Misses)
		fmt.Fprintln(in.output, "└──────────────────────────────────────────────────────────────┘")
		return
	}
	fmt.Fprintf(in.output, "no record for %s\n", canonical)
}

func (in *Inspector) displayHistory() {
	if len(in.history) == 0 {
		fmt.Fprintln(in.output, "no history yet")
		return
	}
	fmt.Fprintln(in.output, "Decision history:")
	for i, d := range in.history {
		fmt.Fprintf(in.output, "%4d: %-16s %-34s %s\n", i, d.Verb, d.Canonical, d.Detail)
	}
}

func (in *Inspector) displayStats() {
	stats := in.eng.Stats()
	var calls, hits, misses uint64
	var memoizable, neverMemoizable int
	for _, s := range stats {
		calls += s.Calls
		hits += s.Hits
		misses += s.Misses
		switch s.Status {
		case fmi.StatusMemoizable:
			memoizable++
		case fmi.StatusNeverMemoizable:
			neverMemoizable++
		}
	}

	fmt.Fprintln(in.output, "┌─────────────────────────────────────────────────────┐")
	fmt.Fprintln(in.output, "│ Cache statistics                                    │")
	fmt.Fprintln(in.output, "├─────────────────────────────────────────────────────┤")
	fmt.Fprintf(in.output, "│ tracked functions: %-33d │\n", len(stats))
	fmt.Fprintf(in.output, "│ memoizable:        %-33d │\n", memoizable)
	fmt.Fprintf(in.output, "│ never memoizable:  %-33d │\n", neverMemoizable)
	fmt.Fprintf(in.output, "│ calls:             %-33d │\n", calls)
	fmt.Fprintf(in.output, "│ hits:              %-33d │\n", hits)
	fmt.Fprintf(in.output, "│ misses:            %-33d │\n", misses)
	fmt.Fprintln(in.output, "└─────────────────────────────────────────────────────┘")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
