package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pymemo-dev/pymemo/internal/luahost"
	"github.com/pymemo-dev/pymemo/internal/mcp"
	"github.com/pymemo-dev/pymemo/pkg/config"
	"github.com/pymemo-dev/pymemo/pkg/inspector"
	"github.com/pymemo-dev/pymemo/pkg/translog"
	"github.com/pymemo-dev/pymemo/pkg/version"
)

var (
	configPath      string
	cacheDirFlag    string
	showVersion     bool
	showVersionFull bool
)

var rootCmd = &cobra.Command{
	Use:   "pymemo",
	Short: "Automatic, persistent memoization for Lua scripts " + version.GetVersion(),
	Long: `pymemo embeds a memoization engine inside a Lua interpreter: every
top-level function a script defines is checked against an on-disk cache
keyed on its own code, its arguments, and everything it read or touched,
before it is ever re-run.

  pymemo run <script.lua>       run a script with memoization active
  pymemo cache stats            print the cache directory in use
  pymemo cache clear [function] clear the whole cache, or just one function
  pymemo inspect <script.lua>   launch the interactive inspector REPL
  pymemo mcp <script.lua>       serve the engine's introspection tools over MCP`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersion())
			return
		}
		if showVersionFull {
			fmt.Println(version.GetFullVersion())
			return
		}
		cmd.Help()
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().BoolVar(&showVersionFull, "version-full", false, "show full version info")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to the ignore-prefix config file")
	rootCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "", "on-disk cache root (overrides the config file)")

	rootCmd.AddCommand(runCmd, cacheCmd, inspectCmd, mcpCmd, versionCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetBuildInfo())
	},
}

var runCmd = &cobra.Command{
	Use:   "run <script.lua>",
	Short: "Run a Lua script with memoization active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, log, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		if log != nil {
			defer log.Close()
		}
		if err := rt.Load(args[0]); err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the on-disk memoization cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the cache directory in use",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		// cache stats has nothing to report without a loaded script; it
		// operates on the same process, so pymemo run/inspect are where
		// stats actually accumulate. This subcommand exists for users who
		// just want to confirm the cache directory in use.
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("cache directory: %s\n", cfg.CacheDir)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [function]",
	Short: "Clear the entire cache, or just one function's entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rt := luahost.New(luahost.Config{CacheDir: cfg.CacheDir, IgnorePrefixes: cfg.IgnorePrefixes})
		defer rt.Close()
		if len(args) == 1 {
			if err := rt.Engine().ClearFunction(args[0]); err != nil {
				return err
			}
			fmt.Printf("cleared cache for %s\n", args[0])
			return nil
		}
		if err := rt.Engine().ClearCache(); err != nil {
			return err
		}
		fmt.Println("cleared the entire cache")
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <script.lua>",
	Short: "Load a script and launch the interactive inspector REPL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, log, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		if log != nil {
			defer log.Close()
		}
		var historyFile string
		if home, err := os.UserHomeDir(); err == nil {
			historyFile = filepath.Join(home, ".pymemo", "inspector_history")
		}
		insp := inspector.New(rt.Engine(), &inspector.Config{
			Input:       os.Stdin,
			Output:      os.Stdout,
			HistoryFile: historyFile,
		})
		rt.AddLog(func(canonical, verb, detail string) {
			insp.Record(inspector.Decision{Canonical: canonical, Verb: verb, Detail: detail})
		})
		rt.SetInspector(insp)

		// The script runs synchronously inside Load, so any breakpoint or
		// watch has to be armed before Load is called, not after: Run here
		// lets the user do that, and returns as soon as they type
		// continue. From then on rt.checkInspector pauses back into the
		// same console (via Pause) whenever an armed breakpoint or watch
		// fires mid-script.
		fmt.Fprintln(os.Stdout, "arm breakpoints/watches, then 'continue' to run the script")
		if err := insp.Run(); err != nil {
			return err
		}
		if err := rt.Load(args[0]); err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		fmt.Fprintln(os.Stdout, "script finished; inspect history/stats, 'quit' to exit")
		return insp.Run()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp <script.lua>",
	Short: "Load a script and serve its memoization introspection over MCP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, log, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		if log != nil {
			defer log.Close()
		}
		if err := rt.Load(args[0]); err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		server := mcp.NewServer("pymemo", version.GetVersion(), mcp.NewEngineHandler(rt.Engine()))
		return server.Start(context.Background())
	},
}

// loadConfig reads the config file if present, falling back to an empty
// configuration with the default cache directory. A config path
// explicitly set on the command line that does not exist is still an
// error, matching pkg/config's "a missing file you asked for is fatal"
// contract; only the default path is forgiven when absent.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath == config.DefaultPath() && errors.Is(err, os.ErrNotExist) {
			cfg = &config.Config{CacheDir: config.DefaultCacheDir()}
		} else {
			return nil, err
		}
	}
	if cacheDirFlag != "" {
		cfg.CacheDir = cacheDirFlag
	}
	return cfg, nil
}

func newRuntime() (*luahost.Runtime, *translog.Log, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var log *translog.Log
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		runLog := filepath.Join(home, ".pymemo", "run.log")
		aggLog := filepath.Join(home, ".pymemo", "aggregate.log")
		if l, err := translog.Open(runLog, aggLog); err == nil {
			log = l
		}
	}

	rt := luahost.New(luahost.Config{
		CacheDir:       cfg.CacheDir,
		IgnorePrefixes: cfg.IgnorePrefixes,
		Log: func(canonical, verb, detail string) {
			if log != nil {
				log.Decision(canonical, verb, detail)
			}
		},
	})
	return rt, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
