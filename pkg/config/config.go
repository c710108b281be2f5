// Package config loads the line-oriented ignore-prefix configuration
// file consulted at startup: one "ignore = <absolute path>" directive per
// line. A missing config file is a fatal condition for the caller to
// surface, not something this package papers over.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pymemo-dev/pymemo/pkg/ignore"
)

const ignoreDirective = "ignore"

// Config is the parsed configuration file.
type Config struct {
	IgnorePrefixes []string
	CacheDir       string
}

// DefaultPath returns the default configuration file location,
// "$HOME/.pymemorc".
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pymemorc"
	}
	return filepath.Join(home, ".pymemorc")
}

// DefaultCacheDir returns the default on-disk cache root,
// "$HOME/.pymemo-cache".
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pymemo-cache"
	}
	return filepath.Join(home, ".pymemo-cache")
}

// Load reads and parses the config file at path. A missing file is an
// error: callers that want a default empty configuration should check
// errors.Is(err, os.ErrNotExist) themselves (the open error is wrapped,
// so os.IsNotExist does not see it) and decide whether that is acceptable in
// their context, rather than Load silently treating "missing" the same
// as "empty".
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{CacheDir: DefaultCacheDir()}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, val, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("config: %s:%d: malformed directive %q", path, line, text)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case ignoreDirective:
			if val == "" {
				return nil, fmt.Errorf("config: %s:%d: empty ignore path", path, line)
			}
			if !strings.HasSuffix(val, "/") {
				val += "/"
			}
			cfg.IgnorePrefixes = append(cfg.IgnorePrefixes, val)
		case "cache_dir":
			if val == "" {
				return nil, fmt.Errorf("config: %s:%d: empty cache_dir", path, line)
			}
			cfg.CacheDir = val
		default:
			return nil, fmt.Errorf("config: %s:%d: unknown directive %q", path, line, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// IgnoreFilter builds a pkg/ignore.Filter from the configured prefixes.
func (c *Config) IgnoreFilter() *ignore.Filter {
	return ignore.NewFromPrefixes(c.IgnorePrefixes)
}
