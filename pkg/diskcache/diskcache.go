// Package diskcache implements the on-disk, two-level memoization store:
// one directory per function ("<root>/<hash(func-name)>.cache/"), holding
// one file per distinct argument tuple ("<hash(pickle(args))>.entry").
// Writes are atomic: an entry is built in a temp file in the same
// directory and renamed into place, so a crash mid-write never leaves a
// truncated entry visible to a later reader.
package diskcache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when no entry exists for the given
// function/argument hash pair.
var ErrNotFound = errors.New("diskcache: entry not found")

const (
	funcDirSuffix  = ".cache"
	entryFileSuffix = ".entry"
)

// FileWrite records one side-effecting file write the cached call made,
// so a replay can reproduce it without re-running the call.
type FileWrite struct {
	Path    string
	Content []byte
}

// Entry is everything needed to replay one memoized call: its result,
// the output it produced, any files it wrote, and an opaque dependency
// record the caller is responsible for interpreting.
type Entry struct {
	Result     []byte
	Stdout     []byte
	Stderr     []byte
	FileWrites []FileWrite
	Deps       []byte
}

// Cache is a handle on one cache root directory.
type Cache struct {
	root string
}

// New returns a Cache rooted at dir. dir is created lazily by Put.
func New(dir string) *Cache {
	return &Cache{root: dir}
}

// Root returns the cache's root directory.
func (c *Cache) Root() string {
	return c.root
}

func (c *Cache) funcDir(funcHash string) string {
	return filepath.Join(c.root, funcHash+funcDirSuffix)
}

func (c *Cache) entryPath(funcHash, argHash string) string {
	return filepath.Join(c.funcDir(funcHash), argHash+entryFileSuffix)
}

// Get reads the entry for (funcHash, argHash). It returns ErrNotFound if
// no such entry exists.
func (c *Cache) Get(funcHash, argHash string) (*Entry, error) {
	b, err := os.ReadFile(c.entryPath(funcHash, argHash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("diskcache: read entry: %w", err)
	}
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&e); err != nil {
		return nil, fmt.Errorf("diskcache: decode entry: %w", err)
	}
	return &e, nil
}

// Put writes e for (funcHash, argHash), atomically replacing any
// existing entry.
func (c *Cache) Put(funcHash, argHash string, e *Entry) error {
	dir := c.funcDir(funcHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("diskcache: create function dir: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("diskcache: encode entry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*"+entryFileSuffix+".partial")
	if err != nil {
		return fmt.Errorf("diskcache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("diskcache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("diskcache: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.entryPath(funcHash, argHash)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("diskcache: rename into place: %w", err)
	}
	return nil
}

// Delete removes one entry. It is not an error for the entry to already
// be absent.
func (c *Cache) Delete(funcHash, argHash string) error {
	err := os.Remove(c.entryPath(funcHash, argHash))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// DeleteFunc removes every entry for funcHash, i.e. clears the cache for
// one function.
func (c *Cache) DeleteFunc(funcHash string) error {
	err := os.RemoveAll(c.funcDir(funcHash))
	if err != nil {
		return fmt.Errorf("diskcache: delete function cache: %w", err)
	}
	return nil
}

// Clear removes the entire cache root.
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.root); err != nil {
		return fmt.Errorf("diskcache: clear root: %w", err)
	}
	return os.MkdirAll(c.root, 0o755)
}

// FuncHashes lists the function hashes that currently have a cache
// directory on disk.
func (c *Cache) FuncHashes() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("diskcache: list root: %w", err)
	}
	var hashes []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), funcDirSuffix) {
			continue
		}
		hashes = append(hashes, strings.TrimSuffix(e.Name(), funcDirSuffix))
	}
	return hashes, nil
}

// EntryCount returns the number of cached argument-tuple entries for
// funcHash.
func (c *Cache) EntryCount(funcHash string) (int, error) {
	entries, err := os.ReadDir(c.funcDir(funcHash))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("diskcache: list function dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), entryFileSuffix) {
			n++
		}
	}
	return n, nil
}
