// Package store implements a durable collection store: a per-entity-type
// directory of one-record-per-file YAML collections, with an in-memory
// cache that re-reads a record only when the file's mtime has advanced past
// the cached read timestamp. This is how the host and a session's child
// process observe each other's writes without an explicit invalidation
// protocol — the filesystem is the publish/subscribe bus for "cold" state,
// while the host-container bridge (internal/bridge) carries "hot" signals
// over its sockets.
//
// Collections use atomic write-via-rename and an authoritative
// directory-scan List, generalized with Go generics and given an mtime
// cache plus dirty/tombstone tracking a flat Get/Put would lack.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daemonctl/daemonctl/pkg/types"
)

// ErrNotFound is returned by Get when no record exists for an id.
var ErrNotFound = errors.New("store: not found")

type cacheEntry[T any] struct {
	value   T
	readAt  time.Time
}

// Collection is a file-backed key-value collection for one entity type T.
// Every exported method is safe for concurrent use within a single process;
// cross-process consistency relies on a single-writer-per-field discipline,
// not on file locking. Each field of a record is written by exactly one of
// the host or the child, so concurrent writers never contend for the same
// file.
type Collection[T types.Record] struct {
	dir string

	mu       sync.Mutex
	cache    map[string]*cacheEntry[T]
	dirty    map[string]bool
	tombstones map[string]bool
}

// New creates a Collection rooted at dir. The directory is created lazily
// on first Save.
func New[T types.Record](dir string) *Collection[T] {
	return &Collection[T]{
		dir:        dir,
		cache:      make(map[string]*cacheEntry[T]),
		dirty:      make(map[string]bool),
		tombstones: make(map[string]bool),
	}
}

func (c *Collection[T]) path(id string) string {
	return filepath.Join(c.dir, id+".yml")
}

// Get returns the record for id, consulting the in-memory cache but
// re-reading the file when its mtime is strictly newer than the cached
// read timestamp.
func (c *Collection[T]) Get(id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(id)
}

func (c *Collection[T]) getLocked(id string) (T, error) {
	var zero T

	if c.tombstones[id] {
		return zero, ErrNotFound
	}

	info, statErr := os.Stat(c.path(id))
	entry, cached := c.cache[id]

	if cached && statErr == nil && !info.ModTime().After(entry.readAt) {
		return entry.value, nil
	}
	if cached && statErr != nil && os.IsNotExist(statErr) {
		delete(c.cache, id)
		return zero, ErrNotFound
	}

	value, err := c.readFile(id)
	if err != nil {
		if cached {
			// Keep serving the cached value on a parse error rather than
			// surfacing a partial load.
			return entry.value, nil
		}
		return zero, err
	}

	c.cache[id] = &cacheEntry[T]{value: value, readAt: time.Now()}
	return value, nil
}

func (c *Collection[T]) readFile(id string) (T, error) {
	var zero T
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("store: read %s: %w", id, err)
	}

	var value T
	if err := yaml.Unmarshal(data, &value); err != nil {
		// A parse error is returned, not logged: Get keeps serving an
		// earlier cached value, and a directory scan skips the file.
		return zero, fmt.Errorf("store: unmarshal %s: %w", id, err)
	}
	return value, nil
}

// Set updates the cache and marks id dirty. Nothing reaches disk until
// Save is called.
func (c *Collection[T]) Set(id string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[id] = &cacheEntry[T]{value: value, readAt: time.Now()}
	c.dirty[id] = true
	delete(c.tombstones, id)
}

// Delete tombstones id so Save removes its file; the in-memory effect is
// immediate.
func (c *Collection[T]) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
	delete(c.dirty, id)
	c.tombstones[id] = true
}

// List scans the directory for ids; it is always authoritative (not the
// cache) and may include ids that have never been loaded into memory.
func (c *Collection[T]) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list %s: %w", c.dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yml"))
	}
	sort.Strings(ids)
	return ids, nil
}

// GetAll returns every currently-listed record, skipping ids that fail to
// load (parse errors are treated as absent).
func (c *Collection[T]) GetAll() (map[string]T, error) {
	ids, err := c.List()
	if err != nil {
		return nil, err
	}

	result := make(map[string]T, len(ids))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if c.tombstones[id] {
			continue
		}
		v, err := c.getLocked(id)
		if err != nil {
			continue
		}
		result[id] = v
	}
	return result, nil
}

// LoadAll forces a full refresh of every listed record into the cache,
// bypassing mtime comparison.
func (c *Collection[T]) LoadAll() error {
	ids, err := c.List()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if c.tombstones[id] {
			continue
		}
		v, err := c.readFile(id)
		if err != nil {
			continue
		}
		c.cache[id] = &cacheEntry[T]{value: v, readAt: time.Now()}
	}
	return nil
}

// Save is the sole writer: it atomically deletes tombstoned files,
// serializes every dirty record through a path-creating helper, and
// clears the dirty/tombstone sets. Repeated Save calls with no intervening
// Set/Delete write nothing and touch no file mtimes.
func (c *Collection[T]) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.tombstones {
		if err := os.Remove(c.path(id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: delete %s: %w", id, err)
		}
		delete(c.tombstones, id)
	}

	if len(c.dirty) == 0 {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", c.dir, err)
	}

	for id := range c.dirty {
		entry, ok := c.cache[id]
		if !ok {
			continue
		}
		if err := c.writeThrough(id, entry.value); err != nil {
			return err
		}
		entry.readAt = time.Now()
	}
	c.dirty = make(map[string]bool)
	return nil
}

// writeThrough marshals value and writes it via a temp-file-then-rename so
// a concurrent reader never observes a partially written file.
func (c *Collection[T]) writeThrough(id string, value T) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", id, err)
	}

	final := c.path(id)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", id, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename %s: %w", id, err)
	}
	return nil
}

// Exists reports whether id currently has a record, through the cache.
func (c *Collection[T]) Exists(id string) bool {
	_, err := c.Get(id)
	return err == nil
}
