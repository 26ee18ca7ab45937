// Package files implements a file-backed store for JSPON entries: one JSON
// document per identifier under an object directory, a root set realized as
// hard links in a parallel directory, and an optional flock-based write
// lock coordinating the link bookkeeping across processes.
//
// The store is the persistence half of an object-graph layer. It moves
// [jspon.Entry] values to and from disk; resolving references between
// entries, generating identifiers, and caching live objects are the
// caller's business.
//
// # Concurrency
//
// The store has no internal scheduler; callers invoke it synchronously.
// Reads never block on the lock: atomic rename guarantees a concurrent
// reader observes either the old or the fully written new document, never a
// partial one. Writes do the payload I/O to a private temp file without
// coordination and take the write lock only for the short finalize-plus-
// root-link section. The lock is global per store directory, not per id.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/holophrastic/kiokudb-backend-files/pkg/fs"
	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

const (
	objectDirName  = "all"
	rootSetDirName = "root_set"
	lockFileName   = ".lock"

	dirPerms  = 0o755
	filePerms = 0o644
)

// Store maps entry identifiers to JSPON documents on disk.
//
// Safe for concurrent use by multiple goroutines and, with locking enabled,
// by multiple processes sharing the directory.
type Store struct {
	dir        string
	objectDir  string
	rootSetDir string
	lockPath   string

	relPathFromID func(id string) string
	pretty        bool
	lockTimeout   time.Duration

	fs     fs.FS
	atomic *fs.AtomicWriter
	locker *fs.Locker // nil when locking is disabled
}

// Open initializes a store for the configured directory, creating the
// object and root-set directories if needed.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("Config.Dir is required")
	}

	fsys := cfg.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	relPathFromID := cfg.RelPathFromID
	if relPathFromID == nil {
		relPathFromID = func(id string) string { return id }
	}

	lockTimeout := cfg.LockTimeout
	if lockTimeout == 0 {
		lockTimeout = DefaultLockTimeout
	}

	dir := filepath.Clean(cfg.Dir)

	store := &Store{
		dir:           dir,
		objectDir:     filepath.Join(dir, objectDirName),
		rootSetDir:    filepath.Join(dir, rootSetDirName),
		lockPath:      filepath.Join(dir, lockFileName),
		relPathFromID: relPathFromID,
		pretty:        cfg.Pretty,
		lockTimeout:   lockTimeout,
		fs:            fsys,
		atomic:        fs.NewAtomicWriter(fsys),
	}

	if !cfg.DisableLocking {
		store.locker = fs.NewLocker(fsys)
	}

	for _, d := range []string{store.objectDir, store.rootSetDir} {
		if err := fsys.MkdirAll(d, dirPerms); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	return store, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get reads and expands the entry stored under id.
//
// The returned entry's Root flag reflects current root index membership.
// Returns [ErrNotFound] if no object file exists for id; any other failure
// carries the id and underlying cause.
func (s *Store) Get(id string) (*jspon.Entry, error) {
	path, rel, err := s.objectPath(id)
	if err != nil {
		return nil, withContext(err, id, "")
	}

	raw, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, withContext(ErrNotFound, id, rel)
		}

		return nil, withContext(fmt.Errorf("reading entry: %w", err), id, rel)
	}

	root, err := s.IsRoot(id)
	if err != nil {
		return nil, withContext(err, id, rel)
	}

	entry, err := jspon.Unmarshal(raw, jspon.ExtraAttrs{Root: root})
	if err != nil {
		return nil, withContext(err, id, rel)
	}

	return entry, nil
}

// GetMulti reads the entries for all ids, in order. The first failure
// aborts and is returned with its id attached; no partial decode is ever
// handed back for a failing id.
func (s *Store) GetMulti(ids ...string) ([]*jspon.Entry, error) {
	entries := make([]*jspon.Entry, 0, len(ids))

	for _, id := range ids {
		entry, err := s.Get(id)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Exists reports, per id, whether an object file exists. Root status is a
// separate query ([Store.IsRoot]).
func (s *Store) Exists(ids ...string) ([]bool, error) {
	out := make([]bool, len(ids))

	for i, id := range ids {
		path, rel, err := s.objectPath(id)
		if err != nil {
			return nil, withContext(err, id, "")
		}

		ok, err := s.fs.Exists(path)
		if err != nil {
			return nil, withContext(fmt.Errorf("checking entry: %w", err), id, rel)
		}

		out[i] = ok
	}

	return out, nil
}

// Delete removes the object files and any root markers for the given ids.
//
// Idempotent: deleting a nonexistent id is not an error. Entries are
// processed independently; a failure on one does not roll back prior
// removals.
func (s *Store) Delete(ids ...string) error {
	for _, id := range ids {
		if err := s.deleteOne(id); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) deleteOne(id string) error {
	path, rel, err := s.objectPath(id)
	if err != nil {
		return withContext(err, id, "")
	}

	rootPath, err := s.rootPath(id)
	if err != nil {
		return withContext(err, id, "")
	}

	return s.withWriteLock(func() error {
		// Drop the root marker first so no window exists where a root
		// link points at a removed object.
		err := s.fs.Remove(rootPath)
		if err != nil && !os.IsNotExist(err) {
			return withContext(fmt.Errorf("removing root marker: %w", err), id, rel)
		}

		err = s.fs.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return withContext(fmt.Errorf("removing entry: %w", err), id, rel)
		}

		return nil
	})
}

// Clear removes all entries and all root markers, preserving the
// containing directories so the store remains usable without
// re-initialization.
func (s *Store) Clear() error {
	return s.withWriteLock(func() error {
		for _, dir := range []string{s.objectDir, s.rootSetDir} {
			entries, err := s.fs.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("clearing store: %w", err)
			}

			for _, entry := range entries {
				err := s.fs.RemoveAll(filepath.Join(dir, entry.Name()))
				if err != nil {
					return fmt.Errorf("clearing store: %w", err)
				}
			}
		}

		return nil
	})
}

// IsRoot reports whether id is currently marked as a graph root. An O(1)
// existence check against the root-set link.
func (s *Store) IsRoot(id string) (bool, error) {
	path, err := s.rootPath(id)
	if err != nil {
		return false, withContext(err, id, "")
	}

	ok, err := s.fs.Exists(path)
	if err != nil {
		return false, withContext(fmt.Errorf("checking root marker: %w", err), id, "")
	}

	return ok, nil
}

// withWriteLock runs fn while holding the store's cross-process write
// lock. With locking disabled it invokes fn directly. The lock is released
// on every exit path.
func (s *Store) withWriteLock(fn func() error) error {
	if s.locker == nil {
		return fn()
	}

	lock, err := s.locker.LockWithTimeout(s.lockPath, s.lockTimeout)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}

		return fmt.Errorf("acquiring write lock: %w", err)
	}

	defer func() { _ = lock.Close() }()

	return fn()
}
