package files

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

// Insert collapses and persists each entry, then updates its root marker to
// match the entry's current Root flag.
//
// The document bytes are written to a private temp file and renamed into
// place, so concurrent readers never observe a partial document. The root
// index update happens under the write lock, after the rename: a reader
// that sees the new object file and then queries root status gets a
// consistent answer, never a stale pre-write link.
//
// Entries are processed independently; a failure on one does not roll back
// entries already inserted. Entries must have ids ([ErrNoID] otherwise).
func (s *Store) Insert(entries ...*jspon.Entry) error {
	for _, entry := range entries {
		if err := s.insertOne(entry); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) insertOne(entry *jspon.Entry) error {
	if entry == nil {
		return ErrNoID
	}

	path, rel, err := s.objectPath(entry.ID)
	if err != nil {
		return withContext(err, entry.ID, "")
	}

	rootPath, err := s.rootPath(entry.ID)
	if err != nil {
		return withContext(err, entry.ID, "")
	}

	raw, err := jspon.Marshal(entry, s.pretty)
	if err != nil {
		return withContext(err, entry.ID, rel)
	}

	// Sharded layouts need their parent directories first.
	if dir := filepath.Dir(path); dir != s.objectDir {
		if err := s.fs.MkdirAll(dir, dirPerms); err != nil {
			return withContext(fmt.Errorf("creating entry dir: %w", err), entry.ID, rel)
		}
	}

	// Payload I/O happens outside the lock; only link bookkeeping is
	// guarded, which bounds lock hold time to pointer manipulation.
	err = s.atomic.Write(path, bytes.NewReader(raw), s.atomic.DefaultOptions())
	if err != nil {
		return withContext(fmt.Errorf("writing entry: %w", err), entry.ID, rel)
	}

	err = s.withWriteLock(func() error {
		return s.syncRootMarker(entry, path, rootPath)
	})
	if err != nil {
		return withContext(err, entry.ID, rel)
	}

	return nil
}

// syncRootMarker reconciles the root-set link with the entry's Root flag.
// Any stale link is removed first: the rename gave the object path a new
// inode, so an old link would otherwise keep exposing pre-write bytes
// through the root set.
func (s *Store) syncRootMarker(entry *jspon.Entry, objectPath, rootPath string) error {
	err := s.fs.Remove(rootPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale root marker: %w", err)
	}

	if !entry.Root {
		return nil
	}

	if dir := filepath.Dir(rootPath); dir != s.rootSetDir {
		if err := s.fs.MkdirAll(dir, dirPerms); err != nil {
			return fmt.Errorf("creating root marker dir: %w", err)
		}
	}

	if err := s.fs.Link(objectPath, rootPath); err != nil {
		return fmt.Errorf("linking root marker: %w", err)
	}

	return nil
}
