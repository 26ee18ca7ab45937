package files

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

// scanChunkSize bounds how many directory entries a scan reads per batch,
// so iterating a large store does not hold the whole listing in memory.
const scanChunkSize = 128

// All returns a lazy sequence over every entry in the store, with root
// membership annotated from the root index.
//
// Entries are produced in filesystem enumeration order; callers needing a
// deterministic order must sort externally. The sequence is restartable by
// ranging over it again (or calling All again); each pass is a fresh scan.
// Per-entry failures are yielded as (nil, err) and the scan moves on, so a
// corrupted file does not hide the rest of the store.
func (s *Store) All() iter.Seq2[*jspon.Entry, error] {
	return func(yield func(*jspon.Entry, error) bool) {
		s.scanDir(s.objectDir, "", false, yield)
	}
}

// Roots returns a lazy sequence over root entries only, enumerated from the
// root-set directory with the root flag forced true. Same laziness,
// ordering, and restart semantics as [Store.All].
func (s *Store) Roots() iter.Seq2[*jspon.Entry, error] {
	return func(yield func(*jspon.Entry, error) bool) {
		s.scanDir(s.rootSetDir, "", true, yield)
	}
}

// RootIDs lists the identifiers currently marked as roots, without
// decoding any documents. A directory listing of the root set.
func (s *Store) RootIDs() ([]string, error) {
	var ids []string

	for entry, err := range s.scanNames(s.rootSetDir) {
		if err != nil {
			return nil, err
		}

		ids = append(ids, entry)
	}

	return ids, nil
}

// scanDir walks one directory tree in bounded batches, decoding each
// regular file and yielding the result. Returns false once the consumer
// stops. relPrefix tracks the path relative to the tree root, which is how
// root membership is looked up for all-entries scans.
func (s *Store) scanDir(dir, relPrefix string, forceRoot bool, yield func(*jspon.Entry, error) bool) bool {
	handle, err := s.fs.Open(dir)
	if err != nil {
		return yield(nil, fmt.Errorf("scanning %q: %w", dir, err))
	}

	defer func() { _ = handle.Close() }()

	for {
		batch, err := handle.ReadDir(scanChunkSize)

		for _, dirent := range batch {
			name := dirent.Name()

			// Dot names are temp files and internal markers, not entries.
			if strings.HasPrefix(name, ".") {
				continue
			}

			rel := filepath.Join(relPrefix, name)

			if dirent.IsDir() {
				if !s.scanDir(filepath.Join(dir, name), rel, forceRoot, yield) {
					return false
				}

				continue
			}

			if !yield(s.decodeScanned(filepath.Join(dir, name), rel, forceRoot)) {
				return false
			}
		}

		if errors.Is(err, io.EOF) {
			return true
		}

		if err != nil {
			return yield(nil, fmt.Errorf("scanning %q: %w", dir, err))
		}
	}
}

// decodeScanned reads and expands one scanned file, annotating root
// membership: forced for root-set scans, looked up for full scans.
func (s *Store) decodeScanned(path, rel string, forceRoot bool) (*jspon.Entry, error) {
	raw, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, withContext(fmt.Errorf("reading entry: %w", err), filepath.Base(rel), rel)
	}

	root := forceRoot

	if !root {
		root, err = s.fs.Exists(filepath.Join(s.rootSetDir, rel))
		if err != nil {
			return nil, withContext(fmt.Errorf("checking root marker: %w", err), filepath.Base(rel), rel)
		}
	}

	entry, err := jspon.Unmarshal(raw, jspon.ExtraAttrs{Root: root})
	if err != nil {
		return nil, withContext(err, filepath.Base(rel), rel)
	}

	return entry, nil
}

// scanNames yields the base names of all regular files under dir, in
// bounded batches like scanDir.
func (s *Store) scanNames(dir string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.scanNamesDir(dir, yield)
	}
}

func (s *Store) scanNamesDir(dir string, yield func(string, error) bool) bool {
	handle, err := s.fs.Open(dir)
	if err != nil {
		return yield("", fmt.Errorf("scanning %q: %w", dir, err))
	}

	defer func() { _ = handle.Close() }()

	for {
		batch, err := handle.ReadDir(scanChunkSize)

		for _, dirent := range batch {
			name := dirent.Name()

			if strings.HasPrefix(name, ".") {
				continue
			}

			if dirent.IsDir() {
				if !s.scanNamesDir(filepath.Join(dir, name), yield) {
					return false
				}

				continue
			}

			if !yield(name, nil) {
				return false
			}
		}

		if errors.Is(err, io.EOF) {
			return true
		}

		if err != nil {
			return yield("", fmt.Errorf("scanning %q: %w", dir, err))
		}
	}
}
