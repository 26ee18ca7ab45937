package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrDirSync indicates the parent directory could not be synced after rename.
//
// When returned, the new file is in place but durability of the rename is
// not guaranteed. Callers can detect this with errors.Is(err, ErrDirSync).
var ErrDirSync = errors.New("dir sync")

// AtomicWriter writes files atomically using rename.
//
// The write sequence is: create a uniquely named temp file in the target's
// directory, write and fsync it, rename it over the target, then fsync the
// directory. Concurrent readers of the target path observe either the old
// or the new content, never a partial write.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter creates an AtomicWriter that uses the given filesystem.
// Panics if fsys is nil.
func NewAtomicWriter(fsys FS) *AtomicWriter {
	if fsys == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fsys}
}

// AtomicWriteOptions configures [AtomicWriter.Write] behavior.
type AtomicWriteOptions struct {
	// SyncDir controls whether the parent directory is synced after rename.
	SyncDir bool

	// Perm specifies the file permissions. Must be non-zero.
	// The file is always explicitly chmod'd to this mode, regardless of umask.
	Perm os.FileMode
}

// DefaultOptions returns the default atomic write options.
func (*AtomicWriter) DefaultOptions() AtomicWriteOptions {
	return AtomicWriteOptions{
		SyncDir: true,
		Perm:    0o644,
	}
}

// WriteWithDefaults writes content atomically using default options.
func (w *AtomicWriter) WriteWithDefaults(path string, r io.Reader) error {
	return w.Write(path, r, w.DefaultOptions())
}

// Write writes data from reader to path atomically and durably.
//
// If the directory sync step fails, the returned error satisfies
// errors.Is(err, ErrDirSync); the rename itself has already happened.
func (w *AtomicWriter) Write(path string, reader io.Reader, opts AtomicWriteOptions) error {
	if reader == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == string(os.PathSeparator) || base == "." {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmpFile, tmpPath, err := w.createTempFile(dir, base, opts.Perm)
	if err != nil {
		return err
	}

	cleanup := func() error {
		closeErr := tmpFile.Close()
		if closeErr != nil {
			closeErr = fmt.Errorf("close temp file %q: %w", tmpPath, closeErr)
		}

		removeErr := w.fs.Remove(tmpPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			removeErr = fmt.Errorf("remove temp file %q: %w", tmpPath, removeErr)
		} else {
			removeErr = nil
		}

		return errors.Join(closeErr, removeErr)
	}

	chmodErr := tmpFile.Chmod(opts.Perm)
	if chmodErr != nil {
		return errors.Join(fmt.Errorf("chmod temp file %q: %w", tmpPath, chmodErr), cleanup())
	}

	_, copyErr := io.Copy(tmpFile, reader)
	if copyErr != nil {
		return errors.Join(fmt.Errorf("write temp file %q: %w", tmpPath, copyErr), cleanup())
	}

	syncErr := tmpFile.Sync()
	if syncErr != nil {
		return errors.Join(fmt.Errorf("sync temp file %q: %w", tmpPath, syncErr), cleanup())
	}

	renameErr := w.fs.Rename(tmpPath, path)
	if renameErr != nil {
		return errors.Join(fmt.Errorf("rename: %w", renameErr), cleanup())
	}

	cleanupErr := cleanup()

	if opts.SyncDir {
		err := w.syncDir(dir)
		if err != nil {
			return errors.Join(err, cleanupErr)
		}
	}

	// Don't surface cleanup errors if all main operations worked.
	return nil
}

const tempFileMaxAttempts = 10000

var tempFileCounter atomic.Uint64

// createTempFile creates a uniquely named hidden temp file next to the
// target so the final rename stays on the same filesystem.
func (w *AtomicWriter) createTempFile(dir, base string, perm os.FileMode) (File, string, error) {
	for range tempFileMaxAttempts {
		seq := tempFileCounter.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		file, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func (w *AtomicWriter) syncDir(dir string) error {
	handle, err := w.fs.Open(dir)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	syncErr := handle.Sync()
	closeErr := handle.Close()

	if closeErr != nil {
		closeErr = fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	if syncErr == nil {
		return closeErr
	}

	return errors.Join(ErrDirSync, fmt.Errorf("%q: %w", dir, syncErr), closeErr)
}
