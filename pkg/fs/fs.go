// Package fs provides the filesystem abstractions the files backend is
// built on.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using the [os] package
//   - [AtomicWriter]: durable temp-file-then-rename writes
//   - [Locker]: advisory cross-process exclusive locking via flock(2)
//
// Everything that touches disk in this module goes through [FS], so tests
// can substitute a wrapper that injects failures without a real filesystem.
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File]. The intent is os-like behavior,
// including that [File.Fd] returns a valid OS file descriptor usable with
// syscalls (for example flock) until the file is closed.
//
// ReadDir is included so directory handles can be consumed in bounded
// batches; it is only meaningful for handles opened on directories.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error

	// ReadDir reads up to n directory entries from a directory handle.
	// See [os.File.ReadDir]. With n > 0 it returns at most n entries and
	// io.EOF once the directory is exhausted.
	ReadDir(n int) ([]os.DirEntry, error)
}

// FS defines the filesystem operations used by the store.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection. Paths use OS semantics (like the os
// package and path/filepath), not the slash-separated paths of io/fs.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file (or directory) for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions.
	// See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	// See [os.WriteFile]. Not atomic; use [AtomicWriter] where readers
	// may race the write.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// ReadDir reads a directory and returns all its entries, sorted by
	// name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Link creates newpath as a hard link to oldpath. See [os.Link].
	// Both paths must be on the same filesystem volume.
	Link(oldpath, newpath string) error

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// RemoveAll deletes a path and any children. See [os.RemoveAll].
	RemoveAll(path string) error

	// Rename moves/renames a file. See [os.Rename].
	// Atomic on the same filesystem.
	Rename(oldpath, newpath string) error
}

// Compile-time interface check.
var _ File = (*os.File)(nil)
