package files

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested identifier has no object file.
	// Returned from Get; Delete of a nonexistent id is not an error.
	ErrNotFound = errors.New("entry not found")

	// ErrLockTimeout indicates the write lock could not be obtained within
	// the configured timeout. Only possible with locking enabled.
	ErrLockTimeout = errors.New("write lock timeout")

	// ErrNoID indicates an entry without an identifier was passed to an
	// operation that needs one. Entries without ids can only be embedded
	// inside other entries, never stored on their own.
	ErrNoID = errors.New("entry has no id")
)

// Error is the uniform error type returned by the store's public APIs.
//
// It appends the offending identifier and relative path to the underlying
// cause:
//
//	open /data/all/A1: permission denied (id=A1 path=A1)
//
// Use [errors.As] to extract the structured fields and [errors.Is] to check
// for sentinels such as [ErrNotFound]:
//
//	var sErr *files.Error
//	if errors.As(err, &sErr) {
//	    log.Printf("failed for entry %s", sErr.ID)
//	}
type Error struct {
	// ID is the entry identifier the failing operation was working on.
	ID string

	// Path is the object file's path relative to the object directory.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (id=X path=Y)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}

	var parts []string

	if e.ID != "" {
		parts = append(parts, "id="+e.ID)
	}

	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and
// [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// withContext attaches entry context at API boundaries and returns *Error.
// If err is already *Error, missing fields are filled in place.
func withContext(err error, id string, path string) error {
	if err == nil {
		return nil
	}

	existing := &Error{}
	if errors.As(err, &existing) {
		if existing.ID == "" && id != "" {
			existing.ID = id
		}

		if existing.Path == "" && path != "" {
			existing.Path = path
		}

		return existing
	}

	return &Error{ID: id, Path: path, Err: err}
}
