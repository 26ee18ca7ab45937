package files

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidID indicates an identifier (or its configured path mapping)
// failed validation.
var ErrInvalidID = errors.New("invalid entry id")

// relPath maps an id through the configured layout and validates the
// result. Every operation funnels ids through here before touching disk, so
// a hostile id can never escape the store directory.
func (s *Store) relPath(id string) (string, error) {
	if id == "" {
		return "", ErrNoID
	}

	path := s.relPathFromID(id)

	if path == "" {
		return "", fmt.Errorf("%w: %q maps to an empty path", ErrInvalidID, id)
	}

	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %q maps to an absolute path", ErrInvalidID, id)
	}

	if filepath.Clean(path) != path {
		return "", fmt.Errorf("%w: %q maps to an unclean path %q", ErrInvalidID, id, path)
	}

	if path == "." || path == ".." || strings.HasPrefix(path, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q maps outside the store", ErrInvalidID, id)
	}

	// Root ids are recovered from file names during enumeration, so the
	// mapping must keep the id as the final path element.
	if filepath.Base(path) != id {
		return "", fmt.Errorf("%w: mapped path %q must end in the id %q", ErrInvalidID, path, id)
	}

	// Dot-prefixed names are reserved for temp files and skipped by scans.
	if strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q starts with a reserved dot prefix", ErrInvalidID, id)
	}

	return path, nil
}

// objectPath returns the absolute object file path for id.
func (s *Store) objectPath(id string) (string, string, error) {
	rel, err := s.relPath(id)
	if err != nil {
		return "", "", err
	}

	return filepath.Join(s.objectDir, rel), rel, nil
}

// rootPath returns the absolute root-set link path for id.
func (s *Store) rootPath(id string) (string, error) {
	rel, err := s.relPath(id)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.rootSetDir, rel), nil
}
