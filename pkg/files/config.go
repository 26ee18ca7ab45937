package files

import (
	"time"

	"github.com/holophrastic/kiokudb-backend-files/pkg/fs"
)

// DefaultLockTimeout is the write lock acquisition timeout used when
// [Config.LockTimeout] is zero.
const DefaultLockTimeout = 10 * time.Second

// Config provides all settings for a file-backed entry store.
type Config struct {
	// Dir is the storage directory root. Required. The store lays out
	//
	//	<Dir>/all/       one file per entry
	//	<Dir>/root_set/  one hard link per rooted entry
	//	<Dir>/.lock      lock token file (never read for content)
	//
	// and creates missing directories on [Open].
	Dir string

	// DisableLocking turns the cross-process write lock into a no-op,
	// trading multi-process write safety for single-process throughput.
	// Locking is on by default.
	DisableLocking bool

	// Pretty switches object files to indented JSON for human
	// consumption. Affects only byte layout, never semantics.
	Pretty bool

	// LockTimeout bounds write lock acquisition. Zero means
	// [DefaultLockTimeout]. Expiry surfaces as [ErrLockTimeout].
	LockTimeout time.Duration

	// RelPathFromID maps an entry id to the file path relative to the
	// object directory. This is the extension point for sharding large
	// stores into subdirectories by id prefix; the default is the flat
	// layout ("<id>").
	//
	// The returned path must be clean, relative, must not escape the
	// store directory, and its final element must equal the id (root ids
	// are enumerated from file names). Root links mirror the same
	// relative path under root_set/.
	RelPathFromID func(id string) string

	// FS is the filesystem implementation. Defaults to [fs.NewReal].
	// Tests inject wrappers here to exercise failure paths without a real
	// filesystem.
	FS fs.FS
}
