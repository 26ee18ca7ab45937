package files_test

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holophrastic/kiokudb-backend-files/pkg/files"
	"github.com/holophrastic/kiokudb-backend-files/pkg/fs"
	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

// Readers racing a writer must observe either the fully-old or fully-new
// document, never a truncated byte sequence.
func Test_Get_Racing_Insert_Never_Observes_Partial_Document(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, nil)

	oldPayload := strings.Repeat("a", 64*1024)
	newPayload := strings.Repeat("b", 64*1024)

	require.NoError(t, store.Insert(&jspon.Entry{ID: "hot", Data: oldPayload}))

	var wg sync.WaitGroup

	stop := make(chan struct{})

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}

			payload := oldPayload
			if i%2 == 1 {
				payload = newPayload
			}

			if err := store.Insert(&jspon.Entry{ID: "hot", Data: payload}); err != nil {
				t.Errorf("Insert: %v", err)

				return
			}
		}
	}()

	for range 200 {
		entry, err := store.Get("hot")
		require.NoError(t, err)

		data, ok := entry.Data.(string)
		require.True(t, ok, "data is %T, want string", entry.Data)

		if data != oldPayload && data != newPayload {
			t.Fatalf("observed torn document (len=%d)", len(data))
		}

		time.Sleep(time.Millisecond)
	}

	close(stop)
	wg.Wait()
}

func Test_Insert_Times_Out_When_Write_Lock_Is_Held(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := files.Open(files.Config{Dir: dir, LockTimeout: 100 * time.Millisecond})
	require.NoError(t, err)

	// A competing process holds the store's lock file.
	locker := fs.NewLocker(fs.NewReal())
	lock, err := locker.Lock(filepath.Join(dir, ".lock"))
	require.NoError(t, err)
	defer lock.Close()

	err = store.Insert(&jspon.Entry{ID: "X", Data: nil})
	require.ErrorIs(t, err, files.ErrLockTimeout)
}

func Test_Disabled_Locking_Never_Blocks_On_Held_Lock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := files.Open(files.Config{Dir: dir, DisableLocking: true})
	require.NoError(t, err)

	locker := fs.NewLocker(fs.NewReal())
	lock, err := locker.Lock(filepath.Join(dir, ".lock"))
	require.NoError(t, err)
	defer lock.Close()

	done := make(chan error, 1)

	go func() {
		done <- store.Insert(&jspon.Entry{ID: "X", Data: nil, Root: true})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Insert blocked with locking disabled")
	}

	root, err := store.IsRoot("X")
	require.NoError(t, err)
	require.True(t, root)
}

// failingFS injects a read failure for one path suffix. Everything else
// passes through.
type failingFS struct {
	fs.FS
	suffix string
	err    error
}

func (f *failingFS) ReadFile(path string) ([]byte, error) {
	if strings.HasSuffix(path, f.suffix) {
		return nil, f.err
	}

	return f.FS.ReadFile(path)
}

func Test_Get_Wraps_IO_Failures_With_Entry_Context(t *testing.T) {
	t.Parallel()

	injected := errors.New("disk on fire")

	store := openTestStore(t, func(cfg *files.Config) {
		cfg.FS = &failingFS{FS: fs.NewReal(), suffix: filepath.Join("all", "bad"), err: injected}
	})

	require.NoError(t, store.Insert(&jspon.Entry{ID: "bad", Data: nil}))

	_, err := store.Get("bad")
	require.ErrorIs(t, err, injected)
	require.NotErrorIs(t, err, files.ErrNotFound)

	var sErr *files.Error
	require.ErrorAs(t, err, &sErr)
	require.Equal(t, "bad", sErr.ID)
}
