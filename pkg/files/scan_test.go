package files_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/holophrastic/kiokudb-backend-files/pkg/files"
	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

// seedEntries inserts n entries, marking every third one as a root.
// Returns the sorted expected id and root-id sets.
func seedEntries(t *testing.T, store *files.Store, n int) (ids, rootIDs []string) {
	t.Helper()

	for i := range n {
		id := fmt.Sprintf("entry-%04d", i)
		root := i%3 == 0

		err := store.Insert(&jspon.Entry{ID: id, Data: jsonNum(i), Root: root})
		if err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}

		ids = append(ids, id)
		if root {
			rootIDs = append(rootIDs, id)
		}
	}

	sort.Strings(ids)
	sort.Strings(rootIDs)

	return ids, rootIDs
}

func jsonNum(i int) any {
	return map[string]any{"n": fmt.Sprintf("%d", i)}
}

func collectScan(t *testing.T, seq func(func(*jspon.Entry, error) bool)) []*jspon.Entry {
	t.Helper()

	var entries []*jspon.Entry

	for entry, err := range seq {
		if err != nil {
			t.Fatalf("scan yielded error: %v", err)
		}

		entries = append(entries, entry)
	}

	return entries
}

func idsOf(entries []*jspon.Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	sort.Strings(ids)

	return ids
}

func Test_All_Yields_Every_Entry_With_Root_Annotation(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, nil)

	// More entries than one scan batch, to exercise chunked reads.
	wantIDs, wantRoots := seedEntries(t, store, 300)

	entries := collectScan(t, store.All())

	if diff := cmp.Diff(wantIDs, idsOf(entries)); diff != "" {
		t.Fatalf("scanned ids mismatch (-want +got):\n%s", diff)
	}

	var gotRoots []string
	for _, e := range entries {
		if e.Root {
			gotRoots = append(gotRoots, e.ID)
		}
	}
	sort.Strings(gotRoots)

	if diff := cmp.Diff(wantRoots, gotRoots); diff != "" {
		t.Fatalf("root annotation mismatch (-want +got):\n%s", diff)
	}
}

func Test_Roots_Yields_Only_Root_Entries_With_Root_Forced(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, nil)
	_, wantRoots := seedEntries(t, store, 50)

	entries := collectScan(t, store.Roots())

	if diff := cmp.Diff(wantRoots, idsOf(entries)); diff != "" {
		t.Fatalf("root scan ids mismatch (-want +got):\n%s", diff)
	}

	for _, e := range entries {
		if !e.Root {
			t.Fatalf("root scan yielded entry %q with Root=false", e.ID)
		}
	}
}

func Test_Scans_Are_Restartable(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, nil)
	wantIDs, _ := seedEntries(t, store, 20)

	first := idsOf(collectScan(t, store.All()))
	second := idsOf(collectScan(t, store.All()))

	if diff := cmp.Diff(wantIDs, first); diff != "" {
		t.Fatalf("first pass mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second pass differs from first (-first +second):\n%s", diff)
	}
}

func Test_Scan_Stops_Early_When_Consumer_Breaks(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, nil)
	seedEntries(t, store, 20)

	var seen int
	for _, err := range store.All() {
		if err != nil {
			t.Fatalf("scan: %v", err)
		}

		seen++
		if seen == 5 {
			break
		}
	}

	if seen != 5 {
		t.Fatalf("seen=%d, want 5", seen)
	}
}

func Test_Scan_Reports_Corrupt_File_And_Continues(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, nil)
	seedEntries(t, store, 5)

	corrupt := filepath.Join(store.Dir(), "all", "broken")
	if err := os.WriteFile(corrupt, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile(broken): %v", err)
	}

	var good, bad int
	for entry, err := range store.All() {
		if err != nil {
			if !errors.Is(err, jspon.ErrMalformedDocument) {
				t.Fatalf("scan error=%v, want %v", err, jspon.ErrMalformedDocument)
			}
			bad++

			continue
		}
		_ = entry
		good++
	}

	if good != 5 || bad != 1 {
		t.Fatalf("good=%d bad=%d, want 5/1", good, bad)
	}
}

func Test_RootIDs_Lists_Root_Set_Without_Decoding(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, nil)
	_, wantRoots := seedEntries(t, store, 30)

	got, err := store.RootIDs()
	if err != nil {
		t.Fatalf("RootIDs: %v", err)
	}
	sort.Strings(got)

	if diff := cmp.Diff(wantRoots, got); diff != "" {
		t.Fatalf("RootIDs mismatch (-want +got):\n%s", diff)
	}
}

func Test_Sharded_Layout_Keeps_All_Operations_Working(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, func(cfg *files.Config) {
		cfg.RelPathFromID = func(id string) string {
			return filepath.Join(id[:1], id)
		}
	})

	wantIDs, wantRoots := seedEntries(t, store, 40)

	// Objects actually landed in prefix subdirectories.
	if _, err := os.Stat(filepath.Join(store.Dir(), "all", "e", "entry-0000")); err != nil {
		t.Fatalf("sharded object missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "root_set", "e", "entry-0000")); err != nil {
		t.Fatalf("sharded root link missing: %v", err)
	}

	if diff := cmp.Diff(wantIDs, idsOf(collectScan(t, store.All()))); diff != "" {
		t.Fatalf("sharded scan mismatch (-want +got):\n%s", diff)
	}

	rootIDs, err := store.RootIDs()
	if err != nil {
		t.Fatalf("RootIDs: %v", err)
	}
	sort.Strings(rootIDs)
	if diff := cmp.Diff(wantRoots, rootIDs); diff != "" {
		t.Fatalf("sharded RootIDs mismatch (-want +got):\n%s", diff)
	}

	got, err := store.Get("entry-0001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "entry-0001" {
		t.Fatalf("Get returned %q", got.ID)
	}

	if err := store.Delete("entry-0001"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	exists, err := store.Exists("entry-0001")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists[0] {
		t.Fatalf("Exists=true after sharded delete")
	}
}
