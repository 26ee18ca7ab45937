package fs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holophrastic/kiokudb-backend-files/pkg/fs"
)

func Test_AtomicWriter_Write_Creates_File_With_Content(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())
	path := filepath.Join(t.TempDir(), "out.json")

	err := writer.WriteWithDefaults(path, strings.NewReader(`{"data":1}`))
	if err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}
	if string(got) != `{"data":1}` {
		t.Fatalf("content=%q, want %q", got, `{"data":1}`)
	}
}

func Test_AtomicWriter_Write_Replaces_Existing_File(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())
	path := filepath.Join(t.TempDir(), "out.json")

	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("setup WriteFile(%q): %v", path, err)
	}

	err := writer.WriteWithDefaults(path, strings.NewReader("new"))
	if err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}
	if string(got) != "new" {
		t.Fatalf("content=%q, want %q", got, "new")
	}
}

func Test_AtomicWriter_Write_Leaves_No_Temp_Files_Behind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := fs.NewAtomicWriter(fs.NewReal())
	path := filepath.Join(dir, "out.json")

	err := writer.WriteWithDefaults(path, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%q): %v", dir, err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir entries=%v, want [out.json]", names)
	}
}

func Test_AtomicWriter_Write_Applies_Perm_Option(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())
	path := filepath.Join(t.TempDir(), "out.json")

	err := writer.Write(path, strings.NewReader("x"), fs.AtomicWriteOptions{SyncDir: true, Perm: 0o600})
	if err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%q): %v", path, err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm=%v, want 0600", info.Mode().Perm())
	}
}

func Test_AtomicWriter_Write_Rejects_Zero_Perm(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())
	path := filepath.Join(t.TempDir(), "out.json")

	err := writer.Write(path, strings.NewReader("x"), fs.AtomicWriteOptions{SyncDir: true})
	if err == nil {
		t.Fatalf("Write with zero Perm: want error, got nil")
	}
}
