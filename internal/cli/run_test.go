package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI invokes Run with captured output against an isolated environment.
func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()

	env := map[string]string{"XDG_CONFIG_HOME": t.TempDir(), "HOME": t.TempDir()}

	var out, errOut bytes.Buffer

	code := Run(strings.NewReader(stdin), &out, &errOut, append([]string{"kiokufiles"}, args...), env, nil)

	return code, out.String(), errOut.String()
}

func Test_Run_Prints_Usage_When_No_Command_Given(t *testing.T) {
	t.Parallel()

	code, out, _ := runCLI(t, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(out, "Usage: kiokufiles") {
		t.Fatalf("usage not printed, got:\n%s", out)
	}
}

func Test_Run_Fails_On_Unknown_Command(t *testing.T) {
	t.Parallel()

	code, _, errOut := runCLI(t, "", "frobnicate")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(errOut, "unknown command") {
		t.Fatalf("stderr = %q, want unknown command error", errOut)
	}
}

func Test_Put_Then_Get_Round_Trips_A_Document(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	code, _, errOut := runCLI(t, `{"name": "alice", "age": 30}`, "-d", dir, "put", "user:1", "--class", "User")
	if code != 0 {
		t.Fatalf("put failed (%d): %s", code, errOut)
	}

	code, out, errOut := runCLI(t, "", "-d", dir, "get", "--compact", "user:1")
	if code != 0 {
		t.Fatalf("get failed (%d): %s", code, errOut)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("get output is not JSON: %v\n%s", err, out)
	}

	if doc["__CLASS__"] != "User" || doc["id"] != "user:1" {
		t.Fatalf("unexpected document: %v", doc)
	}
}

func Test_Put_Doc_Mode_Requires_Matching_Id(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	code, _, errOut := runCLI(t, `{"id": "other", "data": null}`, "-d", dir, "put", "--doc", "user:1")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(errOut, "does not match") {
		t.Fatalf("stderr = %q, want id mismatch error", errOut)
	}
}

func Test_Root_Flag_Adds_Entry_To_Roots_Listing(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	if code, _, errOut := runCLI(t, `1`, "-d", dir, "put", "-r", "root-entry"); code != 0 {
		t.Fatalf("put failed: %s", errOut)
	}

	if code, _, errOut := runCLI(t, `2`, "-d", dir, "put", "plain-entry"); code != 0 {
		t.Fatalf("put failed: %s", errOut)
	}

	code, out, errOut := runCLI(t, "", "-d", dir, "roots")
	if code != 0 {
		t.Fatalf("roots failed (%d): %s", code, errOut)
	}

	if strings.TrimSpace(out) != "root-entry" {
		t.Fatalf("roots = %q, want root-entry only", out)
	}
}

func Test_Ls_Lists_All_Entry_Ids(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	for _, id := range []string{"a", "b", "c"} {
		if code, _, errOut := runCLI(t, `null`, "-d", dir, "put", id); code != 0 {
			t.Fatalf("put %s failed: %s", id, errOut)
		}
	}

	code, out, errOut := runCLI(t, "", "-d", dir, "ls")
	if code != 0 {
		t.Fatalf("ls failed (%d): %s", code, errOut)
	}

	for _, id := range []string{"a", "b", "c"} {
		if !strings.Contains(out, id) {
			t.Fatalf("ls output missing %q:\n%s", id, out)
		}
	}
}

func Test_Rm_Removes_Entry_And_Get_Fails_Afterwards(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	if code, _, errOut := runCLI(t, `null`, "-d", dir, "put", "gone"); code != 0 {
		t.Fatalf("put failed: %s", errOut)
	}

	if code, _, errOut := runCLI(t, "", "-d", dir, "rm", "gone"); code != 0 {
		t.Fatalf("rm failed: %s", errOut)
	}

	code, _, errOut := runCLI(t, "", "-d", dir, "get", "gone")
	if code != 1 {
		t.Fatalf("get after rm: exit code = %d, want 1", code)
	}

	if !strings.Contains(errOut, "not found") {
		t.Fatalf("stderr = %q, want not found error", errOut)
	}
}

func Test_Clear_Requires_Force_Flag(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	if code, _, errOut := runCLI(t, `null`, "-d", dir, "put", "keep"); code != 0 {
		t.Fatalf("put failed: %s", errOut)
	}

	if code, _, _ := runCLI(t, "", "-d", dir, "clear"); code != 1 {
		t.Fatalf("clear without --force: exit code = %d, want 1", code)
	}

	if code, _, errOut := runCLI(t, "", "-d", dir, "clear", "--force"); code != 0 {
		t.Fatalf("clear --force failed: %s", errOut)
	}

	code, out, _ := runCLI(t, "", "-d", dir, "ls")
	if code != 0 || strings.TrimSpace(out) != "" {
		t.Fatalf("store not empty after clear: %q", out)
	}
}

func Test_Dump_Writes_One_Compact_Document_Per_Line(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	for _, id := range []string{"x", "y"} {
		if code, _, errOut := runCLI(t, `{"k": "v"}`, "-d", dir, "put", id); code != 0 {
			t.Fatalf("put failed: %s", errOut)
		}
	}

	outFile := filepath.Join(t.TempDir(), "dump.jsonl")

	if code, _, errOut := runCLI(t, "", "-d", dir, "dump", "-o", outFile); code != 0 {
		t.Fatalf("dump failed: %s", errOut)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("dump has %d lines, want 2:\n%s", len(lines), data)
	}

	for _, line := range lines {
		var doc map[string]any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("dump line is not JSON: %v\n%s", err, line)
		}
	}
}

func Test_Dump_Warns_And_Continues_On_Undecodable_Entry(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	if code, _, errOut := runCLI(t, `null`, "-d", dir, "put", "good"); code != 0 {
		t.Fatalf("put failed: %s", errOut)
	}

	if err := os.WriteFile(filepath.Join(dir, "all", "bad"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	code, out, errOut := runCLI(t, "", "-d", dir, "dump")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 for warnings", code)
	}

	if !strings.Contains(out, `"id":"good"`) {
		t.Fatalf("good entry missing from dump:\n%s", out)
	}

	if !strings.Contains(errOut, "warning:") {
		t.Fatalf("stderr = %q, want warning", errOut)
	}
}

func Test_Print_Config_Shows_Resolved_Store_Dir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	code, out, errOut := runCLI(t, "", "-d", dir, "print-config")
	if code != 0 {
		t.Fatalf("print-config failed (%d): %s", code, errOut)
	}

	if !strings.Contains(out, dir) {
		t.Fatalf("resolved store dir missing:\n%s", out)
	}

	if !strings.Contains(out, "(using defaults only)") {
		t.Fatalf("sources footer missing:\n%s", out)
	}
}
