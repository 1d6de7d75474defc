package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ldi/taskboard/pkg/models"
)

// setupProject points the CLI at a fresh project directory and captures
// its output.
func setupProject(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	for _, name := range []string{"BACKEND", "DB_PATH", "FILE_DIR", "REDIS_URL", "SLOT_KEY", "SNAPSHOT_PATH", "PORT", "LOG_LEVEL"} {
		t.Setenv("TASKBOARD_"+name, "")
	}

	dir := t.TempDir()
	projectDir = dir
	backend, dbPath, snapshotPath, logLevel, verbose = "", "", "", "error", false

	var buf bytes.Buffer
	out = &buf
	t.Cleanup(func() { out = os.Stdout })
	return dir, &buf
}

var createdID = regexp.MustCompile(`Created task (\S+)`)

func addTask(t *testing.T, buf *bytes.Buffer, args ...string) string {
	t.Helper()
	buf.Reset()
	if err := run("add", args); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	m := createdID.FindStringSubmatch(buf.String())
	if m == nil {
		t.Fatalf("add output missing id: %s", buf.String())
	}
	return m[1]
}

func TestAddAndList(t *testing.T) {
	_, buf := setupProject(t)

	addTask(t, buf, "--title", "Design dashboard", "--priority", "high", "--tags", "Design,Research", "--assignee", "1", "--due", "2025-02-01")
	id := addTask(t, buf, "--title", "Write docs")
	if err := run("move", []string{id, "IN_PROGRESS"}); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	buf.Reset()
	if err := run("list", nil); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"TODO (1)", "IN PROGRESS (1)", "DONE (0)", "Design dashboard", "John Smith", "2025-02-01", "Write docs", "Unassigned"} {
		if !strings.Contains(output, want) {
			t.Errorf("list output missing %q:\n%s", want, output)
		}
	}

	buf.Reset()
	if err := run("list", []string{"--search", "DOCS"}); err != nil {
		t.Fatalf("list --search failed: %v", err)
	}
	if strings.Contains(buf.String(), "Design dashboard") || !strings.Contains(buf.String(), "Write docs") {
		t.Errorf("search filter not applied:\n%s", buf.String())
	}

	buf.Reset()
	if err := run("list", []string{"--priority", "HIGH", "--assignee", "1"}); err != nil {
		t.Fatalf("list --priority failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Design dashboard") || strings.Contains(buf.String(), "Write docs") {
		t.Errorf("priority/assignee filter not applied:\n%s", buf.String())
	}

	if err := run("list", []string{"--status", "BLOCKED"}); err == nil {
		t.Error("expected error for unknown status filter")
	}
}

func TestAddRequiresTitle(t *testing.T) {
	setupProject(t)
	if err := run("add", []string{"--description", "no title"}); err == nil {
		t.Fatal("expected error for missing title")
	}
}

func TestMoveAndDeleteErrors(t *testing.T) {
	_, buf := setupProject(t)
	id := addTask(t, buf, "--title", "task1")

	if err := run("move", []string{id}); err == nil {
		t.Error("expected usage error")
	}
	if err := run("move", []string{id, "archived"}); err == nil {
		t.Error("expected error for invalid status")
	}
	if err := run("move", []string{"missing", "done"}); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}

	if err := run("delete", []string{id}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := run("delete", []string{id}); err == nil {
		t.Error("expected error deleting missing task")
	}
}

func TestStatus(t *testing.T) {
	_, buf := setupProject(t)
	addTask(t, buf, "--title", "one", "--priority", "High")
	id := addTask(t, buf, "--title", "two")
	if err := run("move", []string{id, "done"}); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	buf.Reset()
	if err := run("status", nil); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Total Tasks:     2", "To Do:       1", "Done:        1", "Backend:         sqlite"} {
		if !strings.Contains(output, want) {
			t.Errorf("status output missing %q:\n%s", want, output)
		}
	}
}

func TestExport(t *testing.T) {
	dir, buf := setupProject(t)
	addTask(t, buf, "--title", "one")

	path := filepath.Join(dir, "out", "tasks.json")
	if err := run("export", []string{path}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	var exported []models.Task
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("export is not a JSON array: %v", err)
	}
	if len(exported) != 1 || exported[0].Title != "one" {
		t.Errorf("unexpected export: %+v", exported)
	}
}

func TestFileBackend(t *testing.T) {
	dir, buf := setupProject(t)
	backend = "file"

	addTask(t, buf, "--title", "stored in a file")
	if _, err := os.Stat(filepath.Join(dir, ".taskboard", "slots", "tasks.json")); err != nil {
		t.Fatalf("expected slot file: %v", err)
	}

	buf.Reset()
	if err := run("list", nil); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(buf.String(), "stored in a file") {
		t.Errorf("task not rehydrated from file backend:\n%s", buf.String())
	}
}

func TestAutoSnapshotFlag(t *testing.T) {
	dir, buf := setupProject(t)
	snapshotPath = "snap/tasks.json"

	addTask(t, buf, "--title", "snapshotted")
	data, err := os.ReadFile(filepath.Join(dir, "snap", "tasks.json"))
	if err != nil {
		t.Fatalf("expected auto snapshot: %v", err)
	}
	if !strings.Contains(string(data), "snapshotted") {
		t.Errorf("snapshot missing task: %s", data)
	}
}

func TestUnknownCommand(t *testing.T) {
	setupProject(t)
	err := run("work", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown command: work") {
		t.Fatalf("expected unknown command error, got: %v", err)
	}
}
