package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ldi/taskboard/internal/storage"
	"github.com/ldi/taskboard/pkg/models"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type failingStore struct {
	loadErr error
	saveErr error
	saves   int
}

func (s *failingStore) Load(ctx context.Context, key string) ([]byte, error) {
	return nil, s.loadErr
}

func (s *failingStore) Save(ctx context.Context, key string, data []byte) error {
	s.saves++
	return s.saveErr
}

func (s *failingStore) Close() error { return nil }

func openMemory(t *testing.T) (*Repository, storage.Store) {
	t.Helper()
	store, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger, _ := test.NewNullLogger()
	return Open(context.Background(), store, DefaultKey, logger), store
}

func sampleTask(id, title string, status models.TaskStatus) models.Task {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Task{
		ID:          id,
		Title:       title,
		Description: "desc " + title,
		Status:      status,
		Priority:    models.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     "2025-04-01",
		Tags:        []string{"Design"},
		AssigneeID:  "1",
	}
}

func stored(t *testing.T, s storage.Store) []models.Task {
	t.Helper()
	data, err := s.Load(context.Background(), DefaultKey)
	if err != nil {
		t.Fatalf("Failed to load slot: %v", err)
	}
	var out []models.Task
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Failed to decode slot: %v", err)
	}
	return out
}

func TestRepositoryCRUDRoundTrip(t *testing.T) {
	repo, store := openMemory(t)
	ctx := context.Background()

	if got := repo.List(); len(got) != 0 {
		t.Fatalf("Expected empty collection, got %d", len(got))
	}

	repo.Create(ctx, sampleTask("a", "Design dashboard", models.TaskStatusTodo))
	repo.Create(ctx, sampleTask("b", "Write docs", models.TaskStatusInProgress))
	repo.Create(ctx, sampleTask("c", "Ship it", models.TaskStatusDone))

	title := "Design the dashboard"
	if _, ok := repo.Update(ctx, "a", models.TaskPatch{Title: &title}); !ok {
		t.Fatal("Expected update to find task a")
	}
	if !repo.Delete(ctx, "b") {
		t.Fatal("Expected delete to find task b")
	}

	if !reflect.DeepEqual(repo.List(), stored(t, store)) {
		t.Errorf("In-memory collection and slot diverged:\nmem:  %+v\nslot: %+v", repo.List(), stored(t, store))
	}

	// A fresh repository over the same slot reconstructs the last state.
	logger, _ := test.NewNullLogger()
	reopened := Open(ctx, store, DefaultKey, logger)
	if !reflect.DeepEqual(repo.List(), reopened.List()) {
		t.Errorf("Rehydrated collection differs:\nwant: %+v\ngot:  %+v", repo.List(), reopened.List())
	}
	if reopened.List()[0].Title != title {
		t.Errorf("Expected updated title, got %s", reopened.List()[0].Title)
	}
}

func TestRepositoryUpdateStatusOnly(t *testing.T) {
	repo, _ := openMemory(t)
	ctx := context.Background()

	original := sampleTask("a", "Design dashboard", models.TaskStatusTodo)
	repo.Create(ctx, original)

	done := models.TaskStatusDone
	later := original.UpdatedAt.Add(time.Hour)
	updated, ok := repo.Update(ctx, "a", models.TaskPatch{Status: &done, UpdatedAt: &later})
	if !ok {
		t.Fatal("Expected task to be found")
	}

	want := original.Clone()
	want.Status = models.TaskStatusDone
	want.UpdatedAt = later
	if !reflect.DeepEqual(updated, want) {
		t.Errorf("Unexpected record after status update:\nwant: %+v\ngot:  %+v", want, updated)
	}
}

func TestRepositoryUnknownIDIsNoop(t *testing.T) {
	repo, store := openMemory(t)
	ctx := context.Background()
	repo.Create(ctx, sampleTask("a", "Design dashboard", models.TaskStatusTodo))
	before := repo.List()

	title := "x"
	if _, ok := repo.Update(ctx, "missing", models.TaskPatch{Title: &title}); ok {
		t.Error("Expected update of unknown id to report not found")
	}
	if repo.Delete(ctx, "missing") {
		t.Error("Expected delete of unknown id to report not found")
	}
	if repo.Delete(ctx, "missing") {
		t.Error("Expected repeated delete to stay a no-op")
	}

	if !reflect.DeepEqual(before, repo.List()) {
		t.Error("Collection changed after no-op operations")
	}
	if !reflect.DeepEqual(before, stored(t, store)) {
		t.Error("Slot changed after no-op operations")
	}
}

func TestRepositoryCorruptSlotDegradesToEmpty(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, DefaultKey, []byte("{not json")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	logger, hook := test.NewNullLogger()
	repo := Open(ctx, store, DefaultKey, logger)
	if len(repo.List()) != 0 {
		t.Errorf("Expected empty collection, got %d", len(repo.List()))
	}
	if hook.LastEntry() == nil || hook.LastEntry().Level != log.ErrorLevel {
		t.Error("Expected read failure to be logged at error level")
	}

	// The repository stays usable and overwrites the corrupt slot.
	repo.Create(ctx, sampleTask("a", "Recovered", models.TaskStatusTodo))
	if got := stored(t, store); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Expected slot to be rewritten, got %+v", got)
	}
}

func TestRepositoryNullSlot(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, DefaultKey, []byte("null")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	logger, _ := test.NewNullLogger()
	repo := Open(ctx, store, DefaultKey, logger)
	if repo.List() == nil || len(repo.List()) != 0 {
		t.Errorf("Expected non-nil empty collection, got %#v", repo.List())
	}
}

func TestRepositoriesSharingSlotKeepEachOthersChanges(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	open := func() *Repository {
		store, err := storage.NewFileStore(dir)
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}
		logger, _ := test.NewNullLogger()
		return Open(ctx, store, DefaultKey, logger)
	}

	// A long-running board and a one-shot command opened on the same store.
	board := open()
	cli := open()

	cli.Create(ctx, sampleTask("a", "From the command line", models.TaskStatusTodo))
	board.Create(ctx, sampleTask("b", "From the board", models.TaskStatusTodo))

	if got := open().List(); len(got) != 2 {
		t.Fatalf("Expected both tasks to survive, got %+v", got)
	}

	done := models.TaskStatusDone
	if _, ok := board.Update(ctx, "a", models.TaskPatch{Status: &done}); !ok {
		t.Fatal("Expected board to see the task created by the other process")
	}
	if !cli.Delete(ctx, "b") {
		t.Fatal("Expected command to see the task created by the board")
	}

	got := open().List()
	if len(got) != 1 || got[0].ID != "a" || got[0].Status != models.TaskStatusDone {
		t.Errorf("Expected only the updated task to remain, got %+v", got)
	}
}

func TestRepositoryStorageFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{loadErr: errors.New("disk gone"), saveErr: errors.New("quota exceeded")}

	logger, hook := test.NewNullLogger()
	repo := Open(ctx, store, DefaultKey, logger)
	if len(repo.List()) != 0 {
		t.Fatalf("Expected empty collection after load failure")
	}
	hook.Reset()

	repo.Create(ctx, sampleTask("a", "Still here", models.TaskStatusTodo))
	if store.saves != 1 {
		t.Errorf("Expected one save attempt, got %d", store.saves)
	}
	if len(hook.Entries) != 1 {
		t.Fatalf("Expected one logged write failure, got %d", len(hook.Entries))
	}
	if hook.LastEntry().Data[log.ErrorKey] == nil {
		t.Error("Expected logged entry to carry the error")
	}

	if got, ok := repo.Get("a"); !ok || got.Title != "Still here" {
		t.Errorf("Expected in-memory state to stay authoritative, got %+v", got)
	}
}

func TestRepositoryReturnsCopies(t *testing.T) {
	repo, _ := openMemory(t)
	ctx := context.Background()
	repo.Create(ctx, sampleTask("a", "Design dashboard", models.TaskStatusTodo))

	list := repo.List()
	list[0].Tags[0] = "mutated"
	list[0].Title = "mutated"

	got, _ := repo.Get("a")
	if got.Title != "Design dashboard" || got.Tags[0] != "Design" {
		t.Errorf("Repository state leaked through List: %+v", got)
	}
}

func TestRepositoryOnChange(t *testing.T) {
	repo, _ := openMemory(t)
	ctx := context.Background()

	var calls []int
	repo.OnChange(func(ctx context.Context, tasks []models.Task) {
		calls = append(calls, len(tasks))
	})

	repo.Create(ctx, sampleTask("a", "one", models.TaskStatusTodo))
	repo.Create(ctx, sampleTask("b", "two", models.TaskStatusTodo))
	repo.Delete(ctx, "missing")
	repo.Delete(ctx, "a")

	if !reflect.DeepEqual(calls, []int{1, 2, 1}) {
		t.Errorf("Unexpected change notifications: %v", calls)
	}
}

func TestAutoSnapshot(t *testing.T) {
	repo, _ := openMemory(t)
	ctx := context.Background()

	snapshotPath := filepath.Join(t.TempDir(), "export", "tasks.json")
	repo.EnableAutoSnapshot(snapshotPath)

	if _, err := os.Stat(snapshotPath); !os.IsNotExist(err) {
		t.Fatalf("Snapshot should not exist before the first mutation")
	}

	repo.Create(ctx, sampleTask("a", "one", models.TaskStatusTodo))

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		t.Fatalf("Snapshot file was not created after Create: %v", err)
	}
	var exported []models.Task
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("Snapshot is not a JSON array: %v", err)
	}
	if !reflect.DeepEqual(exported, repo.List()) {
		t.Errorf("Snapshot differs from collection")
	}
}

func TestImportSnapshot(t *testing.T) {
	src, _ := openMemory(t)
	ctx := context.Background()
	src.Create(ctx, sampleTask("a", "one", models.TaskStatusTodo))
	src.Create(ctx, sampleTask("b", "two", models.TaskStatusDone))

	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := src.ExportSnapshot(path); err != nil {
		t.Fatalf("ExportSnapshot failed: %v", err)
	}

	dst, store := openMemory(t)
	dst.Create(ctx, sampleTask("b", "already here", models.TaskStatusTodo))

	changes := 0
	dst.OnChange(func(ctx context.Context, tasks []models.Task) { changes++ })

	n, err := dst.ImportSnapshot(ctx, path)
	if err != nil {
		t.Fatalf("ImportSnapshot failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 imported task, got %d", n)
	}
	if changes != 1 {
		t.Errorf("Expected one change notification, got %d", changes)
	}

	got := dst.List()
	if len(got) != 2 || got[0].Title != "already here" || got[1].ID != "a" {
		t.Errorf("Unexpected collection after import: %+v", got)
	}
	if len(stored(t, store)) != 2 {
		t.Errorf("Expected import to be persisted")
	}

	// Re-importing adds nothing.
	if n, _ := dst.ImportSnapshot(ctx, path); n != 0 || changes != 1 {
		t.Errorf("Expected idempotent import, got %d added and %d changes", n, changes)
	}

	if _, err := dst.ImportSnapshot(ctx, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing snapshot")
	}
}
