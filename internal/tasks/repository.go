// Package tasks owns the task collection and mirrors it into a durable slot.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ldi/taskboard/internal/storage"
	"github.com/ldi/taskboard/pkg/models"
	log "github.com/sirupsen/logrus"
)

// DefaultKey is the slot the collection is stored under.
const DefaultKey = "tasks"

// Repository is the single writer of the task collection within a process.
// Every mutation re-serializes the whole collection into the slot before
// returning. Before mutating, the slot is reloaded if another process has
// written to it since the last read or write, so concurrent surfaces sharing
// one store do not drop each other's changes. Storage failures are logged and
// never returned; after a failed write the in-memory collection stays
// authoritative until a write succeeds again.
type Repository struct {
	mu    sync.RWMutex
	tasks []models.Task
	store storage.Store
	key   string
	log   log.FieldLogger

	// last holds the slot contents as of the last successful read or write.
	last []byte
	// dirty is set while memory holds changes the slot has not accepted.
	dirty bool

	onChangeMu sync.RWMutex
	onChange   []func(ctx context.Context, tasks []models.Task)
}

// Open rehydrates the collection from store. Missing or unreadable data
// yields an empty collection.
func Open(ctx context.Context, store storage.Store, key string, logger log.FieldLogger) *Repository {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	r := &Repository{
		store: store,
		key:   key,
		log:   logger.WithField("slot", key),
	}
	r.tasks = r.read(ctx)
	return r
}

func (r *Repository) read(ctx context.Context) []models.Task {
	data, err := r.store.Load(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.Task{}
	}
	if err != nil {
		r.log.WithError(err).Error("Error reading tasks")
		return []models.Task{}
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		r.log.WithError(err).Error("Error reading tasks")
		return []models.Task{}
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	r.last = data
	return tasks
}

// syncLocked picks up writes made to the slot by other processes. It must be
// called with mu held. Load failures keep the in-memory collection.
func (r *Repository) syncLocked(ctx context.Context) {
	if r.dirty {
		return
	}
	data, err := r.store.Load(ctx, r.key)
	if err != nil || bytes.Equal(data, r.last) {
		return
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		r.log.WithError(err).Warn("Ignoring unreadable tasks in slot")
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	r.log.Debug("Reloaded tasks changed by another process")
	r.tasks = tasks
	r.last = data
}

// write must be called with mu held.
func (r *Repository) write(ctx context.Context) {
	data, err := json.Marshal(r.tasks)
	if err != nil {
		r.log.WithError(err).Error("Error writing tasks")
		r.dirty = true
		return
	}
	if err := r.store.Save(ctx, r.key, data); err != nil {
		r.log.WithError(err).Error("Error writing tasks")
		r.dirty = true
		return
	}
	r.last = data
	r.dirty = false
}

// OnChange registers fn to run after every mutation with a copy of the
// collection.
func (r *Repository) OnChange(fn func(ctx context.Context, tasks []models.Task)) {
	r.onChangeMu.Lock()
	defer r.onChangeMu.Unlock()
	r.onChange = append(r.onChange, fn)
}

func (r *Repository) triggerChange(ctx context.Context, tasks []models.Task) {
	r.onChangeMu.RLock()
	fns := append(([]func(context.Context, []models.Task))(nil), r.onChange...)
	r.onChangeMu.RUnlock()

	for _, fn := range fns {
		fn(ctx, tasks)
	}
}

// Create appends a fully formed task.
func (r *Repository) Create(ctx context.Context, t models.Task) {
	r.mu.Lock()
	r.syncLocked(ctx)
	r.tasks = append(r.tasks, t.Clone())
	r.write(ctx)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.triggerChange(ctx, snapshot)
}

// Update merges patch over the task with the given id and reports whether it
// existed. Callers are expected to set patch.UpdatedAt.
func (r *Repository) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, bool) {
	r.mu.Lock()
	r.syncLocked(ctx)
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return models.Task{}, false
	}
	patch.Apply(&r.tasks[i])
	updated := r.tasks[i].Clone()
	r.write(ctx)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.triggerChange(ctx, snapshot)
	return updated, true
}

// Delete removes the task with the given id and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	r.syncLocked(ctx)
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	r.tasks = append(r.tasks[:i:i], r.tasks[i+1:]...)
	r.write(ctx)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.triggerChange(ctx, snapshot)
	return true
}

// Get returns a copy of the task with the given id.
func (r *Repository) Get(id string) (models.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexLocked(id)
	if i < 0 {
		return models.Task{}, false
	}
	return r.tasks[i].Clone(), true
}

// List returns a copy of the collection in insertion order.
func (r *Repository) List() []models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Repository) indexLocked(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) snapshotLocked() []models.Task {
	out := make([]models.Task, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Clone()
	}
	return out
}

// ExportSnapshot writes the collection to path as an indented JSON array.
func (r *Repository) ExportSnapshot(path string) error {
	return exportSnapshot(path, r.List())
}

func exportSnapshot(path string, tasks []models.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := storage.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// EnableAutoSnapshot exports a snapshot to path after every mutation.
// Export failures are logged and do not affect the mutation.
func (r *Repository) EnableAutoSnapshot(path string) {
	r.OnChange(func(ctx context.Context, tasks []models.Task) {
		if err := exportSnapshot(path, tasks); err != nil {
			r.log.WithError(err).WithField("path", path).Warn("Error exporting snapshot")
		}
	})
}

// ImportSnapshot appends tasks from a snapshot file written by
// ExportSnapshot, skipping ids already present. It returns the number of
// tasks added.
func (r *Repository) ImportSnapshot(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var incoming []models.Task
	if err := json.Unmarshal(data, &incoming); err != nil {
		return 0, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	r.mu.Lock()
	r.syncLocked(ctx)
	added := 0
	for _, t := range incoming {
		if t.ID == "" || r.indexLocked(t.ID) >= 0 {
			continue
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		r.tasks = append(r.tasks, t.Clone())
		added++
	}
	if added == 0 {
		r.mu.Unlock()
		return 0, nil
	}
	r.write(ctx)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.triggerChange(ctx, snapshot)
	return added, nil
}
