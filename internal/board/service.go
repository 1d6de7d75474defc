// Package board computes the column view of the task collection and exposes
// the operations the presentation layers call: create, edit, move, filter and
// selection changes. Dependencies are passed in explicitly.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/taskboard/internal/filter"
	"github.com/ldi/taskboard/internal/registry"
	"github.com/ldi/taskboard/internal/tasks"
	"github.com/ldi/taskboard/pkg/models"
)

// ErrInvalid marks input rejected by the board. Unknown task ids are not
// errors; those calls report found=false.
var ErrInvalid = errors.New("invalid input")

// Unassigned is shown for tasks without a resolvable assignee.
const Unassigned = "Unassigned"

// TaskFields are the values collected by the create form.
type TaskFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	AssigneeID  string   `json:"assigneeId"`
}

// State is a consistent read of everything a presentation layer renders.
type State struct {
	Columns          Columns           `json:"columns"`
	Filters          filter.Criteria   `json:"filters"`
	SelectedAssignee string            `json:"selectedAssignee"`
	SelectedTag      *string           `json:"selectedTag"`
	Tags             []string          `json:"tags"`
	Assignees        []models.Assignee `json:"assignees"`
}

type Service struct {
	repo      *tasks.Repository
	filters   *filter.Store
	tags      *registry.Tags
	assignees *registry.Assignees

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string

	onChangeMu sync.RWMutex
	onChange   []func(ctx context.Context, st State)
}

func NewService(repo *tasks.Repository, filters *filter.Store, tags *registry.Tags, assignees *registry.Assignees) *Service {
	s := &Service{
		repo:      repo,
		filters:   filters,
		tags:      tags,
		assignees: assignees,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     func() string { return uuid.New().String() },
	}
	repo.OnChange(func(ctx context.Context, _ []models.Task) {
		s.notify(ctx)
	})
	return s
}

// NewDefaultService wires repo to fresh filter and registry stores seeded
// with the default tags and assignees.
func NewDefaultService(repo *tasks.Repository) *Service {
	return NewService(repo, filter.NewStore(), registry.NewTags(registry.DefaultTags...), registry.NewAssignees(registry.DefaultAssignees...))
}

// OnChange registers fn to receive the new state after every task mutation
// or selection change.
func (s *Service) OnChange(fn func(ctx context.Context, st State)) {
	s.onChangeMu.Lock()
	defer s.onChangeMu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Service) notify(ctx context.Context) {
	s.onChangeMu.RLock()
	fns := append(([]func(context.Context, State))(nil), s.onChange...)
	s.onChangeMu.RUnlock()
	if len(fns) == 0 {
		return
	}

	st := s.State()
	for _, fn := range fns {
		fn(ctx, st)
	}
}

func (s *Service) query() Query {
	return Query{
		Criteria: s.filters.Criteria(),
		Assignee: s.assignees.Selected(),
	}
}

// ListTasksByColumn recomputes the filtered columns from current state.
func (s *Service) ListTasksByColumn() Columns {
	return Project(s.repo.List(), s.query())
}

// Tasks returns the unfiltered collection.
func (s *Service) Tasks() []models.Task {
	return s.repo.List()
}

func (s *Service) Task(id string) (models.Task, bool) {
	return s.repo.Get(id)
}

func (s *Service) State() State {
	q := s.query()
	st := State{
		Columns:          Project(s.repo.List(), q),
		Filters:          q.Criteria,
		SelectedAssignee: q.Assignee,
		Tags:             s.tags.List(),
		Assignees:        s.assignees.List(),
	}
	if tag, ok := s.tags.Selected(); ok {
		st.SelectedTag = &tag
	}
	return st
}

// CreateTask builds a new todo task from form fields and stores it. New tags
// are added to the tag registry.
func (s *Service) CreateTask(ctx context.Context, f TaskFields) (models.Task, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return models.Task{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}

	priority := models.PriorityMedium
	if strings.TrimSpace(f.Priority) != "" {
		p, err := models.ParsePriority(f.Priority)
		if err != nil {
			return models.Task{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		priority = p
	}

	now := s.Now()
	t := models.Task{
		ID:          s.NewID(),
		Title:       title,
		Description: f.Description,
		Status:      models.TaskStatusTodo,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     strings.TrimSpace(f.DueDate),
		Tags:        normalizeTags(f.Tags),
		AssigneeID:  strings.TrimSpace(f.AssigneeID),
	}

	s.registerTags(t.Tags)
	s.repo.Create(ctx, t)
	return t, nil
}

// EditTask merges patch over the task and stamps UpdatedAt. It reports
// found=false for an unknown id.
func (s *Service) EditTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, bool, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return models.Task{}, false, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		patch.Title = &title
	}
	if patch.Priority != nil {
		p, err := models.ParsePriority(string(*patch.Priority))
		if err != nil {
			return models.Task{}, false, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		patch.Priority = &p
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return models.Task{}, false, fmt.Errorf("%w: invalid status %q", ErrInvalid, *patch.Status)
	}
	if patch.Tags != nil {
		patch.Tags = normalizeTags(patch.Tags)
	}

	return s.update(ctx, id, patch)
}

// MoveTask changes only the status (and UpdatedAt). Dropping a card on
// another column ends up here.
func (s *Service) MoveTask(ctx context.Context, id string, status models.TaskStatus) (models.Task, bool, error) {
	if !status.Valid() {
		return models.Task{}, false, fmt.Errorf("%w: invalid status %q", ErrInvalid, status)
	}
	return s.update(ctx, id, models.TaskPatch{Status: &status})
}

func (s *Service) update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, bool, error) {
	current, ok := s.repo.Get(id)
	if !ok {
		return models.Task{}, false, nil
	}

	now := s.Now()
	// updatedAt never goes behind createdAt, even with a skewed clock.
	if now.Before(current.CreatedAt) {
		now = current.CreatedAt
	}
	patch.UpdatedAt = &now

	s.registerTags(patch.Tags)
	updated, ok := s.repo.Update(ctx, id, patch)
	return updated, ok, nil
}

// DeleteTask removes the task; an unknown id is a no-op.
func (s *Service) DeleteTask(ctx context.Context, id string) bool {
	return s.repo.Delete(ctx, id)
}

func (s *Service) SetFilter(ctx context.Context, field, value string) error {
	if err := s.filters.Set(field, value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.notify(ctx)
	return nil
}

func (s *Service) Filters() filter.Criteria {
	return s.filters.Criteria()
}

// AddTag trims label and adds it to the registry. Blank labels are ignored.
func (s *Service) AddTag(ctx context.Context, label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	if !s.tags.Add(label) {
		return false
	}
	s.notify(ctx)
	return true
}

func (s *Service) Tags() []string {
	return s.tags.List()
}

// SelectTag records the selected tag. The projection does not filter on it.
func (s *Service) SelectTag(ctx context.Context, label *string) {
	s.tags.SetSelected(label)
	s.notify(ctx)
}

// SelectAssignee takes an assignee id or registry.AllAssignees. The id is
// not checked against the registry.
func (s *Service) SelectAssignee(ctx context.Context, id string) {
	s.assignees.SetSelected(strings.TrimSpace(id))
	s.notify(ctx)
}

func (s *Service) AddAssignee(ctx context.Context, a models.Assignee) error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: assignee id and name are required", ErrInvalid)
	}
	if a.ID == registry.AllAssignees {
		return fmt.Errorf("%w: assignee id %q is reserved", ErrInvalid, a.ID)
	}
	s.assignees.Add(a)
	s.notify(ctx)
	return nil
}

func (s *Service) Assignees() []models.Assignee {
	return s.assignees.List()
}

// AssigneeName resolves a task's assignee for display.
func (s *Service) AssigneeName(id string) string {
	if id == "" {
		return Unassigned
	}
	a, ok := s.assignees.Find(id)
	if !ok {
		return Unassigned
	}
	return a.Name
}

func (s *Service) registerTags(labels []string) {
	for _, l := range labels {
		s.tags.Add(l)
	}
}

func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
