// Package filter holds the board's current filter selections.
package filter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ldi/taskboard/pkg/models"
)

type Status string

const (
	StatusAll        Status = "ALL"
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

var StatusOptions = []Status{StatusAll, StatusTodo, StatusInProgress, StatusDone}

// TaskStatus maps a concrete filter value to the stored status. It reports
// false for ALL.
func (s Status) TaskStatus() (models.TaskStatus, bool) {
	switch s {
	case StatusTodo:
		return models.TaskStatusTodo, true
	case StatusInProgress:
		return models.TaskStatusInProgress, true
	case StatusDone:
		return models.TaskStatusDone, true
	}
	return "", false
}

func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, opt := range StatusOptions {
		if v == opt {
			return v, nil
		}
	}
	// Accept the stored spelling too, e.g. "inProgress".
	if ts, err := models.ParseTaskStatus(s); err == nil {
		switch ts {
		case models.TaskStatusTodo:
			return StatusTodo, nil
		case models.TaskStatusInProgress:
			return StatusInProgress, nil
		case models.TaskStatusDone:
			return StatusDone, nil
		}
	}
	return "", fmt.Errorf("invalid status filter: %q", s)
}

type Priority string

const (
	PriorityAll    Priority = "ALL"
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

var PriorityOptions = []Priority{PriorityAll, PriorityHigh, PriorityMedium, PriorityLow}

// Matches compares case-insensitively on both sides.
func (p Priority) Matches(tp models.Priority) bool {
	if p == PriorityAll {
		return true
	}
	return strings.EqualFold(string(p), strings.TrimSpace(string(tp)))
}

func ParsePriority(s string) (Priority, error) {
	v := Priority(strings.ToUpper(strings.TrimSpace(s)))
	for _, opt := range PriorityOptions {
		if v == opt {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid priority filter: %q", s)
}

// Field names accepted by Store.Set.
const (
	FieldStatus   = "status"
	FieldPriority = "priority"
	FieldSearch   = "search"
)

type Criteria struct {
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	Search   string   `json:"search"`
}

// DefaultCriteria opens the board on the To Do column.
func DefaultCriteria() Criteria {
	return Criteria{
		Status:   StatusTodo,
		Priority: PriorityAll,
	}
}

// Store is a plain holder of the current criteria. Nothing is derived or
// cached here.
type Store struct {
	mu       sync.RWMutex
	criteria Criteria
}

func NewStore() *Store {
	return &Store{criteria: DefaultCriteria()}
}

func (s *Store) Criteria() Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

func (s *Store) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Status = status
}

func (s *Store) SetPriority(priority Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Priority = priority
}

func (s *Store) SetSearch(search string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Search = search
}

// Set parses value for the named field and applies it.
func (s *Store) Set(field, value string) error {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldStatus:
		v, err := ParseStatus(value)
		if err != nil {
			return err
		}
		s.SetStatus(v)
	case FieldPriority:
		v, err := ParsePriority(value)
		if err != nil {
			return err
		}
		s.SetPriority(v)
	case FieldSearch:
		s.SetSearch(value)
	default:
		return fmt.Errorf("unknown filter field: %q", field)
	}
	return nil
}
