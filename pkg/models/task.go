package models

import (
	"fmt"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "inProgress"
	TaskStatusDone       TaskStatus = "done"
)

// Statuses lists the board columns in display order.
var Statuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Label is the column heading for the status.
func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusTodo:
		return "Todo"
	case TaskStatusInProgress:
		return "In Progress"
	case TaskStatusDone:
		return "Done"
	}
	return string(s)
}

// ParseTaskStatus accepts the stored form ("inProgress") as well as the
// upper-case filter form ("IN_PROGRESS").
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "todo":
		return TaskStatusTodo, nil
	case "inprogress":
		return TaskStatusInProgress, nil
	case "done":
		return TaskStatusDone, nil
	}
	return "", fmt.Errorf("invalid status: %q", s)
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority is case-insensitive and returns the canonical title-cased value.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

// Task is stored exactly in this shape; the JSON field names are the
// storage layout and must not change without a coordinated reader.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DueDate     string     `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	c := t
	if t.Tags != nil {
		c.Tags = append([]string{}, t.Tags...)
	}
	return c
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
	DueDate     *string     `json:"dueDate,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	AssigneeID  *string     `json:"assigneeId,omitempty"`
}

// Apply merges p over t. ID and CreatedAt are never touched.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, p.Tags...)
	}
	if p.AssigneeID != nil {
		t.AssigneeID = *p.AssigneeID
	}
}
