package board

import (
	"strings"

	"github.com/ldi/taskboard/internal/filter"
	"github.com/ldi/taskboard/internal/registry"
	"github.com/ldi/taskboard/pkg/models"
)

// Columns is the filtered board split by status. Each column keeps the
// repository order.
type Columns struct {
	Todo       []models.Task `json:"todo"`
	InProgress []models.Task `json:"inProgress"`
	Done       []models.Task `json:"done"`
}

// Column returns the bucket for status.
func (c Columns) Column(status models.TaskStatus) []models.Task {
	switch status {
	case models.TaskStatusTodo:
		return c.Todo
	case models.TaskStatusInProgress:
		return c.InProgress
	case models.TaskStatusDone:
		return c.Done
	}
	return nil
}

func (c Columns) Len() int {
	return len(c.Todo) + len(c.InProgress) + len(c.Done)
}

// Query is everything the projection narrows on.
type Query struct {
	filter.Criteria
	Assignee string
}

// Filter applies the status, priority, assignee and search predicates in
// that order.
func Filter(tasks []models.Task, q Query) []models.Task {
	status, byStatus := q.Status.TaskStatus()
	byPriority := q.Priority != "" && q.Priority != filter.PriorityAll
	byAssignee := q.Assignee != "" && q.Assignee != registry.AllAssignees
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if byStatus && t.Status != status {
			continue
		}
		if byPriority && !q.Priority.Matches(t.Priority) {
			continue
		}
		if byAssignee && t.AssigneeID != q.Assignee {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Project filters tasks and partitions the result into columns. A task with
// a status outside the three columns is dropped.
func Project(tasks []models.Task, q Query) Columns {
	cols := Columns{
		Todo:       []models.Task{},
		InProgress: []models.Task{},
		Done:       []models.Task{},
	}
	for _, t := range Filter(tasks, q) {
		switch t.Status {
		case models.TaskStatusTodo:
			cols.Todo = append(cols.Todo, t)
		case models.TaskStatusInProgress:
			cols.InProgress = append(cols.InProgress, t)
		case models.TaskStatusDone:
			cols.Done = append(cols.Done, t)
		}
	}
	return cols
}
