package registry

import (
	"sync"

	"github.com/ldi/taskboard/pkg/models"
)

// AllAssignees is the selection that disables assignee filtering.
const AllAssignees = "ALL"

var DefaultAssignees = []models.Assignee{
	{
		ID:     "1",
		Name:   "John Smith",
		Avatar: "https://images.unsplash.com/photo-1506794778202-cad84cf45f1d?w=40&h=40&fit=crop&crop=face",
	},
	{
		ID:     "2",
		Name:   "Sarah Johnson",
		Avatar: "https://images.unsplash.com/photo-1524504388940-b1c1722653e1?w=40&h=40&fit=crop&crop=face",
	},
	{
		ID:     "3",
		Name:   "Michael Chen",
		Avatar: "https://images.unsplash.com/photo-1500648767791-00dcc994a43e?w=40&h=40&fit=crop&crop=face",
	},
	{
		ID:     "4",
		Name:   "Emily Davis",
		Avatar: "https://images.unsplash.com/photo-1531123897727-8f129e1688ce?w=40&h=40&fit=crop&crop=face",
	},
	{
		ID:     "5",
		Name:   "Alex Kumar",
		Avatar: "https://images.unsplash.com/photo-1529626455594-4ff0802cfb7e?w=40&h=40&fit=crop&crop=face",
	},
}

// Assignees is append-only. Ids are not de-duplicated; callers keep them
// unique.
type Assignees struct {
	mu        sync.RWMutex
	assignees []models.Assignee
	selected  string
}

func NewAssignees(seed ...models.Assignee) *Assignees {
	return &Assignees{
		assignees: append([]models.Assignee{}, seed...),
		selected:  AllAssignees,
	}
}

func (a *Assignees) Add(assignee models.Assignee) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assignees = append(a.assignees, assignee)
}

func (a *Assignees) List() []models.Assignee {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.Assignee(nil), a.assignees...)
}

// Find returns the first assignee with the given id. A task whose
// assigneeId does not resolve is shown as unassigned.
func (a *Assignees) Find(id string) (models.Assignee, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, as := range a.assignees {
		if as.ID == id {
			return as, true
		}
	}
	return models.Assignee{}, false
}

// SetSelected takes an assignee id or AllAssignees. An empty id means ALL.
func (a *Assignees) SetSelected(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id == "" {
		id = AllAssignees
	}
	a.selected = id
}

func (a *Assignees) Selected() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selected
}
