// Package registry holds the small reference lists the board uses for input
// and filtering. Tasks refer to entries by label or id only; nothing here
// checks that a reference still resolves.
package registry

import "sync"

var DefaultTags = []string{"Design", "Development", "UX/UI", "Marketing"}

// Tags is an ordered, deduplicated set of labels plus an optional selection.
type Tags struct {
	mu       sync.RWMutex
	tags     []string
	selected *string
}

func NewTags(seed ...string) *Tags {
	t := &Tags{tags: []string{}}
	for _, s := range seed {
		t.Add(s)
	}
	return t
}

// Add inserts label unless an identical label is already present. It
// reports whether the set changed.
func (t *Tags) Add(label string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.tags {
		if existing == label {
			return false
		}
	}
	t.tags = append(t.tags, label)
	return true
}

func (t *Tags) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string{}, t.tags...)
}

func (t *Tags) Contains(label string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, existing := range t.tags {
		if existing == label {
			return true
		}
	}
	return false
}

// SetSelected replaces the selection; nil clears it.
func (t *Tags) SetSelected(label *string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if label == nil {
		t.selected = nil
		return
	}
	v := *label
	t.selected = &v
}

func (t *Tags) Selected() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.selected == nil {
		return "", false
	}
	return *t.selected, true
}
