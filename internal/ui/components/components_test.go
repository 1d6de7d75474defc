package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestColumn(t *testing.T) {
	c := NewColumn("To Do", 40)
	c.Cards = []Card{
		{Title: "Design dashboard", Priority: "High", Assignee: "John Smith", DueDate: "2025-02-01", Tags: []string{"Design"}},
		{Title: "Write docs", Priority: "Low", Assignee: "Unassigned"},
	}
	c.Selected = 1

	view := c.View()

	if !strings.Contains(view, "To Do (2)") {
		t.Errorf("expected view to contain title with count")
	}
	if !strings.Contains(view, "Design dashboard") {
		t.Errorf("expected view to contain first card")
	}
	if !strings.Contains(view, "#Design") {
		t.Errorf("expected view to contain tag")
	}
	if !strings.Contains(view, "due 2025-02-01") {
		t.Errorf("expected view to contain due date")
	}
	if !strings.Contains(view, "> ") || !strings.Contains(view, "Write docs") {
		t.Errorf("expected selected marker and second card")
	}
}

func TestColumnOrder(t *testing.T) {
	c := NewColumn("Done", 40)
	c.Cards = []Card{{Title: "first"}, {Title: "second"}, {Title: "third"}}

	view := c.View()
	a, b, d := strings.Index(view, "first"), strings.Index(view, "second"), strings.Index(view, "third")
	if a == -1 || b == -1 || d == -1 {
		t.Fatalf("expected all cards to be present")
	}
	if !(a < b && b < d) {
		t.Errorf("expected cards in given order, got indices: %d, %d, %d", a, b, d)
	}
}

func TestColumnEmptyState(t *testing.T) {
	c := NewColumn("In Progress", 40)
	view := c.View()
	if !strings.Contains(view, "No tasks") {
		t.Errorf("expected placeholder when no cards")
	}

	c.Cards = []Card{{Title: "task1", Priority: "Medium"}}
	if strings.Contains(c.View(), "No tasks") {
		t.Errorf("expected NO placeholder with cards")
	}
}

func TestColumnWidth(t *testing.T) {
	width := 24
	c := NewColumn("To Do", width)
	c.Cards = []Card{{Title: "a fairly long task title that has to wrap", Priority: "High", Assignee: "Sarah Johnson", Tags: []string{"Development", "UX/UI"}}}
	c.Selected = 0

	for _, line := range strings.Split(c.View(), "\n") {
		if line == "" {
			continue
		}
		if w := lipgloss.Width(line); w > width {
			t.Errorf("line too wide: %d > %d. Line: %q", w, width, line)
		}
	}
}
