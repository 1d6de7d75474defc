package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the board's key bindings.
type KeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding
	Right key.Binding

	MovePrev key.Binding // Move the selected card one column left.
	MoveNext key.Binding // Move the selected card one column right.

	CycleStatus   key.Binding
	CyclePriority key.Binding
	CycleAssignee key.Binding
	Search        key.Binding

	New    key.Binding
	Edit   key.Binding
	Delete key.Binding

	Confirm key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "prev column"),
	),
	Right: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "next column"),
	),
	MovePrev: key.NewBinding(
		key.WithKeys("<", "H"),
		key.WithHelp("<", "move left"),
	),
	MoveNext: key.NewBinding(
		key.WithKeys(">", "L"),
		key.WithHelp(">", "move right"),
	),
	CycleStatus: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "status"),
	),
	CyclePriority: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "priority"),
	),
	CycleAssignee: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "assignee"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp lists the bindings shown in the board footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Left, k.Down, k.MovePrev, k.MoveNext,
		k.CycleStatus, k.CyclePriority, k.CycleAssignee, k.Search,
		k.New, k.Edit, k.Delete, k.Quit,
	}
}

// MenuHelp lists the bindings shown under the command menu.
func (k KeyMap) MenuHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Confirm, k.Quit}
}

func renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
