package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	commandStyle  = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = commandStyle.Foreground(lipgloss.Color("12")).Bold(true)
)

const logo = `
 _            _    _                         _
| |_ __ _ ___| | _| |__   ___   __ _ _ __ __| |
| __/ _' / __| |/ / '_ \ / _ \ / _' | '__/ _' |
| || (_| \__ \   <| |_) | (_) | (_| | | | (_| |
 \__\__,_|___/_|\_\_.__/ \___/ \__,_|_|  \__,_|
`

// menuCommand is a subcommand offered when taskboard starts without one.
type menuCommand struct {
	name string
	desc string
}

var menuCommands = []menuCommand{
	{"board", "open the interactive board"},
	{"list", "print tasks grouped by column"},
	{"status", "show task counts and storage backend"},
	{"web", "serve the board over HTTP"},
	{"mcp", "serve board tools over MCP"},
	{"init", "create the board directory and config"},
}

// MenuModel picks the subcommand to run. It shares the board's key map, so
// navigation and quitting behave the same in both views.
type MenuModel struct {
	keys     KeyMap
	commands []menuCommand
	cursor   int
	selected string
	quitting bool
}

func NewMenuModel() MenuModel {
	return MenuModel{
		keys:     DefaultKeyMap,
		commands: menuCommands,
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(kmsg, m.keys.Quit), key.Matches(kmsg, m.keys.Cancel):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(kmsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(kmsg, m.keys.Down):
		if m.cursor < len(m.commands)-1 {
			m.cursor++
		}
	case key.Matches(kmsg, m.keys.Confirm):
		m.selected = m.commands[m.cursor].name
		return m, tea.Quit
	}
	return m, nil
}

func (m MenuModel) View() string {
	if m.quitting || m.selected != "" {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(logo))
	s.WriteString("\n\n")

	for i, c := range m.commands {
		line := "  " + c.name + filterStyle.Render("  "+c.desc)
		style := commandStyle
		if i == m.cursor {
			line = "> " + c.name + "  " + c.desc
			style = selectedStyle
		}
		s.WriteString(style.Render(line))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(renderHelp(m.keys.MenuHelp())))
	s.WriteString("\n")
	return s.String()
}

// Selected returns the chosen subcommand, or "" if the user quit.
func (m MenuModel) Selected() string {
	return m.selected
}

func RunMenu() (string, error) {
	finalModel, err := tea.NewProgram(NewMenuModel()).Run()
	if err != nil {
		return "", err
	}
	return finalModel.(MenuModel).Selected(), nil
}
