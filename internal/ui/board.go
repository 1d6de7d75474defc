package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/taskboard/internal/board"
	"github.com/ldi/taskboard/internal/filter"
	"github.com/ldi/taskboard/internal/registry"
	"github.com/ldi/taskboard/internal/ui/components"
	"github.com/ldi/taskboard/pkg/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	filterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var columnTitles = map[models.TaskStatus]string{
	models.TaskStatusTodo:       "To Do",
	models.TaskStatusInProgress: "In Progress",
	models.TaskStatusDone:       "Done",
}

const defaultColumnWidth = 32

type boardMode int

const (
	modeNormal boardMode = iota
	modeSearch
	modeNew
	modeEdit
)

// boardChangedMsg is delivered when the service reports a change made
// elsewhere (HTTP, MCP).
type boardChangedMsg struct{}

// BoardModel is the interactive three-column board.
type BoardModel struct {
	ctx  context.Context
	svc  *board.Service
	keys KeyMap

	columns board.Columns
	column  int
	cursor  [3]int

	mode       boardMode
	input      textinput.Model
	prevSearch string
	editingID  string

	message  string
	width    int
	quitting bool
}

func NewBoardModel(ctx context.Context, svc *board.Service) BoardModel {
	input := textinput.New()
	input.CharLimit = 200

	m := BoardModel{
		ctx:   ctx,
		svc:   svc,
		keys:  DefaultKeyMap,
		input: input,
	}
	m.refresh()
	return m
}

func (m BoardModel) Init() tea.Cmd {
	return nil
}

func (m *BoardModel) refresh() {
	m.columns = m.svc.ListTasksByColumn()
	for i, status := range models.Statuses {
		n := len(m.columns.Column(status))
		if m.cursor[i] >= n {
			m.cursor[i] = n - 1
		}
		if m.cursor[i] < 0 {
			m.cursor[i] = 0
		}
	}
}

// SelectedTask returns the card under the cursor.
func (m BoardModel) SelectedTask() (models.Task, bool) {
	tasks := m.columns.Column(models.Statuses[m.column])
	if len(tasks) == 0 {
		return models.Task{}, false
	}
	return tasks[m.cursor[m.column]], true
}

func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case boardChangedMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m BoardModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Left):
		if m.column > 0 {
			m.column--
		}
	case key.Matches(msg, m.keys.Right):
		if m.column < len(models.Statuses)-1 {
			m.column++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor[m.column] > 0 {
			m.cursor[m.column]--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor[m.column] < len(m.columns.Column(models.Statuses[m.column]))-1 {
			m.cursor[m.column]++
		}

	case key.Matches(msg, m.keys.MovePrev):
		m.moveSelected(-1)
	case key.Matches(msg, m.keys.MoveNext):
		m.moveSelected(1)

	case key.Matches(msg, m.keys.CycleStatus):
		m.cycleStatus()
	case key.Matches(msg, m.keys.CyclePriority):
		m.cyclePriority()
	case key.Matches(msg, m.keys.CycleAssignee):
		m.cycleAssignee()

	case key.Matches(msg, m.keys.Search):
		m.prevSearch = m.svc.Filters().Search
		cmd := m.startInput(modeSearch, "search: ", m.prevSearch)
		return m, cmd

	case key.Matches(msg, m.keys.New):
		cmd := m.startInput(modeNew, "new task: ", "")
		return m, cmd

	case key.Matches(msg, m.keys.Edit):
		t, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		m.editingID = t.ID
		cmd := m.startInput(modeEdit, "title: ", t.Title)
		return m, cmd

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.SelectedTask(); ok {
			m.svc.DeleteTask(m.ctx, t.ID)
			m.refresh()
		}
	}
	return m, nil
}

func (m *BoardModel) startInput(mode boardMode, prompt, value string) tea.Cmd {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *BoardModel) endInput() {
	m.mode = modeNormal
	m.editingID = ""
	m.input.Blur()
	m.input.SetValue("")
}

func (m BoardModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.mode == modeSearch {
			m.setFilter(filter.FieldSearch, m.prevSearch)
		}
		m.endInput()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		switch m.mode {
		case modeNew:
			if _, err := m.svc.CreateTask(m.ctx, board.TaskFields{Title: m.input.Value()}); err != nil {
				m.message = err.Error()
				return m, nil
			}
		case modeEdit:
			title := m.input.Value()
			if _, _, err := m.svc.EditTask(m.ctx, m.editingID, models.TaskPatch{Title: &title}); err != nil {
				m.message = err.Error()
				return m, nil
			}
		}
		m.endInput()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.setFilter(filter.FieldSearch, m.input.Value())
	}
	return m, cmd
}

func (m *BoardModel) setFilter(field, value string) {
	if err := m.svc.SetFilter(m.ctx, field, value); err != nil {
		m.message = err.Error()
	}
	m.refresh()
}

// moveSelected moves the selected card to the neighbouring column and keeps
// it selected when it is still visible.
func (m *BoardModel) moveSelected(delta int) {
	t, ok := m.SelectedTask()
	if !ok {
		return
	}
	target := m.column + delta
	if target < 0 || target >= len(models.Statuses) {
		return
	}
	if _, _, err := m.svc.MoveTask(m.ctx, t.ID, models.Statuses[target]); err != nil {
		m.message = err.Error()
		return
	}
	m.refresh()

	for i, moved := range m.columns.Column(models.Statuses[target]) {
		if moved.ID == t.ID {
			m.column = target
			m.cursor[target] = i
			return
		}
	}
}

func (m *BoardModel) cycleStatus() {
	cur := m.svc.Filters().Status
	next := filter.StatusOptions[0]
	for i, opt := range filter.StatusOptions {
		if opt == cur {
			next = filter.StatusOptions[(i+1)%len(filter.StatusOptions)]
			break
		}
	}
	m.setFilter(filter.FieldStatus, string(next))
}

func (m *BoardModel) cyclePriority() {
	cur := m.svc.Filters().Priority
	next := filter.PriorityOptions[0]
	for i, opt := range filter.PriorityOptions {
		if opt == cur {
			next = filter.PriorityOptions[(i+1)%len(filter.PriorityOptions)]
			break
		}
	}
	m.setFilter(filter.FieldPriority, string(next))
}

func (m *BoardModel) cycleAssignee() {
	options := []string{registry.AllAssignees}
	for _, a := range m.svc.Assignees() {
		options = append(options, a.ID)
	}
	cur := m.svc.State().SelectedAssignee
	next := options[0]
	for i, id := range options {
		if id == cur {
			next = options[(i+1)%len(options)]
			break
		}
	}
	m.svc.SelectAssignee(m.ctx, next)
	m.refresh()
}

func (m BoardModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("Task Board"))
	s.WriteString("\n")
	s.WriteString(filterStyle.Render(m.filterLine()))
	s.WriteString("\n\n")

	width := defaultColumnWidth
	if m.width > 0 {
		width = m.width / len(models.Statuses)
	}

	views := make([]string, 0, len(models.Statuses))
	for i, status := range models.Statuses {
		col := components.NewColumn(columnTitles[status], width)
		col.Focused = i == m.column
		for j, t := range m.columns.Column(status) {
			col.Cards = append(col.Cards, components.Card{
				Title:    t.Title,
				Priority: string(t.Priority),
				Assignee: m.svc.AssigneeName(t.AssigneeID),
				DueDate:  t.DueDate,
				Tags:     t.Tags,
			})
			if col.Focused && j == m.cursor[i] {
				col.Selected = j
			}
		}
		views = append(views, col.View())
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, views...))
	s.WriteString("\n")

	if m.mode != modeNormal {
		s.WriteString(m.input.View())
		s.WriteString("\n")
	}
	if m.message != "" {
		s.WriteString(messageStyle.Render(m.message))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render(m.helpLine()))
	s.WriteString("\n")
	return s.String()
}

func (m BoardModel) filterLine() string {
	st := m.svc.State()
	assignee := "All"
	if st.SelectedAssignee != registry.AllAssignees {
		assignee = m.svc.AssigneeName(st.SelectedAssignee)
	}
	line := fmt.Sprintf("status: %s  priority: %s  assignee: %s", st.Filters.Status, st.Filters.Priority, assignee)
	if st.Filters.Search != "" {
		line += fmt.Sprintf("  search: %q", st.Filters.Search)
	}
	if st.SelectedTag != nil {
		line += "  tag: " + *st.SelectedTag
	}
	return line
}

func (m BoardModel) helpLine() string {
	if m.mode != modeNormal {
		return "enter confirm • esc cancel"
	}
	return renderHelp(m.keys.ShortHelp())
}

// RunBoard runs the board until the user quits. Changes made through svc by
// other surfaces in this process are picked up through the service's change
// hook. Writes from other processes become visible on the next mutation.
func RunBoard(ctx context.Context, svc *board.Service) error {
	p := tea.NewProgram(NewBoardModel(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
	svc.OnChange(func(context.Context, board.State) {
		go p.Send(boardChangedMsg{})
	})
	_, err := p.Run()
	return err
}
