package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("12"))

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252"))

	cardTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)

	priorityColors = map[string]lipgloss.Color{
		"High":   lipgloss.Color("196"),
		"Medium": lipgloss.Color("214"),
		"Low":    lipgloss.Color("42"),
	}
)

// Card is the display form of one task.
type Card struct {
	Title    string
	Priority string
	Assignee string
	DueDate  string
	Tags     []string
}

// Column renders one board column as a bordered box of cards.
type Column struct {
	Title    string
	Cards    []Card
	Width    int
	Focused  bool
	Selected int // -1 for none
}

func NewColumn(title string, width int) *Column {
	return &Column{
		Title:    title,
		Width:    width,
		Selected: -1,
	}
}

func (c *Column) View() string {
	style := columnStyle
	if c.Focused {
		style = focusedColumnStyle
	}

	// Border takes one cell on each side, padding another.
	boxWidth := c.Width - 2
	if boxWidth < 0 {
		boxWidth = 0
	}
	innerWidth := boxWidth - 2
	if innerWidth < 0 {
		innerWidth = 0
	}

	header := columnHeaderStyle.Render(fmt.Sprintf("%s (%d)", c.Title, len(c.Cards)))

	var body string
	if len(c.Cards) == 0 {
		body = placeholderStyle.Render("No tasks")
	} else {
		cards := make([]string, 0, len(c.Cards))
		for i, card := range c.Cards {
			cards = append(cards, c.renderCard(card, i == c.Selected, innerWidth))
		}
		body = strings.Join(cards, "\n\n")
	}

	return style.Width(boxWidth).Render(header + "\n\n" + body)
}

func (c *Column) renderCard(card Card, selected bool, width int) string {
	marker := "  "
	titleStyle := cardTitleStyle
	if selected {
		marker = "> "
		titleStyle = selectedCardTitleStyle
	}

	textWidth := width - 2
	if textWidth < 0 {
		textWidth = 0
	}

	var lines []string
	wrapped := lipgloss.NewStyle().Width(textWidth).Render(card.Title)
	for i, line := range strings.Split(wrapped, "\n") {
		prefix := "  "
		if i == 0 {
			prefix = marker
		}
		lines = append(lines, prefix+titleStyle.Render(line))
	}

	meta := []string{
		lipgloss.NewStyle().Foreground(priorityColors[card.Priority]).Render(card.Priority),
		card.Assignee,
	}
	if card.DueDate != "" {
		meta = append(meta, "due "+card.DueDate)
	}
	lines = append(lines, "  "+metaStyle.Width(textWidth).Render(strings.Join(meta, " · ")))

	if len(card.Tags) > 0 {
		tags := make([]string, len(card.Tags))
		for i, t := range card.Tags {
			tags[i] = "#" + t
		}
		lines = append(lines, "  "+tagStyle.Width(textWidth).Render(strings.Join(tags, " ")))
	}

	return strings.Join(lines, "\n")
}
