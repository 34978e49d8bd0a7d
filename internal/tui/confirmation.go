// Package tui holds the terminal prompts of the command line.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("240")).Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

type confirmKeys struct {
	Left, Right, Accept, Yes, No key.Binding
}

var keys = confirmKeys{
	Left:   key.NewBinding(key.WithKeys("left", "h")),
	Right:  key.NewBinding(key.WithKeys("right", "l", "tab")),
	Accept: key.NewBinding(key.WithKeys("enter")),
	Yes:    key.NewBinding(key.WithKeys("y", "Y")),
	No:     key.NewBinding(key.WithKeys("n", "N", "q", "esc", "ctrl+c")),
}

// ConfirmationModel for yes/no confirmations. The cursor starts on No.
type ConfirmationModel struct {
	title     string
	message   string
	cursor    int
	choices   []string
	confirmed bool
	done      bool
}

func NewConfirmationModel(title, message string) ConfirmationModel {
	return ConfirmationModel{
		title:   title,
		message: message,
		cursor:  1,
		choices: []string{"Yes", "No"},
	}
}

func (m ConfirmationModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || m.done {
		return m, nil
	}

	switch {
	case key.Matches(km, keys.No):
		m.done = true
		return m, tea.Quit

	case key.Matches(km, keys.Yes):
		m.confirmed, m.done = true, true
		return m, tea.Quit

	case key.Matches(km, keys.Left):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(km, keys.Right):
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}

	case key.Matches(km, keys.Accept):
		m.confirmed, m.done = m.cursor == 0, true
		return m, tea.Quit
	}

	return m, nil
}

func (m ConfirmationModel) View() string {
	if m.done {
		return ""
	}

	var s strings.Builder
	s.WriteString(fmt.Sprintf("\n%s\n\n", titleStyle.Render(m.title)))
	s.WriteString(fmt.Sprintf("%s\n\n", m.message))

	for i, choice := range m.choices {
		if m.cursor == i {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("> [%s]", choice)))
		} else {
			s.WriteString(fmt.Sprintf("  [%s]", choice))
		}
		s.WriteString("  ")
	}

	s.WriteString("\n\n")
	s.WriteString(infoStyle.Render("←/→: Select • Enter/y: Confirm • n/ESC: Cancel"))
	s.WriteString("\n")
	return s.String()
}

func (m ConfirmationModel) IsConfirmed() bool {
	return m.confirmed
}

// Confirm runs the prompt on in/out and reports whether the user accepted
func Confirm(ctx context.Context, in io.Reader, out io.Writer, title, message string) (bool, error) {
	p := tea.NewProgram(NewConfirmationModel(title, message),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return final.(ConfirmationModel).IsConfirmed(), nil
}
