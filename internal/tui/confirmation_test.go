package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func press(m tea.Model, keys ...tea.KeyMsg) (ConfirmationModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(k)
	}
	return m.(ConfirmationModel), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		keys      []tea.KeyMsg
		confirmed bool
	}{
		{"enter defaults to no", []tea.KeyMsg{{Type: tea.KeyEnter}}, false},
		{"y accepts", []tea.KeyMsg{runes("y")}, true},
		{"n refuses", []tea.KeyMsg{runes("n")}, false},
		{"esc refuses", []tea.KeyMsg{{Type: tea.KeyEsc}}, false},
		{"left then enter accepts", []tea.KeyMsg{{Type: tea.KeyLeft}, {Type: tea.KeyEnter}}, true},
		{"left right enter refuses", []tea.KeyMsg{{Type: tea.KeyLeft}, {Type: tea.KeyRight}, {Type: tea.KeyEnter}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(NewConfirmationModel("Drop database", "Drop prod?"), tt.keys...)
			assert.Equal(t, tt.confirmed, m.IsConfirmed())
			if assert.NotNil(t, cmd) {
				assert.IsType(t, tea.QuitMsg{}, cmd())
			}
			assert.Empty(t, m.View())
		})
	}
}

func TestConfirmation_View(t *testing.T) {
	m := NewConfirmationModel("Drop database", "Drop prod and its file store?")
	view := m.View()
	assert.Contains(t, view, "Drop database")
	assert.Contains(t, view, "Drop prod and its file store?")
	assert.Contains(t, view, "> [No]")

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "> [Yes]")
}
