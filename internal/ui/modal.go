package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// confirmModal asks a yes/no question and runs onYes when confirmed.
type confirmModal struct {
	title  string
	detail string
	onYes  tea.Cmd
}

func newConfirmModal(title, detail string, onYes tea.Cmd) confirmModal {
	return confirmModal{title: title, detail: detail, onYes: onYes}
}

func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(km, keys.Confirm):
		return nil, c.onYes, true
	case key.Matches(km, keys.Cancel):
		return nil, nil, true
	}
	return c, nil, false
}

func (c confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	body := styles.DangerText.Render(c.title)
	if c.detail != "" {
		body += "\n\n" + styles.Text.Render(c.detail)
	}
	body += "\n\n" +
		styles.AccentText.Render("y") + styles.MutedText.Render(" confirm   ") +
		styles.AccentText.Render("n") + styles.MutedText.Render(" cancel")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Danger)).
		Padding(1, 2).
		Width(min(56, max(width-4, 20))).
		Render(body)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
