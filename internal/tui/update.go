package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"cc_chime/internal/monitor"
)

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m.updateListSizes(), nil

	case activityMsg:
		var cmd tea.Cmd
		m, cmd = m.addActivity(monitor.Activity(msg))
		return m, tea.Batch(cmd, m.waitActivityCmd())

	case feedClosedMsg:
		m.feedClosed = true
		return m, nil

	case tickMsg:
		return m.refresh(), m.tickCmd()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextView):
			m.viewMode = (m.viewMode + 1) % viewCount
			return m, nil
		case key.Matches(msg, m.keys.PrevView):
			m.viewMode = (m.viewMode + viewCount - 1) % viewCount
			return m, nil
		case key.Matches(msg, m.keys.Detail) && m.viewMode == ViewActivity:
			m.detailOpen = !m.detailOpen
			return m.updateListSizes(), nil
		}
	}

	if m.viewMode != ViewActivity {
		return m, nil
	}
	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}
