package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the UI based on the model state
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCombo())
	b.WriteString("\n")
	b.WriteString(m.renderViewTabs())
	b.WriteString("\n")

	switch m.viewMode {
	case ViewActivity:
		b.WriteString(m.renderActivity())
	case ViewAchievements:
		b.WriteString(m.render.Achievements(m.achievements))
	case ViewStats:
		b.WriteString(m.render.Stats(m.stats))
	}

	b.WriteString("\n")
	b.WriteString(m.renderNotice())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderHeader renders the title and the open session
func (m Model) renderHeader() string {
	title := m.theme.Title.Render("cc_chime")

	var status string
	switch s := m.stats.CurrentSession; {
	case s != nil:
		status = m.theme.Good.Render("● ") + m.theme.Value.Render(fmt.Sprintf("%s  %d cmds  %.0f%% ok",
			shortID(s.SessionID), s.TotalCommands, s.SuccessRate()))
	case m.feedClosed:
		status = m.theme.Bad.Render("watcher stopped")
	default:
		status = m.theme.Muted.Render("waiting for a session")
	}

	spacing := max(m.width-lipgloss.Width(title)-lipgloss.Width(status)-2, 1)
	return lipgloss.JoinHorizontal(lipgloss.Top, title, strings.Repeat(" ", spacing), status)
}

// renderCombo renders the streak against the next tier
func (m Model) renderCombo() string {
	tier := m.combo.CurrentTier
	if tier == "" {
		tier = "-"
	}
	line := fmt.Sprintf("streak %d  %s  ", m.combo.CurrentStreak, tier)
	if m.combo.NextTier == nil {
		return m.theme.Warn.Render(line) + m.theme.Muted.Render("top tier")
	}
	return m.theme.Warn.Render(line) + m.render.Bar(m.combo.Progress()) +
		m.theme.Muted.Render(fmt.Sprintf("  next %s at %d", m.combo.NextTier.Name, m.combo.NextTier.Threshold))
}

// renderViewTabs renders the tab bar for view modes
func (m Model) renderViewTabs() string {
	tabs := []struct {
		name string
		mode ViewMode
	}{
		{"Activity", ViewActivity},
		{"Achievements", ViewAchievements},
		{"Stats", ViewStats},
	}

	rendered := make([]string, len(tabs))
	for i, t := range tabs {
		if t.mode == m.viewMode {
			rendered[i] = m.theme.TabActive.Render(t.name)
		} else {
			rendered[i] = m.theme.Tab.Render(t.name)
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	gap := strings.Repeat("─", max(0, m.width-lipgloss.Width(row)-2))
	return row + m.theme.Muted.Render(gap) + "\n"
}

func (m Model) renderActivity() string {
	if len(m.events.Items()) == 0 {
		return m.theme.Muted.Render("  No tool calls yet.")
	}
	if !m.detailOpen {
		return m.events.View()
	}
	width := max(m.width-m.events.Width()-3, 20)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.events.View(),
		" ",
		m.renderDetailPanel(width, m.events.Height()),
	)
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	return m.theme.Warn.Render("★ " + m.notice)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
