package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cc_chime/internal/monitor"
	"cc_chime/internal/report"
)

// Column widths shared by the delegate and the detail panel.
const (
	timestampWidth = 8
	patternWidth   = 24
)

// eventItem wraps an Activity for the list component
type eventItem struct {
	activity monitor.Activity
}

func (i eventItem) FilterValue() string { return i.activity.Outcome.Target }
func (i eventItem) Title() string       { return i.activity.Outcome.Pattern }
func (i eventItem) Description() string { return i.activity.Outcome.Target }

// eventDelegate renders one line per tool call
type eventDelegate struct {
	theme report.Theme
	width int
}

func newEventDelegate(theme report.Theme) *eventDelegate {
	return &eventDelegate{theme: theme}
}

// SetWidth updates the width used for truncation
func (d *eventDelegate) SetWidth(w int) { d.width = w }

func (d *eventDelegate) Height() int                             { return 1 }
func (d *eventDelegate) Spacing() int                            { return 0 }
func (d *eventDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d *eventDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(eventItem)
	if !ok {
		return
	}
	o, res := i.activity.Outcome, i.activity.Result

	mark := d.theme.Good.Render("✓")
	if !o.Success {
		mark = d.theme.Bad.Render("✗")
	}
	if res.Debounced {
		mark = d.theme.Muted.Render("·")
	}

	pattern := padRight(o.Pattern, patternWidth)
	style := toolStyle(d.theme, o.ToolName, o.Pattern)
	if index == m.Index() {
		style = style.Inherit(d.theme.Selected)
	}

	cues := ""
	if len(res.Cues) > 0 {
		cues = "♪ " + strings.Join(res.Cues, ",")
	}
	used := timestampWidth + 3 + patternWidth + 2 + lipgloss.Width(cues) + 2
	target := truncate(strings.ReplaceAll(o.Target, "\n", " "), max(d.width-used, 8))

	fmt.Fprintf(w, "%s %s %s  %s  %s",
		d.theme.Muted.Render(o.Timestamp.Local().Format("15:04:05")),
		mark,
		style.Render(pattern),
		d.theme.Value.Render(padRight(target, max(d.width-used, 8))),
		d.theme.Warn.Render(cues),
	)
}

// padRight pads a string with spaces on the right to reach target width
func padRight(s string, width int) string {
	if lipgloss.Width(s) >= width {
		return truncate(s, width)
	}
	return s + strings.Repeat(" ", width-lipgloss.Width(s))
}

// truncate shortens a string to max runes with ellipsis
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
