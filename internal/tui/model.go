// Package tui is the live dashboard shown by `cc_chime watch`.
package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"cc_chime/internal/achievement"
	"cc_chime/internal/combo"
	"cc_chime/internal/engine"
	"cc_chime/internal/monitor"
	"cc_chime/internal/report"
	"cc_chime/internal/stats"
)

// ViewMode represents the current view
type ViewMode int

const (
	ViewActivity     ViewMode = iota // Tool calls as they happen
	ViewAchievements                 // Achievement progress
	ViewStats                        // All-time and session stats
	viewCount
)

// maxEvents bounds the activity list.
const maxEvents = 200

// refreshInterval re-reads engine snapshots so durations keep moving while idle.
const refreshInterval = 5 * time.Second

// Model represents the application state
type Model struct {
	engine *engine.Engine
	feed   <-chan monitor.Activity
	render *report.Renderer
	theme  report.Theme
	keys   keyMap
	help   help.Model

	viewMode   ViewMode
	events     list.Model
	delegate   *eventDelegate
	detailOpen bool

	// Snapshots refreshed on every activity and tick.
	stats        stats.Snapshot
	combo        combo.Status
	achievements achievement.Snapshot

	// notice holds the latest engine notices, shown until the next ones.
	notice     string
	feedClosed bool

	width  int
	height int
}

// NewModel creates a dashboard over e, fed by a monitor's activity channel.
func NewModel(e *engine.Engine, feed <-chan monitor.Activity, flavor string) Model {
	theme := report.NewTheme(flavor)
	delegate := newEventDelegate(theme)

	m := Model{
		engine:   e,
		feed:     feed,
		render:   report.New(report.Terminal, flavor),
		theme:    theme,
		keys:     newKeyMap(),
		help:     help.New(),
		viewMode: ViewActivity,
		delegate: delegate,
	}
	m.help.Styles.ShortKey = theme.Label
	m.help.Styles.ShortDesc = theme.Muted
	m.help.Styles.ShortSeparator = theme.Muted

	m.events = list.New([]list.Item{}, delegate, 0, 0)
	m.events.SetShowTitle(false)
	m.events.SetShowHelp(false)
	m.events.SetShowStatusBar(false)
	m.events.SetFilteringEnabled(false)
	m.events.DisableQuitKeybindings()

	return m.refresh()
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitActivityCmd(),
		m.tickCmd(),
	)
}

// Message types
type (
	activityMsg   monitor.Activity
	feedClosedMsg struct{}
	tickMsg       time.Time
)

// waitActivityCmd waits for the next processed tool call
func (m Model) waitActivityCmd() tea.Cmd {
	return func() tea.Msg {
		a, ok := <-m.feed
		if !ok {
			return feedClosedMsg{}
		}
		return activityMsg(a)
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh copies the engine's current snapshots into the model
func (m Model) refresh() Model {
	m.stats = m.engine.StatsSnapshot()
	m.combo = m.engine.ComboSnapshot()
	m.achievements = m.engine.AchievementSnapshot(5)
	return m
}

// addActivity puts a on top of the list, keeping the selection on the newest
// entry if the user was following it.
func (m Model) addActivity(a monitor.Activity) (Model, tea.Cmd) {
	followTail := m.events.Index() == 0

	items := append([]list.Item{eventItem{activity: a}}, m.events.Items()...)
	if len(items) > maxEvents {
		items = items[:maxEvents]
	}
	cmd := m.events.SetItems(items)
	if followTail {
		m.events.Select(0)
	} else {
		m.events.Select(min(m.events.Index()+1, len(items)-1))
	}

	if len(a.Result.Notices) > 0 {
		m.notice = strings.Join(a.Result.Notices, "  ·  ")
	}
	return m.refresh(), cmd
}

// updateListSizes updates list dimensions based on terminal size
func (m Model) updateListSizes() Model {
	// Reserve space for header (1), combo bar (1), tabs (2), notice (1), help (2)
	listHeight := max(m.height-7, 5)
	listWidth := max(m.width-2, 20)
	if m.detailOpen {
		listWidth = listWidth * 3 / 5
	}
	m.delegate.SetWidth(listWidth)
	m.events.SetSize(listWidth, listHeight)
	return m
}

// Selected returns the highlighted activity, if any.
func (m Model) Selected() (monitor.Activity, bool) {
	item, ok := m.events.SelectedItem().(eventItem)
	if !ok {
		return monitor.Activity{}, false
	}
	return item.activity, true
}
