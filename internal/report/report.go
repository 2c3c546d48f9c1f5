// Package report renders engine snapshots for the terminal and for Markdown
// replies shown inside Claude Code.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"cc_chime/internal/achievement"
	"cc_chime/internal/combo"
	"cc_chime/internal/config"
	"cc_chime/internal/metrics"
	"cc_chime/internal/model"
	"cc_chime/internal/stats"
)

// Format selects the output flavor.
type Format int

const (
	Terminal Format = iota // styled with lipgloss
	Markdown               // plain Markdown, no escape codes
)

// barWidth is the width of every progress bar in cells.
const barWidth = 20

// lockedShown is how many locked achievements are listed.
const lockedShown = 5

// Renderer turns snapshots into text.
type Renderer struct {
	format Format
	theme  Theme
	now    func() time.Time
}

// New creates a renderer. flavor picks the catppuccin palette for Terminal output.
func New(format Format, flavor string) *Renderer {
	return &Renderer{format: format, theme: NewTheme(flavor), now: time.Now}
}

func (r *Renderer) paint(s lipgloss.Style, text string) string {
	if r.format == Markdown {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) title(b *strings.Builder, text string) {
	if r.format == Markdown {
		fmt.Fprintf(b, "## %s\n\n", text)
		return
	}
	fmt.Fprintf(b, "%s\n\n", r.theme.Title.Render(text))
}

func (r *Renderer) section(b *strings.Builder, text string) {
	if r.format == Markdown {
		fmt.Fprintf(b, "\n**%s**\n\n", text)
		return
	}
	fmt.Fprintf(b, "\n%s\n", r.theme.Heading.Render(text))
}

func (r *Renderer) row(b *strings.Builder, label, value string) {
	if r.format == Markdown {
		fmt.Fprintf(b, "- %s: %s\n", label, value)
		return
	}
	fmt.Fprintf(b, "  %s %s\n", r.theme.Label.Render(fmt.Sprintf("%-16s", label)), r.theme.Value.Render(value))
}

// Bar draws a progress bar for frac in [0, 1].
func (r *Renderer) Bar(frac float64) string {
	frac = min(max(frac, 0), 1)
	filled := int(frac*barWidth + 0.5)
	full := strings.Repeat("█", filled)
	empty := strings.Repeat("░", barWidth-filled)
	if r.format == Markdown {
		return fmt.Sprintf("`%s%s` %.0f%%", full, empty, frac*100)
	}
	return r.theme.Bar.Render(full) + r.theme.BarEmpty.Render(empty) + r.theme.Muted.Render(fmt.Sprintf(" %.0f%%", frac*100))
}

// Minutes formats a duration in minutes as "2h 5m".
func Minutes(m float64) string {
	d := time.Duration(m * float64(time.Minute)).Round(time.Minute)
	h := int(d.Hours())
	if h == 0 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", h, int(d.Minutes())%60)
}

// Stats renders all-time and current-session statistics.
func (r *Renderer) Stats(snap stats.Snapshot) string {
	var b strings.Builder
	r.title(&b, "🎮 Coding Stats")

	a := snap.AllTime
	r.section(&b, "All time")
	r.row(&b, "Sessions", fmt.Sprint(a.TotalSessions))
	r.row(&b, "Commands", fmt.Sprintf("%d (%.1f%% success)", a.TotalCommands, a.SuccessRate()))
	streak := fmt.Sprint(a.LongestStreak)
	if a.LongestStreakDate != nil {
		streak += " on " + a.LongestStreakDate.Format("Jan 2 2006")
	}
	r.row(&b, "Longest streak", streak)
	r.row(&b, "Time coding", Minutes(a.TotalTimeCodingMinutes))
	if a.FavoriteTool != "" {
		r.row(&b, "Favorite tool", a.FavoriteTool)
	}
	r.row(&b, "Milestones", fmt.Sprintf("%d/%d", len(a.Milestones), len(stats.Milestones)))

	if top := topTools(a.ToolUsage, a.ToolOrder, 5); len(top) > 0 {
		r.section(&b, "Top tools")
		for _, t := range top {
			r.row(&b, t, fmt.Sprint(a.ToolUsage[t]))
		}
	}

	if s := snap.CurrentSession; s != nil {
		r.section(&b, "Current session")
		r.row(&b, "Session", s.SessionID)
		r.row(&b, "Commands", fmt.Sprintf("%d (%d ok, %d failed)", s.TotalCommands, s.SuccessfulCommands, s.FailedCommands))
		r.row(&b, "Streak", fmt.Sprintf("%d (max %d)", s.CurrentStreak, s.MaxStreak))
		r.row(&b, "Duration", Minutes(r.now().Sub(s.StartTime).Minutes()))
	}
	return b.String()
}

// topTools orders tools by use, earlier first use winning ties.
func topTools(usage map[string]int, order []string, n int) []string {
	tools := append([]string(nil), order...)
	sort.SliceStable(tools, func(i, j int) bool { return usage[tools[i]] > usage[tools[j]] })
	if len(tools) > n {
		tools = tools[:n]
	}
	return tools
}

// Achievements renders overall progress, unlocked entries and the nearest locked ones.
func (r *Renderer) Achievements(snap achievement.Snapshot) string {
	var b strings.Builder
	r.title(&b, fmt.Sprintf("🏆 Achievements %d/%d", snap.UnlockedCount, snap.TotalCount))
	b.WriteString(r.Bar(snap.Percent() / 100))
	b.WriteString("\n")

	r.section(&b, "Categories")
	for _, c := range snap.PerCategory {
		r.row(&b, string(c.Category), fmt.Sprintf("%d/%d", c.Unlocked, c.Total))
	}

	var unlocked, locked []achievement.Entry
	for _, en := range snap.Entries {
		if en.Unlocked {
			unlocked = append(unlocked, en)
		} else {
			locked = append(locked, en)
		}
	}

	if len(unlocked) > 0 {
		r.section(&b, "Unlocked")
		for _, en := range unlocked {
			line := fmt.Sprintf("%s %s", en.Achievement.Icon, en.Achievement.Name)
			r.item(&b, r.paint(r.theme.Good, line), en.Achievement.Description)
		}
	}

	if len(locked) > 0 {
		r.section(&b, "Locked")
		for _, en := range locked[:min(lockedShown, len(locked))] {
			name, desc := en.Achievement.Name, en.Achievement.Description
			if en.Achievement.Hidden {
				name, desc = "???", "Hidden achievement"
			}
			r.item(&b, r.paint(r.theme.Muted, "🔒 "+name), fmt.Sprintf("%s (%d/%d)", desc, en.Progress, en.Achievement.Requirement))
		}
		if rest := len(locked) - lockedShown; rest > 0 {
			r.item(&b, r.paint(r.theme.Muted, fmt.Sprintf("... and %d more", rest)), "")
		}
	}

	if n := snap.NextClosest; n != nil && !n.Achievement.Hidden {
		r.section(&b, "Next up")
		r.item(&b, n.Achievement.Icon+" "+n.Achievement.Name, r.Bar(n.Percent()/100))
	}
	return b.String()
}

func (r *Renderer) item(b *strings.Builder, head, detail string) {
	switch {
	case r.format == Markdown && detail != "":
		fmt.Fprintf(b, "- %s: %s\n", head, detail)
	case r.format == Markdown:
		fmt.Fprintf(b, "- %s\n", head)
	case detail != "":
		fmt.Fprintf(b, "  %s  %s\n", head, r.theme.Muted.Render(detail))
	default:
		fmt.Fprintf(b, "  %s\n", head)
	}
}

// Combo renders the streak and the tier ladder.
func (r *Renderer) Combo(st combo.Status, tiers []combo.Tier) string {
	var b strings.Builder
	r.title(&b, "🔥 Combo")
	r.row(&b, "Current streak", fmt.Sprint(st.CurrentStreak))
	r.row(&b, "Tier", st.CurrentTier)
	r.row(&b, "Highest streak", fmt.Sprint(st.HighestStreak))
	r.row(&b, "Tiers reached", fmt.Sprint(st.TotalTierCrossings))

	if st.NextTier != nil {
		r.section(&b, fmt.Sprintf("Next: %s at %d", st.NextTier.Name, st.NextTier.Threshold))
		b.WriteString(r.Bar(st.Progress()))
		b.WriteString("\n")
	}

	r.section(&b, "Tiers")
	for _, t := range tiers {
		mark, style := "○", r.theme.Muted
		if st.CurrentStreak >= t.Threshold {
			mark, style = "●", r.theme.Good
		}
		r.item(&b, r.paint(style, fmt.Sprintf("%s %-8s", mark, t.Name)), fmt.Sprintf("%d in a row", t.Threshold))
	}
	return b.String()
}

// History renders finalized sessions, newest first.
func (r *Renderer) History(sessions []*model.SessionRecord) string {
	var b strings.Builder
	r.title(&b, "📜 Session history")
	if len(sessions) == 0 {
		b.WriteString(r.paint(r.theme.Muted, "No finished sessions yet."))
		b.WriteString("\n")
		return b.String()
	}
	for _, s := range sessions {
		when := s.StartTime.Local().Format("Jan 2 15:04")
		detail := fmt.Sprintf("%d cmds, %.0f%% ok, max streak %d, %s",
			s.TotalCommands, s.SuccessRate(), s.MaxStreak, Minutes(s.Duration().Minutes()))
		if n := len(s.AchievementsUnlocked); n > 0 {
			detail += fmt.Sprintf(", %d unlocked", n)
		}
		r.item(&b, r.paint(r.theme.Value, when+"  "+shortID(s.SessionID)), detail)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Settings renders every setting as key = value.
func (r *Renderer) Settings(s config.Settings) string {
	var b strings.Builder
	r.title(&b, "⚙️ Settings")
	for _, key := range s.Keys() {
		v, _ := s.Get(key)
		r.row(&b, key, fmt.Sprint(v))
	}
	return b.String()
}

// Perf renders accumulated operation timings and the record cache hit rate.
func (r *Renderer) Perf(s metrics.Summary) string {
	var b strings.Builder
	r.title(&b, "⏱️ Performance")
	if s.Empty() {
		fmt.Fprintln(&b, r.paint(r.theme.Muted, "Nothing recorded yet."))
		return b.String()
	}
	r.section(&b, "Timings")
	for _, op := range s.Ops() {
		t := s.Timings[op]
		r.row(&b, op, fmt.Sprintf("%d× avg %.2fms, max %.2fms", t.Count, t.AvgMs(), t.MaxMs))
	}
	r.section(&b, "Record cache")
	r.row(&b, "Hit rate", fmt.Sprintf("%.0f%% (%d hits, %d misses)", s.HitRate()*100, s.CacheHits, s.CacheMisses))
	return b.String()
}

// Notices renders engine notices as one line each.
func (r *Renderer) Notices(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = r.paint(r.theme.Warn, l)
	}
	return strings.Join(out, "\n")
}

// Help lists the prompt commands.
func (r *Renderer) Help(prefix string) string {
	var b strings.Builder
	r.title(&b, "🎵 cc_chime")
	for _, c := range [][2]string{
		{"stats", "coding statistics"},
		{"achievements", "achievement progress"},
		{"combo", "current streak and tiers"},
		{"history", "recent finished sessions"},
		{"perf", "hook, cue and record timings"},
		{"config", "list settings"},
		{"config <key> <value>", "change a setting, e.g. sounds.combo false"},
		{"help", "this list"},
	} {
		r.item(&b, r.paint(r.theme.Value, prefix+" "+c[0]), c[1])
	}
	return b.String()
}
