package report

import (
	"strings"
	"testing"
	"time"

	catppuccin "github.com/catppuccin/go"
	"github.com/stretchr/testify/assert"

	"cc_chime/internal/achievement"
	"cc_chime/internal/combo"
	"cc_chime/internal/config"
	"cc_chime/internal/metrics"
	"cc_chime/internal/model"
	"cc_chime/internal/stats"
)

func markdown() *Renderer {
	r := New(Markdown, "mocha")
	r.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestBar(t *testing.T) {
	r := markdown()

	assert.Equal(t, "`██████████░░░░░░░░░░` 50%", r.Bar(0.5))
	assert.Equal(t, "`░░░░░░░░░░░░░░░░░░░░` 0%", r.Bar(-1))
	assert.Equal(t, "`████████████████████` 100%", r.Bar(3))
}

func TestMinutes(t *testing.T) {
	assert.Equal(t, "0m", Minutes(0))
	assert.Equal(t, "45m", Minutes(45))
	assert.Equal(t, "2h 5m", Minutes(125))
}

func TestStats(t *testing.T) {
	a := model.NewAllTimeRecord()
	a.TotalSessions = 3
	a.TotalCommands = 20
	a.TotalSuccesses = 19
	a.TotalFailures = 1
	a.ToolUsage = map[string]int{"Read": 5, "Bash": 12, "Edit": 3}
	a.ToolOrder = []string{"Read", "Bash", "Edit"}
	a.FavoriteTool = "Bash"
	a.Milestones["first_command"] = "2026-03-01T10:00:00Z"
	session := &model.SessionRecord{
		SessionID:     "s1",
		StartTime:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		TotalCommands: 4, SuccessfulCommands: 3, FailedCommands: 1,
		CurrentStreak: 2, MaxStreak: 3,
	}

	out := markdown().Stats(stats.Snapshot{AllTime: a, CurrentSession: session})

	assert.Contains(t, out, "- Commands: 20 (95.0% success)")
	assert.Contains(t, out, "- Favorite tool: Bash")
	assert.Contains(t, out, "- Milestones: 1/7")
	assert.Contains(t, out, "- Duration: 30m")
	assert.Less(t, strings.Index(out, "- Bash: 12"), strings.Index(out, "- Read: 5"), "tools ordered by use")
	assert.NotContains(t, out, "\x1b[", "markdown output carries no escape codes")
}

func TestStatsWithoutSession(t *testing.T) {
	out := markdown().Stats(stats.Snapshot{AllTime: model.NewAllTimeRecord()})

	assert.NotContains(t, out, "Current session")
	assert.NotContains(t, out, "Top tools")
}

func TestAchievementsHidesSecrets(t *testing.T) {
	progress := model.NewAchievementProgressRecord()
	ev := achievement.NewEvaluator([]achievement.Achievement{
		{ID: "a", Name: "Alpha", Description: "first", Category: achievement.CategoryMilestone, Icon: "A", Requirement: 1},
		{ID: "b", Name: "Beta", Description: "second", Category: achievement.CategoryMilestone, Icon: "B", Requirement: 10},
		{ID: "c", Name: "Gamma", Description: "secret", Category: achievement.CategoryMilestone, Icon: "C", Requirement: 50, Hidden: true},
	}, progress)
	ev.Evaluate(achievement.Counters{TotalCommands: 2, Now: time.Now()})

	out := markdown().Achievements(ev.Snapshot(5))

	assert.Contains(t, out, "## 🏆 Achievements 1/3")
	assert.Contains(t, out, "- A Alpha: first")
	assert.Contains(t, out, "- 🔒 Beta: second (2/10)")
	assert.Contains(t, out, "- 🔒 ???: Hidden achievement (2/50)")
	assert.NotContains(t, out, "Gamma")
}

func TestAchievementsTruncatesLocked(t *testing.T) {
	ev := achievement.NewEvaluator(nil, model.NewAchievementProgressRecord())

	out := markdown().Achievements(ev.Snapshot(5))

	assert.Contains(t, out, "... and 18 more")
}

func TestCombo(t *testing.T) {
	tr := combo.NewTracker(nil)
	for range 4 {
		tr.Record(true)
	}

	out := markdown().Combo(tr.Status(), tr.Tiers())

	assert.Contains(t, out, "- Current streak: 4")
	assert.Contains(t, out, "- Tier: BRONZE")
	assert.Contains(t, out, "**Next: SILVER at 5**")
	assert.Contains(t, out, "- ● BRONZE  : 3 in a row")
	assert.Contains(t, out, "- ○ SILVER  : 5 in a row")
}

func TestHistory(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)
	end := start.Add(90 * time.Minute)
	out := markdown().History([]*model.SessionRecord{{
		SessionID: "0123456789abcdef", StartTime: start, EndTime: &end,
		TotalCommands: 10, SuccessfulCommands: 9, FailedCommands: 1, MaxStreak: 6,
		AchievementsUnlocked: []string{"first_step"},
	}})

	assert.Contains(t, out, "Mar 14 09:00  01234567")
	assert.Contains(t, out, "10 cmds, 90% ok, max streak 6, 1h 30m, 1 unlocked")

	assert.Contains(t, markdown().History(nil), "No finished sessions yet.")
}

func TestSettings(t *testing.T) {
	out := markdown().Settings(config.DefaultSettings())

	assert.Contains(t, out, "- sounds.enabled: true")
	assert.Contains(t, out, "- volume: 100")
}

func TestPerf(t *testing.T) {
	r := markdown()
	assert.Contains(t, r.Perf(metrics.NewSummary()), "Nothing recorded yet.")

	s := metrics.NewSummary()
	s.Timings[metrics.OpWrite] = metrics.Timing{Count: 4, TotalMs: 10, MaxMs: 6}
	s.Timings[metrics.OpCue] = metrics.Timing{Count: 1, TotalMs: 2, MaxMs: 2}
	s.CacheHits = 9
	s.CacheMisses = 1
	out := r.Perf(s)

	assert.Contains(t, out, "- store.write: 4× avg 2.50ms, max 6.00ms")
	assert.Less(t, strings.Index(out, "- cue:"), strings.Index(out, "- store.write:"))
	assert.Contains(t, out, "90% (9 hits, 1 misses)")
}

func TestTerminalIsStyled(t *testing.T) {
	r := New(Terminal, "latte")

	out := r.Help("@chime")

	assert.Contains(t, out, "@chime stats")
	assert.Contains(t, out, "cc_chime")
}

func TestFlavor(t *testing.T) {
	assert.Equal(t, catppuccin.Latte, Flavor("LATTE"))
	assert.Equal(t, catppuccin.Mocha, Flavor("unknown"))
}
