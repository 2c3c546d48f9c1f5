package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc_chime/internal/model"
)

var start = time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)

func TestRecordWithoutSessionIsIgnored(t *testing.T) {
	a := NewAggregator(nil)

	assert.Nil(t, a.Record("Bash", true, start))
	assert.False(t, a.Active())
	assert.Nil(t, a.Close(start))
}

func TestCountersStayBalanced(t *testing.T) {
	a := NewAggregator(nil)
	a.Begin("s1", start, false)

	outcomes := []bool{true, true, false, true, false, false, true, true, true}
	for i, ok := range outcomes {
		a.Record("Edit", ok, start.Add(time.Duration(i)*time.Second))
		s := a.Session()
		require.Equal(t, s.TotalCommands, s.SuccessfulCommands+s.FailedCommands)
		require.LessOrEqual(t, s.CurrentStreak, s.MaxStreak)
		if !ok {
			require.Zero(t, s.CurrentStreak)
			require.Zero(t, a.ErrorFreeRun())
		}
	}

	s := a.Session()
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.MaxStreak)
	assert.Equal(t, 9, s.ToolsUsed["Edit"])
}

func TestMilestonesCrossOnce(t *testing.T) {
	a := NewAggregator(nil)
	a.Begin("s1", start, false)

	assert.Equal(t, []string{"first_command"}, a.Record("Bash", true, start))
	for i := 0; i < 8; i++ {
		assert.Empty(t, a.Record("Bash", true, start))
	}
	assert.Equal(t, []string{"novice_coder"}, a.Record("Bash", true, start))

	s := a.Session()
	assert.Equal(t, []string{"first_command", "novice_coder"}, s.AchievementsUnlocked)
	assert.Contains(t, a.AllTime().Milestones, "novice_coder")
}

func TestMilestonesCountLifetimeCommands(t *testing.T) {
	prior := model.NewAllTimeRecord()
	prior.TotalCommands = 49
	prior.TotalSuccesses = 49
	prior.Milestones["first_command"] = "x"
	prior.Milestones["novice_coder"] = "x"
	a := NewAggregator(prior)
	a.Begin("s2", start, false)

	assert.Equal(t, []string{"apprentice_coder"}, a.Record("Read", false, start))
}

func TestCloseRollsUpSession(t *testing.T) {
	a := NewAggregator(nil)
	a.Begin("s1", start, false)
	a.Record("Read", true, start)
	a.Record("Bash", true, start)
	a.Record("Bash", false, start)
	a.Record("Read", true, start)

	end := start.Add(90 * time.Second)
	s := a.Close(end)

	require.NotNil(t, s)
	require.NotNil(t, s.EndTime)
	assert.Equal(t, end, *s.EndTime)
	assert.False(t, a.Active())

	at := a.AllTime()
	assert.Equal(t, 1, at.TotalSessions)
	assert.Equal(t, 4, at.TotalCommands)
	assert.Equal(t, 3, at.TotalSuccesses)
	assert.Equal(t, 1, at.TotalFailures)
	assert.Equal(t, 2, at.LongestStreak)
	require.NotNil(t, at.LongestStreakDate)
	assert.InDelta(t, 1.5, at.TotalTimeCodingMinutes, 1e-9)
	assert.Equal(t, map[string]int{"Read": 2, "Bash": 2}, at.ToolUsage)
	assert.Equal(t, []string{"Read", "Bash"}, at.ToolOrder)
	assert.Equal(t, "Read", at.FavoriteTool, "tie goes to the tool used first")
}

func TestCloseTwiceIsNoop(t *testing.T) {
	a := NewAggregator(nil)
	a.Begin("s1", start, false)
	a.Record("Bash", true, start)

	require.NotNil(t, a.Close(start.Add(time.Minute)))
	assert.Nil(t, a.Close(start.Add(2*time.Minute)))

	at := a.AllTime()
	assert.Equal(t, 1, at.TotalSessions)
	assert.Equal(t, 1, at.TotalCommands)
}

func TestLongestStreakDateOnlyMovesOnIncrease(t *testing.T) {
	a := NewAggregator(nil)
	a.Begin("s1", start, false)
	for i := 0; i < 4; i++ {
		a.Record("Bash", true, start)
	}
	first := start.Add(time.Minute)
	a.Close(first)

	a.Begin("s2", start.Add(time.Hour), false)
	for i := 0; i < 4; i++ {
		a.Record("Bash", true, start)
	}
	a.Close(start.Add(2 * time.Hour))

	at := a.AllTime()
	assert.Equal(t, 4, at.LongestStreak)
	assert.Equal(t, first, *at.LongestStreakDate)
}

func TestFavoriteToolFollowsUsage(t *testing.T) {
	prior := model.NewAllTimeRecord()
	prior.ToolUsage["Read"] = 5
	prior.ToolOrder = []string{"Read"}
	a := NewAggregator(prior)
	a.Begin("s1", start, false)
	for i := 0; i < 6; i++ {
		a.Record("Grep", true, start)
	}
	a.Close(start)

	assert.Equal(t, "Grep", a.AllTime().FavoriteTool)
}

func TestDistinctToolsIncludesOpenSession(t *testing.T) {
	prior := model.NewAllTimeRecord()
	prior.TotalCommands = 1
	prior.TotalSuccesses = 1
	prior.ToolUsage["Read"] = 1
	prior.ToolOrder = []string{"Read"}
	a := NewAggregator(prior)
	a.Begin("s1", start, false)
	a.Record("Read", true, start)
	a.Record("Write", true, start)

	assert.Equal(t, 2, a.DistinctTools())
	assert.Equal(t, 3, a.TotalCommands())
}

func TestContinuationIsNotAnotherSession(t *testing.T) {
	a := NewAggregator(nil)
	a.Begin("A", start, false)
	a.Record("Bash", true, start)
	first := a.Close(start.Add(time.Minute))

	a.Continue("A-2", "A", start.Add(2*time.Minute))
	assert.Equal(t, "A-2", a.SessionID())
	assert.Equal(t, "A", a.HostID())
	a.Record("Edit", true, start.Add(2*time.Minute))
	second := a.Close(start.Add(3 * time.Minute))

	assert.Equal(t, "A", first.HostID())
	assert.Equal(t, "A", second.HostID())
	assert.Equal(t, "A", second.ContinuationOf)
	all := a.AllTime()
	assert.Equal(t, 1, all.TotalSessions)
	assert.Equal(t, 2, all.TotalCommands)
}

func TestRestoreContinuesSession(t *testing.T) {
	a := NewAggregator(nil)
	a.Restore(&model.SessionRecord{
		SessionID:          "s9",
		StartTime:          start,
		TotalCommands:      4,
		SuccessfulCommands: 4,
		CurrentStreak:      4,
		MaxStreak:          4,
		ToolsUsed:          map[string]int{"Bash": 4},
	}, 4)

	a.Record("Bash", true, start)

	s := a.Session()
	assert.Equal(t, "s9", a.SessionID())
	assert.Equal(t, 5, s.CurrentStreak)
	assert.Equal(t, 5, a.ErrorFreeRun())
	assert.Equal(t, []string{"Bash"}, s.ToolOrder)
}

func TestSnapshotIsDetached(t *testing.T) {
	a := NewAggregator(nil)
	a.Begin("s1", start, true)
	a.Record("Bash", true, start)

	snap := a.Snapshot()
	snap.CurrentSession.ToolsUsed["Bash"] = 99
	snap.AllTime.Milestones["fake"] = "x"

	assert.Equal(t, 1, a.Session().ToolsUsed["Bash"])
	assert.NotContains(t, a.AllTime().Milestones, "fake")
	assert.True(t, snap.CurrentSession.Implicit)
}
