// Package stats accumulates per-session and all-time command statistics.
package stats

import (
	"time"

	"cc_chime/internal/model"
)

// Milestone is an all-time command total worth recording.
type Milestone struct {
	ID        string
	Threshold int
}

// Milestones in ascending threshold order.
var Milestones = []Milestone{
	{ID: "first_command", Threshold: 1},
	{ID: "novice_coder", Threshold: 10},
	{ID: "apprentice_coder", Threshold: 50},
	{ID: "journeyman_coder", Threshold: 100},
	{ID: "expert_coder", Threshold: 500},
	{ID: "master_coder", Threshold: 1000},
	{ID: "legendary_coder", Threshold: 5000},
}

// Aggregator owns the active session record and the all-time record.
// It is not safe for concurrent use; the engine serializes access.
type Aggregator struct {
	allTime   *model.AllTimeRecord
	session   *model.SessionRecord
	errorFree int
}

// NewAggregator wraps a loaded all-time record (a fresh one when nil).
func NewAggregator(allTime *model.AllTimeRecord) *Aggregator {
	if allTime == nil {
		allTime = model.NewAllTimeRecord()
	}
	allTime.Normalize()
	return &Aggregator{allTime: allTime}
}

// Begin opens a new session, discarding any open one. Callers close first.
func (a *Aggregator) Begin(id string, now time.Time, implicit bool) {
	a.session = &model.SessionRecord{
		Version:              model.SchemaVersion,
		SessionID:            id,
		StartTime:            now,
		ToolsUsed:            make(map[string]int),
		AchievementsUnlocked: []string{},
		Implicit:             implicit,
	}
	a.errorFree = 0
}

// Continue opens a fresh record with its own id for a host session whose
// earlier record is already finalized. It is not counted as another session.
func (a *Aggregator) Continue(id, of string, now time.Time) {
	a.Begin(id, now, false)
	a.session.ContinuationOf = of
}

// Restore reopens a session carried over from a checkpoint.
func (a *Aggregator) Restore(session *model.SessionRecord, errorFree int) {
	session.Normalize()
	if session.AchievementsUnlocked == nil {
		session.AchievementsUnlocked = []string{}
	}
	if errorFree < 0 {
		errorFree = 0
	}
	a.session = session
	a.errorFree = errorFree
}

// Active reports whether a session is open.
func (a *Aggregator) Active() bool { return a.session != nil }

// SessionID returns the open session's id, or "".
func (a *Aggregator) SessionID() string {
	if a.session == nil {
		return ""
	}
	return a.session.SessionID
}

// HostID returns the host's id for the open session, or "".
func (a *Aggregator) HostID() string {
	if a.session == nil {
		return ""
	}
	return a.session.HostID()
}

// Record applies one tool execution to the open session and returns the ids of
// milestones crossed by it. Without an open session it does nothing.
func (a *Aggregator) Record(tool string, success bool, now time.Time) []string {
	s := a.session
	if s == nil {
		return nil
	}

	s.TotalCommands++
	if success {
		s.SuccessfulCommands++
		s.CurrentStreak++
		if s.CurrentStreak > s.MaxStreak {
			s.MaxStreak = s.CurrentStreak
		}
		a.errorFree++
	} else {
		s.FailedCommands++
		s.CurrentStreak = 0
		a.errorFree = 0
	}

	if _, seen := s.ToolsUsed[tool]; !seen {
		s.ToolOrder = append(s.ToolOrder, tool)
	}
	s.ToolsUsed[tool]++

	return a.checkMilestones(now)
}

func (a *Aggregator) checkMilestones(now time.Time) []string {
	total := a.TotalCommands()
	var crossed []string
	for _, m := range Milestones {
		if total < m.Threshold {
			break
		}
		if _, done := a.allTime.Milestones[m.ID]; done {
			continue
		}
		a.allTime.Milestones[m.ID] = now.Format(model.TimeFormat)
		a.session.AchievementsUnlocked = append(a.session.AchievementsUnlocked, m.ID)
		crossed = append(crossed, m.ID)
	}
	return crossed
}

// NoteUnlock appends an achievement id to the open session's unlock list.
func (a *Aggregator) NoteUnlock(id string) {
	if a.session != nil {
		a.session.AchievementsUnlocked = append(a.session.AchievementsUnlocked, id)
	}
}

// TotalCommands counts lifetime commands including the open session.
func (a *Aggregator) TotalCommands() int {
	total := a.allTime.TotalCommands
	if a.session != nil {
		total += a.session.TotalCommands
	}
	return total
}

// DistinctTools counts lifetime distinct tools including the open session.
func (a *Aggregator) DistinctTools() int {
	n := len(a.allTime.ToolUsage)
	if a.session != nil {
		for tool := range a.session.ToolsUsed {
			if _, ok := a.allTime.ToolUsage[tool]; !ok {
				n++
			}
		}
	}
	return n
}

// ErrorFreeRun is the count of successes since the last failure in this session.
func (a *Aggregator) ErrorFreeRun() int { return a.errorFree }

// CurrentStreak returns the open session's streak, or 0.
func (a *Aggregator) CurrentStreak() int {
	if a.session == nil {
		return 0
	}
	return a.session.CurrentStreak
}

// Close finalizes the open session and folds it into the all-time record.
// It returns the finalized session, or nil when none was open.
func (a *Aggregator) Close(now time.Time) *model.SessionRecord {
	s := a.session
	if s == nil {
		return nil
	}
	a.session = nil

	end := now
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	s.EndTime = &end

	at := a.allTime
	at.Version = model.SchemaVersion
	if s.ContinuationOf == "" {
		at.TotalSessions++
	}
	at.TotalCommands += s.TotalCommands
	at.TotalSuccesses += s.SuccessfulCommands
	at.TotalFailures += s.FailedCommands
	if s.MaxStreak > at.LongestStreak {
		at.LongestStreak = s.MaxStreak
		date := end
		at.LongestStreakDate = &date
	}

	for _, tool := range s.ToolOrder {
		if _, ok := at.ToolUsage[tool]; !ok {
			at.ToolOrder = append(at.ToolOrder, tool)
		}
		at.ToolUsage[tool] += s.ToolsUsed[tool]
	}
	at.FavoriteTool = favorite(at.ToolUsage, at.ToolOrder)
	at.TotalTimeCodingMinutes += s.Duration().Minutes()

	return s
}

// favorite returns the most used tool; ties go to the tool seen first.
func favorite(usage map[string]int, order []string) string {
	best, bestCount := "", 0
	for _, tool := range order {
		if n := usage[tool]; n > bestCount {
			best, bestCount = tool, n
		}
	}
	return best
}

// Session returns a copy of the open session, or nil.
func (a *Aggregator) Session() *model.SessionRecord {
	return a.session.Clone()
}

// AllTime returns a copy of the all-time record.
func (a *Aggregator) AllTime() *model.AllTimeRecord {
	c := a.allTime.Clone()
	c.Version = model.SchemaVersion
	return c
}

// Snapshot is a point-in-time copy of both records.
type Snapshot struct {
	AllTime        *model.AllTimeRecord
	CurrentSession *model.SessionRecord
}

// Snapshot copies both records for display.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{AllTime: a.AllTime(), CurrentSession: a.Session()}
}
