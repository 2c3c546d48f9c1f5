// Package model defines the records shared by the tracking engine and its stores.
package model

import (
	"sort"
	"time"
)

// SchemaVersion is written into every persisted document.
// Documents without a version field were written by older releases and load as 0.
const SchemaVersion = 1

// TimeFormat is used for every date stored as a string (milestones, unlocks).
const TimeFormat = time.RFC3339

// ToolEvent is the canonical input the engine consumes for one tool execution.
// Host adapters normalize whatever the host reports into this shape.
type ToolEvent struct {
	ToolName string
	Success  bool

	// Signature keys the debouncer. Empty means ToolName.
	Signature string

	// Cue is the adapter's own cue for this tool (e.g. a per-tool success sound).
	// It is emitted ahead of streak and achievement cues.
	Cue string
}

// Key returns the debounce signature for the event.
func (e ToolEvent) Key() string {
	if e.Signature != "" {
		return e.Signature
	}
	return e.ToolName
}

// SessionRecord holds the counters of a single coding session.
type SessionRecord struct {
	Version              int            `json:"version"`
	SessionID            string         `json:"session_id"`
	StartTime            time.Time      `json:"start_time"`
	EndTime              *time.Time     `json:"end_time,omitempty"`
	TotalCommands        int            `json:"total_commands"`
	SuccessfulCommands   int            `json:"successful_commands"`
	FailedCommands       int            `json:"failed_commands"`
	CurrentStreak        int            `json:"current_streak"`
	MaxStreak            int            `json:"max_streak"`
	ToolsUsed            map[string]int `json:"tools_used"`
	AchievementsUnlocked []string       `json:"achievements_unlocked"`

	// ToolOrder lists the session's tools in first-use order.
	ToolOrder []string `json:"tool_order,omitempty"`

	// Implicit marks sessions opened by recovery rather than a host start signal.
	Implicit bool `json:"implicit,omitempty"`

	// ContinuationOf names the host session this record continues after that
	// session's first record was already finalized.
	ContinuationOf string `json:"continuation_of,omitempty"`
}

// HostID is the id the host knows the session by.
func (s *SessionRecord) HostID() string {
	if s.ContinuationOf != "" {
		return s.ContinuationOf
	}
	return s.SessionID
}

// Normalize repairs a decoded record: nil maps, missing tool order and a
// current streak above the recorded maximum.
func (s *SessionRecord) Normalize() {
	if s.ToolsUsed == nil {
		s.ToolsUsed = make(map[string]int)
	}
	seen := make(map[string]bool, len(s.ToolOrder))
	for _, tool := range s.ToolOrder {
		seen[tool] = true
	}
	var missing []string
	for tool := range s.ToolsUsed {
		if !seen[tool] {
			missing = append(missing, tool)
		}
	}
	sort.Strings(missing)
	s.ToolOrder = append(s.ToolOrder, missing...)
	if s.CurrentStreak > s.MaxStreak {
		s.MaxStreak = s.CurrentStreak
	}
}

// SuccessRate returns the percentage of successful commands.
func (s *SessionRecord) SuccessRate() float64 {
	if s.TotalCommands == 0 {
		return 0
	}
	return float64(s.SuccessfulCommands) / float64(s.TotalCommands) * 100
}

// Duration returns the elapsed time of a finalized session, zero while open.
func (s *SessionRecord) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	d := s.EndTime.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *SessionRecord) Clone() *SessionRecord {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.ToolsUsed = cloneCounts(s.ToolsUsed)
	c.AchievementsUnlocked = append([]string(nil), s.AchievementsUnlocked...)
	c.ToolOrder = append([]string(nil), s.ToolOrder...)
	return &c
}

// AllTimeRecord accumulates statistics across every session.
type AllTimeRecord struct {
	Version                int               `json:"version"`
	TotalSessions          int               `json:"total_sessions"`
	TotalCommands          int               `json:"total_commands"`
	TotalSuccesses         int               `json:"total_successes"`
	TotalFailures          int               `json:"total_failures"`
	LongestStreak          int               `json:"longest_streak"`
	LongestStreakDate      *time.Time        `json:"longest_streak_date,omitempty"`
	TotalTimeCodingMinutes float64           `json:"total_time_coding_minutes"`
	FavoriteTool           string            `json:"favorite_tool,omitempty"`
	ToolUsage              map[string]int    `json:"tool_usage"`
	Milestones             map[string]string `json:"milestones"`

	// ToolOrder lists tools in the order they were first used.
	// JSON objects carry no order, so the favorite-tool tie-break needs this.
	ToolOrder []string `json:"tool_order"`
}

// NewAllTimeRecord returns an empty record with initialized maps.
func NewAllTimeRecord() *AllTimeRecord {
	return &AllTimeRecord{
		Version:    SchemaVersion,
		ToolUsage:  make(map[string]int),
		Milestones: make(map[string]string),
	}
}

// Normalize repairs nil maps and a missing tool order after decoding.
func (a *AllTimeRecord) Normalize() {
	if a.ToolUsage == nil {
		a.ToolUsage = make(map[string]int)
	}
	if a.Milestones == nil {
		a.Milestones = make(map[string]string)
	}
	seen := make(map[string]bool, len(a.ToolOrder))
	order := a.ToolOrder[:0]
	for _, tool := range a.ToolOrder {
		if _, ok := a.ToolUsage[tool]; ok && !seen[tool] {
			seen[tool] = true
			order = append(order, tool)
		}
	}
	// Tools missing from the order (older files) go last, sorted for determinism.
	var missing []string
	for tool := range a.ToolUsage {
		if !seen[tool] {
			missing = append(missing, tool)
		}
	}
	sort.Strings(missing)
	a.ToolOrder = append(order, missing...)
}

// SuccessRate returns the lifetime percentage of successful commands.
func (a *AllTimeRecord) SuccessRate() float64 {
	if a.TotalCommands == 0 {
		return 0
	}
	return float64(a.TotalSuccesses) / float64(a.TotalCommands) * 100
}

// Clone returns a deep copy.
func (a *AllTimeRecord) Clone() *AllTimeRecord {
	if a == nil {
		return nil
	}
	c := *a
	if a.LongestStreakDate != nil {
		d := *a.LongestStreakDate
		c.LongestStreakDate = &d
	}
	c.ToolUsage = cloneCounts(a.ToolUsage)
	c.Milestones = make(map[string]string, len(a.Milestones))
	for k, v := range a.Milestones {
		c.Milestones[k] = v
	}
	c.ToolOrder = append([]string(nil), a.ToolOrder...)
	return &c
}

// AchievementProgressRecord stores unlock dates and high-water progress per achievement.
type AchievementProgressRecord struct {
	Version  int               `json:"version"`
	Unlocked map[string]string `json:"unlocked"`
	Progress map[string]int    `json:"progress"`

	// LegacyUnlocked is the key older releases wrote unlocks under.
	LegacyUnlocked map[string]string `json:"achievements_unlocked,omitempty"`
}

// NewAchievementProgressRecord returns an empty record.
func NewAchievementProgressRecord() *AchievementProgressRecord {
	return &AchievementProgressRecord{
		Version:  SchemaVersion,
		Unlocked: make(map[string]string),
		Progress: make(map[string]int),
	}
}

// Normalize repairs nil maps and folds legacy unlock keys in.
func (p *AchievementProgressRecord) Normalize() {
	if p.Unlocked == nil {
		p.Unlocked = make(map[string]string)
	}
	if p.Progress == nil {
		p.Progress = make(map[string]int)
	}
	for id, date := range p.LegacyUnlocked {
		if _, ok := p.Unlocked[id]; !ok {
			p.Unlocked[id] = date
		}
	}
	p.LegacyUnlocked = nil
}

// Clone returns a deep copy.
func (p *AchievementProgressRecord) Clone() *AchievementProgressRecord {
	c := &AchievementProgressRecord{
		Version:  p.Version,
		Unlocked: make(map[string]string, len(p.Unlocked)),
		Progress: cloneCounts(p.Progress),
	}
	for k, v := range p.Unlocked {
		c.Unlocked[k] = v
	}
	return c
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
