package achievement

import (
	"sort"
	"time"

	"cc_chime/internal/model"
)

// Counters is the input to one evaluation pass.
type Counters struct {
	TotalCommands int
	CurrentStreak int
	ErrorFreeRun  int
	DistinctTools int

	// Recent holds timestamps of recent events, oldest first; Now anchors the windows.
	Recent []time.Time
	Now    time.Time
}

// Unlock is an achievement that crossed its requirement during an evaluation.
type Unlock struct {
	Achievement Achievement
	Cue         string
	At          time.Time
}

// Evaluator owns achievement progress. It is not safe for concurrent use.
type Evaluator struct {
	catalog  []Achievement
	progress *model.AchievementProgressRecord
}

// NewEvaluator wraps a progress record (a fresh one when nil).
func NewEvaluator(entries []Achievement, progress *model.AchievementProgressRecord) *Evaluator {
	if entries == nil {
		entries = Catalog()
	}
	if progress == nil {
		progress = model.NewAchievementProgressRecord()
	}
	progress.Normalize()
	return &Evaluator{catalog: entries, progress: progress}
}

// Evaluate raises progress for every locked achievement and unlocks those whose
// progress meets the requirement. Collector entries are measured against the number of
// unlocked achievements and are re-checked until a pass unlocks nothing new, so a
// single call can cascade. All new unlocks are returned in catalog order per pass.
func (e *Evaluator) Evaluate(c Counters) []Unlock {
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}

	var unlocked []Unlock
	for i := range e.catalog {
		a := &e.catalog[i]
		if a.Category == CategoryCollector {
			continue
		}
		if u, ok := e.advance(a, e.counterFor(a, c, now), now); ok {
			unlocked = append(unlocked, u)
		}
	}

	for {
		count := len(e.progress.Unlocked)
		progressed := false
		for i := range e.catalog {
			a := &e.catalog[i]
			if a.Category != CategoryCollector {
				continue
			}
			if u, ok := e.advance(a, count, now); ok {
				unlocked = append(unlocked, u)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return unlocked
}

// advance applies the high-water mark and unlocks when the requirement is met.
func (e *Evaluator) advance(a *Achievement, value int, now time.Time) (Unlock, bool) {
	if _, done := e.progress.Unlocked[a.ID]; done {
		return Unlock{}, false
	}
	if value > e.progress.Progress[a.ID] {
		e.progress.Progress[a.ID] = value
	}
	if e.progress.Progress[a.ID] < a.Requirement {
		return Unlock{}, false
	}
	e.progress.Unlocked[a.ID] = now.Format(model.TimeFormat)
	return Unlock{Achievement: *a, Cue: a.Cue, At: now}, true
}

func (e *Evaluator) counterFor(a *Achievement, c Counters, now time.Time) int {
	switch a.Category {
	case CategoryMilestone:
		return c.TotalCommands
	case CategoryCombo:
		return c.CurrentStreak
	case CategoryPerfectionist:
		return c.ErrorFreeRun
	case CategoryExplorer:
		return c.DistinctTools
	case CategorySpeedrunner:
		return countWithin(c.Recent, now, a.Window)
	}
	return 0
}

func countWithin(times []time.Time, now time.Time, window time.Duration) int {
	n := 0
	for i := len(times) - 1; i >= 0; i-- {
		if now.Sub(times[i]) > window {
			break
		}
		n++
	}
	return n
}

// IsUnlocked reports whether the achievement has been unlocked.
func (e *Evaluator) IsUnlocked(id string) bool {
	_, ok := e.progress.Unlocked[id]
	return ok
}

// Progress returns the high-water progress for an achievement.
func (e *Evaluator) Progress(id string) int {
	return e.progress.Progress[id]
}

// Record returns a deep copy of the progress record for persistence.
func (e *Evaluator) Record() *model.AchievementProgressRecord {
	r := e.progress.Clone()
	r.Version = model.SchemaVersion
	return r
}

// Entry is one catalog entry with its progress.
type Entry struct {
	Achievement Achievement
	Progress    int
	Unlocked    bool
	UnlockedAt  time.Time
}

// Percent returns progress toward the requirement, capped at 100.
func (en Entry) Percent() float64 {
	if en.Achievement.Requirement <= 0 || en.Unlocked {
		return 100
	}
	p := float64(en.Progress) / float64(en.Achievement.Requirement) * 100
	if p > 100 {
		return 100
	}
	return p
}

// CategoryCount tallies one category.
type CategoryCount struct {
	Category Category
	Unlocked int
	Total    int
}

// Snapshot summarizes achievement progress for display.
type Snapshot struct {
	UnlockedCount int
	TotalCount    int
	PerCategory   []CategoryCount
	RecentUnlocks []Entry
	NextClosest   *Entry
	Entries       []Entry
}

// Percent returns the share of the catalog unlocked.
func (s Snapshot) Percent() float64 {
	if s.TotalCount == 0 {
		return 0
	}
	return float64(s.UnlockedCount) / float64(s.TotalCount) * 100
}

// Snapshot builds a display summary with at most recentLimit recent unlocks.
func (e *Evaluator) Snapshot(recentLimit int) Snapshot {
	snap := Snapshot{TotalCount: len(e.catalog)}
	counts := make(map[Category]*CategoryCount)
	for _, cat := range Categories {
		counts[cat] = &CategoryCount{Category: cat}
	}

	minRemaining := -1
	for i := range e.catalog {
		a := e.catalog[i]
		en := Entry{Achievement: a, Progress: e.progress.Progress[a.ID]}
		if date, ok := e.progress.Unlocked[a.ID]; ok {
			en.Unlocked = true
			if t, err := time.Parse(model.TimeFormat, date); err == nil {
				en.UnlockedAt = t
			}
		}
		snap.Entries = append(snap.Entries, en)

		cc, ok := counts[a.Category]
		if !ok {
			cc = &CategoryCount{Category: a.Category}
			counts[a.Category] = cc
		}
		cc.Total++
		if en.Unlocked {
			cc.Unlocked++
			snap.UnlockedCount++
			continue
		}
		remaining := a.Requirement - en.Progress
		if minRemaining < 0 || remaining < minRemaining {
			minRemaining = remaining
			closest := en
			snap.NextClosest = &closest
		}
	}

	for _, cat := range Categories {
		snap.PerCategory = append(snap.PerCategory, *counts[cat])
	}

	for _, en := range snap.Entries {
		if en.Unlocked {
			snap.RecentUnlocks = append(snap.RecentUnlocks, en)
		}
	}
	sort.SliceStable(snap.RecentUnlocks, func(i, j int) bool {
		return snap.RecentUnlocks[i].UnlockedAt.After(snap.RecentUnlocks[j].UnlockedAt)
	})
	if recentLimit >= 0 && len(snap.RecentUnlocks) > recentLimit {
		snap.RecentUnlocks = snap.RecentUnlocks[:recentLimit]
	}
	return snap
}
