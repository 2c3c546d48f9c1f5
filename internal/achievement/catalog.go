// Package achievement evaluates counters against a fixed catalog of unlockable achievements.
package achievement

import "time"

// Category selects which counter an achievement is measured against.
type Category string

const (
	CategoryMilestone     Category = "milestone"     // lifetime command count
	CategoryCombo         Category = "combo"         // current streak
	CategoryExplorer      Category = "explorer"      // distinct tools used
	CategoryPerfectionist Category = "perfectionist" // error-free run
	CategorySpeedrunner   Category = "speedrunner"   // commands inside a time window
	CategoryCollector     Category = "collector"     // achievements already unlocked
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryMilestone,
	CategoryCombo,
	CategoryExplorer,
	CategoryPerfectionist,
	CategorySpeedrunner,
	CategoryCollector,
}

// Achievement is one catalog entry.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Cue         string
	Icon        string
	Requirement int
	Hidden      bool

	// Window bounds speedrunner entries: Requirement commands within Window.
	Window time.Duration
}

// Catalog is immutable after package init.
var catalog = []Achievement{
	{ID: "first_step", Name: "First Steps", Description: "Execute your first command", Category: CategoryMilestone, Cue: "item_small", Icon: "👶", Requirement: 1},
	{ID: "apprentice", Name: "Apprentice Coder", Description: "Execute 10 commands", Category: CategoryMilestone, Cue: "heart_get", Icon: "📚", Requirement: 10},
	{ID: "journeyman", Name: "Journeyman", Description: "Execute 50 commands", Category: CategoryMilestone, Cue: "achievement", Icon: "⚔️", Requirement: 50},
	{ID: "master", Name: "Master Coder", Description: "Execute 100 commands", Category: CategoryMilestone, Cue: "shrine_complete", Icon: "🏆", Requirement: 100},
	{ID: "legend", Name: "Legendary Hero", Description: "Execute 500 commands", Category: CategoryMilestone, Cue: "session_start", Icon: "👑", Requirement: 500},
	{ID: "deity", Name: "Coding Deity", Description: "Execute 1000 commands", Category: CategoryMilestone, Cue: "session_start", Icon: "🌟", Requirement: 1000, Hidden: true},

	{ID: "combo_bronze", Name: "Combo Starter", Description: "Achieve a 3-command streak", Category: CategoryCombo, Cue: "item_small", Icon: "🥉", Requirement: 3},
	{ID: "combo_silver", Name: "Combo Pro", Description: "Achieve a 5-command streak", Category: CategoryCombo, Cue: "heart_get", Icon: "🥈", Requirement: 5},
	{ID: "combo_gold", Name: "Combo Master", Description: "Achieve a 10-command streak", Category: CategoryCombo, Cue: "achievement", Icon: "🥇", Requirement: 10},
	{ID: "combo_platinum", Name: "Combo Legend", Description: "Achieve a 20-command streak", Category: CategoryCombo, Cue: "shrine_complete", Icon: "💎", Requirement: 20},
	{ID: "combo_perfect", Name: "Perfect Flow", Description: "Achieve a 50-command streak", Category: CategoryCombo, Cue: "session_start", Icon: "🔥", Requirement: 50, Hidden: true},

	{ID: "tool_user", Name: "Tool User", Description: "Use 5 different tools", Category: CategoryExplorer, Cue: "search_found", Icon: "🔧", Requirement: 5},
	{ID: "tool_master", Name: "Tool Master", Description: "Use 10 different tools", Category: CategoryExplorer, Cue: "puzzle_solved", Icon: "🛠️", Requirement: 10},
	{ID: "polyglot", Name: "Polyglot", Description: "Use 20 different tools", Category: CategoryExplorer, Cue: "achievement", Icon: "🌐", Requirement: 20, Hidden: true},

	{ID: "flawless_ten", Name: "Flawless Ten", Description: "10 commands without errors", Category: CategoryPerfectionist, Cue: "heart_get", Icon: "✨", Requirement: 10},
	{ID: "error_free", Name: "Error Free", Description: "25 commands without errors", Category: CategoryPerfectionist, Cue: "achievement", Icon: "💯", Requirement: 25},
	{ID: "perfect_session", Name: "Perfect Session", Description: "50 commands without errors", Category: CategoryPerfectionist, Cue: "shrine_complete", Icon: "🎯", Requirement: 50},

	{ID: "quick_start", Name: "Quick Start", Description: "5 commands in 1 minute", Category: CategorySpeedrunner, Cue: "item_small", Icon: "⚡", Requirement: 5, Window: time.Minute},
	{ID: "speed_demon", Name: "Speed Demon", Description: "20 commands in 5 minutes", Category: CategorySpeedrunner, Cue: "achievement", Icon: "🏃", Requirement: 20, Window: 5 * time.Minute},
	{ID: "lightning", Name: "Lightning Coder", Description: "50 commands in 10 minutes", Category: CategorySpeedrunner, Cue: "session_start", Icon: "⚡", Requirement: 50, Window: 10 * time.Minute, Hidden: true},

	{ID: "sound_hunter", Name: "Sound Hunter", Description: "Unlock 5 achievements", Category: CategoryCollector, Cue: "search_complete", Icon: "🎵", Requirement: 5},
	{ID: "achievement_hunter", Name: "Achievement Hunter", Description: "Unlock 10 achievements", Category: CategoryCollector, Cue: "puzzle_solved", Icon: "🏅", Requirement: 10},
	{ID: "completionist", Name: "Completionist", Description: "Unlock 20 achievements", Category: CategoryCollector, Cue: "achievement", Icon: "💎", Requirement: 20},
}

// Catalog returns a copy of the built-in catalog.
func Catalog() []Achievement {
	return append([]Achievement(nil), catalog...)
}

// MaxPaceWindow is the widest speedrunner window and MaxPaceEvents the most events any
// speedrunner entry needs; callers keep at most that many recent timestamps.
var MaxPaceWindow, MaxPaceEvents = paceBounds(catalog)

func paceBounds(entries []Achievement) (time.Duration, int) {
	var window time.Duration
	var events int
	for _, a := range entries {
		if a.Category != CategorySpeedrunner {
			continue
		}
		if a.Window > window {
			window = a.Window
		}
		if a.Requirement > events {
			events = a.Requirement
		}
	}
	return window, events
}
