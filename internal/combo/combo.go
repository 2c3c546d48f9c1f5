// Package combo tracks consecutive-success streaks and the tiers they reach.
package combo

// Tier is one rung of the streak ladder.
type Tier struct {
	Name      string
	Threshold int
	Cue       string
}

// None is the tier name before the first threshold is reached.
const None = "NONE"

// BreakCue is emitted when a streak of at least the lowest threshold is lost.
const BreakCue = "damage"

// DefaultTiers is the ladder, ordered by ascending threshold.
var DefaultTiers = []Tier{
	{Name: "BRONZE", Threshold: 3, Cue: "item_small"},
	{Name: "SILVER", Threshold: 5, Cue: "heart_get"},
	{Name: "GOLD", Threshold: 10, Cue: "achievement"},
	{Name: "PLATINUM", Threshold: 20, Cue: "shrine_complete"},
	{Name: "MASTER", Threshold: 50, Cue: "session_start"},
}

// State is the transient streak state of one session.
type State struct {
	CurrentStreak      int    `json:"current_streak"`
	HighestStreak      int    `json:"highest_streak"`
	LastTier           string `json:"last_tier"`
	TotalTierCrossings int    `json:"total_tier_crossings"`
}

// Outcome is what a single Record call produced. At most one of TierCue and
// BreakCue is set.
type Outcome struct {
	Tier     *Tier
	TierCue  string
	BreakCue string
}

// Cue returns whichever cue the outcome carries, or "".
func (o Outcome) Cue() string {
	if o.TierCue != "" {
		return o.TierCue
	}
	return o.BreakCue
}

// Tracker is the streak state machine. It is not safe for concurrent use;
// the engine serializes access.
type Tracker struct {
	tiers []Tier
	state State
}

// NewTracker creates a tracker over the given ladder (DefaultTiers when empty).
func NewTracker(tiers []Tier) *Tracker {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &Tracker{
		tiers: append([]Tier(nil), tiers...),
		state: State{LastTier: None},
	}
}

// Record feeds one result into the state machine.
//
// On success the streak grows; reaching a tier's threshold exactly, when that tier
// is not already the last one reached, emits the tier cue. On failure a break cue is
// emitted if the streak had reached the lowest threshold, and the streak resets.
func (t *Tracker) Record(success bool) Outcome {
	if !success {
		return t.fail()
	}

	t.state.CurrentStreak++
	if t.state.CurrentStreak > t.state.HighestStreak {
		t.state.HighestStreak = t.state.CurrentStreak
	}

	for i := range t.tiers {
		tier := &t.tiers[i]
		if t.state.CurrentStreak != tier.Threshold || tier.Name == t.state.LastTier {
			continue
		}
		t.state.LastTier = tier.Name
		t.state.TotalTierCrossings++
		return Outcome{Tier: tier, TierCue: tier.Cue}
	}
	return Outcome{}
}

func (t *Tracker) fail() Outcome {
	var out Outcome
	if t.state.CurrentStreak >= t.tiers[0].Threshold {
		out.BreakCue = BreakCue
	}
	t.state.CurrentStreak = 0
	t.state.LastTier = None
	return out
}

// Reset returns to the initial state.
func (t *Tracker) Reset() {
	t.state = State{LastTier: None}
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	return t.state
}

// Restore replaces the state, e.g. from a checkpoint.
func (t *Tracker) Restore(s State) {
	if s.LastTier == "" {
		s.LastTier = None
	}
	if s.CurrentStreak < 0 {
		s.CurrentStreak = 0
	}
	if s.HighestStreak < s.CurrentStreak {
		s.HighestStreak = s.CurrentStreak
	}
	t.state = s
}

// Tiers returns the ladder.
func (t *Tracker) Tiers() []Tier {
	return t.tiers
}

// Status describes the streak for display.
type Status struct {
	State
	CurrentTier   string
	NextTier      *Tier
	NextThreshold int
}

// Progress returns how far the current streak is toward the next tier, 0..1.
// It is 1 once the top tier has been reached.
func (s Status) Progress() float64 {
	if s.NextTier == nil {
		return 1
	}
	return float64(s.CurrentStreak) / float64(s.NextTier.Threshold)
}

// Status reports the current tier by level (highest threshold met) and the next one.
func (t *Tracker) Status() Status {
	st := Status{State: t.state, CurrentTier: None}
	for i := range t.tiers {
		tier := &t.tiers[i]
		if t.state.CurrentStreak >= tier.Threshold {
			st.CurrentTier = tier.Name
			continue
		}
		st.NextTier = tier
		st.NextThreshold = tier.Threshold
		break
	}
	return st
}
