// Package engine is the single entry point hosts call with session boundaries
// and tool events. It owns the statistics, streak and achievement state and
// stages persistence through a background writer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cc_chime/internal/achievement"
	"cc_chime/internal/combo"
	"cc_chime/internal/config"
	"cc_chime/internal/debounce"
	"cc_chime/internal/metrics"
	"cc_chime/internal/model"
	"cc_chime/internal/stats"
	"cc_chime/internal/store"
)

// Lifecycle misuse by the host. Both are recovered and logged, never returned.
var (
	ErrNoActiveSession  = errors.New("no active session")
	ErrDuplicateSession = errors.New("session already active")
)

// ErrClosed is returned by calls that need the writer after Close.
var ErrClosed = errors.New("engine closed")

// flushTimeout bounds the synchronous writes at session end and on config updates.
const flushTimeout = 5 * time.Second

// Options configures an Engine. Store is required.
type Options struct {
	Store   *store.Store
	History *store.History
	Logger  *zap.Logger

	FlushInterval    time.Duration
	DebounceWindow   time.Duration
	DebounceCapacity int
	DebounceScope    string

	// Resume checkpoints an open session on Close and picks it up in New.
	Resume bool

	Tiers   []combo.Tier
	Catalog []achievement.Achievement

	// Metrics, when set, times every tool event.
	Metrics *metrics.Recorder

	// Clock and NewSessionID are replaced in tests.
	Clock        func() time.Time
	NewSessionID func() string
}

// Engine tracks one user's sessions. All methods are safe for concurrent use.
type Engine struct {
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
	store    *store.Store
	history  *store.History
	writer   *store.Writer
	debounce *debounce.Debouncer
	scope    string
	resume   bool
	metrics  *metrics.Recorder

	// mu guards everything below. No I/O happens while it is held; snapshots
	// are handed to the writer before it is released so they queue in order.
	mu           sync.Mutex
	stats        *stats.Aggregator
	combo        *combo.Tracker
	achievements *achievement.Evaluator
	recent       []time.Time
	settings     config.Settings
	ended        map[string]bool // record ids finalized by this process
	closed       bool
}

// New loads persisted state and starts the background writer.
// Unreadable records are logged and replaced by defaults.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Clock
	var debounceOpts []debounce.Option
	if now == nil {
		now = time.Now
	} else {
		debounceOpts = append(debounceOpts, debounce.WithClock(now))
	}
	newID := opts.NewSessionID
	if newID == nil {
		newID = func() string { return "implicit-" + uuid.NewString() }
	}
	scope := opts.DebounceScope
	if scope != config.ScopeAll {
		scope = config.ScopeCues
	}

	allTime, err := opts.Store.LoadAllTime()
	if err != nil {
		log.Warn("all-time stats reset", zap.Error(err))
	}
	progress, err := opts.Store.LoadProgress()
	if err != nil {
		log.Warn("achievement progress reset", zap.Error(err))
	}

	e := &Engine{
		log:          log,
		now:          now,
		newID:        newID,
		store:        opts.Store,
		history:      opts.History,
		writer:       store.NewWriter(opts.FlushInterval, log),
		debounce:     debounce.New(opts.DebounceWindow, opts.DebounceCapacity, debounceOpts...),
		scope:        scope,
		resume:       opts.Resume,
		metrics:      opts.Metrics,
		stats:        stats.NewAggregator(allTime),
		combo:        combo.NewTracker(opts.Tiers),
		achievements: achievement.NewEvaluator(opts.Catalog, progress),
		settings:     loadSettings(opts.Store, log),
		ended:        make(map[string]bool),
	}
	if e.resume {
		e.restoreCheckpoint()
	}
	return e, nil
}

func loadSettings(st *store.Store, log *zap.Logger) config.Settings {
	var stored config.Settings
	if err := st.ReadJSON(store.SettingsFile, &stored); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn("settings reset", zap.Error(err))
		stored = nil
	}
	return stored.MergeDefaults()
}

// Result is everything one tool event produced.
type Result struct {
	// Cues in play order: tool cue, streak cue, achievement cues. No duplicates.
	Cues []string

	Unlocks    []achievement.Unlock
	Milestones []string
	Tier       *combo.Tier
	Broke      bool

	// Notices are user-facing lines allowed by the notifications.* settings.
	Notices []string

	// Debounced is set when the event repeated a signature inside the window.
	Debounced bool
	// Counted is false only when the debounce scope dropped the event entirely.
	Counted bool
}

// OnSessionStart opens a session. Restarting the open session is a no-op.
// Starting a different session closes the open one first. A session whose
// record was already finalized continues in a new record, see recordID.
func (e *Engine) OnSessionStart(id string) {
	now := e.now()
	if id == "" {
		id = e.newID()
	}
	if e.ActiveSession() == id {
		e.log.Debug("session resumed", zap.String("session", id))
		return
	}
	recordID := e.recordID(id)

	e.mu.Lock()
	var closed *finalized
	if e.stats.Active() {
		open := e.stats.HostID()
		if open == id {
			e.mu.Unlock()
			e.log.Debug("session resumed", zap.String("session", id))
			return
		}
		e.log.Warn("closing open session before start",
			zap.Error(ErrDuplicateSession), zap.String("open", open), zap.String("session", id))
		closed = e.closeLocked(now)
	}
	for e.ended[recordID] {
		recordID = continuationID(id, recordID)
	}
	e.beginLocked(id, recordID, now, false)
	e.mu.Unlock()

	if recordID != id {
		e.log.Info("session continued", zap.String("session", id), zap.String("record", recordID))
	} else {
		e.log.Info("session started", zap.String("session", id))
	}
	if closed != nil {
		e.finish(closed)
	}
}

// recordID picks the record id for host session id: id itself unless a record
// of it was already finalized, then id-2, id-3 and so on. Finalized records
// are never reopened.
func (e *Engine) recordID(id string) string {
	candidate := id
	for {
		e.mu.Lock()
		ended := e.ended[candidate]
		e.mu.Unlock()
		if !ended && !e.store.Exists(store.SessionFile(candidate)) {
			return candidate
		}
		candidate = continuationID(id, candidate)
	}
}

// continuationID returns the record id after prev for host session id.
func continuationID(id, prev string) string {
	n := 1
	if rest, ok := strings.CutPrefix(prev, id+"-"); ok {
		if k, err := strconv.Atoi(rest); err == nil {
			n = k
		}
	}
	return fmt.Sprintf("%s-%d", id, n+1)
}

// OnSessionEnd finalizes the open session and writes it out synchronously.
// Without an open session it does nothing.
func (e *Engine) OnSessionEnd() {
	e.mu.Lock()
	if !e.stats.Active() {
		e.mu.Unlock()
		return
	}
	f := e.closeLocked(e.now())
	e.mu.Unlock()

	e.finish(f)
}

// OnToolEvent records one tool execution and returns the cues to play.
func (e *Engine) OnToolEvent(ev model.ToolEvent) []string {
	return e.Process(ev).Cues
}

// Process is OnToolEvent with the full outcome.
func (e *Engine) Process(ev model.ToolEvent) Result {
	defer e.metrics.Since(metrics.OpEvent, time.Now())

	// The debouncer has its own lock so gating never waits on state updates.
	fresh := e.debounce.ShouldProcess(ev.Key())
	res := Result{Cues: []string{}, Debounced: !fresh, Counted: true}
	if !fresh && e.scope == config.ScopeAll {
		res.Counted = false
		return res
	}

	now := e.now()
	e.mu.Lock()
	if !e.stats.Active() {
		id := e.newID()
		e.log.Warn("opening implicit session",
			zap.Error(ErrNoActiveSession), zap.String("session", id), zap.String("tool", ev.ToolName))
		e.beginLocked(id, id, now, true)
	}

	res.Milestones = e.stats.Record(ev.ToolName, ev.Success, now)
	outcome := e.combo.Record(ev.Success)
	res.Tier = outcome.Tier
	res.Broke = outcome.BreakCue != ""

	e.recent = trimRecent(append(e.recent, now), now)
	res.Unlocks = e.achievements.Evaluate(achievement.Counters{
		TotalCommands: e.stats.TotalCommands(),
		CurrentStreak: e.stats.CurrentStreak(),
		ErrorFreeRun:  e.stats.ErrorFreeRun(),
		DistinctTools: e.stats.DistinctTools(),
		Recent:        e.recent,
		Now:           now,
	})
	for _, u := range res.Unlocks {
		e.stats.NoteUnlock(u.Achievement.ID)
	}

	var dropped []string
	if len(res.Unlocks) > 0 && !e.writer.Enqueue(store.JSONJob{Store: e.store, Name: store.ProgressFile, Value: e.achievements.Record()}) {
		dropped = append(dropped, store.ProgressFile)
	}
	if len(res.Milestones) > 0 && !e.writer.Enqueue(store.JSONJob{Store: e.store, Name: store.AllTimeFile, Value: e.stats.AllTime()}) {
		dropped = append(dropped, store.AllTimeFile)
	}

	s := e.settings
	if fresh && s.Bool(config.KeySoundsEnabled, true) {
		res.Cues = appendCue(res.Cues, ev.Cue)
		if s.Bool(config.KeySoundsCombo, true) {
			res.Cues = appendCue(res.Cues, outcome.Cue())
		}
		if s.Bool(config.KeySoundsAchievements, true) {
			for _, u := range res.Unlocks {
				res.Cues = appendCue(res.Cues, u.Cue)
			}
		}
	}
	res.Notices = notices(s, res, e.combo.State().CurrentStreak)
	e.mu.Unlock()

	if len(dropped) > 0 {
		e.log.Warn("progress not saved", zap.Strings("records", dropped), zap.Error(ErrClosed))
	}
	for _, u := range res.Unlocks {
		e.log.Info("achievement unlocked", zap.String("id", u.Achievement.ID), zap.String("name", u.Achievement.Name))
	}
	for _, m := range res.Milestones {
		e.log.Info("milestone reached", zap.String("id", m))
	}
	return res
}

func appendCue(cues []string, cue string) []string {
	if cue == "" || slices.Contains(cues, cue) {
		return cues
	}
	return append(cues, cue)
}

func notices(s config.Settings, res Result, streak int) []string {
	var out []string
	if res.Tier != nil && s.Bool(config.KeyNotificationsCombos, true) {
		out = append(out, fmt.Sprintf("Combo %s! %d in a row", res.Tier.Name, streak))
	}
	if s.Bool(config.KeyNotificationsAchievement, true) {
		for _, u := range res.Unlocks {
			out = append(out, fmt.Sprintf("%s Achievement unlocked: %s", u.Achievement.Icon, u.Achievement.Name))
		}
	}
	if s.Bool(config.KeyNotificationsMilestones, true) {
		for _, m := range res.Milestones {
			out = append(out, "Milestone reached: "+m)
		}
	}
	return out
}

// trimRecent keeps only timestamps a speedrunner achievement could still count.
func trimRecent(ts []time.Time, now time.Time) []time.Time {
	cut := 0
	for cut < len(ts) && now.Sub(ts[cut]) > achievement.MaxPaceWindow {
		cut++
	}
	if len(ts)-cut > achievement.MaxPaceEvents {
		cut = len(ts) - achievement.MaxPaceEvents
	}
	if cut == 0 {
		return ts
	}
	return slices.Clone(ts[cut:])
}

func (e *Engine) beginLocked(hostID, recordID string, now time.Time, implicit bool) {
	if recordID != hostID {
		e.stats.Continue(recordID, hostID, now)
	} else {
		e.stats.Begin(recordID, now, implicit)
	}
	e.combo.Reset()
	e.recent = nil
}

// finalized is a closed session whose writes are queued.
type finalized struct {
	session *model.SessionRecord
	queued  bool
}

// closeLocked finalizes the open session and queues its writes behind any
// earlier snapshot of the same records.
func (e *Engine) closeLocked(now time.Time) *finalized {
	session := e.stats.Close(now)
	e.ended[session.SessionID] = true
	e.combo.Reset()
	e.recent = nil

	jobs := []store.Job{
		store.JSONJob{Store: e.store, Name: store.SessionFile(session.SessionID), Value: session},
		store.JSONJob{Store: e.store, Name: store.AllTimeFile, Value: e.stats.AllTime()},
		store.JSONJob{Store: e.store, Name: store.ProgressFile, Value: e.achievements.Record()},
	}
	if e.history != nil {
		jobs = append(jobs, store.HistoryJob{History: e.history, Session: session})
	}
	if e.resume {
		jobs = append(jobs, store.RemoveJob{Store: e.store, Name: store.CheckpointFile})
	}
	f := &finalized{session: session, queued: true}
	for _, job := range jobs {
		if !e.writer.Enqueue(job) {
			f.queued = false
			break
		}
	}
	return f
}

// finish waits for a finalized session's writes.
func (e *Engine) finish(f *finalized) {
	if !f.queued {
		e.log.Warn("session not saved", zap.String("session", f.session.SessionID), zap.Error(ErrClosed))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := e.writer.Flush(ctx); err != nil {
		e.log.Warn("session flush incomplete", zap.String("session", f.session.SessionID), zap.Error(err))
	}
	e.log.Info("session ended",
		zap.String("session", f.session.SessionID),
		zap.Int("commands", f.session.TotalCommands),
		zap.Int("max_streak", f.session.MaxStreak),
		zap.Duration("duration", f.session.Duration()))
}

// StatsSnapshot returns copies of the all-time and open session records.
func (e *Engine) StatsSnapshot() stats.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.Snapshot()
}

// ActiveSession returns the host's id of the open session, or "".
func (e *Engine) ActiveSession() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.HostID()
}

// AchievementSnapshot summarizes achievement progress with up to recent unlocks listed.
func (e *Engine) AchievementSnapshot(recent int) achievement.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.achievements.Snapshot(recent)
}

// ComboSnapshot reports the streak of the open session.
func (e *Engine) ComboSnapshot() combo.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.combo.Status()
}

// ComboTiers returns the streak ladder.
func (e *Engine) ComboTiers() []combo.Tier {
	return slices.Clone(e.combo.Tiers())
}

// Settings returns a copy of the user settings.
func (e *Engine) Settings() config.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Clone()
}

// UpdateConfig sets a dotted settings key and persists the settings before returning.
func (e *Engine) UpdateConfig(key string, value any) error {
	e.mu.Lock()
	updated := e.settings.Clone()
	if err := updated.Set(key, value); err != nil {
		e.mu.Unlock()
		return err
	}
	queued := e.writer.Enqueue(store.JSONJob{Store: e.store, Name: store.SettingsFile, Value: updated.Clone()})
	if queued {
		e.settings = updated
	}
	e.mu.Unlock()

	if !queued {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := e.writer.Flush(ctx); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	e.log.Info("setting updated", zap.String("key", key), zap.Any("value", value))
	return nil
}

// Flush waits until every deferred write queued so far is on disk.
func (e *Engine) Flush(ctx context.Context) error {
	return e.writer.Flush(ctx)
}

// Close checkpoints an open session when resuming is enabled, then drains the
// writer. The engine must not be used afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	queued := true
	if e.resume && e.stats.Active() {
		queued = e.writer.Enqueue(store.JSONJob{Store: e.store, Name: store.CheckpointFile, Value: e.checkpointLocked()})
	}
	e.mu.Unlock()

	if !queued {
		e.log.Warn("checkpoint not saved", zap.Error(ErrClosed))
	}
	return e.writer.Close(ctx)
}
