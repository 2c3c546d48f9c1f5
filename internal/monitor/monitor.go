// Package monitor drives the engine from transcript tails when cc_chime runs
// as a long-lived watcher instead of as per-event hooks.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cc_chime/internal/config"
	"cc_chime/internal/engine"
	"cc_chime/internal/model"
	"cc_chime/internal/session"
)

// Defaults for Options.
const (
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultScanInterval = 10 * time.Second
	activityBuffer      = 64
)

// Player plays cues without blocking.
type Player interface {
	Play(ids ...string)
}

// Activity is one tool call and what the engine made of it.
type Activity struct {
	Outcome session.ToolOutcome
	Result  engine.Result
}

// Options tunes a Monitor.
type Options struct {
	// IdleTimeout ends the open session after this long without tool calls.
	IdleTimeout time.Duration
	// ScanInterval is how often Scan runs. Scan may be nil.
	ScanInterval time.Duration
	Scan         func()
}

// Monitor feeds tool outcomes into the engine and plays the resulting cues.
type Monitor struct {
	engine   *engine.Engine
	cfg      *config.Config
	player   Player
	log      *zap.Logger
	opts     Options
	activity chan Activity
}

// New creates a monitor.
func New(e *engine.Engine, cfg *config.Config, player Player, log *zap.Logger, opts Options) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	return &Monitor{
		engine:   e,
		cfg:      cfg,
		player:   player,
		log:      log,
		opts:     opts,
		activity: make(chan Activity, activityBuffer),
	}
}

// Activity delivers processed outcomes to a display. It is closed when Run returns.
// Entries are dropped when nobody keeps up.
func (m *Monitor) Activity() <-chan Activity {
	return m.activity
}

// Run consumes outcomes until ctx is done or outcomes is closed. The open
// session is left open so Engine.Close can checkpoint it.
func (m *Monitor) Run(ctx context.Context, outcomes <-chan session.ToolOutcome) {
	defer close(m.activity)

	idle := time.NewTimer(m.opts.IdleTimeout)
	defer idle.Stop()
	scan := time.NewTicker(m.opts.ScanInterval)
	defer scan.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-outcomes:
			if !ok {
				return
			}
			m.Handle(o)
			idle.Reset(m.opts.IdleTimeout)
		case <-idle.C:
			if id := m.engine.ActiveSession(); id != "" {
				m.log.Info("ending idle session", zap.String("session", id), zap.Duration("idle", m.opts.IdleTimeout))
				m.engine.OnSessionEnd()
			}
		case <-scan.C:
			if m.opts.Scan != nil {
				m.opts.Scan()
			}
		}
	}
}

// Handle processes one outcome. A new session id closes the open session.
func (m *Monitor) Handle(o session.ToolOutcome) engine.Result {
	if o.SessionID != "" && o.SessionID != m.engine.ActiveSession() {
		m.engine.OnSessionStart(o.SessionID)
	}

	res := m.engine.Process(model.ToolEvent{
		ToolName:  o.ToolName,
		Success:   o.Success,
		Signature: o.Signature,
		Cue:       m.cfg.ToolCue(o.Pattern, o.Success),
	})
	m.player.Play(res.Cues...)

	select {
	case m.activity <- Activity{Outcome: o, Result: res}:
	default:
		m.log.Debug("activity dropped", zap.String("tool", o.ToolName))
	}
	return res
}
