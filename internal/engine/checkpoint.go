package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"cc_chime/internal/combo"
	"cc_chime/internal/debounce"
	"cc_chime/internal/model"
	"cc_chime/internal/store"
)

// Checkpoint carries an open session from one process to the next. Hook hosts
// start a fresh process per event, so without it every event would open a new
// implicit session and streaks would never grow.
type Checkpoint struct {
	Version      int                  `json:"version"`
	Session      *model.SessionRecord `json:"session"`
	Combo        combo.State          `json:"combo"`
	ErrorFreeRun int                  `json:"error_free_run"`
	Recent       []time.Time          `json:"recent,omitempty"`
	Debounce     []debounce.Entry     `json:"debounce,omitempty"`
	SavedAt      time.Time            `json:"saved_at"`
}

func (e *Engine) checkpointLocked() *Checkpoint {
	return &Checkpoint{
		Version:      model.SchemaVersion,
		Session:      e.stats.Session(),
		Combo:        e.combo.State(),
		ErrorFreeRun: e.stats.ErrorFreeRun(),
		Recent:       append([]time.Time(nil), e.recent...),
		Debounce:     e.debounce.Entries(),
		SavedAt:      e.now(),
	}
}

// restoreCheckpoint reopens a checkpointed session. Called from New only.
func (e *Engine) restoreCheckpoint() {
	var cp Checkpoint
	err := e.store.ReadJSON(store.CheckpointFile, &cp)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		e.log.Warn("checkpoint discarded", zap.Error(err))
		return
	}
	if cp.Session == nil || cp.Session.SessionID == "" || cp.Session.EndTime != nil {
		e.log.Warn("checkpoint discarded", zap.String("reason", "no open session"))
		return
	}

	e.stats.Restore(cp.Session, cp.ErrorFreeRun)
	st := cp.Combo
	st.CurrentStreak = cp.Session.CurrentStreak
	e.combo.Restore(st)
	e.recent = trimRecent(cp.Recent, e.now())
	e.debounce.Restore(cp.Debounce)
	e.log.Debug("session restored",
		zap.String("session", cp.Session.SessionID),
		zap.Int("streak", cp.Session.CurrentStreak))
}
