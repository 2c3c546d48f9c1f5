package store

import (
	"errors"

	"go.uber.org/zap"

	"cc_chime/internal/metrics"
	"cc_chime/internal/model"
)

// LoadAllTime returns the stored all-time record, or an empty one when it is
// missing or unreadable. A non-nil error is informational; the record is always usable.
func (s *Store) LoadAllTime() (*model.AllTimeRecord, error) {
	rec := model.NewAllTimeRecord()
	err := s.ReadJSON(AllTimeFile, rec)
	if err != nil {
		rec = model.NewAllTimeRecord()
	}
	rec.Normalize()
	return rec, ignoreMissing(err)
}

// LoadProgress returns the stored achievement progress, defaulting like LoadAllTime.
func (s *Store) LoadProgress() (*model.AchievementProgressRecord, error) {
	rec := model.NewAchievementProgressRecord()
	err := s.ReadJSON(ProgressFile, rec)
	if err != nil {
		rec = model.NewAchievementProgressRecord()
	}
	rec.Normalize()
	return rec, ignoreMissing(err)
}

// LoadSession reads a finalized session record.
func (s *Store) LoadSession(id string) (*model.SessionRecord, error) {
	rec := &model.SessionRecord{}
	if err := s.ReadJSON(SessionFile(id), rec); err != nil {
		return nil, err
	}
	rec.Normalize()
	return rec, nil
}

// LoadPerf returns the accumulated metrics summary, defaulting like LoadAllTime.
func (s *Store) LoadPerf() (metrics.Summary, error) {
	sum := metrics.NewSummary()
	if err := s.ReadJSON(PerfFile, &sum); err != nil {
		return metrics.NewSummary(), ignoreMissing(err)
	}
	if sum.Timings == nil {
		sum.Timings = make(map[string]metrics.Timing)
	}
	return sum, nil
}

// AddPerf merges a process's metrics into the stored summary.
func (s *Store) AddPerf(run metrics.Summary) error {
	if run.Empty() {
		return nil
	}
	sum, err := s.LoadPerf()
	if err != nil {
		s.log.Warn("perf summary reset", zap.Error(err))
	}
	sum.Merge(run)
	return s.WriteJSON(PerfFile, sum)
}

func ignoreMissing(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
