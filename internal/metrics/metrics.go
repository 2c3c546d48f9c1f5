// Package metrics times engine events, cue launches and record I/O, and counts
// read-cache hits. Measurements go through an OpenTelemetry meter read in
// process; a Summary of them is merged into the data directory on exit.
package metrics

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// Timed operations.
const (
	OpEvent = "event"       // one engine tool event
	OpCue   = "cue"         // launching one cue's player
	OpRead  = "store.read"  // reading a record from disk
	OpWrite = "store.write" // writing a record
)

const (
	meterName     = "cc_chime"
	durationName  = "cc_chime.duration"
	cacheName     = "cc_chime.cache.lookups"
	opKey         = attribute.Key("op")
	hitKey        = attribute.Key("hit")
	summaryFormat = 1
)

// Recorder collects measurements. A nil *Recorder records nothing, so
// components can take one optionally.
type Recorder struct {
	reader    *sdkmetric.ManualReader
	provider  *sdkmetric.MeterProvider
	durations metric.Float64Histogram
	lookups   metric.Int64Counter
}

// New creates a Recorder with its own meter provider.
func New() (*Recorder, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter(meterName)

	durations, err := meter.Float64Histogram(durationName,
		metric.WithDescription("Duration of timed operations"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("metrics: create histogram: %w", err)
	}
	lookups, err := meter.Int64Counter(cacheName,
		metric.WithDescription("Record cache lookups by outcome"))
	if err != nil {
		return nil, fmt.Errorf("metrics: create counter: %w", err)
	}
	return &Recorder{reader: reader, provider: provider, durations: durations, lookups: lookups}, nil
}

// Observe records one duration for op.
func (r *Recorder) Observe(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.durations.Record(context.Background(), float64(d)/float64(time.Millisecond),
		metric.WithAttributes(opKey.String(op)))
}

// Since records the time elapsed since start, for use with defer.
func (r *Recorder) Since(op string, start time.Time) {
	r.Observe(op, time.Since(start))
}

// CacheLookup counts one read-cache lookup.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	r.lookups.Add(context.Background(), 1, metric.WithAttributes(hitKey.Bool(hit)))
}

// Collect summarizes everything recorded so far.
func (r *Recorder) Collect(ctx context.Context) (Summary, error) {
	sum := NewSummary()
	if r == nil {
		return sum, nil
	}
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return sum, fmt.Errorf("metrics: collect: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					op, ok := dp.Attributes.Value(opKey)
					if !ok {
						continue
					}
					t := Timing{Count: int64(dp.Count), TotalMs: dp.Sum}
					if v, ok := dp.Max.Value(); ok {
						t.MaxMs = v
					}
					sum.Timings[op.AsString()] = sum.Timings[op.AsString()].merge(t)
				}
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					hit, ok := dp.Attributes.Value(hitKey)
					if !ok {
						continue
					}
					if hit.AsBool() {
						sum.CacheHits += dp.Value
					} else {
						sum.CacheMisses += dp.Value
					}
				}
			}
		}
	}
	return sum, nil
}

// Shutdown stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}

// Timing aggregates the durations of one operation.
type Timing struct {
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// AvgMs is the mean duration, zero without samples.
func (t Timing) AvgMs() float64 {
	if t.Count == 0 {
		return 0
	}
	return t.TotalMs / float64(t.Count)
}

func (t Timing) merge(o Timing) Timing {
	return Timing{Count: t.Count + o.Count, TotalMs: t.TotalMs + o.TotalMs, MaxMs: max(t.MaxMs, o.MaxMs)}
}

// Summary is the persisted form of recorded metrics, accumulated across processes.
type Summary struct {
	Version     int               `json:"version"`
	Timings     map[string]Timing `json:"timings"`
	CacheHits   int64             `json:"cache_hits"`
	CacheMisses int64             `json:"cache_misses"`
}

// NewSummary returns an empty summary.
func NewSummary() Summary {
	return Summary{Version: summaryFormat, Timings: make(map[string]Timing)}
}

// Merge adds o into s.
func (s *Summary) Merge(o Summary) {
	if s.Timings == nil {
		s.Timings = make(map[string]Timing)
	}
	for op, t := range o.Timings {
		s.Timings[op] = s.Timings[op].merge(t)
	}
	s.CacheHits += o.CacheHits
	s.CacheMisses += o.CacheMisses
	s.Version = summaryFormat
}

// HitRate is the fraction of cache lookups that hit, zero without lookups.
func (s Summary) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Ops lists the timed operations in name order.
func (s Summary) Ops() []string {
	ops := make([]string, 0, len(s.Timings))
	for op := range s.Timings {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// Empty reports whether nothing was recorded.
func (s Summary) Empty() bool {
	return len(s.Timings) == 0 && s.CacheHits == 0 && s.CacheMisses == 0
}

// Fields renders s as zap fields for a one-line log summary.
func (s Summary) Fields() []zap.Field {
	fields := make([]zap.Field, 0, len(s.Timings)+2)
	for _, op := range s.Ops() {
		t := s.Timings[op]
		fields = append(fields, zap.Dict(op,
			zap.Int64("count", t.Count),
			zap.Float64("avg_ms", t.AvgMs()),
			zap.Float64("max_ms", t.MaxMs)))
	}
	fields = append(fields,
		zap.Int64("cache_hits", s.CacheHits),
		zap.Int64("cache_misses", s.CacheMisses))
	return fields
}
