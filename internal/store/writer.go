package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cc_chime/internal/model"
)

// DefaultFlushInterval is how often the writer drains its queue.
const DefaultFlushInterval = 500 * time.Millisecond

// ErrWriterClosed is returned by Flush after Close.
var ErrWriterClosed = errors.New("writer closed")

// Job is one deferred write. Jobs with the same key replace each other while queued.
type Job interface {
	Key() string
	Run(ctx context.Context) error
}

// JSONJob writes a snapshot to a JSON record.
type JSONJob struct {
	Store *Store
	Name  string
	Value any
}

func (j JSONJob) Key() string { return "json:" + j.Name }

func (j JSONJob) Run(context.Context) error {
	return j.Store.WriteJSON(j.Name, j.Value)
}

// RemoveJob deletes a record.
type RemoveJob struct {
	Store *Store
	Name  string
}

// Key shares the JSONJob key so a queued write and a later removal coalesce.
func (j RemoveJob) Key() string { return "json:" + j.Name }

func (j RemoveJob) Run(context.Context) error {
	return j.Store.Remove(j.Name)
}

// HistoryJob indexes a finalized session.
type HistoryJob struct {
	History *History
	Session *model.SessionRecord
}

func (j HistoryJob) Key() string { return "history:" + j.Session.SessionID }

func (j HistoryJob) Run(ctx context.Context) error {
	return j.History.Insert(ctx, j.Session)
}

// Writer runs queued jobs on a single goroutine so writes to one record never race.
type Writer struct {
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	pending map[string]Job
	order   []string
	closed  bool

	flushReq  chan chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewWriter starts the writer goroutine. Call Close to drain and stop it.
func NewWriter(interval time.Duration, log *zap.Logger) *Writer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Writer{
		log:      log,
		interval: interval,
		pending:  make(map[string]Job),
		flushReq: make(chan chan struct{}),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// Enqueue queues a job without blocking. A queued job with the same key is
// replaced in place. It returns false once the writer is closed.
func (w *Writer) Enqueue(job Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	key := job.Key()
	if _, queued := w.pending[key]; !queued {
		w.order = append(w.order, key)
	}
	w.pending[key] = job
	return true
}

// Pending returns the number of queued jobs.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

// Flush runs every job queued before the call and waits for completion.
func (w *Writer) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case w.flushReq <- reply:
	case <-w.stopped:
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, drains the queue and stops the goroutine.
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.done)
	})
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer close(w.stopped)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			w.drain()
			return
		case reply := <-w.flushReq:
			w.drain()
			close(reply)
		case <-ticker.C:
			w.drain()
		}
	}
}

func (w *Writer) drain() {
	w.mu.Lock()
	jobs := make([]Job, 0, len(w.order))
	for _, key := range w.order {
		jobs = append(jobs, w.pending[key])
	}
	w.pending = make(map[string]Job)
	w.order = nil
	w.mu.Unlock()

	for _, job := range jobs {
		if err := job.Run(context.Background()); err != nil {
			w.log.Warn("deferred write failed", zap.String("job", job.Key()), zap.Error(err))
		}
	}
}
