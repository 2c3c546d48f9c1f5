// Package debounce suppresses repeated events that share a signature within a short window.
package debounce

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultWindow is how long an accepted signature suppresses repeats.
	DefaultWindow = 100 * time.Millisecond

	// DefaultCapacity is how many accepted signatures are remembered.
	DefaultCapacity = 10
)

// Entry is one remembered signature and the time it was accepted.
type Entry struct {
	Signature string    `json:"signature"`
	At        time.Time `json:"at"`
}

// Debouncer remembers the most recently accepted signatures in a bounded LRU.
// It has its own lock so gating checks never contend with engine state updates.
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	seen     *expirable.LRU[string, time.Time]
	now      func() time.Time
	clocked  bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock replaces time.Now. Entries then age by the given clock only.
func WithClock(now func() time.Time) Option {
	return func(d *Debouncer) {
		d.now = now
		d.clocked = true
	}
}

// New creates a Debouncer. Non-positive arguments fall back to the defaults.
func New(window time.Duration, capacity int, opts ...Option) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	d := &Debouncer{
		window:   window,
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = d.newLRU()
	return d
}

// newLRU expires entries after the window on the wall clock. With an injected
// clock the stored timestamps alone decide.
func (d *Debouncer) newLRU() *expirable.LRU[string, time.Time] {
	ttl := d.window
	if d.clocked {
		ttl = 0
	}
	return expirable.NewLRU[string, time.Time](d.capacity, nil, ttl)
}

// ShouldProcess reports whether an event with this signature should go ahead.
// It returns false if the same signature was accepted less than the window ago;
// otherwise the signature is recorded, evicting the oldest entry when full.
func (d *Debouncer) ShouldProcess(signature string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen.Peek(signature); ok && now.Sub(at) < d.window {
		return false
	}
	d.seen.Add(signature, now)
	return true
}

// Entries returns the signatures still inside the window, oldest first.
func (d *Debouncer) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var out []Entry
	for _, sig := range d.seen.Keys() {
		if at, ok := d.seen.Peek(sig); ok && now.Sub(at) < d.window {
			out = append(out, Entry{Signature: sig, At: at})
		}
	}
	return out
}

// Restore remembers entries carried over from another process. Entries that
// are already outside the window are skipped.
func (d *Debouncer) Restore(entries []Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for _, e := range entries {
		if e.Signature != "" && now.Sub(e.At) < d.window {
			d.seen.Add(e.Signature, e.At)
		}
	}
}

// Reset forgets every remembered signature.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Purge()
}

// Window returns the suppression window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Capacity returns how many signatures are remembered.
func (d *Debouncer) Capacity() int {
	return d.capacity
}
