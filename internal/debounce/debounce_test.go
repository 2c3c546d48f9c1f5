package debounce

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestDebouncer(capacity int) (*Debouncer, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(100*time.Millisecond, capacity, WithClock(clock.Now)), clock
}

func TestShouldProcessWithinWindow(t *testing.T) {
	d, clock := newTestDebouncer(10)

	assert.True(t, d.ShouldProcess("Bash"))
	clock.Advance(50 * time.Millisecond)
	assert.False(t, d.ShouldProcess("Bash"))
}

func TestShouldProcessAfterWindow(t *testing.T) {
	d, clock := newTestDebouncer(10)

	assert.True(t, d.ShouldProcess("Bash"))
	clock.Advance(150 * time.Millisecond)
	assert.True(t, d.ShouldProcess("Bash"))
}

func TestSuppressedCallDoesNotExtendWindow(t *testing.T) {
	d, clock := newTestDebouncer(10)

	assert.True(t, d.ShouldProcess("Edit"))
	clock.Advance(60 * time.Millisecond)
	assert.False(t, d.ShouldProcess("Edit"))
	clock.Advance(60 * time.Millisecond)
	assert.True(t, d.ShouldProcess("Edit"), "window is measured from the accepted call")
}

func TestDistinctSignaturesIndependent(t *testing.T) {
	d, _ := newTestDebouncer(10)

	assert.True(t, d.ShouldProcess("Bash(git:*)"))
	assert.True(t, d.ShouldProcess("Bash(go:*)"))
	assert.False(t, d.ShouldProcess("Bash(git:*)"))
}

func TestEvictsOldestWhenFull(t *testing.T) {
	d, _ := newTestDebouncer(3)

	for i := 0; i < 4; i++ {
		assert.True(t, d.ShouldProcess(fmt.Sprintf("tool-%d", i)))
	}
	// tool-0 was evicted by tool-3, so it is accepted again despite no time passing.
	assert.True(t, d.ShouldProcess("tool-0"))
	assert.False(t, d.ShouldProcess("tool-3"))
}

func TestReset(t *testing.T) {
	d, _ := newTestDebouncer(10)

	assert.True(t, d.ShouldProcess("Read"))
	d.Reset()
	assert.True(t, d.ShouldProcess("Read"))
}

func TestDefaults(t *testing.T) {
	d := New(0, 0)
	assert.Equal(t, DefaultWindow, d.Window())
	assert.Equal(t, DefaultCapacity, d.Capacity())
}

func TestWallClockEntriesExpire(t *testing.T) {
	d := New(20*time.Millisecond, 4)

	assert.True(t, d.ShouldProcess("Bash"))
	assert.Eventually(t, func() bool { return len(d.Entries()) == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, d.ShouldProcess("Bash"))
}

func TestEntriesRoundTrip(t *testing.T) {
	d, clock := newTestDebouncer(10)
	assert.True(t, d.ShouldProcess("Read"))
	clock.Advance(30 * time.Millisecond)
	assert.True(t, d.ShouldProcess("Edit"))

	entries := d.Entries()
	assert.Equal(t, []string{"Read", "Edit"}, []string{entries[0].Signature, entries[1].Signature})

	next, nextClock := newTestDebouncer(10)
	nextClock.Advance(40 * time.Millisecond)
	next.Restore(entries)

	assert.False(t, next.ShouldProcess("Read"), "accepted 40ms ago in the previous process")
	assert.False(t, next.ShouldProcess("Edit"))
	nextClock.Advance(100 * time.Millisecond)
	assert.True(t, next.ShouldProcess("Edit"))
}

func TestRestoreSkipsStaleEntries(t *testing.T) {
	d, clock := newTestDebouncer(10)
	clock.Advance(time.Second)

	d.Restore([]Entry{{Signature: "Grep", At: clock.Now().Add(-time.Second)}, {Signature: "", At: clock.Now()}})

	assert.Empty(t, d.Entries())
	assert.True(t, d.ShouldProcess("Grep"))
}

func TestConcurrentCallsAcceptOnce(t *testing.T) {
	d, _ := newTestDebouncer(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.ShouldProcess("Grep") {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}
