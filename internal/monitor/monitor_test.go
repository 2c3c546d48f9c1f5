package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"cc_chime/internal/config"
	"cc_chime/internal/engine"
	"cc_chime/internal/session"
	"cc_chime/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1"),
	)
}

type fakePlayer struct {
	mu     sync.Mutex
	played []string
}

func (p *fakePlayer) Play(ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, ids...)
}

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	st, err := store.Open(t.TempDir(), store.Options{}, zap.NewNop())
	require.NoError(t, err)
	e, err := engine.New(engine.Options{Store: st})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func outcome(sessionID, command string, ok bool) session.ToolOutcome {
	input := map[string]any{"command": command}
	return session.ToolOutcome{
		SessionID: sessionID,
		ToolName:  "Bash",
		Pattern:   session.ExtractPattern("Bash", input),
		Signature: session.Signature("Bash", input),
		Target:    command,
		Success:   ok,
		Timestamp: time.Now(),
	}
}

func TestHandle(t *testing.T) {
	e := newEngine(t)
	player := &fakePlayer{}
	m := New(e, config.DefaultConfig(), player, nil, Options{})

	res := m.Handle(outcome("s1", "ls", true))
	assert.Equal(t, "s1", e.ActiveSession())
	assert.Equal(t, "success", res.Cues[0])

	m.Handle(outcome("s1", "cat missing", false))
	assert.Contains(t, player.Played(), "damage")

	act := <-m.Activity()
	assert.Equal(t, "ls", act.Outcome.Target)
}

func TestHandleSwitchesSession(t *testing.T) {
	e := newEngine(t)
	m := New(e, config.DefaultConfig(), &fakePlayer{}, nil, Options{})

	m.Handle(outcome("s1", "ls", true))
	m.Handle(outcome("s2", "pwd", true))

	assert.Equal(t, "s2", e.ActiveSession())
	assert.Equal(t, 1, e.StatsSnapshot().AllTime.TotalSessions)
}

func TestActivityDropsWhenFull(t *testing.T) {
	e := newEngine(t)
	m := New(e, config.DefaultConfig(), &fakePlayer{}, nil, Options{})

	for i := range activityBuffer + 10 {
		m.Handle(outcome("s1", fmt.Sprintf("echo %d", i), true))
	}

	assert.Len(t, m.Activity(), activityBuffer)
	assert.Equal(t, activityBuffer+10, e.StatsSnapshot().CurrentSession.TotalCommands)
}

func TestRunEndsIdleSession(t *testing.T) {
	e := newEngine(t)
	m := New(e, config.DefaultConfig(), &fakePlayer{}, nil, Options{IdleTimeout: 30 * time.Millisecond})
	outcomes := make(chan session.ToolOutcome)
	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), outcomes)
		close(done)
	}()

	outcomes <- outcome("s1", "ls", true)
	assert.Eventually(t, func() bool { return e.ActiveSession() == "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, e.StatsSnapshot().AllTime.TotalSessions)

	close(outcomes)
	<-done
	_, open := <-m.Activity()
	for open {
		_, open = <-m.Activity()
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEngine(t)
	var scans atomic.Int32
	m := New(e, config.DefaultConfig(), &fakePlayer{}, nil, Options{
		ScanInterval: 5 * time.Millisecond,
		Scan:         func() { scans.Add(1) },
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, make(chan session.ToolOutcome))
		close(done)
	}()

	assert.Eventually(t, func() bool { return scans.Load() > 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	_, open := <-m.Activity()
	assert.False(t, open, "activity closed")
}
