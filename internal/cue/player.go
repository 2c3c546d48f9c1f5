// Package cue turns cue identifiers into detached audio playback.
package cue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"cc_chime/internal/metrics"
)

// Stagger separates consecutive cues of one sequence so they do not overlap.
const Stagger = 200 * time.Millisecond

var (
	// ErrNoPlayer is returned when no audio player is installed.
	ErrNoPlayer = errors.New("no audio player found")
	// ErrMuted is returned by PlayAndWait at volume 0.
	ErrMuted = errors.New("volume is 0")
)

// Process is a launched playback.
type Process interface {
	Wait() error
}

// Launcher starts playback of a file at a volume in [1, 100] without waiting for it.
type Launcher func(path string, volume int) (Process, error)

// Player plays cues from a sounds directory.
type Player struct {
	dir     string
	log     *zap.Logger
	launch  Launcher
	sem     *semaphore.Weighted
	stagger time.Duration
	volume  atomic.Int32
	metrics *metrics.Recorder

	sequences sync.WaitGroup
}

// Option customizes a Player.
type Option func(*Player)

// WithLauncher replaces the platform launcher.
func WithLauncher(l Launcher) Option {
	return func(p *Player) { p.launch = l }
}

// WithStagger sets the gap between cues of one sequence.
func WithStagger(d time.Duration) Option {
	return func(p *Player) { p.stagger = d }
}

// WithMetrics times every cue launch.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Player) { p.metrics = r }
}

// NewPlayer creates a player allowing at most maxConcurrent simultaneous playbacks.
// Without an installed audio player it stays silent.
func NewPlayer(dir string, maxConcurrent int, log *zap.Logger, opts ...Option) *Player {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Player{
		dir:     dir,
		log:     log,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		stagger: Stagger,
	}
	p.volume.Store(100)
	for _, opt := range opts {
		opt(p)
	}
	if p.launch == nil {
		l, err := SystemLauncher()
		if err != nil {
			log.Debug("cue playback disabled", zap.Error(err))
		}
		p.launch = l
	}
	return p
}

// SetVolume sets playback volume in percent. Zero mutes.
func (p *Player) SetVolume(v int) {
	p.volume.Store(int32(min(max(v, 0), 100)))
}

// Path resolves a cue to its sound file.
func (p *Player) Path(id string) string {
	return filepath.Join(p.dir, id+".wav")
}

// Play schedules a sequence of cues and returns immediately. Cues are launched
// in order, Stagger apart. A cue is dropped when its file is missing or when
// the concurrency bound is reached.
func (p *Player) Play(ids ...string) {
	vol := int(p.volume.Load())
	if len(ids) == 0 || p.launch == nil || vol == 0 {
		return
	}
	p.sequences.Add(1)
	go func() {
		defer p.sequences.Done()
		for i, id := range ids {
			if i > 0 && p.stagger > 0 {
				time.Sleep(p.stagger)
			}
			p.playOne(id, vol)
		}
	}()
}

func (p *Player) playOne(id string, vol int) {
	path := p.Path(id)
	if _, err := os.Stat(path); err != nil {
		p.log.Debug("cue file missing", zap.String("cue", id), zap.String("path", path))
		return
	}
	if !p.sem.TryAcquire(1) {
		p.log.Debug("cue dropped, playback saturated", zap.String("cue", id))
		return
	}
	start := time.Now()
	proc, err := p.launch(path, vol)
	p.metrics.Since(metrics.OpCue, start)
	if err != nil {
		p.sem.Release(1)
		p.log.Warn("cue playback failed", zap.String("cue", id), zap.Error(err))
		return
	}
	go func() {
		defer p.sem.Release(1)
		if err := proc.Wait(); err != nil {
			p.log.Debug("cue player exited", zap.String("cue", id), zap.Error(err))
		}
	}()
}

// Cues lists the cues that have a sound file, sorted by name.
func (p *Player) Cues() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sounds directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if id, ok := strings.CutSuffix(e.Name(), ".wav"); ok && !e.IsDir() && id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// PlayAndWait plays one cue and waits for its player to exit. Unlike Play it
// reports every failure, so it suits auditioning sounds.
func (p *Player) PlayAndWait(ctx context.Context, id string) error {
	vol := int(p.volume.Load())
	switch {
	case p.launch == nil:
		return ErrNoPlayer
	case vol == 0:
		return ErrMuted
	}
	path := p.Path(id)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cue %s: %w", id, err)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	start := time.Now()
	proc, err := p.launch(path, vol)
	p.metrics.Since(metrics.OpCue, start)
	if err != nil {
		return fmt.Errorf("play %s: %w", id, err)
	}
	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every scheduled cue has been launched. Launched players keep
// running after the calling process exits.
func (p *Player) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.sequences.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemLauncher picks the platform audio player.
func SystemLauncher() (Launcher, error) {
	switch runtime.GOOS {
	case "darwin":
		return commandLauncher("afplay", func(path string, vol int) []string {
			return []string{"-v", strconv.FormatFloat(float64(vol)/100, 'f', 2, 64), path}
		}), nil
	case "windows":
		return commandLauncher("powershell", func(path string, _ int) []string {
			return []string{"-NoProfile", "-Command", fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", path)}
		}), nil
	}

	candidates := []struct {
		name string
		args func(path string, vol int) []string
	}{
		{"paplay", func(path string, vol int) []string {
			return []string{"--volume=" + strconv.Itoa(vol*65536/100), path}
		}},
		{"aplay", func(path string, _ int) []string { return []string{"-q", path} }},
		{"ffplay", func(path string, vol int) []string {
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(vol), path}
		}},
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c.name); err == nil {
			return commandLauncher(c.name, c.args), nil
		}
	}
	return nil, ErrNoPlayer
}

func commandLauncher(name string, args func(path string, vol int) []string) Launcher {
	return func(path string, vol int) (Process, error) {
		cmd := exec.Command(name, args(path, vol)...) //nolint:gosec // fixed player binary
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}
