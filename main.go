// Command cc_chime plays cues and tracks streaks, stats and achievements for
// Claude Code tool calls, either as a hook or as a transcript watcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cc_chime/internal/config"
	"cc_chime/internal/cue"
	"cc_chime/internal/engine"
	"cc_chime/internal/metrics"
	"cc_chime/internal/store"
)

// closeTimeout bounds the final flush and cue launches on exit.
const closeTimeout = 3 * time.Second

var (
	configPath string
	dataDir    string
	verbose    bool
	logStderr  bool

	logger *zap.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cc_chime",
		Short: "Sound cues, streaks and achievements for Claude Code",
		Long: `cc_chime turns Claude Code tool calls into sound cues and keeps coding
statistics, combo streaks and achievements across sessions.

Install it as a hook (cc_chime hook) or run it next to Claude Code (cc_chime watch).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			logger, err = newLogger()
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default: first of "+fmt.Sprint(config.DefaultPaths())+")")
	flags.StringVar(&dataDir, "data-dir", "", "directory for stats, achievements and settings")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&logStderr, "log-stderr", false, "log to stderr instead of the data directory")

	rootCmd.AddCommand(newHookCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newAchievementsCmd())
	rootCmd.AddCommand(newComboCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newTestCmd())

	return rootCmd
}

// newLogger builds the production logger. Hook output is read by Claude Code,
// so logs go to a file unless --log-stderr is set.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !logStderr {
		dir := filepath.Join(resolveDataDir(), "logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path := filepath.Join(dir, "cc_chime.log")
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

// resolveDataDir is the data directory before the config is fully loaded.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if cfg, err := loadConfig(); err == nil {
		return cfg.DataDir
	}
	return config.DefaultConfig().DataDir
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDefaultPath()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		if cfg.SoundsDir == filepath.Join(cfg.DataDir, "sounds") {
			cfg.SoundsDir = filepath.Join(dataDir, "sounds")
		}
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// app is everything a command needs, opened in dependency order.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	history *store.History
	engine  *engine.Engine
	player  *cue.Player
	metrics *metrics.Recorder
}

// openApp loads the config and opens the data directory. History is optional:
// without it sessions are still recorded as JSON.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger
	if log == nil {
		log = zap.NewNop()
	}

	rec, err := metrics.New()
	if err != nil {
		log.Warn("metrics disabled", zap.Error(err))
		rec = nil
	}

	st, err := store.Open(cfg.DataDir, store.Options{CacheTTL: cfg.CacheTTL, Metrics: rec}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	history, err := store.OpenHistory(filepath.Join(cfg.DataDir, store.HistoryFile))
	if err != nil {
		log.Warn("session history unavailable", zap.Error(err))
		history = nil
	}

	e, err := engine.New(engine.Options{
		Store:            st,
		History:          history,
		Logger:           log,
		FlushInterval:    cfg.FlushInterval,
		DebounceWindow:   cfg.Debounce.Window,
		DebounceCapacity: cfg.Debounce.Capacity,
		DebounceScope:    cfg.Debounce.Scope,
		Resume:           cfg.Resume,
		Metrics:          rec,
	})
	if err != nil {
		if history != nil {
			_ = history.Close()
		}
		return nil, err
	}

	player := cue.NewPlayer(cfg.SoundsDir, cfg.MaxConcurrentCues, log, cue.WithMetrics(rec))
	player.SetVolume(e.Settings().Int(config.KeyVolume, 100))

	return &app{cfg: cfg, log: log, store: st, history: history, engine: e, player: player, metrics: rec}, nil
}

// close waits for cue launches, checkpoints the engine, adds this run's
// metrics to the stored summary and closes history.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := a.player.Wait(ctx); err != nil {
		a.log.Debug("cue launches still pending", zap.Error(err))
	}
	err := a.engine.Close(ctx)
	a.savePerf(ctx)
	if a.history != nil {
		err = errors.Join(err, a.history.Close())
	}
	return err
}

func (a *app) savePerf(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	defer func() { _ = a.metrics.Shutdown(ctx) }()
	run, err := a.metrics.Collect(ctx)
	if err != nil {
		a.log.Debug("metrics not collected", zap.Error(err))
		return
	}
	if run.Empty() {
		return
	}
	a.log.Debug("performance", run.Fields()...)
	if err := a.store.AddPerf(run); err != nil {
		a.log.Warn("perf summary not saved", zap.Error(err))
	}
}
