package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cc_chime/internal/config"
	"cc_chime/internal/cue"
	"cc_chime/internal/devagent"
	"cc_chime/internal/hook"
	"cc_chime/internal/monitor"
	"cc_chime/internal/report"
	"cc_chime/internal/session"
	"cc_chime/internal/tui"
)

func newHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Handle one Claude Code hook event read from stdin",
		Long: `Reads a Claude Code hook payload from stdin, updates stats and achievements,
plays the matching cues and prints any hook output for Claude Code.

Register it for every hook event, e.g. in ~/.claude/settings.json:
  "PostToolUse": [{"matcher": "*", "hooks": [{"type": "command", "command": "cc_chime hook"}]}]`,
		Args: cobra.NoArgs,
		RunE: runHookCmd,
	}
}

// runHookCmd never fails the host: bad payloads and engine trouble are logged
// and the hook exits cleanly.
func runHookCmd(cmd *cobra.Command, _ []string) error {
	p, err := hook.Decode(cmd.InOrStdin())
	if err != nil {
		logger.Warn("hook payload ignored", zap.Error(err))
		return nil
	}

	a, err := openApp()
	if err != nil {
		logger.Error("hook setup failed", zap.Error(err))
		return nil
	}
	defer func() {
		if cerr := a.close(); cerr != nil {
			a.log.Warn("close failed", zap.Error(cerr))
		}
	}()

	h := hook.NewHandler(a.engine, a.cfg, a.player, a.store, a.history, a.log)
	out := h.Handle(cmd.Context(), p)
	if err := out.Write(cmd.OutOrStdout()); err != nil {
		a.log.Warn("hook output failed", zap.Error(err))
	}
	return nil
}

var (
	watchIdle     time.Duration
	watchPlain    bool
	watchDevagent bool
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail Claude Code transcripts and show a live dashboard",
		Args:  cobra.NoArgs,
		RunE:  runWatchCmd,
	}
	cmd.Flags().DurationVar(&watchIdle, "idle", monitor.DefaultIdleTimeout, "end a session after this long without tool calls")
	cmd.Flags().BoolVar(&watchPlain, "plain", false, "print one line per tool call instead of the dashboard")
	cmd.Flags().BoolVar(&watchDevagent, "devagent", false, "also watch sessions inside running devagent devcontainers")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil {
			a.log.Warn("close failed", zap.Error(cerr))
		}
	}()

	dirs := slices.Clone(a.cfg.ProjectsDirs)
	if watchDevagent {
		envs, err := devagent.Discover(cmd.Context(), nil)
		if err != nil {
			a.log.Warn("devagent environments unavailable", zap.Error(err))
		}
		for _, d := range devagent.ProjectsDirs(envs, false) {
			if !slices.Contains(dirs, d) {
				dirs = append(dirs, d)
			}
		}
	}

	watcher, err := session.NewWatcher(dirs, a.log)
	if err != nil {
		return fmt.Errorf("failed to watch transcripts: %w", err)
	}
	transcripts, err := watcher.Discover()
	if err != nil {
		_ = watcher.Stop()
		return fmt.Errorf("failed to discover transcripts: %w", err)
	}
	a.log.Info("watching transcripts", zap.Int("count", len(transcripts)), zap.Strings("dirs", dirs))
	watcher.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := monitor.New(a.engine, a.cfg, a.player, a.log, monitor.Options{
		IdleTimeout: watchIdle,
		Scan:        watcher.ScanForNewSubagents,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		mon.Run(ctx, watcher.Outcomes)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watcher.Errors:
				a.log.Warn("watcher error", zap.Error(err))
			}
		}
	}()

	if watchPlain {
		printActivity(ctx, cmd, mon.Activity(), report.New(report.Terminal, a.cfg.Theme))
	} else {
		program := tea.NewProgram(tui.NewModel(a.engine, mon.Activity(), a.cfg.Theme), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			stop()
			wg.Wait()
			_ = watcher.Stop()
			return fmt.Errorf("failed to run dashboard: %w", err)
		}
	}

	stop()
	wg.Wait()
	return watcher.Stop()
}

func printActivity(ctx context.Context, cmd *cobra.Command, feed <-chan monitor.Activity, r *report.Renderer) {
	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return
		case act, ok := <-feed:
			if !ok {
				return
			}
			o := act.Outcome
			mark := "ok  "
			if !o.Success {
				mark = "FAIL"
			}
			line := fmt.Sprintf("%s %s %-24s %s", o.Timestamp.Local().Format("15:04:05"), mark, o.Pattern, o.Target)
			if len(act.Result.Cues) > 0 {
				line += "  ♪ " + strings.Join(act.Result.Cues, ",")
			}
			fmt.Fprintln(out, line)
			if len(act.Result.Notices) > 0 {
				fmt.Fprintln(out, r.Notices(act.Result.Notices))
			}
		}
	}
}

// newReportCmd builds a command that opens the data directory and prints one report.
func newReportCmd(use, short string, render func(a *app, r *report.Renderer) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			text, err := render(a, report.New(report.Terminal, a.cfg.Theme))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

var statsPerf bool

func newStatsCmd() *cobra.Command {
	cmd := newReportCmd("stats", "Show coding statistics", func(a *app, r *report.Renderer) (string, error) {
		if !statsPerf {
			return r.Stats(a.engine.StatsSnapshot()), nil
		}
		sum, err := a.store.LoadPerf()
		if err != nil {
			a.log.Warn("perf summary unreadable", zap.Error(err))
		}
		return r.Perf(sum), nil
	})
	cmd.Flags().BoolVar(&statsPerf, "perf", false, "show hook, cue and record timings instead")
	return cmd
}

func newAchievementsCmd() *cobra.Command {
	return newReportCmd("achievements", "Show achievement progress", func(a *app, r *report.Renderer) (string, error) {
		return r.Achievements(a.engine.AchievementSnapshot(5)), nil
	})
}

func newComboCmd() *cobra.Command {
	return newReportCmd("combo", "Show the current streak and combo tiers", func(a *app, r *report.Renderer) (string, error) {
		return r.Combo(a.engine.ComboSnapshot(), a.engine.ComboTiers()), nil
	})
}

var historyLast int

func newHistoryCmd() *cobra.Command {
	cmd := newReportCmd("history", "List recent finished sessions", func(a *app, r *report.Renderer) (string, error) {
		if a.history == nil {
			return "", errors.New("session history is unavailable")
		}
		rows, err := a.history.Recent(context.Background(), historyLast)
		if err != nil {
			return "", fmt.Errorf("failed to read history: %w", err)
		}
		return r.History(rows), nil
	})
	cmd.Flags().IntVarP(&historyLast, "last", "n", 10, "number of sessions to show")
	return cmd
}

// cueTestTimeout bounds one cue of `cc_chime test`.
const cueTestTimeout = 10 * time.Second

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [cue...]",
		Short: "Play cues one after another to check the sounds",
		Long:  "Plays the given cues, or every sound in the sounds directory, waiting for each to finish.",
		RunE:  runTestCmd,
	}
}

func runTestCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()
	out := cmd.OutOrStdout()

	ids := args
	if len(ids) == 0 {
		if ids, err = a.player.Cues(); err != nil {
			return fmt.Errorf("failed to list sounds: %w", err)
		}
	}
	if len(ids) == 0 {
		fmt.Fprintf(out, "No sounds found in %s\n", a.cfg.SoundsDir)
		return nil
	}

	fmt.Fprintf(out, "Playing %d cues from %s\n", len(ids), a.cfg.SoundsDir)
	failed := 0
	for i, id := range ids {
		ctx, cancel := context.WithTimeout(cmd.Context(), cueTestTimeout)
		err := a.player.PlayAndWait(ctx, id)
		cancel()
		if errors.Is(err, cue.ErrNoPlayer) || errors.Is(err, cue.ErrMuted) {
			return err
		}
		status := "ok"
		if err != nil {
			failed++
			status = "FAIL " + err.Error()
		}
		fmt.Fprintf(out, "%3d. %-24s %s\n", i+1, id, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cues failed", failed, len(ids))
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [key [value]]",
		Short: "List, read or change settings",
		Example: `  cc_chime config
  cc_chime config volume
  cc_chime config sounds.combo false`,
		Args: cobra.MaximumNArgs(2),
		RunE: runConfigCmd,
	}
}

func runConfigCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()
	out := cmd.OutOrStdout()

	switch len(args) {
	case 0:
		fmt.Fprint(out, report.New(report.Terminal, a.cfg.Theme).Settings(a.engine.Settings()))
		return nil
	case 1:
		v, ok := a.engine.Settings().Get(args[0])
		if !ok {
			return fmt.Errorf("no setting %q", args[0])
		}
		fmt.Fprintln(out, v)
		return nil
	}

	value := config.ParseValue(args[1])
	if err := a.engine.UpdateConfig(args[0], value); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	fmt.Fprintf(out, "%s = %v\n", args[0], value)
	return nil
}
