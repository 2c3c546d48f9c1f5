package hook

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cc_chime/internal/config"
	"cc_chime/internal/engine"
	"cc_chime/internal/model"
	"cc_chime/internal/report"
	"cc_chime/internal/session"
	"cc_chime/internal/store"
)

// CommandPrefix starts a prompt addressed to cc_chime instead of Claude.
const CommandPrefix = "@chime"

// historyShown is how many sessions the history command lists.
const historyShown = 10

// Player is the cue playback collaborator.
type Player interface {
	Play(ids ...string)
	SetVolume(v int)
}

// Handler dispatches hook payloads.
type Handler struct {
	engine  *engine.Engine
	cfg     *config.Config
	player  Player
	store   *store.Store
	history *store.History
	render  *report.Renderer
	log     *zap.Logger
}

// NewHandler wires a handler. st and history may be nil.
func NewHandler(e *engine.Engine, cfg *config.Config, player Player, st *store.Store, history *store.History, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		engine:  e,
		cfg:     cfg,
		player:  player,
		store:   st,
		history: history,
		render:  report.New(report.Markdown, cfg.Theme),
		log:     log,
	}
}

// Handle runs one hook event and returns what to print, if anything.
// Failures are logged; the host's workflow never depends on them.
func (h *Handler) Handle(ctx context.Context, p *Payload) *Output {
	log := h.log.With(zap.String("event", p.HookEventName), zap.String("session", p.SessionID))

	switch p.HookEventName {
	case EventSessionStart:
		h.engine.OnSessionStart(p.SessionID)
		h.lifecycle(p.HookEventName)

	case EventSessionEnd:
		h.engine.OnSessionEnd()
		h.lifecycle(p.HookEventName)

	case EventPreToolUse:
		pattern := session.ExtractPattern(p.ToolName, p.ToolInput)
		if cue := h.cfg.StartCue(pattern); cue != "" && h.soundsOn() {
			h.player.Play(cue)
		}

	case EventPostToolUse, EventPostToolUseFailure:
		success := p.HookEventName == EventPostToolUse && p.Error == "" && Success(p.ToolResponse)
		return h.toolDone(p, success)

	case EventUserPromptSubmit:
		return h.prompt(ctx, p.Prompt)

	case EventStop, EventSubagentStop, EventNotification, EventPreCompact:
		h.lifecycle(p.HookEventName)

	default:
		log.Debug("hook event ignored")
	}
	return nil
}

func (h *Handler) soundsOn() bool {
	return h.engine.Settings().Bool(config.KeySoundsEnabled, true)
}

func (h *Handler) lifecycle(event string) {
	if cue := h.cfg.LifecycleCue(event); cue != "" && h.soundsOn() {
		h.player.Play(cue)
	}
}

func (h *Handler) toolDone(p *Payload, success bool) *Output {
	// Hooks carry the session id on every event, so a missed SessionStart
	// is repaired here rather than by an anonymous implicit session.
	if p.SessionID != "" && h.engine.ActiveSession() != p.SessionID {
		h.engine.OnSessionStart(p.SessionID)
	}

	pattern := session.ExtractPattern(p.ToolName, p.ToolInput)
	res := h.engine.Process(model.ToolEvent{
		ToolName:  p.ToolName,
		Success:   success,
		Signature: session.Signature(p.ToolName, p.ToolInput),
		Cue:       h.cfg.ToolCue(pattern, success),
	})
	h.log.Debug("tool event",
		zap.String("tool", p.ToolName),
		zap.String("pattern", pattern),
		zap.Bool("success", success),
		zap.Strings("cues", res.Cues),
		zap.Bool("debounced", res.Debounced))

	h.player.Play(res.Cues...)
	if len(res.Notices) == 0 {
		return nil
	}
	return &Output{SystemMessage: h.render.Notices(res.Notices)}
}

// prompt answers "@chime <command>" prompts and blocks them from reaching Claude.
func (h *Handler) prompt(ctx context.Context, text string) *Output {
	text = strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(text, CommandPrefix)
	if !ok || (rest != "" && rest[0] != ' ') {
		return nil
	}
	return &Output{Decision: "block", Reason: h.Command(ctx, strings.Fields(rest))}
}

// Command runs one cc_chime command and returns its Markdown reply.
func (h *Handler) Command(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return h.render.Help(CommandPrefix)
	}
	switch args[0] {
	case "stats":
		return h.render.Stats(h.engine.StatsSnapshot())
	case "achievements":
		return h.render.Achievements(h.engine.AchievementSnapshot(5))
	case "combo":
		return h.render.Combo(h.engine.ComboSnapshot(), h.engine.ComboTiers())
	case "history":
		if h.history == nil {
			return "Session history is unavailable."
		}
		rows, err := h.history.Recent(ctx, historyShown)
		if err != nil {
			h.log.Warn("history query failed", zap.Error(err))
			return "Session history is unavailable."
		}
		return h.render.History(rows)
	case "perf":
		if h.store == nil {
			return "Performance data is unavailable."
		}
		sum, err := h.store.LoadPerf()
		if err != nil {
			h.log.Warn("perf summary unreadable", zap.Error(err))
		}
		return h.render.Perf(sum)
	case "config":
		return h.config(args[1:])
	default:
		return h.render.Help(CommandPrefix)
	}
}

func (h *Handler) config(args []string) string {
	switch len(args) {
	case 0:
		return h.render.Settings(h.engine.Settings())
	case 1:
		v, ok := h.engine.Settings().Get(args[0])
		if !ok {
			return fmt.Sprintf("No setting %q.", args[0])
		}
		return fmt.Sprintf("%s = %v", args[0], v)
	}

	key, value := args[0], config.ParseValue(strings.Join(args[1:], " "))
	if err := h.engine.UpdateConfig(key, value); err != nil {
		h.log.Warn("setting not saved", zap.String("key", key), zap.Error(err))
		return fmt.Sprintf("Could not set %s: %v", key, err)
	}
	if key == config.KeyVolume {
		h.player.SetVolume(h.engine.Settings().Int(config.KeyVolume, 100))
	}
	return fmt.Sprintf("✅ %s = %v", key, value)
}
