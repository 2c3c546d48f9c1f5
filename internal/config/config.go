package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Debounce scopes.
const (
	// ScopeCues suppresses only cues for rapid duplicates; every event is still counted.
	ScopeCues = "cues"
	// ScopeAll drops rapid duplicates entirely, the way early hook scripts did.
	ScopeAll = "all"
)

// CueGroup maps a set of tool patterns to the cues played for them
type CueGroup struct {
	// Name is the display name of this group
	Name string `yaml:"name"`

	// Patterns is a list of tool patterns that belong to this group (supports a single * wildcard)
	Patterns []string `yaml:"patterns"`

	// Start is played when the tool is about to run (optional)
	Start string `yaml:"start"`

	// Success and Error are played when the tool finishes
	Success string `yaml:"success"`
	Error   string `yaml:"error"`

	// Silent groups produce no tool cue; streak and achievement cues still play
	Silent bool `yaml:"silent"`
}

// Debounce tunes duplicate suppression
type Debounce struct {
	Window   time.Duration `yaml:"window"`
	Capacity int           `yaml:"capacity"`
	Scope    string        `yaml:"scope"`
}

// Config holds the engine configuration
type Config struct {
	// DataDir holds stats, achievements, settings and session records
	DataDir string `yaml:"data_dir"`

	// SoundsDir holds <cue>.wav files
	SoundsDir string `yaml:"sounds_dir"`

	// Theme is the color theme to use (mocha, macchiato, frappe, latte)
	Theme string `yaml:"theme"`

	Debounce Debounce `yaml:"debounce"`

	// CacheTTL bounds how long a record read is served from memory
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// FlushInterval is how often deferred writes are drained
	FlushInterval time.Duration `yaml:"flush_interval"`

	// MaxConcurrentCues bounds simultaneous playback processes
	MaxConcurrentCues int `yaml:"max_concurrent_cues"`

	// Resume carries an open session across processes through a checkpoint file
	Resume bool `yaml:"resume"`

	// ProjectsDirs are the Claude projects directories tailed by watch
	ProjectsDirs []string `yaml:"projects_dirs"`

	// CueGroups are checked in order, first match wins
	CueGroups []CueGroup `yaml:"cue_groups"`

	// LifecycleCues maps hook event names to cues
	LifecycleCues map[string]string `yaml:"lifecycle_cues"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".cc_chime")
	return &Config{
		DataDir:   dataDir,
		SoundsDir: filepath.Join(dataDir, "sounds"),
		Theme:     "mocha",
		Debounce: Debounce{
			Window:   100 * time.Millisecond,
			Capacity: 10,
			Scope:    ScopeCues,
		},
		CacheTTL:          60 * time.Second,
		FlushInterval:     500 * time.Millisecond,
		MaxConcurrentCues: 3,
		Resume:            true,
		ProjectsDirs:      []string{filepath.Join(home, ".claude", "projects")},
		CueGroups:         defaultCueGroups(),
		LifecycleCues: map[string]string{
			"SessionStart": "session_start",
			"SessionEnd":   "session_night",
			"Stop":         "session_night",
			"Notification": "warning",
			"SubagentStop": "shrine_complete",
			"PreCompact":   "menu_select",
		},
	}
}

func defaultCueGroups() []CueGroup {
	return []CueGroup{
		{
			Name:     "destructive",
			Patterns: []string{"Bash(rm:*)", "Bash(sudo:*)", "Bash(git:reset:*)", "Bash(git:push:*)"},
			Start:    "item_small",
			Success:  "success",
			Error:    "game_over",
		},
		{Name: "shell", Patterns: []string{"Bash(*)", "Bash"}, Start: "item_small", Success: "success", Error: "damage"},
		{Name: "read", Patterns: []string{"Read"}, Success: "file_open", Error: "error"},
		{Name: "write", Patterns: []string{"Write"}, Success: "file_create", Error: "build_error"},
		{Name: "edit", Patterns: []string{"Edit"}, Success: "item_small", Error: "error"},
		{Name: "multi-edit", Patterns: []string{"MultiEdit"}, Success: "achievement", Error: "build_error"},
		{Name: "notebook", Patterns: []string{"NotebookEdit"}, Success: "puzzle_solved", Error: "error"},
		{Name: "search", Patterns: []string{"Grep", "Glob", "WebFetch"}, Success: "search_found", Error: "error"},
		{Name: "web-search", Patterns: []string{"WebSearch"}, Success: "search_complete", Error: "error"},
		{Name: "listing", Patterns: []string{"LS", "ExitPlanMode"}, Success: "menu_select", Error: "error"},
		{Name: "task", Patterns: []string{"Task"}, Start: "notification", Success: "shrine_complete", Error: "game_over"},
		{Name: "todo", Patterns: []string{"TodoWrite"}, Success: "todo_complete", Error: "error"},
		{Name: "mcp", Patterns: []string{"mcp__*"}, Success: "success", Error: "error"},
		{Name: "other", Patterns: []string{"*"}, Success: "success", Error: "error"},
	}
}

// Load reads the config from a YAML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) //nolint:gosec // config path from known locations
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, err
	}

	// Sounds follow data_dir unless set explicitly
	cfg.SoundsDir = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.fill()

	return cfg, nil
}

// fill restores defaults for values a partial file zeroed out
func (c *Config) fill() {
	def := DefaultConfig()
	c.DataDir = expandHome(c.DataDir)
	c.SoundsDir = expandHome(c.SoundsDir)
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.SoundsDir == "" {
		c.SoundsDir = filepath.Join(c.DataDir, "sounds")
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = def.Debounce.Window
	}
	if c.Debounce.Capacity <= 0 {
		c.Debounce.Capacity = def.Debounce.Capacity
	}
	if c.Debounce.Scope != ScopeAll {
		c.Debounce.Scope = ScopeCues
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = def.FlushInterval
	}
	if c.MaxConcurrentCues <= 0 {
		c.MaxConcurrentCues = def.MaxConcurrentCues
	}
	for i, dir := range c.ProjectsDirs {
		c.ProjectsDirs[i] = expandHome(dir)
	}
	if c.LifecycleCues == nil {
		c.LifecycleCues = map[string]string{}
	}
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DefaultPaths lists the config locations in lookup order
func DefaultPaths() []string {
	paths := []string{"cc_chime.yaml"}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "cc_chime", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "cc_chime", "config.yaml"))
	}
	return paths
}

// LoadFromDefaultPath attempts to load config from standard locations
func LoadFromDefaultPath() (*Config, error) {
	for _, path := range DefaultPaths() {
		cleanPath := filepath.Clean(path)
		if _, err := os.Stat(cleanPath); err == nil { //nolint:gosec // config path from known locations
			return Load(cleanPath)
		}
	}

	return DefaultConfig(), nil
}

// CueGroup returns the first matching cue group for a tool pattern, or nil
func (c *Config) CueGroup(pattern string) *CueGroup {
	for i := range c.CueGroups {
		group := &c.CueGroups[i]
		if group.Matches(pattern) {
			return group
		}
	}
	return nil
}

// ToolCue returns the cue for a finished tool, or "" when none applies
func (c *Config) ToolCue(pattern string, success bool) string {
	group := c.CueGroup(pattern)
	if group == nil || group.Silent {
		return ""
	}
	if success {
		return group.Success
	}
	return group.Error
}

// StartCue returns the cue for a tool about to run, or ""
func (c *Config) StartCue(pattern string) string {
	group := c.CueGroup(pattern)
	if group == nil || group.Silent {
		return ""
	}
	return group.Start
}

// LifecycleCue returns the cue configured for a hook event, or ""
func (c *Config) LifecycleCue(event string) string {
	return c.LifecycleCues[event]
}

// Matches returns true if the pattern matches this group
func (g *CueGroup) Matches(pattern string) bool {
	for _, p := range g.Patterns {
		if matchPattern(p, pattern) {
			return true
		}
	}
	return false
}

// matchPattern checks if a pattern matches (supports * wildcards)
func matchPattern(pattern, value string) bool {
	if pattern == value {
		return true
	}

	// Single * anywhere in pattern, e.g. "Bash(rm:*)" matches "Bash(rm:rf:*)"
	prefix, suffix, found := strings.Cut(pattern, "*")
	if !found {
		return false
	}
	return len(value) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(value, prefix) && strings.HasSuffix(value, suffix)
}
