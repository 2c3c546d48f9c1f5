package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Debounce.Window != 100*time.Millisecond {
		t.Errorf("Debounce.Window = %v, want 100ms", cfg.Debounce.Window)
	}
	if cfg.Debounce.Capacity != 10 {
		t.Errorf("Debounce.Capacity = %d, want 10", cfg.Debounce.Capacity)
	}
	if cfg.Debounce.Scope != ScopeCues {
		t.Errorf("Debounce.Scope = %q, want %q", cfg.Debounce.Scope, ScopeCues)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
	}
	if !cfg.Resume {
		t.Error("Resume should default to true")
	}

	// The last group must catch everything so every tool gets a cue
	last := cfg.CueGroups[len(cfg.CueGroups)-1]
	if !last.Matches("SomeFutureTool") {
		t.Error("default cue groups should end with a catch-all")
	}
}

func TestToolCue(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		pattern string
		success bool
		want    string
	}{
		{"Bash(rm:*)", false, "game_over"},
		{"Bash(sudo:apt:*)", true, "success"},
		{"Bash(git:status:*)", false, "damage"},
		{"Bash", true, "success"},
		{"Read", true, "file_open"},
		{"Edit", false, "error"},
		{"Grep", true, "search_found"},
		{"mcp__github__create_issue", true, "success"},
		{"Unknown", false, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := cfg.ToolCue(tt.pattern, tt.success); got != tt.want {
				t.Errorf("ToolCue(%q, %v) = %q, want %q", tt.pattern, tt.success, got, tt.want)
			}
		})
	}
}

func TestSilentGroup(t *testing.T) {
	cfg := &Config{
		CueGroups: []CueGroup{
			{Name: "quiet", Patterns: []string{"Read"}, Success: "file_open", Silent: true},
			{Name: "rest", Patterns: []string{"*"}, Success: "success", Start: "item_small"},
		},
	}

	if got := cfg.ToolCue("Read", true); got != "" {
		t.Errorf("silent group should have no cue, got %q", got)
	}
	if got := cfg.StartCue("Read"); got != "" {
		t.Errorf("silent group should have no start cue, got %q", got)
	}
	if got := cfg.StartCue("Bash"); got != "item_small" {
		t.Errorf("StartCue(Bash) = %q, want item_small", got)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"Read", "Read", true},
		{"Read", "ReadAll", false},
		{"Bash(rm:*)", "Bash(rm:*)", true},
		{"Bash(*)", "Bash(git:log:*)", true},
		{"Bash(*)", "Bash", false},
		{"mcp__*", "mcp__fs__read", true},
		{"*", "anything", true},
		{"a*a", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.value, func(t *testing.T) {
			if got := matchPattern(tt.pattern, tt.value); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.value, got, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cc_chime.yaml")

	content := `data_dir: ` + filepath.Join(tmpDir, "data") + `
debounce:
  window: 250ms
  scope: all
flush_interval: 2s
cue_groups:
  - name: git
    patterns: ["Bash(git:*)"]
    success: heart_get
    error: damage
lifecycle_cues:
  Stop: fanfare
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Debounce.Window != 250*time.Millisecond {
		t.Errorf("Debounce.Window = %v, want 250ms", cfg.Debounce.Window)
	}
	if cfg.Debounce.Capacity != 10 {
		t.Errorf("unset capacity should keep its default, got %d", cfg.Debounce.Capacity)
	}
	if cfg.Debounce.Scope != ScopeAll {
		t.Errorf("Debounce.Scope = %q, want all", cfg.Debounce.Scope)
	}
	if cfg.FlushInterval != 2*time.Second {
		t.Errorf("FlushInterval = %v, want 2s", cfg.FlushInterval)
	}
	if want := filepath.Join(tmpDir, "data", "sounds"); cfg.SoundsDir != want {
		t.Errorf("DataDir = %q, SoundsDir = %q, want sounds under %q", cfg.DataDir, cfg.SoundsDir, want)
	}
	if len(cfg.CueGroups) != 1 || cfg.ToolCue("Bash(git:commit:*)", true) != "heart_get" {
		t.Errorf("cue groups not loaded: %+v", cfg.CueGroups)
	}
	if got := cfg.LifecycleCue("Stop"); got != "fanfare" {
		t.Errorf("LifecycleCue(Stop) = %q, want fanfare", got)
	}
}

func TestLoadUnknownScopeFallsBack(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "cc_chime.yaml")
	if err := os.WriteFile(configPath, []byte("debounce:\n  scope: sometimes\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Debounce.Scope != ScopeCues {
		t.Errorf("Debounce.Scope = %q, want %q", cfg.Debounce.Scope, ScopeCues)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "cc_chime.yaml")
	if err := os.WriteFile(configPath, []byte("debounce: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() should not error for missing file, got: %v", err)
	}

	if len(cfg.CueGroups) == 0 {
		t.Error("Should return default config with cue groups")
	}
}

func TestLoadFromDefaultPathXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Chdir(t.TempDir())
	dir := filepath.Join(xdg, "cc_chime")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("theme: latte\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDefaultPath()
	if err != nil {
		t.Fatalf("LoadFromDefaultPath() error = %v", err)
	}
	if cfg.Theme != "latte" {
		t.Errorf("Theme = %q, want latte", cfg.Theme)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := expandHome("~/data"); got != filepath.Join(home, "data") {
		t.Errorf("expandHome(~/data) = %q", got)
	}
	if got := expandHome("/abs"); got != "/abs" {
		t.Errorf("expandHome(/abs) = %q", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"75", 75},
		{"007", 7},
		{"-5", "-5"},
		{"1.5", "1.5"},
		{"", ""},
		{"ocarina", "ocarina"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseValue(tt.raw); got != tt.want {
				t.Errorf("ParseValue(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSettingsSetCreatesIntermediateObjects(t *testing.T) {
	s := DefaultSettings()

	if err := s.Set("sounds.combo", false); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("display.colors.accent", "green"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("volume.left", 3); err != nil {
		t.Fatal(err)
	}

	if s.Bool(KeySoundsCombo, true) {
		t.Error("sounds.combo should be false")
	}
	if !s.Bool(KeySoundsEnabled, false) {
		t.Error("sibling keys must survive")
	}
	if got := s.String("display.colors.accent", ""); got != "green" {
		t.Errorf("display.colors.accent = %q", got)
	}
	if got := s.Int("volume.left", 0); got != 3 {
		t.Errorf("volume.left = %d, want 3", got)
	}
}

func TestSettingsSetRejectsEmptySegments(t *testing.T) {
	s := Settings{}
	for _, key := range []string{"", ".", "a..b", "a."} {
		if err := s.Set(key, 1); err == nil {
			t.Errorf("Set(%q) should fail", key)
		}
	}
}

func TestSettingsJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatal(err)
	}

	// Numbers come back as float64 and still read as ints
	if got := s.Int(KeyVolume, 0); got != 100 {
		t.Errorf("volume = %d, want 100", got)
	}
	if !reflect.DeepEqual(s.Keys(), DefaultSettings().Keys()) {
		t.Errorf("keys differ after round trip: %v", s.Keys())
	}
}

func TestMergeDefaults(t *testing.T) {
	stored := Settings{"sounds": map[string]any{"combo": false}, "custom": "x"}

	merged := stored.MergeDefaults()

	if merged.Bool(KeySoundsCombo, true) {
		t.Error("stored value should win")
	}
	if !merged.Bool(KeySoundsAchievements, false) {
		t.Error("missing nested key should come from defaults")
	}
	if merged.String("custom", "") != "x" {
		t.Error("unknown keys should be kept")
	}
	if merged.Int(KeyVolume, 0) != 100 {
		t.Error("missing top-level key should come from defaults")
	}
}

func TestSettingsCloneIsDeep(t *testing.T) {
	s := DefaultSettings()
	c := s.Clone()
	if err := c.Set("sounds.enabled", false); err != nil {
		t.Fatal(err)
	}

	if !s.Bool(KeySoundsEnabled, false) {
		t.Error("Clone shares nested maps")
	}
}
