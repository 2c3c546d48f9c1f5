package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Setting keys read by the engine and cue player.
const (
	KeyVolume                   = "volume"
	KeySoundsEnabled            = "sounds.enabled"
	KeySoundsCombo              = "sounds.combo"
	KeySoundsAchievements       = "sounds.achievements"
	KeySoundsAmbient            = "sounds.ambient"
	KeyNotificationsAchievement = "notifications.achievements"
	KeyNotificationsMilestones  = "notifications.milestones"
	KeyNotificationsCombos      = "notifications.combos"
	KeyTheme                    = "theme"
)

// ErrInvalidKey is returned for an empty or malformed dotted key.
var ErrInvalidKey = errors.New("invalid settings key")

// Settings is the user-editable key/value document stored as config.json.
// Values are bool, int, string or nested Settings-shaped maps.
type Settings map[string]any

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		"volume": 100,
		"sounds": map[string]any{
			"enabled":      true,
			"combo":        true,
			"achievements": true,
			"ambient":      false,
		},
		"notifications": map[string]any{
			"achievements": true,
			"milestones":   true,
			"combos":       true,
		},
		"theme": "classic",
	}
}

// MergeDefaults fills keys missing from s with their defaults.
func (s Settings) MergeDefaults() Settings {
	merged := DefaultSettings()
	mergeInto(merged, s)
	return merged
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeInto(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	return cloneMap(s)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// Get resolves a dotted key.
func (s Settings) Get(key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = map[string]any(s)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Bool reads a boolean setting, returning def when absent or not a bool.
func (s Settings) Bool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// Int reads an integer setting. JSON numbers decode as float64 and are accepted.
func (s Settings) Int(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// String reads a string setting.
func (s Settings) String(key, def string) string {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return def
}

// Set assigns a dotted key, creating intermediate objects. A non-object
// value in the path is replaced by an object.
func (s Settings) Set(key string, value any) error {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	cur := map[string]any(s)
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// Keys lists every leaf key in dotted form, sorted.
func (s Settings) Keys() []string {
	var keys []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			full := k
			if prefix != "" {
				full = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(full, sub)
				continue
			}
			keys = append(keys, full)
		}
	}
	walk("", s)
	sort.Strings(keys)
	return keys
}

// ParseValue converts command-line text into a setting value:
// true/false become bools, all-digit text becomes an int, anything else stays a string.
func ParseValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if raw != "" && strings.Trim(raw, "0123456789") == "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return raw
}
