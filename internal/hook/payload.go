// Package hook adapts Claude Code hook invocations to engine calls. Each hook
// runs as its own process with the payload on stdin.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Hook event names.
const (
	EventSessionStart       = "SessionStart"
	EventSessionEnd         = "SessionEnd"
	EventPreToolUse         = "PreToolUse"
	EventPostToolUse        = "PostToolUse"
	EventPostToolUseFailure = "PostToolUseFailure"
	EventUserPromptSubmit   = "UserPromptSubmit"
	EventStop               = "Stop"
	EventSubagentStop       = "SubagentStop"
	EventNotification       = "Notification"
	EventPreCompact         = "PreCompact"
)

// Payload is the JSON document Claude Code writes to a hook's stdin.
type Payload struct {
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	Cwd            string          `json:"cwd"`
	HookEventName  string          `json:"hook_event_name"`
	ToolName       string          `json:"tool_name"`
	ToolInput      map[string]any  `json:"tool_input"`
	ToolResponse   json.RawMessage `json:"tool_response"`
	Error          string          `json:"error"`
	Prompt         string          `json:"prompt"`
	Source         string          `json:"source"`
	Message        string          `json:"message"`
}

// Decode reads one payload.
func Decode(r io.Reader) (*Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode hook payload: %w", err)
	}
	return &p, nil
}

// Output is the optional JSON a hook prints for Claude Code.
type Output struct {
	// Decision "block" on UserPromptSubmit swallows the prompt and shows Reason.
	Decision       string `json:"decision,omitempty"`
	Reason         string `json:"reason,omitempty"`
	SystemMessage  string `json:"systemMessage,omitempty"`
	SuppressOutput bool   `json:"suppressOutput,omitempty"`
}

// Write prints o as one JSON line. A nil Output prints nothing.
func (o *Output) Write(w io.Writer) error {
	if o == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(o)
}

// failureWords mark a plain-text tool response as a failure.
var failureWords = []string{"error", "failed", "exception"}

// Success classifies a tool response. Tools report results in many shapes, so
// this is a heuristic: explicit flags win, then exit codes, then keywords in
// plain text. Anything unrecognized counts as a success.
func Success(raw json.RawMessage) bool {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return true
	}

	switch r := v.(type) {
	case map[string]any:
		if ok, isBool := r["success"].(bool); isBool && !ok {
			return false
		}
		if e, has := r["error"]; has && !empty(e) {
			return false
		}
		for _, key := range []string{"exitCode", "exit_code"} {
			if code, isNum := r[key].(float64); isNum {
				return code == 0
			}
		}
		if isErr, isBool := r["is_error"].(bool); isBool {
			return !isErr
		}
		if interrupted, isBool := r["interrupted"].(bool); isBool && interrupted {
			return false
		}
		return true
	case string:
		lower := strings.ToLower(r)
		for _, w := range failureWords {
			if strings.Contains(lower, w) {
				return false
			}
		}
		return true
	}
	return true
}

func empty(v any) bool {
	switch e := v.(type) {
	case nil:
		return true
	case string:
		return e == ""
	case bool:
		return !e
	}
	return false
}
