package session

import "time"

// Transcript is a Claude Code session transcript being tailed.
type Transcript struct {
	ID           string    // UUID from filename
	ProjectPath  string    // Working directory recorded in the transcript, or the encoded dir name
	FilePath     string    // Full path to the .jsonl file
	GitBranch    string    // Branch recorded in the transcript
	LastActivity time.Time // Modification time at discovery
}

// ToolOutcome is one completed tool call: a tool_use paired with its tool_result.
type ToolOutcome struct {
	SessionID string // Parent session; subagent calls roll into it
	ToolUseID string
	ToolName  string    // "Bash", "Edit", "mcp__github__create_issue", ...
	Pattern   string    // e.g. "Bash(git:push:*)"
	Signature string    // debounce key, pattern plus target
	Target    string    // command, file path or query the call acted on
	Success   bool      // false when the result was flagged or reads as an error
	Timestamp time.Time // when the result was recorded
}
