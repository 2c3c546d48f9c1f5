package tui

import (
	"github.com/charmbracelet/lipgloss"

	"cc_chime/internal/report"
)

// dangerousPatterns get the warning color wherever they are listed.
var dangerousPatterns = map[string]bool{
	"Bash(rm:*)":    true,
	"Bash(sudo:*)":  true,
	"Bash(chmod:*)": true,
	"Bash(chown:*)": true,
	"Bash(dd:*)":    true,
	"Bash(mkfs:*)":  true,
	"Bash(kill:*)":  true,
}

// toolStyle picks a color for a tool call from the theme
func toolStyle(t report.Theme, toolName, pattern string) lipgloss.Style {
	if IsDangerousPattern(pattern) {
		return t.Bad.Bold(true)
	}

	switch toolName {
	case "Bash":
		return t.Warn
	case "Edit", "MultiEdit", "Write", "NotebookEdit":
		return t.Good
	case "Task":
		return t.Heading
	default:
		return t.Value
	}
}

// IsDangerousPattern checks if a pattern warrants extra attention
func IsDangerousPattern(pattern string) bool {
	return dangerousPatterns[pattern]
}
