package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cc_chime/internal/monitor"
)

// renderDetailPanel renders the selected tool call and what it earned
func (m Model) renderDetailPanel(width, height int) string {
	panel := m.theme.Box.Width(width - 2).Height(height - 2)

	a, ok := m.Selected()
	if !ok {
		return panel.Render(m.theme.Muted.Render("Select a tool call"))
	}
	return panel.Render(m.formatActivity(a, width-4))
}

func (m Model) formatActivity(a monitor.Activity, width int) string {
	var b strings.Builder
	o, res := a.Outcome, a.Result

	b.WriteString(m.theme.Heading.Render(o.Pattern))
	b.WriteString("\n")

	if o.ToolName == "Bash" {
		if warnings := analyzeBashSecurity(o.Target); len(warnings) > 0 {
			for _, w := range warnings {
				b.WriteString(m.theme.Bad.Render("! " + w))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(wrapText(o.Target, width))
	b.WriteString("\n\n")

	field := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", m.theme.Label.Render(label), m.theme.Value.Render(value))
	}
	result := "ok"
	if !o.Success {
		result = "failed"
	}
	field("Result:", result)
	field("Session:", shortID(o.SessionID))
	field("At:", o.Timestamp.Local().Format("15:04:05"))
	if res.Debounced {
		field("Debounced:", "repeat inside window")
	}
	if len(res.Cues) > 0 {
		field("Cues:", strings.Join(res.Cues, ", "))
	}
	if res.Tier != nil {
		field("Tier:", res.Tier.Name)
	}
	if res.Broke {
		field("Combo:", "broken")
	}
	for _, u := range res.Unlocks {
		b.WriteString(m.theme.Good.Render(u.Achievement.Icon + " " + u.Achievement.Name))
		b.WriteString("\n")
	}
	for _, id := range res.Milestones {
		b.WriteString(m.theme.Warn.Render("Milestone " + id))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(b.String())
}

// securityCheck defines a check function and its warning message
type securityCheck struct {
	check   func(cmd string) bool
	warning string
}

// securityChecks contains all bash security checks
var securityChecks = []securityCheck{
	{checkRecursiveRm, "Recursive file deletion"},
	{checkSudo, "Runs with elevated privileges"},
	{checkCurlPipeShell, "Downloads and pipes to shell"},
	{checkGitForcePush, "Force push"},
	{checkGitHardReset, "Discards local changes"},
}

// analyzeBashSecurity returns warnings for risky commands
func analyzeBashSecurity(command string) []string {
	var warnings []string
	for _, sc := range securityChecks {
		if sc.check(command) {
			warnings = append(warnings, sc.warning)
		}
	}
	return warnings
}

func hasCommand(cmd, name string) bool {
	return strings.HasPrefix(cmd, name+" ") || strings.Contains(cmd, " "+name+" ") ||
		strings.Contains(cmd, ";"+name+" ") || strings.Contains(cmd, "&&"+name+" ")
}

func checkRecursiveRm(cmd string) bool {
	if !hasCommand(cmd, "rm") {
		return false
	}
	return strings.Contains(cmd, "-rf") || strings.Contains(cmd, "-r ") || strings.Contains(cmd, " -fr")
}

func checkSudo(cmd string) bool {
	return strings.Contains(cmd, "sudo ") || strings.HasPrefix(cmd, "sudo\t")
}

func checkCurlPipeShell(cmd string) bool {
	if !strings.Contains(cmd, "|") {
		return false
	}
	hasCurl := strings.Contains(cmd, "curl") || strings.Contains(cmd, "wget")
	hasShell := strings.Contains(cmd, "bash") || strings.Contains(cmd, "sh")
	return hasCurl && hasShell
}

func checkGitForcePush(cmd string) bool {
	return strings.Contains(cmd, "git push") && (strings.Contains(cmd, "--force") || strings.Contains(cmd, " -f"))
}

func checkGitHardReset(cmd string) bool {
	return strings.Contains(cmd, "git reset") && strings.Contains(cmd, "--hard")
}

// wrapText wraps text at word boundaries
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		lineLen := 0
		for _, word := range strings.Fields(line) {
			wordLen := lipgloss.Width(word)
			if lineLen+wordLen+1 > width && lineLen > 0 {
				result.WriteString("\n")
				lineLen = 0
			}
			if lineLen > 0 {
				result.WriteString(" ")
				lineLen++
			}
			result.WriteString(word)
			lineLen += wordLen
		}
	}
	return result.String()
}
