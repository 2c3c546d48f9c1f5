package session

import (
	"strings"
)

// subcommandDepth is how many subcommand words are kept for a command.
// Commands not listed keep only their name.
var subcommandDepth = map[string]int{
	"git": 1, "gh": 1,
	"docker": 1, "podman": 1, "kubectl": 1, "helm": 1,
	"systemctl": 1, "launchctl": 1,
	"nix": 1, "home-manager": 1,
	"go": 1, "cargo": 1, "npm": 1, "yarn": 1, "pnpm": 1, "pip": 1, "uv": 1, "make": 1,
}

// ExtractPattern turns a tool call into a permission-style pattern such as
// "Bash(git:push:*)" or "Edit". Only Bash commands are split further.
func ExtractPattern(toolName string, input map[string]any) string {
	if toolName != "Bash" {
		return toolName
	}
	cmd, _ := input["command"].(string)
	return BashPattern(cmd)
}

// Signature keys the debouncer: the pattern plus the call's target, so that
// two edits of different files are not collapsed into one.
func Signature(toolName string, input map[string]any) string {
	pattern := ExtractPattern(toolName, input)
	if target := Target(toolName, input); target != "" {
		return pattern + " " + target
	}
	return pattern
}

// Target returns the most specific string describing what a call acted on.
func Target(toolName string, input map[string]any) string {
	field := func(names ...string) string {
		for _, n := range names {
			if s, ok := input[n].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}
	switch toolName {
	case "Bash":
		return field("command")
	case "Read", "Edit", "MultiEdit", "Write", "NotebookEdit":
		return field("file_path", "notebook_path")
	case "Grep", "Glob":
		return field("pattern", "path")
	case "WebFetch", "WebSearch":
		return field("url", "query")
	case "Task":
		return field("description", "prompt")
	}
	return field("file_path", "path", "command", "pattern", "query", "url", "description")
}

// BashPattern formats a shell command as Bash([sudo:]<cmd>[:<sub>]:*).
func BashPattern(command string) string {
	words := strings.Fields(command)
	words = skipEnvVars(words)
	if len(words) == 0 {
		return "Bash"
	}

	sudo := words[0] == "sudo"
	if sudo {
		words = skipSudoFlags(words[1:])
	}
	words = unwrapCommand(words)
	if len(words) > 0 && isShell(words[0]) {
		words = shellCommand(words)
	}

	var parts []string
	if sudo {
		parts = append(parts, "sudo")
	}
	if len(words) > 0 {
		parts = append(parts, words[0])
		parts = append(parts, subcommands(words[0], words[1:])...)
	}
	if len(parts) == 0 {
		return "Bash"
	}
	return "Bash(" + strings.Join(parts, ":") + ":*)"
}

func subcommands(cmd string, args []string) []string {
	var out []string
	for range subcommandDepth[cmd] {
		args = skipFlags(args)
		if len(args) == 0 {
			break
		}
		out = append(out, args[0])
		args = args[1:]
	}
	return out
}

func skipFlags(args []string) []string {
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		args = args[1:]
	}
	return args
}

// skipEnvVars drops leading FOO=bar assignments.
func skipEnvVars(words []string) []string {
	for len(words) > 0 && strings.Contains(words[0], "=") && !strings.HasPrefix(words[0], "-") {
		words = words[1:]
	}
	return words
}

func skipSudoFlags(words []string) []string {
	for len(words) > 0 && strings.HasPrefix(words[0], "-") {
		switch words[0] {
		case "-u", "-g", "-C", "-D", "-h", "-p":
			words = words[min(2, len(words)):]
		default:
			words = words[1:]
		}
	}
	return words
}

// unwrapCommand strips wrappers like env, time and nice that run another command.
func unwrapCommand(words []string) []string {
	if len(words) == 0 {
		return words
	}
	switch words[0] {
	case "time", "nohup", "strace", "ltrace":
		return words[1:]
	case "env", "xargs":
		for i := 1; i < len(words); i++ {
			if !strings.HasPrefix(words[i], "-") && !strings.Contains(words[i], "=") {
				return words[i:]
			}
		}
		return nil
	case "nice":
		for i := 1; i < len(words); i++ {
			switch {
			case words[i] == "-n":
				i++
			case !strings.HasPrefix(words[i], "-"):
				return words[i:]
			}
		}
		return nil
	}
	return words
}

func isShell(cmd string) bool {
	return cmd == "bash" || cmd == "sh" || cmd == "zsh"
}

// shellCommand extracts the command of `sh -c '...'`.
func shellCommand(words []string) []string {
	for i := 1; i+1 < len(words); i++ {
		if words[i] == "-c" {
			return strings.Fields(strings.Trim(strings.Join(words[i+1:], " "), `'"`))
		}
	}
	return words
}
