package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	useBash = `{"type":"assistant","timestamp":"2026-03-14T09:00:00Z","sessionId":"s1","cwd":"/work/app","gitBranch":"main","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu1","name":"Bash","input":{"command":"git push origin main"}}]}}`
	resOK   = `{"type":"user","timestamp":"2026-03-14T09:00:02Z","sessionId":"s1","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu1","content":"Everything up-to-date"}]}}`
	useEdit = `{"type":"assistant","timestamp":"2026-03-14T09:00:03Z","sessionId":"s1","message":{"role":"assistant","content":[{"type":"text","text":"editing"},{"type":"tool_use","id":"tu2","name":"Edit","input":{"file_path":"/work/app/main.go"}}]}}`
	resErr  = `{"type":"user","timestamp":"2026-03-14T09:00:04Z","sessionId":"s1","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu2","is_error":true,"content":[{"type":"text","text":"String not found"}]}]}}`
	prompt  = `{"type":"user","timestamp":"2026-03-14T09:00:05Z","sessionId":"s1","message":{"role":"user","content":"please continue"}}`
)

func TestParserPairsUseWithResult(t *testing.T) {
	p := NewParser("")

	if got := p.Line([]byte(useBash)); len(got) != 0 {
		t.Fatalf("tool_use alone produced %d outcomes", len(got))
	}
	if p.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", p.Pending())
	}

	got := p.Line([]byte(resOK))
	if len(got) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(got))
	}
	o := got[0]
	if o.SessionID != "s1" || o.ToolName != "Bash" || !o.Success {
		t.Errorf("unexpected outcome %+v", o)
	}
	if o.Pattern != "Bash(git:push:*)" {
		t.Errorf("Pattern = %q", o.Pattern)
	}
	if o.Target != "git push origin main" {
		t.Errorf("Target = %q", o.Target)
	}
	if p.Meta.CWD != "/work/app" || p.Meta.GitBranch != "main" {
		t.Errorf("Meta = %+v", p.Meta)
	}
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d after result", p.Pending())
	}
}

func TestParserErrorResults(t *testing.T) {
	p := NewParser("")
	p.Line([]byte(useEdit))

	got := p.Line([]byte(resErr))
	if len(got) != 1 || got[0].Success {
		t.Fatalf("is_error result should be a failure: %+v", got)
	}

	tests := []struct {
		text string
		want bool
	}{
		{"Error: exit status 1", true},
		{"failed to compile", true},
		{"<tool_use_error>File has not been read yet</tool_use_error>", true},
		{"ok", false},
		{"no errors found", false},
	}
	for _, tt := range tests {
		if got := isErrorResult(tt.text); got != tt.want {
			t.Errorf("isErrorResult(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestParserIgnoresNoise(t *testing.T) {
	p := NewParser("")
	for _, line := range []string{"", "not json", prompt, resOK} {
		if got := p.Line([]byte(line)); len(got) != 0 {
			t.Errorf("Line(%q) produced %+v", line, got)
		}
	}
}

func TestParserSessionOverride(t *testing.T) {
	p := NewParser("parent")
	p.Line([]byte(useBash))
	got := p.Line([]byte(resOK))
	if len(got) != 1 || got[0].SessionID != "parent" {
		t.Fatalf("subagent outcome should report the parent session: %+v", got)
	}
}

func TestParserPendingIsBounded(t *testing.T) {
	p := NewParser("")
	for i := range maxPending + 10 {
		line := strings.Replace(useBash, `"id":"tu1"`, `"id":"x`+strings.Repeat("y", i)+`"`, 1)
		p.Line([]byte(line))
	}
	if p.Pending() != maxPending {
		t.Errorf("Pending() = %d, want %d", p.Pending(), maxPending)
	}
}

func TestReadFromKeepsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.jsonl")
	content := useBash + "\n" + resOK + "\n" + useEdit + "\n" + resErr[:40]
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser("")
	got, offset, err := p.ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(got))
	}
	wantOffset := int64(len(useBash) + len(resOK) + len(useEdit) + 3)
	if offset != wantOffset {
		t.Fatalf("offset = %d, want %d", offset, wantOffset)
	}

	// Finish the partial line and read again from the returned offset.
	if err := os.WriteFile(path, []byte(content+resErr[40:]+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, _, err = p.ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if len(got) != 1 || got[0].ToolName != "Edit" || got[0].Success {
		t.Errorf("second read = %+v", got)
	}
}

func TestReadFromTruncatedFileRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.jsonl")
	if err := os.WriteFile(path, []byte(useBash+"\n"+resOK+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, _, err := NewParser("").ReadFrom(path, 1<<20)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("truncated file should be reread from the start, got %d outcomes", len(got))
	}
}

func TestSessionIDForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/p/proj/abc.jsonl", "abc"},
		{"/p/proj/abc/subagents/agent-1.jsonl", "abc"},
	}
	for _, tt := range tests {
		if got := SessionIDForPath(tt.path); got != tt.want {
			t.Errorf("SessionIDForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
