package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatal(err)
		}
	}
}

func nextOutcome(t *testing.T, w *Watcher) ToolOutcome {
	t.Helper()
	select {
	case o := <-w.Outcomes:
		return o
	case err := <-w.Errors:
		t.Fatalf("watcher error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a tool outcome")
	}
	return ToolOutcome{}
}

func TestWatcherTailsAppendedCalls(t *testing.T) {
	projects := t.TempDir()
	projectDir := filepath.Join(projects, "-work-app")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(projectDir, "s1.jsonl")
	// History present before discovery is not replayed.
	appendLines(t, path, useBash, resOK)

	w, err := NewWatcher([]string{projects}, nil)
	if err != nil {
		t.Fatal(err)
	}
	found, err := w.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != "s1" || found[0].ProjectPath != "/work/app" {
		t.Fatalf("Discover() = %+v", found)
	}
	w.Start()
	defer func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}()

	appendLines(t, path, useEdit, resErr)

	o := nextOutcome(t, w)
	if o.ToolName != "Edit" || o.Success || o.SessionID != "s1" {
		t.Errorf("outcome = %+v", o)
	}
	select {
	case extra := <-w.Outcomes:
		t.Errorf("history was replayed: %+v", extra)
	default:
	}
}

func TestWatcherPicksUpNewTranscript(t *testing.T) {
	projects := t.TempDir()
	projectDir := filepath.Join(projects, "-work-app")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher([]string{projects}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Discover(); err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	appendLines(t, filepath.Join(projectDir, "s2.jsonl"), useBash, resOK)

	o := nextOutcome(t, w)
	if o.ToolName != "Bash" || !o.Success {
		t.Errorf("outcome = %+v", o)
	}
	if w.Tracked() != 1 {
		t.Errorf("Tracked() = %d, want 1", w.Tracked())
	}
}

func TestScanForNewSubagents(t *testing.T) {
	projects := t.TempDir()
	projectDir := filepath.Join(projects, "-work-app")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}
	appendLines(t, filepath.Join(projectDir, "s1.jsonl"), prompt)

	w, err := NewWatcher([]string{projects}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Discover(); err != nil {
		t.Fatal(err)
	}

	subDir := filepath.Join(projectDir, "s1", "subagents")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	appendLines(t, filepath.Join(subDir, "agent-1.jsonl"), useBash, resOK)

	// Polling without the event loop running.
	w.ScanForNewSubagents()
	defer w.fsWatcher.Close()

	o := nextOutcome(t, w)
	if o.SessionID != "s1" {
		t.Errorf("subagent outcome SessionID = %q, want parent s1", o.SessionID)
	}
}
