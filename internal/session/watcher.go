package session

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// tail is the read position and pairing state of one transcript file.
type tail struct {
	offset int64
	parser *Parser
}

// Watcher tails Claude Code transcripts under one or more projects directories
// and reports completed tool calls on Outcomes. Transcripts present at
// discovery are read from their current end; history is never replayed.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	log          *zap.Logger
	projectsDirs []string
	tails        map[string]*tail // keyed by transcript path, subagents included
	mu           sync.Mutex

	Outcomes chan ToolOutcome
	Errors   chan error
	done     chan struct{}
	stopped  sync.WaitGroup
}

// NewWatcher creates a watcher over projectsDirs.
func NewWatcher(projectsDirs []string, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		fsWatcher:    fsw,
		log:          log,
		projectsDirs: projectsDirs,
		tails:        make(map[string]*tail),
		Outcomes:     make(chan ToolOutcome, 256),
		Errors:       make(chan error, 10),
		done:         make(chan struct{}),
	}, nil
}

// Discover registers every existing transcript and returns them, most recent first.
func (w *Watcher) Discover() ([]*Transcript, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var found []*Transcript
	for _, projectsDir := range w.projectsDirs {
		// Watch the parent when the projects dir does not exist yet so its
		// creation is noticed.
		if err := w.fsWatcher.Add(projectsDir); err != nil {
			_ = w.fsWatcher.Add(filepath.Dir(projectsDir))
		}
		found = append(found, w.discoverInDir(projectsDir)...)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].LastActivity.After(found[j].LastActivity)
	})
	return found, nil
}

// discoverInDir must be called with w.mu held.
func (w *Watcher) discoverInDir(projectsDir string) []*Transcript {
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return nil
	}

	var found []*Transcript
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectDir := filepath.Join(projectsDir, entry.Name())
		_ = w.fsWatcher.Add(projectDir)

		files, _ := filepath.Glob(filepath.Join(projectDir, "*.jsonl"))
		for _, path := range files {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			w.trackLocked(path, info.Size())

			id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
			t := &Transcript{ID: id, ProjectPath: entry.Name(), FilePath: path, LastActivity: info.ModTime()}
			if meta, err := ReadMetadata(path); err == nil {
				if meta.CWD != "" {
					t.ProjectPath = meta.CWD
				}
				t.GitBranch = meta.GitBranch
			}
			found = append(found, t)

			sessionDir := filepath.Join(projectDir, id)
			_ = w.fsWatcher.Add(sessionDir)
			w.scanSubagentsLocked(sessionDir, true)
		}
	}
	return found
}

// scanSubagentsLocked tracks subagent transcripts of one session directory.
// Files found at discovery start at their end, later ones from the start.
func (w *Watcher) scanSubagentsLocked(sessionDir string, atEnd bool) []string {
	subagentDir := filepath.Join(sessionDir, "subagents")
	files, _ := filepath.Glob(filepath.Join(subagentDir, "*.jsonl"))
	var added []string
	for _, path := range files {
		if _, ok := w.tails[path]; ok {
			continue
		}
		var offset int64
		if atEnd {
			if info, err := os.Stat(path); err == nil {
				offset = info.Size()
			}
		}
		w.trackLocked(path, offset)
		added = append(added, path)
	}
	if len(files) > 0 {
		_ = w.fsWatcher.Add(subagentDir)
	}
	return added
}

func (w *Watcher) trackLocked(path string, offset int64) {
	if _, ok := w.tails[path]; ok {
		return
	}
	w.tails[path] = &tail{offset: offset, parser: NewParser(SessionIDForPath(path))}
}

// SessionIDForPath derives the session a transcript belongs to. Subagent
// transcripts live in <project>/<session>/subagents/ and map to <session>.
func SessionIDForPath(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == "subagents" {
		return filepath.Base(filepath.Dir(dir))
	}
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}

// Start begins watching for file changes
func (w *Watcher) Start() {
	w.stopped.Add(1)
	go w.watchLoop()
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsWatcher.Close()
	w.stopped.Wait()
	return err
}

func (w *Watcher) watchLoop() {
	defer w.stopped.Done()
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New project, session or subagents directory.
			_ = w.fsWatcher.Add(event.Name)
			w.mu.Lock()
			added := w.scanSubagentsLocked(filepath.Dir(event.Name), false)
			w.mu.Unlock()
			for _, path := range added {
				w.readNew(path)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}
	if event.Op.Has(fsnotify.Create) {
		w.mu.Lock()
		w.trackLocked(event.Name, 0)
		w.mu.Unlock()
	}
	if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
		w.readNew(event.Name)
	}
}

// readNew parses what was appended to a tracked transcript since the last read.
func (w *Watcher) readNew(path string) {
	w.mu.Lock()
	t, ok := w.tails[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	outcomes, offset, err := t.parser.ReadFrom(path, t.offset)
	t.offset = offset
	w.mu.Unlock()

	if err != nil {
		w.log.Debug("transcript read failed", zap.String("path", path), zap.Error(err))
	}
	for _, o := range outcomes {
		select {
		case w.Outcomes <- o:
		default:
			w.log.Warn("tool outcome dropped, consumer too slow",
				zap.String("session", o.SessionID), zap.String("tool", o.ToolName))
		}
	}
}

// ScanForNewSubagents polls for subagent transcripts that fsnotify missed
// (kqueue on macOS can race directory creation) and reads them.
func (w *Watcher) ScanForNewSubagents() {
	w.mu.Lock()
	var added []string
	for path := range w.tails {
		if filepath.Base(filepath.Dir(path)) == "subagents" {
			continue
		}
		sessionDir := strings.TrimSuffix(path, ".jsonl")
		added = append(added, w.scanSubagentsLocked(sessionDir, false)...)
	}
	w.mu.Unlock()

	for _, path := range added {
		w.readNew(path)
	}
}

// Tracked reports how many transcript files are being tailed.
func (w *Watcher) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tails)
}
