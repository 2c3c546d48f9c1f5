// Package store persists engine records as JSON documents in a data directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"cc_chime/internal/metrics"
)

// Record names relative to the data directory.
const (
	AllTimeFile    = "all_time_stats.json"
	ProgressFile   = "achievement_progress.json"
	SettingsFile   = "config.json"
	CheckpointFile = "active_session.json"
	PerfFile       = "perf.json"
	SessionsDir    = "sessions"
	HistoryFile    = "history.db"
)

// Defaults for Options.
const (
	DefaultCacheTTL  = 60 * time.Second
	DefaultCacheSize = 64
)

// Options tunes the read cache.
type Options struct {
	CacheTTL  time.Duration
	CacheSize int

	// Metrics, when set, times record I/O and counts cache lookups.
	Metrics *metrics.Recorder
}

// Store reads and writes JSON records under one directory.
type Store struct {
	dir     string
	log     *zap.Logger
	cache   *expirable.LRU[string, []byte]
	metrics *metrics.Recorder

	// mu serializes disk access and cache fills so a read never caches
	// bytes older than a concurrent write.
	mu sync.Mutex
}

// Open creates the data directory layout. An error here is fatal for callers.
func Open(dir string, opts Options, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if err := os.MkdirAll(filepath.Join(dir, SessionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		dir:     dir,
		log:     log,
		cache:   expirable.NewLRU[string, []byte](opts.CacheSize, nil, opts.CacheTTL),
		metrics: opts.Metrics,
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute location of a record.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// SessionFile names the record of a finalized session.
func SessionFile(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, id)
	if clean == "" || clean == "." || clean == ".." {
		clean = "_"
	}
	return SessionsDir + "/" + clean + ".json"
}

// ReadJSON decodes a record into v. Missing records return ErrNotFound.
// Undecodable records are moved aside and reported as *CorruptRecordError.
func (s *Store) ReadJSON(name string, v any) error {
	data, err := s.load(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.quarantine(name)
		return &CorruptRecordError{Path: s.Path(name), Err: err}
	}
	return nil
}

// load returns a record's bytes from the cache or from disk.
func (s *Store) load(name string) ([]byte, error) {
	if data, ok := s.cache.Get(name); ok {
		s.metrics.CacheLookup(true)
		return data, nil
	}
	s.metrics.CacheLookup(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.cache.Get(name); ok {
		return data, nil
	}
	start := time.Now()
	data, err := os.ReadFile(s.Path(name))
	s.metrics.Since(metrics.OpRead, start)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	s.cache.Add(name, data)
	return data, nil
}

// Exists reports whether a record is stored.
func (s *Store) Exists(name string) bool {
	if s.cache.Contains(name) {
		return true
	}
	_, err := os.Stat(s.Path(name))
	return err == nil
}

func (s *Store) quarantine(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(name)
	path := s.Path(name)
	if err := os.Rename(path, path+".corrupt"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("move corrupt record aside", zap.String("path", path), zap.Error(err))
	}
}

// WriteJSON atomically replaces a record, retrying once before giving up.
func (s *Store) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &WriteError{Path: s.Path(name), Err: err}
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.metrics.Since(metrics.OpWrite, time.Now())

	path := s.Path(name)
	if err = writeFileAtomic(path, data, 0o644); err != nil {
		s.log.Debug("retrying record write", zap.String("path", path), zap.Error(err))
		err = writeFileAtomic(path, data, 0o644)
	}
	if err != nil {
		s.cache.Remove(name)
		return &WriteError{Path: path, Err: err}
	}
	s.cache.Add(name, data)
	return nil
}

// Remove deletes a record. Removing a missing record is not an error.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(name)
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
