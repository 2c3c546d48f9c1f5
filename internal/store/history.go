package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"cc_chime/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// History indexes finalized sessions in SQLite for listing without reading
// every session file.
type History struct {
	db *sql.DB
}

// OpenHistory opens or creates the history database and applies migrations.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	h := &History{db: db}
	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			total_commands INTEGER NOT NULL,
			successful_commands INTEGER NOT NULL,
			failed_commands INTEGER NOT NULL,
			max_streak INTEGER NOT NULL,
			achievements TEXT NOT NULL,
			tools TEXT NOT NULL,
			implicit INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := h.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores a finalized session, replacing an earlier row with the same id.
func (h *History) Insert(ctx context.Context, s *model.SessionRecord) error {
	tools, err := json.Marshal(s.ToolsUsed)
	if err != nil {
		return err
	}
	achievements, err := json.Marshal(s.AchievementsUnlocked)
	if err != nil {
		return err
	}
	ended := s.StartTime
	if s.EndTime != nil {
		ended = *s.EndTime
	}
	implicit := 0
	if s.Implicit {
		implicit = 1
	}

	_, err = h.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, total_commands, successful_commands, failed_commands, max_streak, achievements, tools, implicit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			total_commands = excluded.total_commands,
			successful_commands = excluded.successful_commands,
			failed_commands = excluded.failed_commands,
			max_streak = excluded.max_streak,
			achievements = excluded.achievements,
			tools = excluded.tools,
			implicit = excluded.implicit`,
		s.SessionID,
		s.StartTime.UTC().Format(time.RFC3339Nano),
		ended.UTC().Format(time.RFC3339Nano),
		s.TotalCommands,
		s.SuccessfulCommands,
		s.FailedCommands,
		s.MaxStreak,
		string(achievements),
		string(tools),
		implicit,
	)
	return err
}

// Recent returns up to n sessions, most recently ended first.
func (h *History) Recent(ctx context.Context, n int) ([]*model.SessionRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, total_commands, successful_commands, failed_commands, max_streak, achievements, tools, implicit
		 FROM sessions
		 ORDER BY ended_at DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*model.SessionRecord
	for rows.Next() {
		var (
			rec                 model.SessionRecord
			started, ended      string
			achievements, tools string
			implicit            int
		)
		if err := rows.Scan(&rec.SessionID, &started, &ended, &rec.TotalCommands, &rec.SuccessfulCommands,
			&rec.FailedCommands, &rec.MaxStreak, &achievements, &tools, &implicit); err != nil {
			return nil, err
		}
		if rec.StartTime, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		end, err := time.Parse(time.RFC3339Nano, ended)
		if err != nil {
			return nil, err
		}
		rec.EndTime = &end
		if err := json.Unmarshal([]byte(achievements), &rec.AchievementsUnlocked); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tools), &rec.ToolsUsed); err != nil {
			return nil, err
		}
		rec.Version = model.SchemaVersion
		rec.Implicit = implicit != 0
		rec.Normalize()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
