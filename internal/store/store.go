// Package store provides a SQLite-backed archive of recorded device
// commands for post-mortem inspection of test runs.
//
// The archive is write-only from the harness's point of view: it is never
// read back to restore recorder or engine state across restarts. Reads
// exist for external inspection and tests.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Command is one archived device-control invocation.
type Command struct {
	Seq       int64
	Action    string
	DeviceID  string
	Params    map[string]any
	Timestamp time.Time
}

// Store is a SQLite command archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive database at the given path.
// Use ":memory:" for an ephemeral in-process archive (tests).
//
// The database is configured with WAL mode, NORMAL synchronous, a busy
// timeout for lock contention, and a single writer connection (SQLite
// supports only one writer at a time).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteCommand inserts an archived command.
// Duplicate seq values are silently ignored so a retried write stays
// idempotent.
func (s *Store) WriteCommand(ctx context.Context, cmd Command) error {
	params := cmd.Params
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("write command %d: marshal params: %w", cmd.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands (seq, action, device_id, params, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		cmd.Seq,
		cmd.Action,
		cmd.DeviceID,
		string(paramsJSON),
		cmd.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write command %d: %w", cmd.Seq, err)
	}
	return nil
}

// ListCommands returns all archived commands ordered by seq.
func (s *Store) ListCommands(ctx context.Context) ([]Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, action, device_id, params, timestamp
		FROM commands
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	var cmds []Command
	for rows.Next() {
		var (
			cmd        Command
			paramsJSON string
			ts         string
		)
		if err := rows.Scan(&cmd.Seq, &cmd.Action, &cmd.DeviceID, &paramsJSON, &ts); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &cmd.Params); err != nil {
			return nil, fmt.Errorf("command %d: unmarshal params: %w", cmd.Seq, err)
		}
		cmd.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("command %d: parse timestamp: %w", cmd.Seq, err)
		}
		cmds = append(cmds, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	return cmds, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}
