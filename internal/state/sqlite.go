package state

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever the layout changes
const schemaVersion = 1

// SQLiteStore keeps the active upload id in a local database file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the state database
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_info LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.Exec("INSERT INTO schema_info (version) VALUES (?)", schemaVersion)
		return err
	case err != nil:
		return err
	case version > schemaVersion:
		return fmt.Errorf("state database schema version %d is newer than supported %d", version, schemaVersion)
	default:
		return nil
	}
}

// SaveActive records uploadID as the focused upload
func (s *SQLiteStore) SaveActive(ctx context.Context, uploadID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_upload (slot, upload_id, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET upload_id = excluded.upload_id, saved_at = excluded.saved_at`,
		DefaultSlot, uploadID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save active upload: %w", err)
	}
	return nil
}

// LoadActive returns the persisted upload id, or "" when none is saved
func (s *SQLiteStore) LoadActive(ctx context.Context) (string, error) {
	var uploadID string
	err := s.db.QueryRowContext(ctx,
		"SELECT upload_id FROM active_upload WHERE slot = ?", DefaultSlot).Scan(&uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load active upload: %w", err)
	}
	return uploadID, nil
}

// ClearActive removes the persisted upload id
func (s *SQLiteStore) ClearActive(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM active_upload WHERE slot = ?", DefaultSlot)
	if err != nil {
		return fmt.Errorf("failed to clear active upload: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
