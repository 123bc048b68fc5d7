package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"go-chat-stream/internal/infrastructure/logger"
)

// Store is the sqlite-backed chat store. It persists accounts, channels,
// messages, and reactions; committed state changes are what collaborators
// publish to the hub after calling it.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens (creating if needed) the sqlite database at path and
// ensures the schema.
func Open(ctx context.Context, path string, log logger.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: log.WithField("component", "store"),
	}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username      TEXT PRIMARY KEY,
			password_hash BLOB NOT NULL,
			role          TEXT NOT NULL,
			status        TEXT NOT NULL,
			created       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			visibility  TEXT NOT NULL DEFAULT 'public',
			created     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_members (
			channel_id TEXT NOT NULL,
			username   TEXT NOT NULL,
			PRIMARY KEY (channel_id, username),
			FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			profile_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			created    TEXT NOT NULL,
			FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created)`,
		`CREATE TABLE IF NOT EXISTS reactions (
			id         TEXT PRIMARY KEY,
			message_id TEXT NOT NULL,
			username   TEXT NOT NULL,
			gif_url    TEXT NOT NULL DEFAULT '',
			gif_id     TEXT NOT NULL DEFAULT '',
			emoji      TEXT NOT NULL DEFAULT '',
			created    TEXT NOT NULL,
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id)`,
		`CREATE TABLE IF NOT EXISTS active_users (
			profile_id TEXT PRIMARY KEY,
			last_seen  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS auth_attempts (
			key      TEXT PRIMARY KEY,
			count    INTEGER NOT NULL,
			reset_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
