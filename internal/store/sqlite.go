package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aidm/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed transcript archive.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps archive writes from stalling the UI goroutines.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS game_sessions (
		session_id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_game_sessions_updated ON game_sessions(updated_at);

	CREATE TABLE IF NOT EXISTS transcript_messages (
		session_id TEXT NOT NULL,
		message_id INTEGER NOT NULL,
		sender TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, message_id)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession creates or updates the archived session record.
func (s *SQLiteStore) SaveSession(ctx context.Context, sessionID string, phase domain.Phase) error {
	now := time.Now().Unix()
	query := `
		INSERT INTO game_sessions (session_id, phase, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			phase = excluded.phase,
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, sessionID, phase.String(), now, now); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveMessage creates or updates one transcript entry.
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	query := `
		INSERT INTO transcript_messages (session_id, message_id, sender, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, message_id) DO UPDATE SET
			content = excluded.content`

	if _, err := s.db.ExecContext(ctx, query, sessionID, msg.ID, string(msg.Sender), msg.Text, time.Now().Unix()); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// Transcript returns a session's archived messages in timeline order.
func (s *SQLiteStore) Transcript(ctx context.Context, sessionID string) ([]domain.Message, error) {
	query := `
		SELECT message_id, sender, content
		FROM transcript_messages
		WHERE session_id = ?
		ORDER BY message_id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var msg domain.Message
		var sender string
		if err := rows.Scan(&msg.ID, &sender, &msg.Text); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		msg.Sender = domain.Sender(sender)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}
	return out, nil
}

// Sessions lists archived sessions, most recently updated first.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]SessionSummary, error) {
	query := `
		SELECT session_id, phase, created_at, updated_at
		FROM game_sessions
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var row SessionSummary
		var phase string
		var createdAt, updatedAt int64
		if err := rows.Scan(&row.SessionID, &phase, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		row.Phase = parsePhase(phase)
		row.CreatedAt = time.Unix(createdAt, 0)
		row.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func parsePhase(s string) domain.Phase {
	for _, p := range []domain.Phase{
		domain.PhaseInit,
		domain.PhaseWorldCreation,
		domain.PhaseCharacterCreation,
		domain.PhaseGameplay,
		domain.PhaseGameOver,
	} {
		if p.String() == s {
			return p
		}
	}
	return domain.PhaseInit
}
