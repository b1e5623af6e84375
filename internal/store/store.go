// Package store provides the local transcript archive.
package store

import (
	"context"
	"time"

	"aidm/internal/domain"
)

// SessionSummary is one archived session as listed by the archive.
type SessionSummary struct {
	SessionID string
	Phase     domain.Phase
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines the interface for persisting game transcripts.
type Repository interface {
	// SaveSession creates or updates the archived session record.
	SaveSession(ctx context.Context, sessionID string, phase domain.Phase) error

	// SaveMessage creates or updates one transcript entry. Streaming
	// entries are saved again after closing, replacing the earlier text.
	SaveMessage(ctx context.Context, sessionID string, msg domain.Message) error

	// Transcript returns a session's archived messages in timeline order.
	Transcript(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Sessions lists archived sessions, most recently updated first.
	Sessions(ctx context.Context) ([]SessionSummary, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
