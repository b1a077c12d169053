// Package repository holds session state: identity, lifecycle and the ordered
// prediction history of every session in the process.
package repository

import (
	"context"

	"github.com/okian/pitwall/internal/domain/model"
)

// SessionStore owns sessions and their prediction history.
//
// Sessions move active -> closed and never reopen. History preserves the
// arrival order of RecordPrediction calls for a session.
type SessionStore interface {
	// Create allocates a fresh active session. Fails ErrInvalidInput if vehicleID <= 0.
	Create(ctx context.Context, vehicleID int, name string) (model.Session, error)

	// Get returns a snapshot of the session including a copy of its history.
	// Fails ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (model.Session, error)

	// Info returns the session without its history. Fails ErrNotFound if the id is unknown.
	Info(ctx context.Context, id string) (model.Session, error)

	// Close marks the session closed. Closing a closed session returns it unchanged.
	Close(ctx context.Context, id string) (model.Session, error)

	// RecordPrediction appends rec. Fails ErrNotFound for unknown ids and
	// ErrConflict once the session is closed.
	RecordPrediction(ctx context.Context, id string, rec model.PredictionRecord) error

	// ListPredictions returns a copy of the history in arrival order.
	ListPredictions(ctx context.Context, id string) ([]model.PredictionRecord, error)

	// Count returns the number of active sessions and of all sessions.
	Count(ctx context.Context) (active, total int)
}
