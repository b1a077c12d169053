// Package model contains domain models passed between layers.
package model

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// Session is a tracked sequence of predictions for one vehicle over one race.
// Values handed out by the store are snapshots; History is a copy.
type Session struct {
	ID        string             `json:"session_id"`
	VehicleID int                `json:"vehicle_id"`
	Name      string             `json:"race_name"`
	CreatedAt time.Time          `json:"created_at"`
	ClosedAt  *time.Time         `json:"closed_at,omitempty"`
	Status    SessionStatus      `json:"status"`
	History   []PredictionRecord `json:"-"`
}

// Active reports whether the session still accepts predictions.
func (s Session) Active() bool { return s.Status == StatusActive }

// PredictionCount returns the number of recorded predictions.
func (s Session) PredictionCount() int { return len(s.History) }
