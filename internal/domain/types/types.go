// Package types contains error kinds and result shapes shared across layers.
package types

import "github.com/okian/pitwall/internal/domain/model"

// Task names a prediction task.
type Task string

const (
	TaskLapTime Task = "lap_time"
	TaskPit     Task = "pit"
	TaskTire    Task = "tire"
	TaskAll     Task = "all"
)

// Tasks lists the individual prediction tasks in response order.
var Tasks = []Task{TaskLapTime, TaskPit, TaskTire}

// Includes reports whether t requests the individual task other.
func (t Task) Includes(other Task) bool {
	return t == TaskAll || t == other
}

// PredictionResult is the output returned for one submission.
type PredictionResult struct {
	SessionID   string               `json:"session_id"`
	VehicleID   int                  `json:"vehicle_id"`
	Lap         int                  `json:"lap"`
	LapTime     *model.LapTimeOutput `json:"lap_time,omitempty"`
	Pit         *model.PitOutput     `json:"pit,omitempty"`
	Tire        *model.TireOutput    `json:"tire,omitempty"`
	Explanation map[Task]string      `json:"explanation,omitempty"`
	Duplicate   bool                 `json:"duplicate,omitempty"`
}

// RaceStory is the composed narrative for one session.
type RaceStory struct {
	SessionID string                  `json:"session_id"`
	VehicleID int                     `json:"vehicle_id"`
	Story     string                  `json:"story"`
	Generated bool                    `json:"generated"`
	Events    []model.RaceEvent       `json:"events"`
	Summary   model.SummaryStatistics `json:"summary"`
}

// PredictionRequest is one telemetry submission for a session.
// Task selects which outputs are returned; all three are always recorded.
type PredictionRequest struct {
	SessionID    string         `json:"session_id"`
	VehicleID    int            `json:"vehicle_id"`
	Lap          int            `json:"lap"`
	Telemetry    map[string]any `json:"telemetry"`
	TireCompound string         `json:"tire_compound,omitempty"`
	Explain      bool           `json:"explain,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Task         Task           `json:"-"`
}

// SessionStoryRequest adds caller knowledge to a story derived from history.
type SessionStoryRequest struct {
	Events    []model.RaceEvent    `json:"race_events,omitempty"`
	Overrides model.StatsOverrides `json:"summary_stats"`
}

// RaceStoryRequest composes a story purely from caller-supplied data.
type RaceStoryRequest struct {
	SessionID string                  `json:"session_id"`
	VehicleID int                     `json:"vehicle_id"`
	Events    []model.RaceEvent       `json:"race_events"`
	Summary   model.SummaryStatistics `json:"summary_stats"`
}

// SessionCounts reports active and total sessions.
type SessionCounts struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// HealthStatus is the readiness report of the service.
type HealthStatus struct {
	Status            string        `json:"status"`
	ModelsLoaded      bool          `json:"models_loaded"`
	ProviderAvailable bool          `json:"provider_available"`
	Sessions          SessionCounts `json:"sessions"`
	Error             string        `json:"error,omitempty"`
}
