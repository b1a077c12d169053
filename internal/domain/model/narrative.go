package model

// EventKind classifies a derived race event.
type EventKind string

const (
	EventPitStop       EventKind = "pit_stop"
	EventPaceChange    EventKind = "pace_change"
	EventPitWindow     EventKind = "pit_window"
	EventLowConfidence EventKind = "low_confidence"
	EventExternal      EventKind = "external"
)

// RaceEvent is a human-describable moment derived from prediction history.
type RaceEvent struct {
	Lap         int       `json:"lap"`
	Kind        EventKind `json:"kind,omitempty"`
	Description string    `json:"event"`
}

// SummaryStatistics are aggregate metrics over a session's history.
// MaxSpeed stays 0 unless telemetry or the caller provides it.
type SummaryStatistics struct {
	TotalLaps      int     `json:"total_laps"`
	BestLap        float64 `json:"best_lap"`
	AvgLapTime     float64 `json:"avg_lap_time"`
	PitStops       int     `json:"pit_stops"`
	MaxSpeed       float64 `json:"max_speed"`
	FinalPosition  *int    `json:"final_position,omitempty"`
	WeatherSummary string  `json:"weather_summary,omitempty"`
	TireStrategy   string  `json:"tire_strategy,omitempty"`
}

// StatsOverrides are caller-supplied statistics that the history cannot provide.
type StatsOverrides struct {
	FinalPosition  *int     `json:"final_position,omitempty"`
	MaxSpeed       *float64 `json:"max_speed,omitempty"`
	WeatherSummary string   `json:"weather_summary,omitempty"`
	TireStrategy   string   `json:"tire_strategy,omitempty"`
}
