package replay

import "time"

// Config holds configuration for a replay run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Sessions   int           // Number of concurrent race sessions
	Laps       int           // Laps submitted per session
	PitLap     int           // Lap on which every car switches compound; 0 disables
	Workers    int           // Sessions replayed at once
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Seed for the telemetry generator
	OutputFile string        // Report file; empty skips writing
	Verbose    bool          // Log every submission
}

// Lap is one generated telemetry submission.
type Lap struct {
	Number    int            `json:"lap"`
	Compound  string         `json:"tire_compound"`
	Telemetry map[string]any `json:"telemetry"`
}

// SessionReport summarizes the replay of one session.
type SessionReport struct {
	SessionID     string   `json:"session_id"`
	VehicleID     int      `json:"vehicle_id"`
	Submitted     int      `json:"submitted"`
	Duplicates    int      `json:"duplicates"`
	Failed        int      `json:"failed"`
	Recorded      int      `json:"recorded"`
	PitStopLaps   []int    `json:"pit_stop_laps"`
	TireStrategy  string   `json:"tire_strategy"`
	StoryProvided bool     `json:"story_generated"`
	Problems      []string `json:"problems,omitempty"`
}

// Report is the outcome of a replay run.
type Report struct {
	BaseURL  string          `json:"base_url"`
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration"`
	Sessions []SessionReport `json:"sessions"`
}

// Problems counts verification failures across sessions.
func (r *Report) Problems() int {
	n := 0
	for _, s := range r.Sessions {
		n += len(s.Problems)
	}
	return n
}
