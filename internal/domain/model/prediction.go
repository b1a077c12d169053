package model

import (
	"fmt"
	"strings"
	"time"
)

// TireCompound is the canonical dry-compound vocabulary.
type TireCompound string

const (
	CompoundSoft   TireCompound = "SOFT"
	CompoundMedium TireCompound = "MEDIUM"
	CompoundHard   TireCompound = "HARD"
)

// Compounds lists the canonical compounds in softest-first order.
var Compounds = []TireCompound{CompoundSoft, CompoundMedium, CompoundHard}

// ParseCompound maps free text onto the canonical vocabulary.
// Single-letter abbreviations are accepted.
func ParseCompound(s string) (TireCompound, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SOFT", "S":
		return CompoundSoft, nil
	case "MEDIUM", "M":
		return CompoundMedium, nil
	case "HARD", "H":
		return CompoundHard, nil
	}
	return "", fmt.Errorf("unrecognized tire compound %q", s)
}

// LapTimeOutput is the regression result.
type LapTimeOutput struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// PitOutput is the pit-imminent classification result.
type PitOutput struct {
	Imminent    bool    `json:"imminent"`
	Probability float64 `json:"probability"`
}

// TireOutput is the compound classification result. In a recorded prediction
// with a reported compound, Compound carries it with confidence 1 and Suggested
// keeps the classifier's choice. The tire-only response instead leads with the
// classifier and reports the compound in Fitted.
type TireOutput struct {
	Compound   TireCompound `json:"compound"`
	Confidence float64      `json:"confidence"`
	Suggested  TireCompound `json:"suggested,omitempty"`
	Fitted     TireCompound `json:"fitted,omitempty"`
}

// Prediction combines the three task outputs.
type Prediction struct {
	LapTime LapTimeOutput `json:"lap_time"`
	Pit     PitOutput     `json:"pit"`
	Tire    TireOutput    `json:"tire"`
}

// PredictionRecord is one appended entry of a session's history. Immutable once appended.
type PredictionRecord struct {
	SessionID string        `json:"session_id"`
	VehicleID int           `json:"vehicle_id"`
	Lap       int           `json:"lap"`
	LapTime   LapTimeOutput `json:"lap_time"`
	Pit       PitOutput     `json:"pit"`
	Tire      TireOutput    `json:"tire"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewPredictionRecord stamps a prediction for one lap.
func NewPredictionRecord(sessionID string, vehicleID, lap int, p Prediction, ts time.Time) PredictionRecord {
	return PredictionRecord{
		SessionID: sessionID,
		VehicleID: vehicleID,
		Lap:       lap,
		LapTime:   p.LapTime,
		Pit:       p.Pit,
		Tire:      p.Tire,
		Timestamp: ts.UTC(),
	}
}
