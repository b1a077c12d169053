// Package features turns raw telemetry snapshots into model-ready vectors
// using reference statistics fitted offline.
package features

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/pitwall/internal/domain/types"
)

// Strategy names how a missing field is imputed.
type Strategy string

const (
	StrategyMean        Strategy = "mean"
	StrategyMedian      Strategy = "median"
	StrategyForwardFill Strategy = "ffill"
	StrategyNone        Strategy = "none"
)

// ParseStrategy accepts the canonical names plus "forward_fill".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean":
		return StrategyMean, nil
	case "median":
		return StrategyMedian, nil
	case "ffill", "forward_fill":
		return StrategyForwardFill, nil
	case "none", "":
		return StrategyNone, nil
	}
	return "", fmt.Errorf("unknown imputation strategy %q", s)
}

// TelemetryFields is the ordered set of numeric fields a snapshot carries.
var TelemetryFields = []string{
	"vehicle_id", "lap",
	"max_speed", "avg_speed", "std_speed", "avg_throttle",
	"brake_front_freq", "brake_rear_freq", "dominant_gear", "avg_steer_angle",
	"avg_long_accel", "avg_lat_accel", "avg_rpm",
	"rolling_std_lap_time", "lap_time_delta", "tire_wear_high",
	"air_temp", "track_temp", "humidity", "pressure", "wind_speed", "wind_direction", "rain",
}

// CompoundField is the optional categorical tire hint.
const CompoundField = "tire_compound"

// FieldStats are the fitted statistics of one numeric field.
// Impute is empty when the field defers to the preprocessor default.
type FieldStats struct {
	Name   string   `json:"name"`
	Mean   float64  `json:"mean"`
	Scale  float64  `json:"scale"`
	Median float64  `json:"median"`
	Impute Strategy `json:"impute,omitempty"`
}

// Categorical is a string field encoded as its index in Vocabulary.
type Categorical struct {
	Name       string            `json:"name"`
	Vocabulary []string          `json:"vocabulary"`
	Aliases    map[string]string `json:"aliases,omitempty"`
}

// Normalize maps s onto the vocabulary and returns the canonical value and its index.
func (c Categorical) Normalize(s string) (string, int, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if alias, ok := c.Aliases[v]; ok {
		v = strings.ToUpper(alias)
	}
	for i, w := range c.Vocabulary {
		if strings.ToUpper(w) == v {
			return w, i, nil
		}
	}
	return "", -1, fmt.Errorf("%w: field %s: %q is not one of %s",
		types.ErrValidation, c.Name, s, strings.Join(c.Vocabulary, ", "))
}

// CompoundVocabulary is used when the reference does not declare the tire hint.
var CompoundVocabulary = Categorical{
	Name:       CompoundField,
	Vocabulary: []string{"SOFT", "MEDIUM", "HARD"},
	Aliases:    map[string]string{"S": "SOFT", "M": "MEDIUM", "H": "HARD"},
}

// Reference is the fitted preprocessing state: numeric statistics in vector
// order followed by categorical vocabularies.
type Reference struct {
	Fields      []FieldStats  `json:"features"`
	Categorical []Categorical `json:"categorical,omitempty"`
}

// Names returns the vector order: numeric fields, then categorical fields.
func (r Reference) Names() []string {
	names := make([]string, 0, len(r.Fields)+len(r.Categorical))
	for _, f := range r.Fields {
		names = append(names, f.Name)
	}
	for _, c := range r.Categorical {
		names = append(names, c.Name)
	}
	return names
}

// Validate rejects duplicate names, non-finite statistics and empty vocabularies.
func (r Reference) Validate() error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("%w: reference has no fields", types.ErrModelUnavailable)
	}
	seen := make(map[string]struct{}, len(r.Fields)+len(r.Categorical))
	for _, f := range r.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: reference field without name", types.ErrModelUnavailable)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate reference field %s", types.ErrModelUnavailable, f.Name)
		}
		seen[f.Name] = struct{}{}
		for _, v := range []float64{f.Mean, f.Scale, f.Median} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: field %s has non-finite statistics", types.ErrModelUnavailable, f.Name)
			}
		}
		if f.Impute != "" {
			if _, err := ParseStrategy(string(f.Impute)); err != nil {
				return fmt.Errorf("%w: field %s: %w", types.ErrModelUnavailable, f.Name, err)
			}
		}
	}
	for _, c := range r.Categorical {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: duplicate reference field %s", types.ErrModelUnavailable, c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(c.Vocabulary) == 0 {
			return fmt.Errorf("%w: categorical %s has empty vocabulary", types.ErrModelUnavailable, c.Name)
		}
	}
	return nil
}
