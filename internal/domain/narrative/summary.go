package narrative

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

const strategySeparator = " → "

// Summarize computes aggregate statistics over history. MaxSpeed stays 0 and
// FinalPosition unset; callers may fill them from other sources.
func (e *Extractor) Summarize(history []model.PredictionRecord) model.SummaryStatistics {
	_, stats := e.Analyze(history)
	return stats
}

// Analyze returns the events and the statistics derived from the same pass.
func (e *Extractor) Analyze(history []model.PredictionRecord) ([]model.RaceEvent, model.SummaryStatistics) {
	events := e.ExtractEvents(history)
	stats := model.SummaryStatistics{}
	if len(history) == 0 {
		return events, stats
	}

	laps := make(map[int]struct{}, len(history))
	best := math.Inf(1)
	var sum float64
	for _, rec := range history {
		laps[rec.Lap] = struct{}{}
		best = math.Min(best, rec.LapTime.Value)
		sum += rec.LapTime.Value
	}
	stats.TotalLaps = len(laps)
	stats.BestLap = round3(best)
	stats.AvgLapTime = round3(sum / float64(len(history)))

	for _, ev := range events {
		if ev.Kind == model.EventPitStop {
			stats.PitStops++
		}
	}
	stats.TireStrategy = TireStrategy(history)
	return events, stats
}

// TireStrategy joins the sequence of distinct consecutive compounds in lap order.
func TireStrategy(history []model.PredictionRecord) string {
	var stints []string
	for _, rec := range byLap(history) {
		c := string(rec.Tire.Compound)
		if c == "" {
			continue
		}
		if len(stints) == 0 || stints[len(stints)-1] != c {
			stints = append(stints, c)
		}
	}
	return strings.Join(stints, strategySeparator)
}

// WeatherSummary renders the weather fields of one telemetry sample.
// Returns "" when the sample carries no weather data.
func WeatherSummary(sample map[string]float64) string {
	if len(sample) == 0 {
		return ""
	}
	_, hasAir := sample["air_temp"]
	_, hasTrack := sample["track_temp"]
	if !hasAir && !hasTrack {
		return ""
	}
	sky := "Clear"
	if sample["rain"] > 0 {
		sky = "Rainy"
	}
	return fmt.Sprintf("%s skies, track temp %s°C, air temp %s°C, %s%% humidity, wind %s km/h",
		sky,
		formatOne(sample["track_temp"]),
		formatOne(sample["air_temp"]),
		formatOne(sample["humidity"]),
		formatOne(sample["wind_speed"]),
	)
}

// ApplyOverrides replaces derived statistics with caller-supplied values where present.
func ApplyOverrides(stats model.SummaryStatistics, o model.StatsOverrides) model.SummaryStatistics {
	if o.FinalPosition != nil {
		pos := *o.FinalPosition
		stats.FinalPosition = &pos
	}
	if o.MaxSpeed != nil {
		stats.MaxSpeed = *o.MaxSpeed
	}
	if s := strings.TrimSpace(o.WeatherSummary); s != "" {
		stats.WeatherSummary = s
	}
	if s := strings.TrimSpace(o.TireStrategy); s != "" {
		stats.TireStrategy = s
	}
	return stats
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func formatOne(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
