package story

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

// Hint selects the prompt family.
type Hint string

const (
	HintRaceStory      Hint = "race_story"
	HintLapTime        Hint = "lap_time"
	HintPitDetection   Hint = "pit_detection"
	HintTireSuggestion Hint = "tire_suggestion"
)

// IsExplanation reports whether h asks for a single-prediction explanation.
func (h Hint) IsExplanation() bool {
	switch h {
	case HintLapTime, HintPitDetection, HintTireSuggestion:
		return true
	}
	return false
}

const raceStoryTemplate = `You are a Formula 1 race analyst and journalist.

Create a post-race story for car #%d in session %s.

Key race events (lap by lap highlights):
%s

Race statistics:
%s

Write a 5-8 sentence race story describing:
- Overall pace trends and performance
- Key lap events and moments
- Pit strategy and tire performance
- Effects of track conditions and weather
- Important battles or overtakes
- Final result and overall assessment

Tone: professional, exciting, and clear. Write as if you're summarizing the race for fans.

Race Story:`

func raceStoryPrompt(sessionID string, vehicleID int, events []model.RaceEvent, stats model.SummaryStatistics) string {
	return fmt.Sprintf(raceStoryTemplate, vehicleID, sessionID, formatEvents(events), formatStats(stats))
}

func formatEvents(events []model.RaceEvent) string {
	if len(events) == 0 {
		return "No significant events recorded."
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("Lap %d: %s", ev.Lap, ev.Description))
	}
	return strings.Join(lines, "\n")
}

func formatStats(s model.SummaryStatistics) string {
	lines := []string{
		fmt.Sprintf("Total Laps: %d", s.TotalLaps),
		fmt.Sprintf("Best Lap Time: %.3fs", s.BestLap),
		fmt.Sprintf("Average Lap Time: %.3fs", s.AvgLapTime),
		fmt.Sprintf("Pit Stops: %d", s.PitStops),
		fmt.Sprintf("Max Speed: %.1f km/h", s.MaxSpeed),
	}
	if s.FinalPosition != nil {
		lines = append(lines, fmt.Sprintf("Final Position: %d", *s.FinalPosition))
	}
	if s.WeatherSummary != "" {
		lines = append(lines, "Weather: "+s.WeatherSummary)
	}
	if s.TireStrategy != "" {
		lines = append(lines, "Tire Strategy: "+s.TireStrategy)
	}
	return strings.Join(lines, "\n")
}

func explanationPrompt(hint Hint, features map[string]float64, p model.Prediction) string {
	featureText := formatFeatures(features)
	switch hint {
	case HintLapTime:
		return fmt.Sprintf(`You are an expert Formula 1 race engineer.

Telemetry Input:
%s

Predicted Lap Time: %.3f seconds

Explain *why* the model predicted this value.
Focus on the top logical factors.
Keep it short (2-3 sentences).`, featureText, p.LapTime.Value)
	case HintPitDetection:
		return fmt.Sprintf(`You are a Formula 1 pit strategy analyst.

Telemetry Input:
%s

Pit Prediction: %s

Explain the most important factors that contributed to this prediction.
Keep it short (2-3 sentences).`, featureText, describePit(p.Pit))
	case HintTireSuggestion:
		compound := p.Tire.Compound
		if p.Tire.Suggested != "" {
			compound = p.Tire.Suggested
		}
		return fmt.Sprintf(`You are a Formula 1 tire strategy expert.

Telemetry Input:
%s

Suggested Tire: %s

Explain why this tire compound is recommended based on the data.
Keep it short (2-3 sentences).`, featureText, compound)
	}
	return fmt.Sprintf("Features:\n%s\n\nPrediction: %+v\n\nExplain the main factors influencing this output.", featureText, p)
}

func describePit(p model.PitOutput) string {
	if p.Imminent {
		return fmt.Sprintf("pit stop imminent (probability %.2f)", p.Probability)
	}
	return fmt.Sprintf("no pit stop expected (probability %.2f)", p.Probability)
}

// formatFeatures lists features sorted by name so prompts are reproducible.
func formatFeatures(features map[string]float64) string {
	if len(features) == 0 {
		return "- none"
	}
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("- %s: %.2f", name, features[name]))
	}
	return strings.Join(lines, "\n")
}
