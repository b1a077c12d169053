// Package narrative derives race events and summary statistics from a
// session's prediction history.
package narrative

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

const (
	defaultPaceWindow           = 5
	defaultPaceStdMultiplier    = 1.5
	defaultPaceMinDelta         = 0.5
	defaultLowConfidence        = 0.4
	defaultPitWindowProbability = 0.7
)

// Extractor holds the event thresholds. It is immutable and safe for concurrent use.
type Extractor struct {
	paceWindow           int
	paceStdMultiplier    float64
	paceMinDelta         float64
	lowConfidence        float64
	pitWindowProbability float64
}

// New creates an Extractor with the default thresholds.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		paceWindow:           defaultPaceWindow,
		paceStdMultiplier:    defaultPaceStdMultiplier,
		paceMinDelta:         defaultPaceMinDelta,
		lowConfidence:        defaultLowConfidence,
		pitWindowProbability: defaultPitWindowProbability,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// byLap returns a copy of history ordered by lap. Records sharing a lap keep arrival order.
func byLap(history []model.PredictionRecord) []model.PredictionRecord {
	sorted := make([]model.PredictionRecord, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Lap < sorted[j].Lap })
	return sorted
}

// ExtractEvents scans history in lap order and returns at most one event per record.
// A compound change wins over a pace change on the same lap.
func (e *Extractor) ExtractEvents(history []model.PredictionRecord) []model.RaceEvent {
	events := []model.RaceEvent{}
	if len(history) == 0 {
		return events
	}

	records := byLap(history)
	for i, rec := range records {
		var prev *model.PredictionRecord
		if i > 0 {
			prev = &records[i-1]
		}

		if ev, ok := pitStop(prev, rec); ok {
			events = append(events, ev)
			continue
		}
		if ev, ok := e.paceChange(records[:i], rec); ok {
			events = append(events, ev)
			continue
		}
		if ev, ok := e.pitWindow(prev, rec); ok {
			events = append(events, ev)
			continue
		}
		if ev, ok := e.lowConfidenceLap(rec); ok {
			events = append(events, ev)
		}
	}
	return events
}

func pitStop(prev *model.PredictionRecord, rec model.PredictionRecord) (model.RaceEvent, bool) {
	if prev == nil || prev.Tire.Compound == "" || rec.Tire.Compound == "" || prev.Tire.Compound == rec.Tire.Compound {
		return model.RaceEvent{}, false
	}
	desc := fmt.Sprintf("Pit stop - switched from %s to %s tires", prev.Tire.Compound, rec.Tire.Compound)
	if prev.Pit.Imminent && !rec.Pit.Imminent {
		desc = fmt.Sprintf("Pit stop executed - switched to %s tires", rec.Tire.Compound)
	}
	return model.RaceEvent{Lap: rec.Lap, Kind: model.EventPitStop, Description: desc}, true
}

// paceChange compares rec against the rolling mean of the preceding window.
func (e *Extractor) paceChange(prior []model.PredictionRecord, rec model.PredictionRecord) (model.RaceEvent, bool) {
	if len(prior) == 0 {
		return model.RaceEvent{}, false
	}
	if len(prior) > e.paceWindow {
		prior = prior[len(prior)-e.paceWindow:]
	}
	values := make([]float64, len(prior))
	for i, p := range prior {
		values[i] = p.LapTime.Value
	}
	mean, std := meanStd(values)
	threshold := math.Max(e.paceStdMultiplier*std, e.paceMinDelta)
	delta := rec.LapTime.Value - mean
	if math.Abs(delta) <= threshold {
		return model.RaceEvent{}, false
	}

	desc := fmt.Sprintf("Tire degradation noticed, lap time increased %.2fs", delta)
	if delta < 0 {
		desc = fmt.Sprintf("Strong pace improvement, lap time dropped %.2fs", -delta)
	}
	return model.RaceEvent{Lap: rec.Lap, Kind: model.EventPaceChange, Description: desc}, true
}

// pitWindow fires when the pit call switches on with a high probability.
func (e *Extractor) pitWindow(prev *model.PredictionRecord, rec model.PredictionRecord) (model.RaceEvent, bool) {
	if e.pitWindowProbability <= 0 || !rec.Pit.Imminent || rec.Pit.Probability <= e.pitWindowProbability {
		return model.RaceEvent{}, false
	}
	if prev != nil && prev.Pit.Imminent {
		return model.RaceEvent{}, false
	}
	return model.RaceEvent{
		Lap:         rec.Lap,
		Kind:        model.EventPitWindow,
		Description: "Pit stop imminent - high tire degradation detected",
	}, true
}

func (e *Extractor) lowConfidenceLap(rec model.PredictionRecord) (model.RaceEvent, bool) {
	if e.lowConfidence <= 0 || rec.LapTime.Confidence >= e.lowConfidence {
		return model.RaceEvent{}, false
	}
	return model.RaceEvent{
		Lap:         rec.Lap,
		Kind:        model.EventLowConfidence,
		Description: "Traffic detected or incident, lap time inconsistent",
	}, true
}

// MergeEvents appends extra events to derived ones and orders the result by lap.
// Events on the same lap keep derived-before-extra order.
func MergeEvents(derived, extra []model.RaceEvent) []model.RaceEvent {
	out := make([]model.RaceEvent, 0, len(derived)+len(extra))
	out = append(out, derived...)
	for _, ev := range extra {
		if strings.TrimSpace(ev.Description) == "" {
			continue
		}
		if ev.Kind == "" {
			ev.Kind = model.EventExternal
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Lap < out[j].Lap })
	return out
}

// meanStd returns the mean and population standard deviation of values.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}
