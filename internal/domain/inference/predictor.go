package inference

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/types"
)

// Output is a task-tagged prediction result. The concrete type is one of
// LapTimeResult, PitResult or TireResult.
type Output interface {
	Task() types.Task
}

// LapTimeResult is the regression output.
type LapTimeResult struct{ model.LapTimeOutput }

// PitResult is the pit-imminent output.
type PitResult struct{ model.PitOutput }

// TireResult is the compound output.
type TireResult struct{ model.TireOutput }

func (LapTimeResult) Task() types.Task { return types.TaskLapTime }
func (PitResult) Task() types.Task     { return types.TaskPit }
func (TireResult) Task() types.Task    { return types.TaskTire }

// Predictor is one independently trained model.
type Predictor interface {
	Task() types.Task
	FeatureNames() []string
	Predict(v features.Vector) (Output, error)
}

type base struct {
	names  []string
	forest *forest
}

func (b base) FeatureNames() []string { return slices.Clone(b.names) }

// check rejects vectors whose width or field order differ from training.
func (b base) check(task types.Task, v features.Vector) error {
	if len(v.Values) != len(b.names) {
		return fmt.Errorf("%w: %s expects %d features, got %d", types.ErrFeatureMismatch, task, len(b.names), len(v.Values))
	}
	if len(v.Names) == 0 {
		return nil
	}
	if len(v.Names) != len(v.Values) {
		return fmt.Errorf("%w: %s vector has %d names for %d values", types.ErrFeatureMismatch, task, len(v.Names), len(v.Values))
	}
	for i, name := range b.names {
		if v.Names[i] != name {
			return fmt.Errorf("%w: %s expects %q at position %d, got %q", types.ErrFeatureMismatch, task, name, i, v.Names[i])
		}
	}
	return nil
}

type lapTimePredictor struct{ base }

func newLapTimePredictor(a *ModelArtifact) (*lapTimePredictor, error) {
	if err := expectKind(a, types.TaskLapTime, "regressor"); err != nil {
		return nil, err
	}
	f, err := newForest(a.Trees, len(a.FeatureNames), 1)
	if err != nil {
		return nil, err
	}
	return &lapTimePredictor{base{names: a.FeatureNames, forest: f}}, nil
}

func (p *lapTimePredictor) Task() types.Task { return types.TaskLapTime }

func (p *lapTimePredictor) Predict(v features.Vector) (Output, error) {
	if err := p.check(types.TaskLapTime, v); err != nil {
		return nil, err
	}
	outputs := p.forest.regress(v.Values)
	return LapTimeResult{model.LapTimeOutput{
		Value:      meanOf(outputs),
		Confidence: EnsembleConfidence(outputs),
	}}, nil
}

type pitPredictor struct {
	base
	positive  int
	threshold float64
}

func newPitPredictor(a *ModelArtifact, threshold float64) (*pitPredictor, error) {
	if err := expectKind(a, types.TaskPit, "classifier"); err != nil {
		return nil, err
	}
	positive := -1
	for i, c := range a.Classes {
		if classMatches(c, a.PositiveClass) {
			positive = i
			break
		}
	}
	if positive < 0 {
		return nil, fmt.Errorf("%w: pit model has no positive class among %v", types.ErrModelUnavailable, a.Classes)
	}
	f, err := newForest(a.Trees, len(a.FeatureNames), len(a.Classes))
	if err != nil {
		return nil, err
	}
	return &pitPredictor{base: base{names: a.FeatureNames, forest: f}, positive: positive, threshold: threshold}, nil
}

// classMatches accepts the configured positive label, or 1/true when none is configured.
func classMatches(class, positive string) bool {
	if positive != "" {
		return class == positive
	}
	switch strings.ToLower(class) {
	case "1", "true", "yes", "pit":
		return true
	}
	return false
}

func (p *pitPredictor) Task() types.Task { return types.TaskPit }

func (p *pitPredictor) Predict(v features.Vector) (Output, error) {
	if err := p.check(types.TaskPit, v); err != nil {
		return nil, err
	}
	prob := p.forest.proba(v.Values)[p.positive]
	return PitResult{model.PitOutput{Imminent: prob >= p.threshold, Probability: prob}}, nil
}

type tirePredictor struct {
	base
	classes []model.TireCompound
}

func newTirePredictor(a *ModelArtifact) (*tirePredictor, error) {
	if err := expectKind(a, types.TaskTire, "classifier"); err != nil {
		return nil, err
	}
	classes := make([]model.TireCompound, len(a.Classes))
	for i, c := range a.Classes {
		compound, err := model.ParseCompound(c)
		if err != nil {
			return nil, fmt.Errorf("%w: tire model: %w", types.ErrModelUnavailable, err)
		}
		classes[i] = compound
	}
	f, err := newForest(a.Trees, len(a.FeatureNames), len(a.Classes))
	if err != nil {
		return nil, err
	}
	return &tirePredictor{base: base{names: a.FeatureNames, forest: f}, classes: classes}, nil
}

func (p *tirePredictor) Task() types.Task { return types.TaskTire }

// Predict returns the argmax class. Ties resolve to the first class in artifact order.
func (p *tirePredictor) Predict(v features.Vector) (Output, error) {
	if err := p.check(types.TaskTire, v); err != nil {
		return nil, err
	}
	proba := p.forest.proba(v.Values)
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return TireResult{model.TireOutput{Compound: p.classes[best], Confidence: proba[best]}}, nil
}

func expectKind(a *ModelArtifact, task types.Task, kind string) error {
	if a.Task != string(task) {
		return fmt.Errorf("%w: artifact task %q, want %q", types.ErrModelUnavailable, a.Task, task)
	}
	if a.Kind != kind {
		return fmt.Errorf("%w: %s artifact kind %q, want %q", types.ErrModelUnavailable, task, a.Kind, kind)
	}
	if kind == "classifier" && len(a.Classes) < 2 {
		return fmt.Errorf("%w: %s classifier needs at least two classes, got %d",
			types.ErrModelUnavailable, task, len(a.Classes))
	}
	return nil
}
