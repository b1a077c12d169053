// Package inference serves the lap-time, pit-imminent and tire-compound
// models. Artifacts load once and are read-only afterwards.
package inference

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// DefaultPitThreshold is the probability at which a stop is called imminent.
const DefaultPitThreshold = 0.5

// Engine holds the three predictors and the shared reference statistics.
// A degraded engine answers every call with ErrModelUnavailable.
type Engine struct {
	reference    features.Reference
	predictors   map[types.Task]Predictor
	pitThreshold float64
	err          error
	loadedAt     time.Time
	log          logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPitThreshold overrides DefaultPitThreshold.
func WithPitThreshold(t float64) Option {
	return func(e *Engine) {
		if t >= 0 && t <= 1 {
			e.pitThreshold = t
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func newEngine(opts []Option) *Engine {
	e := &Engine{pitThreshold: DefaultPitThreshold, predictors: map[types.Task]Predictor{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("inference")
	}
	return e
}

// Load reads every artifact from dir. It always returns an Engine; when any
// artifact is missing or corrupt the engine is degraded and Err reports why.
func Load(ctx context.Context, dir string, opts ...Option) *Engine {
	e := newEngine(opts)
	e.err = e.load(dir)
	if e.err != nil {
		e.predictors = map[types.Task]Predictor{}
		e.log.Error(ctx, "model artifacts failed to load; serving degraded",
			logger.String("dir", dir), logger.Error(e.err))
		metrics.UpdateModelsLoaded(false)
		return e
	}
	e.loadedAt = time.Now().UTC()
	e.log.Info(ctx, "model artifacts loaded",
		logger.String("dir", dir),
		logger.Int("features", len(e.reference.Names())),
		logger.Float64("pit_threshold", e.pitThreshold))
	metrics.UpdateModelsLoaded(true)
	return e
}

func (e *Engine) load(dir string) error {
	s, err := compileSchemas()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrModelUnavailable, err)
	}
	scaler, err := loadScaler(filepath.Join(dir, ScalerFile), s)
	if err != nil {
		return err
	}
	artifacts := make(map[types.Task]*ModelArtifact, 3)
	var errs []error
	for task, name := range map[types.Task]string{
		types.TaskLapTime: LapTimeFile,
		types.TaskPit:     PitImminentFile,
		types.TaskTire:    TireFile,
	} {
		a, err := loadModel(filepath.Join(dir, name), s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		artifacts[task] = a
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return e.install(scaler.Reference(), artifacts)
}

// FromArtifacts builds an engine from decoded artifacts. Any error leaves the
// engine degraded.
func FromArtifacts(ref features.Reference, artifacts map[types.Task]*ModelArtifact, opts ...Option) *Engine {
	e := newEngine(opts)
	if err := e.install(ref, artifacts); err != nil {
		e.err = err
		e.predictors = map[types.Task]Predictor{}
		return e
	}
	e.loadedAt = time.Now().UTC()
	return e
}

func (e *Engine) install(ref features.Reference, artifacts map[types.Task]*ModelArtifact) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	known := make(map[string]struct{})
	for _, n := range ref.Names() {
		known[n] = struct{}{}
	}
	build := map[types.Task]func(*ModelArtifact) (Predictor, error){
		types.TaskLapTime: func(a *ModelArtifact) (Predictor, error) { return newLapTimePredictor(a) },
		types.TaskPit:     func(a *ModelArtifact) (Predictor, error) { return newPitPredictor(a, e.pitThreshold) },
		types.TaskTire:    func(a *ModelArtifact) (Predictor, error) { return newTirePredictor(a) },
	}
	for _, task := range types.Tasks {
		a, ok := artifacts[task]
		if !ok || a == nil {
			return fmt.Errorf("%w: no %s artifact", types.ErrModelUnavailable, task)
		}
		for _, name := range a.FeatureNames {
			if _, ok := known[name]; !ok {
				return fmt.Errorf("%w: %s model uses %q which the scaler does not describe",
					types.ErrModelUnavailable, task, name)
			}
		}
		p, err := build[task](a)
		if err != nil {
			return err
		}
		e.predictors[task] = p
	}
	e.reference = ref
	return nil
}

// Err returns the load failure, or nil when the engine is serving.
func (e *Engine) Err() error { return e.err }

// Ready reports whether every predictor loaded.
func (e *Engine) Ready() bool { return e.err == nil }

// LoadedAt returns when the artifacts were installed.
func (e *Engine) LoadedAt() time.Time { return e.loadedAt }

// Reference returns the scaler statistics shared by all predictors.
func (e *Engine) Reference() (features.Reference, error) {
	if e.err != nil {
		return features.Reference{}, e.unavailable()
	}
	return e.reference, nil
}

// FeatureNames returns the input order a task's predictor was trained on.
func (e *Engine) FeatureNames(task types.Task) ([]string, error) {
	if e.err != nil {
		return nil, e.unavailable()
	}
	p, ok := e.predictors[task]
	if !ok {
		return nil, fmt.Errorf("%w: unknown task %q", types.ErrInvalidInput, task)
	}
	return p.FeatureNames(), nil
}

// SharedFeatureNames returns the common input order when every predictor agrees.
func (e *Engine) SharedFeatureNames() ([]string, bool) {
	if e.err != nil {
		return nil, false
	}
	first := e.predictors[types.TaskLapTime].FeatureNames()
	for _, task := range types.Tasks[1:] {
		if !slices.Equal(first, e.predictors[task].FeatureNames()) {
			return nil, false
		}
	}
	return first, true
}

func (e *Engine) unavailable() error {
	return fmt.Errorf("%w: engine degraded: %v", types.ErrModelUnavailable, e.err)
}

// Predict dispatches one task.
func (e *Engine) Predict(task types.Task, v features.Vector) (Output, error) {
	if e.err != nil {
		metrics.RecordInferenceError(string(task), types.Kind(types.ErrModelUnavailable))
		return nil, e.unavailable()
	}
	p, ok := e.predictors[task]
	if !ok {
		return nil, fmt.Errorf("%w: unknown task %q", types.ErrInvalidInput, task)
	}
	start := time.Now()
	out, err := p.Predict(v)
	metrics.RecordInferenceLatency(string(task), float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordInferenceError(string(task), types.Kind(err))
		return nil, err
	}
	return out, nil
}

// PredictLapTime returns the ensemble lap time and its agreement confidence.
func (e *Engine) PredictLapTime(v features.Vector) (model.LapTimeOutput, error) {
	out, err := e.Predict(types.TaskLapTime, v)
	if err != nil {
		return model.LapTimeOutput{}, err
	}
	return out.(LapTimeResult).LapTimeOutput, nil
}

// PredictPitImminent returns the positive-class probability and the thresholded call.
func (e *Engine) PredictPitImminent(v features.Vector) (model.PitOutput, error) {
	out, err := e.Predict(types.TaskPit, v)
	if err != nil {
		return model.PitOutput{}, err
	}
	return out.(PitResult).PitOutput, nil
}

// PredictTireCompound returns the most probable compound and its probability.
func (e *Engine) PredictTireCompound(v features.Vector) (model.TireOutput, error) {
	out, err := e.Predict(types.TaskTire, v)
	if err != nil {
		return model.TireOutput{}, err
	}
	return out.(TireResult).TireOutput, nil
}

// PredictAll runs the three tasks independently on the same vector.
func (e *Engine) PredictAll(v features.Vector) (model.Prediction, error) {
	var (
		p   model.Prediction
		err error
	)
	if p.LapTime, err = e.PredictLapTime(v); err != nil {
		return model.Prediction{}, err
	}
	if p.Pit, err = e.PredictPitImminent(v); err != nil {
		return model.Prediction{}, err
	}
	if p.Tire, err = e.PredictTireCompound(v); err != nil {
		return model.Prediction{}, err
	}
	return p, nil
}
