// Package service wires sessions, preprocessing, inference and narration
// into the operations served by the HTTP API.
package service

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/inference"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/narrative"
	"github.com/okian/pitwall/internal/domain/story"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

// explanationHints maps prediction tasks onto explanation prompt families.
var explanationHints = map[types.Task]story.Hint{
	types.TaskLapTime: story.HintLapTime,
	types.TaskPit:     story.HintPitDetection,
	types.TaskTire:    story.HintTireSuggestion,
}

// Service implements the API dependencies for the prediction system.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions     repository.SessionStore
	engine       *inference.Engine
	preprocessor *features.Preprocessor
	extractor    *narrative.Extractor
	composer     *story.Composer
	deduper      dedupe.Deduper

	// Last unscaled sample per session, for forward fill and weather.
	// Written under the session's submission lock.
	lastSample  sync.Map
	submitLocks sync.Map

	// Configuration
	modelDir             string
	pitThreshold         float64
	imputation           string
	paceWindow           int
	paceStdMultiplier    float64
	paceMinDelta         float64
	lowConfidence        float64
	pitWindowProbability float64
	dedupeSize           int
	storyTimeout         time.Duration
	provider             story.Provider

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service with default configuration. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		modelDir:             "./models",
		pitThreshold:         0.5,
		imputation:           string(features.StrategyMedian),
		paceWindow:           5,
		paceStdMultiplier:    1.5,
		paceMinDelta:         0.5,
		lowConfidence:        0.4,
		pitWindowProbability: 0.7,
		dedupeSize:           50000,
		storyTimeout:         20 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads artifacts and builds components. Missing or invalid artifacts
// leave the service running in degraded mode rather than failing Start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	strategy, err := features.ParseStrategy(s.imputation)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	s.logger.Info(ctx, "starting prediction service...", logger.String("model_dir", s.modelDir))

	if s.engine == nil {
		s.engine = inference.Load(ctx, s.modelDir, inference.WithPitThreshold(s.pitThreshold))
	}
	if ref, err := s.engine.Reference(); err == nil {
		s.preprocessor, err = features.New(ref, features.WithDefaultStrategy(strategy))
		if err != nil {
			s.logger.Error(ctx, "reference statistics rejected", logger.Error(err))
		}
	}

	if s.sessions == nil {
		s.sessions = repository.NewMemoryStore(ctx)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.extractor = narrative.New(
		narrative.WithPaceWindow(s.paceWindow),
		narrative.WithPaceThreshold(s.paceStdMultiplier, s.paceMinDelta),
		narrative.WithLowConfidence(s.lowConfidence),
		narrative.WithPitWindow(s.pitWindowProbability),
	)
	s.composer = story.NewComposer(s.provider,
		story.WithTimeout(s.storyTimeout),
		story.WithLogger(logger.Get().Named("story")),
	)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "prediction service started",
		logger.Bool("models_loaded", s.ready()),
		logger.Bool("provider_available", s.composer.Available()),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop releases background resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping prediction service...")

	if stopper, ok := s.sessions.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	s.started = false
	s.logger.Info(context.Background(), "prediction service stopped")
}

// ready reports whether predictions can be served. Caller holds mu.
func (s *Service) ready() bool {
	return s.engine != nil && s.engine.Ready() && s.preprocessor != nil
}

func (s *Service) modelError() error {
	if s.engine != nil && s.engine.Err() != nil {
		return fmt.Errorf("%w: %v", types.ErrModelUnavailable, s.engine.Err())
	}
	return fmt.Errorf("%w: preprocessing reference not loaded", types.ErrModelUnavailable)
}

// CreateSession opens a session for vehicleID.
func (s *Service) CreateSession(ctx context.Context, vehicleID int, name string) (model.Session, error) {
	sess, err := s.sessions.Create(ctx, vehicleID, name)
	if err != nil {
		return model.Session{}, err
	}
	s.logger.Info(ctx, "session created",
		logger.String("session_id", sess.ID),
		logger.Int("vehicle_id", sess.VehicleID),
		logger.String("race_name", sess.Name),
	)
	return sess, nil
}

// GetSession returns the session and its history.
func (s *Service) GetSession(ctx context.Context, id string) (model.Session, error) {
	return s.sessions.Get(ctx, id)
}

// CloseSession closes the session. Repeated closes succeed.
func (s *Service) CloseSession(ctx context.Context, id string) (model.Session, error) {
	sess, err := s.sessions.Close(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	s.logger.Info(ctx, "session closed", logger.String("session_id", id))
	return sess, nil
}

// ListPredictions returns the session history in arrival order.
func (s *Service) ListPredictions(ctx context.Context, id string) ([]model.PredictionRecord, error) {
	return s.sessions.ListPredictions(ctx, id)
}

// Predict preprocesses one snapshot, runs every task and appends the record.
// Only the outputs named by req.Task are returned.
func (s *Service) Predict(ctx context.Context, req types.PredictionRequest) (types.PredictionResult, error) {
	task := req.Task
	if task == "" {
		task = types.TaskAll
	}
	result := types.PredictionResult{SessionID: req.SessionID, VehicleID: req.VehicleID, Lap: req.Lap}

	if err := s.checkSubmission(ctx, req); err != nil {
		metrics.RecordPredictionRejected(types.Kind(err))
		return result, err
	}

	// Submissions to one session run one at a time, so a repeated request id
	// waits for the first attempt and sees its outcome.
	lock := s.submitLock(req.SessionID)
	lock.Lock()
	sub, err := s.record(ctx, req)
	lock.Unlock()
	if err != nil {
		metrics.RecordPredictionRejected(types.Kind(err))
		s.logger.Warn(ctx, "prediction rejected",
			logger.String("session_id", req.SessionID),
			logger.Int("lap", req.Lap),
			logger.Error(err),
		)
		return result, err
	}
	if sub.duplicate {
		metrics.RecordDuplicateSubmission()
		s.logger.Debug(ctx, "duplicate submission acknowledged",
			logger.String("session_id", req.SessionID),
			logger.String("request_id", req.RequestID),
		)
		result.Duplicate = true
		return result, nil
	}
	metrics.RecordPredictionRecorded()

	pred := sub.pred
	if task.Includes(types.TaskLapTime) {
		result.LapTime = &pred.LapTime
	}
	if task.Includes(types.TaskPit) {
		result.Pit = &pred.Pit
	}
	switch {
	case task == types.TaskTire && pred.Tire.Suggested != "":
		// The tire endpoint leads with the classifier; the reported compound rides along.
		result.Tire = &model.TireOutput{
			Compound:   sub.classified.Compound,
			Confidence: sub.classified.Confidence,
			Fitted:     pred.Tire.Compound,
		}
	case task.Includes(types.TaskTire):
		result.Tire = &pred.Tire
	}
	if req.Explain {
		result.Explanation = s.explain(ctx, task, sub.sample, pred)
	}
	return result, nil
}

// submission is the outcome of one serialized submission.
type submission struct {
	pred       model.Prediction
	classified model.TireOutput
	sample     map[string]float64
	duplicate  bool
}

// record dedupes, infers and appends one submission. The caller holds the
// session's submission lock, so the stored sample always matches the last record.
func (s *Service) record(ctx context.Context, req types.PredictionRequest) (submission, error) {
	var key string
	if req.RequestID != "" {
		key = dedupe.Key(req.SessionID, req.RequestID)
		if s.deduper.SeenAndRecord(ctx, key) {
			return submission{duplicate: true}, nil
		}
	}

	sub, err := s.infer(ctx, req)
	if err == nil {
		rec := model.NewPredictionRecord(req.SessionID, req.VehicleID, req.Lap, sub.pred, time.Now())
		err = s.sessions.RecordPrediction(ctx, req.SessionID, rec)
	}
	if err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return submission{}, err
	}
	s.lastSample.Store(req.SessionID, sub.sample)
	return sub, nil
}

func (s *Service) submitLock(id string) *sync.Mutex {
	l, _ := s.submitLocks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// checkSubmission validates the request against the session before any work is done.
func (s *Service) checkSubmission(ctx context.Context, req types.PredictionRequest) error {
	switch req.Task {
	case "", types.TaskAll, types.TaskLapTime, types.TaskPit, types.TaskTire:
	default:
		return fmt.Errorf("%w: unknown task %q", types.ErrInvalidInput, req.Task)
	}
	if req.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", types.ErrInvalidInput)
	}
	if req.Lap < 1 {
		return fmt.Errorf("%w: lap must be >= 1, got %d", types.ErrInvalidInput, req.Lap)
	}
	sess, err := s.sessions.Info(ctx, req.SessionID)
	if err != nil {
		return err
	}
	if req.VehicleID != sess.VehicleID {
		return fmt.Errorf("%w: vehicle_id %d does not match session vehicle %d",
			types.ErrInvalidInput, req.VehicleID, sess.VehicleID)
	}
	if !sess.Active() {
		return fmt.Errorf("%w: session %s is closed", types.ErrConflict, req.SessionID)
	}
	return nil
}

// infer transforms the snapshot and runs the three tasks independently.
func (s *Service) infer(ctx context.Context, req types.PredictionRequest) (submission, error) {
	s.mu.RLock()
	ready := s.ready()
	s.mu.RUnlock()
	if !ready {
		return submission{}, s.modelError()
	}

	raw := make(map[string]any, len(req.Telemetry)+3)
	maps.Copy(raw, req.Telemetry)
	if _, ok := raw["vehicle_id"]; !ok {
		raw["vehicle_id"] = req.VehicleID
	}
	if _, ok := raw["lap"]; !ok {
		raw["lap"] = req.Lap
	}
	if req.TireCompound != "" {
		raw[features.CompoundField] = req.TireCompound
	}

	var opts []features.TransformOption
	if prev, ok := s.lastSample.Load(req.SessionID); ok {
		opts = append(opts, features.WithPrevious(prev.(map[string]float64)))
	}

	vectors, res, err := s.vectors(raw, opts)
	if err != nil {
		return submission{}, err
	}
	for _, strategy := range res.Imputed {
		metrics.RecordImputation(string(strategy))
	}
	if len(res.Imputed) > 0 {
		s.logger.Debug(ctx, "imputed missing telemetry",
			logger.String("session_id", req.SessionID),
			logger.Int("fields", len(res.Imputed)),
		)
	}

	var pred model.Prediction
	if pred.LapTime, err = s.engine.PredictLapTime(vectors[types.TaskLapTime]); err != nil {
		return submission{}, err
	}
	if pred.Pit, err = s.engine.PredictPitImminent(vectors[types.TaskPit]); err != nil {
		return submission{}, err
	}
	if pred.Tire, err = s.engine.PredictTireCompound(vectors[types.TaskTire]); err != nil {
		return submission{}, err
	}
	classified := pred.Tire

	// A reported compound is what the car runs; the classifier's choice stays visible.
	if res.Compound != "" {
		pred.Tire = model.TireOutput{Compound: res.Compound, Confidence: 1, Suggested: classified.Compound}
	}
	return submission{pred: pred, classified: classified, sample: res.Sample}, nil
}

// vectors builds one vector per task. Tasks sharing an input order share the transform.
func (s *Service) vectors(raw map[string]any, opts []features.TransformOption) (map[types.Task]features.Vector, features.Result, error) {
	out := make(map[types.Task]features.Vector, len(types.Tasks))
	if names, ok := s.engine.SharedFeatureNames(); ok {
		res, err := s.preprocessor.Transform(raw, names, opts...)
		if err != nil {
			return nil, features.Result{}, err
		}
		for _, task := range types.Tasks {
			out[task] = res.Vector
		}
		return out, res, nil
	}

	var merged features.Result
	for i, task := range types.Tasks {
		names, err := s.engine.FeatureNames(task)
		if err != nil {
			return nil, features.Result{}, err
		}
		res, err := s.preprocessor.Transform(raw, names, opts...)
		if err != nil {
			return nil, features.Result{}, err
		}
		out[task] = res.Vector
		if i == 0 {
			merged = res
			continue
		}
		maps.Copy(merged.Sample, res.Sample)
		maps.Copy(merged.Imputed, res.Imputed)
	}
	return out, merged, nil
}

func (s *Service) explain(ctx context.Context, task types.Task, sample map[string]float64, pred model.Prediction) map[types.Task]string {
	out := make(map[types.Task]string, len(types.Tasks))
	for _, t := range types.Tasks {
		if !task.Includes(t) {
			continue
		}
		out[t] = s.composer.Explain(ctx, explanationHints[t], sample, pred).Text
	}
	return out
}

// SessionStory derives events and statistics from history, merges the
// caller's additions and composes the narrative.
func (s *Service) SessionStory(ctx context.Context, id string, req types.SessionStoryRequest) (types.RaceStory, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return types.RaceStory{}, err
	}

	events, stats := s.extractor.Analyze(sess.History)
	for _, ev := range events {
		metrics.RecordNarrativeEvent(string(ev.Kind))
	}
	events = narrative.MergeEvents(events, req.Events)

	if prev, ok := s.lastSample.Load(id); ok {
		stats.WeatherSummary = narrative.WeatherSummary(prev.(map[string]float64))
	}
	stats = narrative.ApplyOverrides(stats, req.Overrides)

	res := s.composer.Story(ctx, sess.ID, sess.VehicleID, events, stats)
	return types.RaceStory{
		SessionID: sess.ID,
		VehicleID: sess.VehicleID,
		Story:     res.Text,
		Generated: res.Generated,
		Events:    events,
		Summary:   stats,
	}, nil
}

// ComposeStory narrates caller-supplied events and statistics without touching sessions.
func (s *Service) ComposeStory(ctx context.Context, req types.RaceStoryRequest) (types.RaceStory, error) {
	if req.VehicleID <= 0 {
		return types.RaceStory{}, fmt.Errorf("%w: vehicle_id must be positive", types.ErrInvalidInput)
	}
	if req.SessionID == "" {
		return types.RaceStory{}, fmt.Errorf("%w: session_id is required", types.ErrInvalidInput)
	}
	events := narrative.MergeEvents(nil, req.Events)
	res := s.composer.Story(ctx, req.SessionID, req.VehicleID, events, req.Summary)
	return types.RaceStory{
		SessionID: req.SessionID,
		VehicleID: req.VehicleID,
		Story:     res.Text,
		Generated: res.Generated,
		Events:    events,
		Summary:   req.Summary,
	}, nil
}

// Health reports readiness. Status is "degraded" when models are unavailable.
func (s *Service) Health(ctx context.Context) types.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := types.HealthStatus{Status: statusOK}
	if s.sessions != nil {
		h.Sessions.Active, h.Sessions.Total = s.sessions.Count(ctx)
	}
	h.ModelsLoaded = s.ready()
	h.ProviderAvailable = s.composer != nil && s.composer.Available()
	if !h.ModelsLoaded {
		h.Status = statusDegraded
		h.Error = s.modelError().Error()
	}
	return h
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":    s.started,
		"modelDir":   s.modelDir,
		"dedupeSize": s.dedupeSize,
	}

	if s.started {
		active, total := s.sessions.Count(ctx)
		stats["activeSessions"] = active
		stats["totalSessions"] = total
		stats["modelsLoaded"] = s.ready()
		stats["providerAvailable"] = s.composer.Available()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		if s.engine.Ready() {
			stats["modelsLoadedAt"] = s.engine.LoadedAt().UTC().Format(time.RFC3339)
		}

		metrics.UpdateSessionCounts(active, total)
		metrics.UpdateModelsLoaded(s.ready())
	}

	return stats
}
