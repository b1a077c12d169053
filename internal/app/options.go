package service

import (
	"time"

	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/domain/inference"
	"github.com/okian/pitwall/internal/domain/story"
	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithModelDir sets the directory holding scaler.json and the model artifacts.
func WithModelDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.modelDir = dir
		}
	}
}

// WithPitThreshold sets the pit-imminent decision threshold.
func WithPitThreshold(t float64) Option {
	return func(s *Service) {
		s.pitThreshold = t
	}
}

// WithImputationStrategy sets the strategy for fields whose reference entry names none.
func WithImputationStrategy(strategy string) Option {
	return func(s *Service) {
		if strategy != "" {
			s.imputation = strategy
		}
	}
}

// WithPaceDetection configures the pace-change window and threshold.
func WithPaceDetection(window int, stdMultiplier, minDelta float64) Option {
	return func(s *Service) {
		if window > 0 {
			s.paceWindow = window
		}
		s.paceStdMultiplier = stdMultiplier
		s.paceMinDelta = minDelta
	}
}

// WithLowConfidenceThreshold sets the lap-time confidence below which an event is emitted.
func WithLowConfidenceThreshold(t float64) Option {
	return func(s *Service) {
		s.lowConfidence = t
	}
}

// WithPitWindowProbability sets the pit probability above which a pit-window event is emitted.
func WithPitWindowProbability(p float64) Option {
	return func(s *Service) {
		s.pitWindowProbability = p
	}
}

// WithDedupeSize sets the size of the request-id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStoryProvider sets the generative-text backend.
func WithStoryProvider(p story.Provider) Option {
	return func(s *Service) {
		s.provider = p
	}
}

// WithStoryTimeout bounds each provider call.
func WithStoryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storyTimeout = d
		}
	}
}

// WithEngine installs a preloaded engine instead of loading from the model directory.
func WithEngine(e *inference.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(store repository.SessionStore) Option {
	return func(s *Service) {
		s.sessions = store
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
