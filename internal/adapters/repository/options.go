package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background gauge updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithIDGenerator replaces the session id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithClock replaces the time source used for creation and close stamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultName sets the display name used when Create receives an empty name.
func WithDefaultName(name string) Option {
	return func(s *MemoryStore) {
		if name != "" {
			s.defaultName = name
		}
	}
}
