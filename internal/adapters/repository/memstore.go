package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/pkg/metrics"
)

const (
	defaultMetricsUpdateInterval = 10 * time.Second
	defaultSessionName           = "Race 1"
	sessionIDPrefix              = "race_"
	sessionIDHexLen              = 12
)

// sessionEntry serializes mutation of a single session.
type sessionEntry struct {
	mu      sync.Mutex
	session model.Session
	history []model.PredictionRecord
}

func (e *sessionEntry) snapshot(withHistory bool) model.Session {
	s := e.session
	if s.ClosedAt != nil {
		closed := *s.ClosedAt
		s.ClosedAt = &closed
	}
	s.History = nil
	if withHistory {
		s.History = make([]model.PredictionRecord, len(e.history))
		copy(s.History, e.history)
	}
	return s
}

// MemoryStore is an in-process SessionStore. The map lock guards only the id
// index; appends to one session never block another session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	active   int

	metricsUpdateInterval time.Duration
	newID                 func() string
	now                   func() time.Time
	defaultName           string

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store and starts its background gauge updater.
// The updater exits when ctx is done or Stop is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:              make(map[string]*sessionEntry),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		newID:                 newSessionID,
		now:                   time.Now,
		defaultName:           defaultSessionName,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

// newSessionID returns race_ followed by 12 hex characters of a random UUID.
func newSessionID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return sessionIDPrefix + hex[:sessionIDHexLen]
}

// Create allocates a new active session.
func (s *MemoryStore) Create(_ context.Context, vehicleID int, name string) (model.Session, error) {
	if vehicleID <= 0 {
		return model.Session{}, fmt.Errorf("%w: vehicle_id must be positive, got %d", types.ErrInvalidInput, vehicleID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.defaultName
	}

	entry := &sessionEntry{
		session: model.Session{
			VehicleID: vehicleID,
			Name:      name,
			CreatedAt: s.now().UTC(),
			Status:    model.StatusActive,
		},
	}

	s.mu.Lock()
	id := s.newID()
	for _, taken := s.sessions[id]; taken; _, taken = s.sessions[id] {
		id = s.newID()
	}
	entry.session.ID = id
	s.sessions[id] = entry
	s.active++
	s.mu.Unlock()

	metrics.RecordSessionCreated()
	return entry.snapshot(false), nil
}

// Get returns a snapshot of the session with its history.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Session, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	entry, err := s.lookup(id)
	if err != nil {
		return model.Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.snapshot(true), nil
}

// Info returns the session fields without copying its history.
func (s *MemoryStore) Info(_ context.Context, id string) (model.Session, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return model.Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.snapshot(false), nil
}

// Close transitions the session to closed and returns it with its history.
// Closing twice is a no-op.
func (s *MemoryStore) Close(_ context.Context, id string) (model.Session, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return model.Session{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Status == model.StatusClosed {
		return entry.snapshot(true), nil
	}
	closedAt := s.now().UTC()
	entry.session.Status = model.StatusClosed
	entry.session.ClosedAt = &closedAt

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	metrics.RecordSessionClosed()
	return entry.snapshot(true), nil
}

// RecordPrediction appends rec to the session history.
func (s *MemoryStore) RecordPrediction(_ context.Context, id string, rec model.PredictionRecord) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(msSince(start)) }()

	entry, err := s.lookup(id)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Status != model.StatusActive {
		return fmt.Errorf("%w: session %s is closed", types.ErrConflict, id)
	}
	if rec.SessionID == "" {
		rec.SessionID = id
	}
	if rec.SessionID != id {
		return fmt.Errorf("%w: record belongs to session %s", types.ErrInvalidInput, rec.SessionID)
	}
	if rec.VehicleID != entry.session.VehicleID {
		return fmt.Errorf("%w: vehicle_id %d does not match session vehicle %d",
			types.ErrInvalidInput, rec.VehicleID, entry.session.VehicleID)
	}
	if rec.Lap < 1 {
		return fmt.Errorf("%w: lap must be >= 1, got %d", types.ErrInvalidInput, rec.Lap)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	entry.history = append(entry.history, rec)
	return nil
}

// ListPredictions returns a copy of the history in arrival order.
func (s *MemoryStore) ListPredictions(_ context.Context, id string) ([]model.PredictionRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]model.PredictionRecord, len(entry.history))
	copy(out, entry.history)
	return out, nil
}

// Count returns active and total session counts.
func (s *MemoryStore) Count(_ context.Context) (active, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, len(s.sessions)
}

// Stop halts the background updater and waits for it. Safe to call repeatedly.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *MemoryStore) lookup(id string) (*sessionEntry, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %q", types.ErrNotFound, id)
	}
	return entry, nil
}

// startMetricsUpdater periodically publishes session gauges.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateSessionCounts(s.Count(ctx))
			}
		}
	}()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
