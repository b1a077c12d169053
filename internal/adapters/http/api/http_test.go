package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/adapters/http/api"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	mu          sync.Mutex
	sessions    map[string]model.Session
	lastPredict types.PredictionRequest
	predictErr  error
	duplicate   bool
	storyReq    types.SessionStoryRequest
	health      types.HealthStatus
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		sessions: map[string]model.Session{},
		health:   types.HealthStatus{Status: "ok", ModelsLoaded: true},
	}
}

func (m *mockDependencies) CreateSession(_ context.Context, vehicleID int, name string) (model.Session, error) {
	if vehicleID <= 0 {
		return model.Session{}, fmt.Errorf("create: %w: vehicle_id must be positive", types.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Session{
		ID:        fmt.Sprintf("race_%012d", len(m.sessions)+1),
		VehicleID: vehicleID,
		Name:      name,
		CreatedAt: time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC),
		Status:    model.StatusActive,
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockDependencies) GetSession(_ context.Context, id string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("get %s: %w", id, types.ErrNotFound)
	}
	return s, nil
}

func (m *mockDependencies) CloseSession(ctx context.Context, id string) (model.Session, error) {
	s, err := m.GetSession(ctx, id)
	if err != nil {
		return s, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status == model.StatusActive {
		now := time.Date(2024, 3, 2, 17, 0, 0, 0, time.UTC)
		s.Status = model.StatusClosed
		s.ClosedAt = &now
		m.sessions[id] = s
	}
	return s, nil
}

func (m *mockDependencies) ListPredictions(ctx context.Context, id string) ([]model.PredictionRecord, error) {
	s, err := m.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]model.PredictionRecord{}, s.History...), nil
}

func (m *mockDependencies) Predict(_ context.Context, req types.PredictionRequest) (types.PredictionResult, error) {
	m.mu.Lock()
	m.lastPredict = req
	m.mu.Unlock()
	if m.predictErr != nil {
		return types.PredictionResult{}, m.predictErr
	}
	res := types.PredictionResult{SessionID: req.SessionID, VehicleID: req.VehicleID, Lap: req.Lap}
	if m.duplicate {
		res.Duplicate = true
		return res, nil
	}
	if req.Task.Includes(types.TaskLapTime) {
		res.LapTime = &model.LapTimeOutput{Value: 81.4}
	}
	if req.Task.Includes(types.TaskPit) {
		res.Pit = &model.PitOutput{Probability: 0.15}
	}
	if req.Task.Includes(types.TaskTire) {
		res.Tire = &model.TireOutput{Compound: model.CompoundHard, Confidence: 0.7}
	}
	return res, nil
}

func (m *mockDependencies) SessionStory(ctx context.Context, id string, req types.SessionStoryRequest) (types.RaceStory, error) {
	s, err := m.GetSession(ctx, id)
	if err != nil {
		return types.RaceStory{}, err
	}
	m.mu.Lock()
	m.storyReq = req
	m.mu.Unlock()
	return types.RaceStory{SessionID: s.ID, VehicleID: s.VehicleID, Story: "Story unavailable: generative text provider not configured.", Events: []model.RaceEvent{}}, nil
}

func (m *mockDependencies) ComposeStory(_ context.Context, req types.RaceStoryRequest) (types.RaceStory, error) {
	if req.VehicleID <= 0 {
		return types.RaceStory{}, fmt.Errorf("compose: %w: vehicle_id must be positive", types.ErrInvalidInput)
	}
	return types.RaceStory{SessionID: req.SessionID, VehicleID: req.VehicleID, Story: "generated text", Generated: true, Events: req.Events}, nil
}

func (m *mockDependencies) Health(context.Context) types.HealthStatus {
	return m.health
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("Then the metrics endpoint is served", func() {
			So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then health reports ok when models are loaded", func() {
			w := do(mux, http.MethodGet, "/health", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then health answers 503 in degraded mode", func() {
			deps.health = types.HealthStatus{Status: "degraded", Error: "model unavailable"}
			w := do(mux, http.MethodGet, "/health", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["status"], ShouldEqual, "degraded")
		})

		Convey("Then the wrong method is rejected", func() {
			So(do(mux, http.MethodGet, "/api/predict/all", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given the session routes", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When a session is created", func() {
			w := do(mux, http.MethodPost, "/api/session/create", `{"vehicle_id":44,"race_name":"Bahrain"}`)

			Convey("Then it answers 201 with the session", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				body := decode(w)
				So(body["session_id"], ShouldEqual, "race_000000000001")
				So(body["vehicle_id"], ShouldEqual, float64(44))
				So(body["status"], ShouldEqual, "active")
				So(body["prediction_count"], ShouldEqual, float64(0))
			})

			Convey("And it can be fetched and closed twice", func() {
				So(do(mux, http.MethodGet, "/api/session/race_000000000001", "").Code, ShouldEqual, http.StatusOK)
				first := do(mux, http.MethodPost, "/api/session/race_000000000001/close", "")
				second := do(mux, http.MethodPost, "/api/session/race_000000000001/close", "")
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(decode(second)["status"], ShouldEqual, "closed")
				So(decode(second)["closed_at"], ShouldNotBeNil)
			})

			Convey("And its predictions list starts empty", func() {
				w := do(mux, http.MethodGet, "/api/session/race_000000000001/predictions", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["count"], ShouldEqual, float64(0))
				So(body["predictions"], ShouldResemble, []any{})
			})
		})

		Convey("When the vehicle id is invalid", func() {
			w := do(mux, http.MethodPost, "/api/session/create", `{"vehicle_id":0}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "invalid_input")
		})

		Convey("When the body is malformed", func() {
			w := do(mux, http.MethodPost, "/api/session/create", `{"vehicle_id":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the session is unknown", func() {
			So(do(mux, http.MethodGet, "/api/session/race_missing", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/api/session/race_missing/close", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/api/session/race_missing/predictions", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPredictRoutes(t *testing.T) {
	Convey("Given the prediction routes", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)
		body := `{"session_id":"race_000000000001","vehicle_id":44,"lap":3,"telemetry":{"TrackTemp":45}}`

		Convey("When predicting a single task", func() {
			w := do(mux, http.MethodPost, "/api/predict/pit", body)

			Convey("Then only that part is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				out := decode(w)
				So(out["pit"], ShouldNotBeNil)
				So(out["lap_time"], ShouldBeNil)
				So(out["tire"], ShouldBeNil)
				So(deps.lastPredict.Task, ShouldEqual, types.TaskPit)
				So(deps.lastPredict.Telemetry["TrackTemp"], ShouldEqual, float64(45))
			})
		})

		Convey("When predicting everything with an idempotency key", func() {
			w := do(mux, http.MethodPost, "/api/predict/all", body, "Idempotency-Key", " lap-3 ")

			Convey("Then the key becomes the request id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				out := decode(w)
				So(out["lap_time"], ShouldNotBeNil)
				So(out["tire"], ShouldNotBeNil)
				So(deps.lastPredict.RequestID, ShouldEqual, "lap-3")
			})
		})

		Convey("When the body carries its own request id", func() {
			do(mux, http.MethodPost, "/api/predict/tire",
				`{"session_id":"s","vehicle_id":1,"lap":1,"request_id":"body-id"}`, "Idempotency-Key", "header-id")
			So(deps.lastPredict.RequestID, ShouldEqual, "body-id")
		})

		Convey("When the submission is a duplicate", func() {
			deps.duplicate = true
			w := do(mux, http.MethodPost, "/api/predict/lap-time", body)

			Convey("Then a duplicate acknowledgement is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				out := decode(w)
				So(out["status"], ShouldEqual, "duplicate")
				So(out["lap"], ShouldEqual, float64(3))
			})
		})

		Convey("When the service rejects the submission", func() {
			cases := []struct {
				err  error
				code int
				kind string
			}{
				{fmt.Errorf("x: %w", types.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
				{fmt.Errorf("x: %w", types.ErrValidation), http.StatusUnprocessableEntity, "validation_error"},
				{fmt.Errorf("x: %w", types.ErrFeatureMismatch), http.StatusUnprocessableEntity, "feature_mismatch"},
				{fmt.Errorf("x: %w", types.ErrNotFound), http.StatusNotFound, "not_found"},
				{fmt.Errorf("x: %w", types.ErrConflict), http.StatusConflict, "conflict"},
				{fmt.Errorf("x: %w", types.ErrModelUnavailable), http.StatusServiceUnavailable, "model_unavailable"},
				{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
			}
			for _, tc := range cases {
				deps.predictErr = tc.err
				w := do(mux, http.MethodPost, "/api/predict/all", body)
				So(w.Code, ShouldEqual, tc.code)
				So(decode(w)["code"], ShouldEqual, tc.kind)
			}
		})

		Convey("When the body is empty", func() {
			w := do(mux, http.MethodPost, "/api/predict/all", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "empty body")
		})
	})
}

func TestStoryRoutes(t *testing.T) {
	Convey("Given the story routes", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)
		do(mux, http.MethodPost, "/api/session/create", `{"vehicle_id":7}`)

		Convey("When requesting a session story without a body", func() {
			w := do(mux, http.MethodPost, "/api/session/race_000000000001/story", "")

			Convey("Then the fallback story is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				out := decode(w)
				So(out["story"], ShouldStartWith, "Story unavailable")
				So(out["generated"], ShouldEqual, false)
			})
		})

		Convey("When requesting a session story with overrides", func() {
			w := do(mux, http.MethodPost, "/api/session/race_000000000001/story",
				`{"race_events":[{"lap":12,"event":"Safety car"}],"summary_stats":{"final_position":3}}`)

			Convey("Then the overrides reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.storyReq.Events, ShouldHaveLength, 1)
				So(deps.storyReq.Overrides.FinalPosition, ShouldNotBeNil)
				So(*deps.storyReq.Overrides.FinalPosition, ShouldEqual, 3)
			})
		})

		Convey("When the session is unknown", func() {
			So(do(mux, http.MethodPost, "/api/session/race_missing/story", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When composing a standalone story", func() {
			w := do(mux, http.MethodPost, "/api/race/story",
				`{"session_id":"race_x","vehicle_id":44,"race_events":[{"lap":5,"event":"Pit stop"}]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["generated"], ShouldEqual, true)
		})

		Convey("When the standalone story lacks a vehicle", func() {
			w := do(mux, http.MethodPost, "/api/race/story", `{"session_id":"race_x"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
