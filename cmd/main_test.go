package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/tidwall/gjson"

	"github.com/okian/pitwall/internal/adapters/llm/gemini"
	app "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/domain/story"
	"github.com/okian/pitwall/pkg/logger"
)

const testModelDir = "../internal/domain/inference/testdata"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.ModelDir = testModelDir
	cfg.StoryProvider = "none"
	return cfg
}

func TestNewProvider(t *testing.T) {
	convey.Convey("Given provider configuration", t, func() {
		cfg := testConfig()

		convey.Convey("When stories are switched off", func() {
			cfg.GeminiAPIKey = "key"
			convey.So(newProvider(cfg), convey.ShouldHaveSameTypeAs, story.Disabled{})
		})

		convey.Convey("When Gemini is selected without a key", func() {
			cfg.StoryProvider = "gemini"
			convey.So(newProvider(cfg), convey.ShouldHaveSameTypeAs, story.Disabled{})
		})

		convey.Convey("When Gemini is selected with a key", func() {
			cfg.StoryProvider = "Gemini"
			cfg.GeminiAPIKey = "key"
			p := newProvider(cfg)
			convey.So(p, convey.ShouldHaveSameTypeAs, &gemini.Client{})
			convey.So(p.IsAvailable(), convey.ShouldBeTrue)
		})
	})
}

func TestSetupLogging(t *testing.T) {
	convey.Convey("Given logging configuration", t, func() {
		cfg := testConfig()
		convey.Reset(func() {
			_ = logger.SetFormat("text")
			_ = logger.SetLevelString("info")
			_ = logger.Init()
		})

		convey.Convey("When the level is unknown", func() {
			cfg.LogLevel = "verbose"
			convey.So(setupLogging(cfg), convey.ShouldBeNil)
		})

		convey.Convey("When the format is unknown", func() {
			cfg.LogFormat = "xml"
			convey.So(setupLogging(cfg), convey.ShouldNotBeNil)
		})
	})
}

func TestMux(t *testing.T) {
	convey.Convey("Given a started service behind the full mux", t, func() {
		ctx := context.Background()
		svc := newService(testConfig(), logger.Get())
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(svc.Stop)
		mux := newMux(ctx, svc)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			return w
		}

		convey.Convey("Then the banner, docs and health routes answer", func() {
			convey.So(gjson.Get(get("/").Body.String(), "message").String(), convey.ShouldEqual, "F1 Telemetry Prediction API")
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/healthz").Code, convey.ShouldEqual, http.StatusOK)

			health := get("/health")
			convey.So(health.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(gjson.Get(health.Body.String(), "models_loaded").Bool(), convey.ShouldBeTrue)
			convey.So(gjson.Get(health.Body.String(), "provider_available").Bool(), convey.ShouldBeFalse)
		})

		convey.Convey("Then a session can be created and predicted on", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/session/create",
				strings.NewReader(`{"vehicle_id":44,"race_name":"Monza"}`)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			id := gjson.Get(w.Body.String(), "session_id").String()
			convey.So(id, convey.ShouldStartWith, "race_")

			body := `{"session_id":"` + id + `","vehicle_id":44,"lap":1,"telemetry":{"track_temp":45,"air_temp":25,"humidity":60,"pressure":1013,"wind_speed":5,"wind_direction":90}}`
			w = httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predict/all", strings.NewReader(body)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(gjson.Get(w.Body.String(), "lap").Int(), convey.ShouldEqual, 1)
			convey.So(gjson.Get(w.Body.String(), "tire.compound").String(), convey.ShouldNotBeEmpty)

			convey.So(gjson.Get(get("/api/session/"+id).Body.String(), "prediction_count").Int(), convey.ShouldEqual, 1)
		})

		convey.Convey("Then the service updater mirrors stats without panicking", func() {
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background updaters", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.Convey("Then they return when the context ends", func() {
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, app.New()) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then one-shot updates do not panic on an unstarted service", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(app.New()) }, convey.ShouldNotPanic)
		})
	})
}
