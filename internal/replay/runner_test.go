package replay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitwall/internal/adapters/http/api"
	app "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/replay"
	"github.com/okian/pitwall/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startServer(t *testing.T, opts ...app.Option) *httptest.Server {
	t.Helper()
	svc := app.New(append([]app.Option{app.WithModelDir("../domain/inference/testdata")}, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running prediction service", t, func() {
		srv := startServer(t)
		out := filepath.Join(t.TempDir(), "reports", "replay.json")
		cfg := &replay.Config{
			BaseURL:    srv.URL,
			Sessions:   3,
			Laps:       8,
			PitLap:     5,
			Workers:    2,
			Timeout:    5 * time.Second,
			Seed:       42,
			OutputFile: out,
		}

		Convey("When replaying several races", func() {
			report, err := replay.Run(context.Background(), cfg)

			Convey("Then every session verifies cleanly", func() {
				So(err, ShouldBeNil)
				So(report.Sessions, ShouldHaveLength, 3)
				So(report.Problems(), ShouldEqual, 0)
				for _, s := range report.Sessions {
					So(s.SessionID, ShouldStartWith, "race_")
					So(s.Recorded, ShouldEqual, 8)
					So(s.Duplicates, ShouldEqual, 1)
					So(s.PitStopLaps, ShouldResemble, []int{5})
					So(s.TireStrategy, ShouldEqual, "MEDIUM → HARD")
					So(s.StoryProvided, ShouldBeFalse)
				}
			})

			Convey("Then the report is written to disk", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var saved replay.Report
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved.Sessions, ShouldHaveLength, 3)
			})
		})
	})

	Convey("Given a service in degraded mode", t, func() {
		srv := startServer(t, app.WithModelDir(t.TempDir()))

		Convey("Then the replay refuses to start", func() {
			_, err := replay.Run(context.Background(), &replay.Config{BaseURL: srv.URL, Sessions: 1, Laps: 1, Workers: 1, Timeout: time.Second})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check failed")
		})
	})
}
