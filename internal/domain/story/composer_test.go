package story_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/story"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type stubProvider struct {
	mu        sync.Mutex
	available bool
	text      string
	err       error
	delay     time.Duration
	prompts   []string
}

func (s *stubProvider) IsAvailable() bool { return s.available }

func (s *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func (s *stubProvider) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func sampleStats() model.SummaryStatistics {
	pos := 3
	return model.SummaryStatistics{
		TotalLaps:      2,
		BestLap:        80.5,
		AvgLapTime:     81.25,
		PitStops:       1,
		FinalPosition:  &pos,
		WeatherSummary: "Clear skies",
		TireStrategy:   "MEDIUM → HARD",
	}
}

func TestComposeRaceStory(t *testing.T) {
	Convey("Given an available provider", t, func() {
		p := &stubProvider{available: true, text: "  Car 44 drove a measured race.  "}
		c := story.NewComposer(p)
		events := []model.RaceEvent{{Lap: 2, Kind: model.EventPitStop, Description: "Pit stop - switched from MEDIUM to HARD tires"}}

		Convey("When a race story is composed", func() {
			res := c.Story(context.Background(), "race_abc", 44, events, sampleStats())

			Convey("Then the generated text is trimmed and marked generated", func() {
				So(res.Generated, ShouldBeTrue)
				So(res.Text, ShouldEqual, "Car 44 drove a measured race.")
				So(res.Reason, ShouldBeEmpty)
			})

			Convey("Then the prompt embeds events and statistics", func() {
				prompt := p.lastPrompt()
				So(prompt, ShouldContainSubstring, "car #44 in session race_abc")
				So(prompt, ShouldContainSubstring, "Lap 2: Pit stop - switched from MEDIUM to HARD tires")
				So(prompt, ShouldContainSubstring, "Best Lap Time: 80.500s")
				So(prompt, ShouldContainSubstring, "Average Lap Time: 81.250s")
				So(prompt, ShouldContainSubstring, "Final Position: 3")
				So(prompt, ShouldContainSubstring, "Tire Strategy: MEDIUM → HARD")
				So(prompt, ShouldContainSubstring, "5-8 sentence race story")
			})
		})

		Convey("When there are no events", func() {
			c.Story(context.Background(), "race_abc", 44, nil, model.SummaryStatistics{})

			Convey("Then the prompt says so", func() {
				So(p.lastPrompt(), ShouldContainSubstring, "No significant events recorded.")
				So(p.lastPrompt(), ShouldNotContainSubstring, "Final Position")
			})
		})
	})
}

func TestComposeFallbacks(t *testing.T) {
	Convey("Given composers whose provider cannot answer", t, func() {
		ctx := context.Background()

		Convey("When the provider is not configured", func() {
			p := &stubProvider{}
			res := story.NewComposer(p).Story(ctx, "race_abc", 1, nil, sampleStats())

			Convey("Then a deterministic fallback is returned without calling it", func() {
				So(res.Generated, ShouldBeFalse)
				So(res.Reason, ShouldEqual, types.ReasonUnavailable)
				So(res.Text, ShouldEqual, "Story unavailable: generative text provider not configured.")
				So(p.prompts, ShouldBeEmpty)
			})
		})

		Convey("When the provider is nil", func() {
			res := story.NewComposer(nil).Explain(ctx, story.HintLapTime, nil, model.Prediction{})

			Convey("Then explanations use their own prefix", func() {
				So(res.Text, ShouldEqual, "Explanation unavailable: generative text provider not configured.")
			})
		})

		Convey("When the provider reports quota exhaustion", func() {
			p := &stubProvider{available: true, err: types.NewProviderError(types.ReasonQuota, 429, errors.New("rate limited"))}
			res := story.NewComposer(p).Story(ctx, "race_abc", 1, nil, sampleStats())

			Convey("Then the reason is surfaced", func() {
				So(res.Generated, ShouldBeFalse)
				So(res.Reason, ShouldEqual, types.ReasonQuota)
				So(res.Text, ShouldEqual, "Story unavailable: generative text provider quota exhausted.")
			})
		})

		Convey("When the provider returns a bare error", func() {
			p := &stubProvider{available: true, err: errors.New("boom")}
			res := story.NewComposer(p).Story(ctx, "race_abc", 1, nil, sampleStats())

			Convey("Then it is treated as a server failure", func() {
				So(res.Reason, ShouldEqual, types.ReasonServer)
			})
		})

		Convey("When the provider returns only whitespace", func() {
			p := &stubProvider{available: true, text: " \n "}
			res := story.NewComposer(p).Story(ctx, "race_abc", 1, nil, sampleStats())

			Convey("Then an empty-response fallback is returned", func() {
				So(res.Generated, ShouldBeFalse)
				So(res.Reason, ShouldEqual, types.ReasonEmpty)
			})
		})

		Convey("When the provider is slower than the timeout", func() {
			p := &stubProvider{available: true, text: "late", delay: time.Second}
			res := story.NewComposer(p, story.WithTimeout(20*time.Millisecond)).Story(ctx, "race_abc", 1, nil, sampleStats())

			Convey("Then the call is cut off as a timeout", func() {
				So(res.Generated, ShouldBeFalse)
				So(res.Reason, ShouldEqual, types.ReasonTimeout)
				So(res.Text, ShouldStartWith, "Story unavailable: ")
			})
		})
	})
}

func TestExplanationPrompts(t *testing.T) {
	features := map[string]float64{"tire_wear_high": 1.0, "avg_speed": 201.456}
	pred := model.Prediction{
		LapTime: model.LapTimeOutput{Value: 81.23456, Confidence: 0.9},
		Pit:     model.PitOutput{Imminent: true, Probability: 0.82},
		Tire:    model.TireOutput{Compound: model.CompoundHard, Confidence: 0.7},
	}

	cases := []struct {
		hint story.Hint
		want []string
	}{
		{story.HintLapTime, []string{"expert Formula 1 race engineer", "Predicted Lap Time: 81.235 seconds"}},
		{story.HintPitDetection, []string{"pit strategy analyst", "Pit Prediction: pit stop imminent (probability 0.82)"}},
		{story.HintTireSuggestion, []string{"tire strategy expert", "Suggested Tire: HARD"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.hint), func(t *testing.T) {
			p := &stubProvider{available: true, text: "because"}
			res := story.NewComposer(p).Explain(context.Background(), tc.hint, features, pred)
			if !res.Generated || res.Text != "because" {
				t.Fatalf("unexpected result %+v", res)
			}
			prompt := p.lastPrompt()
			for _, w := range tc.want {
				if !strings.Contains(prompt, w) {
					t.Errorf("prompt missing %q:\n%s", w, prompt)
				}
			}
			if strings.Index(prompt, "- avg_speed: 201.46") > strings.Index(prompt, "- tire_wear_high: 1.00") {
				t.Errorf("features are not listed in name order:\n%s", prompt)
			}
		})
	}
}

func TestDisabledProvider(t *testing.T) {
	var d story.Disabled
	if d.IsAvailable() {
		t.Fatal("disabled provider reports available")
	}
	_, err := d.Generate(context.Background(), "x")
	if !errors.Is(err, types.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
