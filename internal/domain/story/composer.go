// Package story turns structured race data into prose through a Provider.
// Composition never fails: provider problems become fallback text.
package story

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

const defaultTimeout = 20 * time.Second

// Request is everything a prompt can draw on. Events and Stats feed the race
// story; Features and Prediction feed explanations.
type Request struct {
	SessionID  string
	VehicleID  int
	Events     []model.RaceEvent
	Stats      model.SummaryStatistics
	Hint       Hint
	Features   map[string]float64
	Prediction model.Prediction
}

// Result is the composed text. Generated is false when Text is a fallback,
// in which case Reason carries the provider failure class.
type Result struct {
	Text      string
	Generated bool
	Reason    string
}

// Composer builds prompts and calls the Provider.
type Composer struct {
	provider Provider
	timeout  time.Duration
	log      logger.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger overrides the composer logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.log = l
		}
	}
}

// NewComposer creates a Composer. A nil provider behaves as Disabled.
func NewComposer(p Provider, opts ...Option) *Composer {
	if p == nil {
		p = Disabled{}
	}
	c := &Composer{provider: p, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("story")
	}
	return c
}

// Available reports whether the provider can currently be used.
func (c *Composer) Available() bool { return c.provider.IsAvailable() }

// Compose renders the prompt selected by req.Hint and returns generated or fallback text.
func (c *Composer) Compose(ctx context.Context, req Request) Result {
	hint := req.Hint
	if hint == "" {
		hint = HintRaceStory
	}

	if !c.provider.IsAvailable() {
		return c.fallback(ctx, hint, types.NewProviderError(types.ReasonUnavailable, 0, nil))
	}

	var prompt string
	if hint.IsExplanation() {
		prompt = explanationPrompt(hint, req.Features, req.Prediction)
	} else {
		prompt = raceStoryPrompt(req.SessionID, req.VehicleID, req.Events, req.Stats)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.Generate(callCtx, prompt)
	metrics.RecordProviderLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return c.fallback(ctx, hint, normalize(callCtx, err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return c.fallback(ctx, hint, types.NewProviderError(types.ReasonEmpty, 0, nil))
	}

	metrics.RecordStoryRequest(string(hint), "generated")
	c.log.Debug(ctx, "composed text",
		logger.String("hint", string(hint)),
		logger.String("session_id", req.SessionID),
		logger.Int("chars", len(text)),
	)
	return Result{Text: text, Generated: true}
}

// Story composes the race narrative.
func (c *Composer) Story(ctx context.Context, sessionID string, vehicleID int, events []model.RaceEvent, stats model.SummaryStatistics) Result {
	return c.Compose(ctx, Request{
		SessionID: sessionID,
		VehicleID: vehicleID,
		Events:    events,
		Stats:     stats,
		Hint:      HintRaceStory,
	})
}

// Explain composes a short explanation of one prediction.
func (c *Composer) Explain(ctx context.Context, hint Hint, features map[string]float64, p model.Prediction) Result {
	return c.Compose(ctx, Request{Hint: hint, Features: features, Prediction: p})
}

func (c *Composer) fallback(ctx context.Context, hint Hint, perr *types.ProviderError) Result {
	metrics.RecordStoryRequest(string(hint), "fallback")
	if perr.Reason != types.ReasonUnavailable {
		metrics.RecordProviderError(perr.Reason)
	}
	c.log.Warn(ctx, "provider call failed, using fallback text",
		logger.String("hint", string(hint)),
		logger.String("reason", perr.Reason),
		logger.Int("status", perr.StatusCode),
		logger.Error(perr),
	)

	prefix := "Story unavailable: "
	if hint.IsExplanation() {
		prefix = "Explanation unavailable: "
	}
	return Result{Text: prefix + reasonText(perr.Reason), Reason: perr.Reason}
}

// normalize converts any Generate error into a ProviderError.
func normalize(ctx context.Context, err error) *types.ProviderError {
	var perr *types.ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewProviderError(types.ReasonTimeout, 0, err)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewProviderError(types.ReasonTimeout, 0, err)
	}
	return types.NewProviderError(types.ReasonServer, 0, err)
}

func reasonText(reason string) string {
	switch reason {
	case types.ReasonUnavailable:
		return "generative text provider not configured."
	case types.ReasonNetwork:
		return "generative text provider could not be reached."
	case types.ReasonTimeout:
		return "generative text provider timed out."
	case types.ReasonAuth:
		return "generative text provider rejected the credentials."
	case types.ReasonQuota:
		return "generative text provider quota exhausted."
	case types.ReasonClient:
		return "generative text provider rejected the request."
	case types.ReasonEmpty:
		return "generative text provider returned no text."
	default:
		return "generative text provider failed."
	}
}
