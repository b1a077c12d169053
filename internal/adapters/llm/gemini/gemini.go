// Package gemini implements story.Provider on the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/okian/pitwall/internal/domain/story"
	"github.com/okian/pitwall/internal/domain/types"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.0-flash"

	maxResponseBytes = 1 << 20
	textPath         = "candidates.0.content.parts.#.text"
	errorPath        = "error.message"
	apiKeyHeader     = "x-goog-api-key"
)

// Config holds the client settings.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	// Timeout bounds one HTTP exchange. The caller's context still applies.
	Timeout time.Duration
}

// Client calls Gemini over HTTP.
type Client struct {
	cfg    Config
	client *http.Client
}

var _ story.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// New creates a Client. An empty API key yields a client that reports unavailable.
func New(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{cfg: cfg, client: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAvailable reports whether an API key is configured.
func (c *Client) IsAvailable() bool { return c.cfg.APIKey != "" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// Generate sends prompt and returns the concatenated text parts of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.IsAvailable() {
		return "", types.NewProviderError(types.ReasonUnavailable, 0, errors.New("api key not configured"))
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", types.NewProviderError(types.ReasonClient, 0, err)
	}
	endpoint, err := c.url()
	if err != nil {
		return "", types.NewProviderError(types.ReasonClient, 0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", types.NewProviderError(types.ReasonClient, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", normalizeNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", normalizeNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(raw, errorPath).String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", types.NewProviderError(reasonForStatus(resp.StatusCode), resp.StatusCode, errors.New(msg))
	}

	var sb strings.Builder
	gjson.GetBytes(raw, textPath).ForEach(func(_, v gjson.Result) bool {
		sb.WriteString(v.String())
		return true
	})
	text := strings.TrimSpace(sb.String())
	if text == "" {
		reason := gjson.GetBytes(raw, "promptFeedback.blockReason").String()
		if reason == "" {
			reason = gjson.GetBytes(raw, "candidates.0.finishReason").String()
		}
		return "", types.NewProviderError(types.ReasonEmpty, resp.StatusCode, fmt.Errorf("no text in response (%s)", reason))
	}
	return text, nil
}

// url builds {endpoint}/models/{model}:generateContent. The key travels in a
// header so transport errors never echo it.
func (c *Client) url() (string, error) {
	u, err := url.Parse(c.cfg.Endpoint + "/models/" + url.PathEscape(c.cfg.Model) + ":generateContent")
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func normalizeNetworkError(err error) *types.ProviderError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewProviderError(types.ReasonTimeout, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.NewProviderError(types.ReasonTimeout, 0, err)
	}
	return types.NewProviderError(types.ReasonNetwork, 0, err)
}

func reasonForStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return types.ReasonQuota
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.ReasonTimeout
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.ReasonAuth
	case status >= 400 && status <= 499:
		return types.ReasonClient
	default:
		return types.ReasonServer
	}
}
