package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Client talks to the prediction service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// response is a fully read HTTP response.
type response struct {
	status int
	body   gjson.Result
	raw    string
}

func (r response) err() error {
	if r.status < http.StatusBadRequest {
		return nil
	}
	msg := r.body.Get("message").String()
	if msg == "" {
		msg = r.raw
	}
	return fmt.Errorf("status %d: %s", r.status, msg)
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) (response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	return response{status: resp.StatusCode, body: gjson.ParseBytes(raw), raw: string(raw)}, nil
}

// Health returns nil when the service reports loaded models.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return fmt.Errorf("service %s: %s", resp.body.Get("status").String(), resp.body.Get("error").String())
	}
	return nil
}

// CreateSession opens a session and returns its id.
func (c *Client) CreateSession(ctx context.Context, vehicleID int, name string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/session/create",
		map[string]any{"vehicle_id": vehicleID, "race_name": name}, nil)
	if err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	return resp.body.Get("session_id").String(), nil
}

// Submit posts one lap to /api/predict/all. It reports whether the service
// acknowledged the request as a duplicate.
func (c *Client) Submit(ctx context.Context, sessionID string, vehicleID int, lap Lap, key string) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/predict/all", map[string]any{
		"session_id":    sessionID,
		"vehicle_id":    vehicleID,
		"lap":           lap.Number,
		"telemetry":     lap.Telemetry,
		"tire_compound": lap.Compound,
	}, map[string]string{"Idempotency-Key": key})
	if err != nil {
		return false, err
	}
	if err := resp.err(); err != nil {
		return false, err
	}
	return resp.body.Get("status").String() == "duplicate", nil
}

// Predictions returns the recorded laps in history order.
func (c *Client) Predictions(ctx context.Context, sessionID string) ([]int, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/session/"+sessionID+"/predictions", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	var laps []int
	for _, p := range resp.body.Get("predictions").Array() {
		laps = append(laps, int(p.Get("lap").Int()))
	}
	return laps, nil
}

// Story requests the session story and returns the raw JSON document.
func (c *Client) Story(ctx context.Context, sessionID string) (gjson.Result, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/session/"+sessionID+"/story", nil, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if err := resp.err(); err != nil {
		return gjson.Result{}, err
	}
	return resp.body, nil
}

// Close closes the session.
func (c *Client) Close(ctx context.Context, sessionID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/session/"+sessionID+"/close", nil, nil)
	if err != nil {
		return err
	}
	return resp.err()
}
