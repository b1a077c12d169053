package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitwall/internal/adapters/llm/gemini"
	"github.com/okian/pitwall/internal/domain/types"
)

func newServer(t *testing.T, status int, body string, seen func(r *http.Request, payload []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		if seen != nil {
			seen(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func providerReason(err error) string {
	var perr *types.ProviderError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return ""
}

func TestGenerate(t *testing.T) {
	Convey("Given a Gemini client", t, func() {
		ctx := context.Background()

		Convey("When the API answers with candidates", func() {
			var gotPath, gotKey string
			var gotPayload map[string]any
			srv := newServer(t, http.StatusOK,
				`{"candidates":[{"content":{"parts":[{"text":"Lap one "},{"text":"was clean."}]}}]}`,
				func(r *http.Request, payload []byte) {
					gotPath = r.URL.Path
					gotKey = r.Header.Get("x-goog-api-key")
					_ = json.Unmarshal(payload, &gotPayload)
				})
			c := gemini.New(gemini.Config{APIKey: "k-123", Model: "gemini-test", Endpoint: srv.URL + "/v1beta/"})

			text, err := c.Generate(ctx, "tell me")

			Convey("Then text parts are joined and the request is well formed", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, "Lap one was clean.")
				So(gotPath, ShouldEqual, "/v1beta/models/gemini-test:generateContent")
				So(gotKey, ShouldEqual, "k-123")
				contents := gotPayload["contents"].([]any)
				parts := contents[0].(map[string]any)["parts"].([]any)
				So(parts[0].(map[string]any)["text"], ShouldEqual, "tell me")
			})
		})

		Convey("When no API key is configured", func() {
			c := gemini.New(gemini.Config{})
			_, err := c.Generate(ctx, "x")

			Convey("Then the client is unavailable", func() {
				So(c.IsAvailable(), ShouldBeFalse)
				So(providerReason(err), ShouldEqual, types.ReasonUnavailable)
				So(errors.Is(err, types.ErrProvider), ShouldBeTrue)
			})
		})

		Convey("When the response has no text", func() {
			srv := newServer(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, nil)
			_, err := gemini.New(gemini.Config{APIKey: "k", Endpoint: srv.URL}).Generate(ctx, "x")

			Convey("Then an empty-response error is returned", func() {
				So(providerReason(err), ShouldEqual, types.ReasonEmpty)
				So(err.Error(), ShouldContainSubstring, "SAFETY")
			})
		})

		Convey("When the server cannot be reached", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			addr := srv.URL
			srv.Close()
			_, err := gemini.New(gemini.Config{APIKey: "k", Endpoint: addr}).Generate(ctx, "x")

			Convey("Then it is a network failure", func() {
				So(providerReason(err), ShouldEqual, types.ReasonNetwork)
			})
		})

		Convey("When the server is too slow", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()
			_, err := gemini.New(gemini.Config{APIKey: "k", Endpoint: srv.URL, Timeout: 20 * time.Millisecond}).Generate(ctx, "x")

			Convey("Then it is a timeout", func() {
				So(providerReason(err), ShouldEqual, types.ReasonTimeout)
			})
		})
	})
}

func TestGenerateStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{http.StatusTooManyRequests, types.ReasonQuota},
		{http.StatusRequestTimeout, types.ReasonTimeout},
		{http.StatusGatewayTimeout, types.ReasonTimeout},
		{http.StatusUnauthorized, types.ReasonAuth},
		{http.StatusForbidden, types.ReasonAuth},
		{http.StatusBadRequest, types.ReasonClient},
		{http.StatusInternalServerError, types.ReasonServer},
		{http.StatusServiceUnavailable, types.ReasonServer},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := newServer(t, tc.status, `{"error":{"code":1,"message":"upstream said no"}}`, nil)
			_, err := gemini.New(gemini.Config{APIKey: "k", Endpoint: srv.URL}).Generate(context.Background(), "x")
			var perr *types.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if perr.Reason != tc.want || perr.StatusCode != tc.status {
				t.Fatalf("got reason %s status %d, want %s %d", perr.Reason, perr.StatusCode, tc.want, tc.status)
			}
			if perr.Err == nil || perr.Err.Error() != "upstream said no" {
				t.Fatalf("expected upstream message, got %v", perr.Err)
			}
		})
	}
}
