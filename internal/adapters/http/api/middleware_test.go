package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status   int
		kind     string
		severity string
	}{
		{http.StatusBadRequest, "bad_request", "medium"},
		{http.StatusNotFound, "not_found", "low"},
		{http.StatusConflict, "conflict", "medium"},
		{http.StatusUnprocessableEntity, "validation_error", "medium"},
		{http.StatusServiceUnavailable, "unavailable", "critical"},
		{http.StatusInternalServerError, "server_error", "high"},
		{http.StatusTeapot, "client_error", "medium"},
	}
	for _, tc := range cases {
		got := classify(tc.status)
		if got.kind != tc.kind || got.severity != tc.severity {
			t.Errorf("classify(%d) = %+v, want %s/%s", tc.status, got, tc.kind, tc.severity)
		}
	}
}

func TestMetricsMiddlewareKeepsFirstStatus(t *testing.T) {
	h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusConflict, errorResponse{Code: "conflict", Message: "closed"})
	}, "test")

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/x", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
}
