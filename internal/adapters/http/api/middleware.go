package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/pitwall/pkg/metrics"
)

// errorClass is the metrics label pair for a failed response.
type errorClass struct {
	kind     string
	severity string
}

var statusClasses = map[int]errorClass{
	http.StatusBadRequest:          {"bad_request", "medium"},
	http.StatusNotFound:            {"not_found", "low"},
	http.StatusMethodNotAllowed:    {"client_error", "low"},
	http.StatusConflict:            {"conflict", "medium"},
	http.StatusUnprocessableEntity: {"validation_error", "medium"},
	http.StatusServiceUnavailable:  {"unavailable", "critical"},
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := float64(time.Since(start).Microseconds()) / 1000
		code := strconv.Itoa(sw.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, elapsed)

		if sw.status < http.StatusBadRequest {
			return
		}
		class := classify(sw.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, class.kind)
		metrics.RecordErrorByType(class.kind, class.severity)
		metrics.RecordErrorLatency("http", class.kind, elapsed)
	}
}

func classify(status int) errorClass {
	if c, ok := statusClasses[status]; ok {
		return c
	}
	if status >= http.StatusInternalServerError {
		return errorClass{"server_error", "high"}
	}
	return errorClass{"client_error", "medium"}
}

// statusWriter records the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}
