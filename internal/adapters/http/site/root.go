// Package site serves the service banner at the root path.
package site

import (
	"context"
	"encoding/json"
	"net/http"
)

// Version is reported by the banner. Overridden at build time with -ldflags.
var Version = "1.0.0"

// Banner is the body of GET /.
type Banner struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
	Swagger string `json:"swagger"`
}

// Register attaches the root banner to mux. Only the exact root path matches.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /{$}", NewRootHandler())
}

// RootHandler answers the root path with a service banner.
type RootHandler struct {
	banner Banner
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{banner: Banner{
		Message: "F1 Telemetry Prediction API",
		Version: Version,
		Docs:    "/api-docs",
		Swagger: "/swagger/index.html",
	}}
}

// ServeHTTP writes the banner as JSON.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(h.banner)
}
