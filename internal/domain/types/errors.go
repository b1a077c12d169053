package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Wrap with %w and match with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation error")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrFeatureMismatch  = errors.New("feature mismatch")
	ErrProvider         = errors.New("provider error")
)

// Provider failure reasons.
const (
	ReasonUnavailable = "unavailable"
	ReasonNetwork     = "network"
	ReasonTimeout     = "timeout"
	ReasonAuth        = "auth"
	ReasonQuota       = "quota"
	ReasonClient      = "client"
	ReasonServer      = "server"
	ReasonEmpty       = "empty_response"
)

// ProviderError describes a failed generative-text call.
type ProviderError struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := "provider error: " + e.Reason
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the cause and the ErrProvider kind.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvider}
	}
	return []error{ErrProvider, e.Err}
}

// NewProviderError builds a ProviderError for reason with an optional cause.
func NewProviderError(reason string, status int, err error) *ProviderError {
	return &ProviderError{Reason: reason, StatusCode: status, Err: err}
}

// Kind returns the short label of the first taxonomy error matched by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrFeatureMismatch):
		return "feature_mismatch"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	default:
		return "internal"
	}
}
