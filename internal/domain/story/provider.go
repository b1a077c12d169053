package story

import (
	"context"

	"github.com/okian/pitwall/internal/domain/types"
)

// Provider is a generative-text backend.
type Provider interface {
	// IsAvailable reports whether the provider is configured to serve requests.
	IsAvailable() bool

	// Generate returns the text produced for prompt. Failures should be
	// *types.ProviderError so the composer can report the reason.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled is a Provider that is never available.
type Disabled struct{}

func (Disabled) IsAvailable() bool { return false }

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", types.NewProviderError(types.ReasonUnavailable, 0, nil)
}
