// Package llm defines the provider-neutral contract used by the extraction
// functions to call hosted generative models. Concrete providers live in the
// gemini and openai subpackages.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by a provider whose API key is missing. It is
// returned before any outbound request is attempted.
var ErrNotConfigured = errors.New("provider API key is not configured")

// Image is an inline image attached to a generation request.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is a single-turn generation request.
type Request struct {
	// System carries standing instructions. Providers without a system role
	// prepend it to the prompt.
	System string
	Prompt string
	Image  *Image
	// JSON asks the provider for a JSON response mode where supported. The
	// caller still extracts and validates the object itself.
	JSON bool
}

// Generator produces the model's text for a request. Implementations make
// exactly one upstream attempt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError reports a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}
