// Package gemini implements llm.Generator with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/medvault/medvault/internal/platform/llm"
)

const defaultModel = "gemini-2.0-flash"

// Config for the Gemini client.
type Config struct {
	APIKey  string
	Model   string // default gemini-2.0-flash
	BaseURL string // empty uses the SDK default endpoint
	Timeout time.Duration
}

// Client is safe for concurrent use. A Client built without an API key is
// valid; every Generate call on it fails with llm.ErrNotConfigured.
type Client struct {
	cfg    Config
	genai  *genai.Client
	logger zerolog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		logger: logger.With().Str("provider", "gemini").Str("model", cfg.Model).Logger(),
	}
	// The SDK falls back to GEMINI_API_KEY from the environment when the key
	// is empty, so it is only constructed with an explicit key.
	if cfg.APIKey == "" {
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Configured reports whether the client holds an API key.
func (c *Client) Configured() bool { return c.genai != nil }

// Generate implements llm.Generator.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	if c.genai == nil {
		return "", llm.ErrNotConfigured
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if s := strings.TrimSpace(req.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Model, contents, cfg)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			c.logger.Error().
				Int("status", apiErr.Code).
				Str("body", apiErr.Message).
				Dur("elapsed", time.Since(start)).
				Msg("gemini request failed")
			return "", &llm.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		c.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("gemini request failed")
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	c.logger.Debug().Int("chars", len(text)).Dur("elapsed", time.Since(start)).Msg("gemini response")
	return text, nil
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}
