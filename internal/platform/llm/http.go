package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SendJSON posts body as JSON to url and returns the raw response body. It is
// provider agnostic; callers choose the URL and headers. A non-2xx status is
// returned as *StatusError together with the body.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger zerolog.Logger) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug().
		Str("req_id", reqID).
		Str("url", url).
		Int("content_length", len(bs)).
		Msg("llm.http.request")

	resp, err := client.Do(req)
	if err != nil {
		logger.Error().Err(err).
			Str("req_id", reqID).
			Int64("elapsed_ms", time.Since(start).Milliseconds()).
			Msg("llm.http.send_error")
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn().Err(err).Str("req_id", reqID).Msg("llm.http.response_body_close_error")
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	logger.Debug().
		Str("req_id", reqID).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("llm.http.response")

	if resp.StatusCode/100 != 2 {
		return raw, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
