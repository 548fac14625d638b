package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "exitwatcher/1.0"
)

// httpSource holds what every public JSON source needs.
type httpSource struct {
	name      string
	client    *http.Client
	userAgent string
	logger    zerolog.Logger
}

func newHTTPSource(name string, timeout time.Duration, userAgent string, logger zerolog.Logger) httpSource {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		userAgent = ua
	} else {
		userAgent = defaultUserAgent
	}
	return httpSource{
		name:      name,
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger.With().Str("component", name+"_fetcher").Logger(),
	}
}

// get issues a GET and returns the body of a 200 response.
func (h httpSource) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)

	started := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", h.name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", h.name, err)
	}

	h.logger.Debug().Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("source responded")

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(h.name, resp.StatusCode, payload)
	}
	return payload, nil
}

// getJSON decodes a 200 response body into out.
func (h httpSource) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	payload, err := h.get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s decode: %w", h.name, err)
	}
	return nil
}

type errorResponse struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
	Message      string `json:"message"`
}

func parseHTTPError(source string, status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.ErrorMessage != "" {
			return fmt.Errorf("%s api error (%d): %s", source, status, apiErr.ErrorMessage)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("%s api error (%d): %s", source, status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%s api error (%d): %s", source, status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		text := strings.TrimSpace(string(payload))
		if len(text) > 200 {
			text = text[:200]
		}
		return fmt.Errorf("%s api error (%d): %s", source, status, text)
	}
	return fmt.Errorf("%s api error (%d)", source, status)
}
