package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SentimentOptions parameterise the fear & greed fetcher.
type SentimentOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Sentiment fetches the alternative.me fear & greed index.
type Sentiment struct {
	url string
	src httpSource
}

// NewSentiment constructs a fear & greed fetcher.
func NewSentiment(opts SentimentOptions, logger zerolog.Logger) *Sentiment {
	endpoint := strings.TrimSpace(opts.URL)
	if endpoint == "" {
		endpoint = "https://api.alternative.me/fng/?limit=1"
	}
	return &Sentiment{url: endpoint, src: newHTTPSource("fear_greed", opts.Timeout, opts.UserAgent, logger)}
}

// FetchFearGreed returns the latest index value.
func (s *Sentiment) FetchFearGreed(ctx context.Context) (int, error) {
	var res fngResponse
	if err := s.src.getJSON(ctx, s.url, nil, &res); err != nil {
		return 0, err
	}
	if len(res.Data) == 0 {
		return 0, errors.New("fear & greed response contained no data")
	}

	value, err := strconv.Atoi(strings.TrimSpace(res.Data[0].Value.String()))
	if err != nil {
		return 0, fmt.Errorf("parse fear & greed value: %w", err)
	}
	if value < 0 || value > 100 {
		return 0, fmt.Errorf("fear & greed value %d out of range", value)
	}
	return value, nil
}

type fngResponse struct {
	Data []struct {
		Value json.Number `json:"value"`
	} `json:"data"`
}

var _ SentimentFetcher = (*Sentiment)(nil)
