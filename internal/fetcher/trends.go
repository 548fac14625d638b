package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TrendsOptions parameterise the Google daily trends fetcher.
type TrendsOptions struct {
	URL       string
	Language  string
	TZOffset  string
	Geo       string
	Timeout   time.Duration
	UserAgent string
}

// Trends fetches Google daily trending searches.
type Trends struct {
	opts TrendsOptions
	src  httpSource
}

// NewTrends constructs a trends fetcher.
func NewTrends(opts TrendsOptions, logger zerolog.Logger) *Trends {
	if opts.URL == "" {
		opts.URL = "https://trends.google.com/trends/api/dailytrends"
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.TZOffset == "" {
		opts.TZOffset = "-480"
	}
	if opts.Geo == "" {
		opts.Geo = "US"
	}
	return &Trends{opts: opts, src: newHTTPSource("google_trends", opts.Timeout, opts.UserAgent, logger)}
}

// FetchTrendingTopics returns the query titles of the most recent trending day.
// The endpoint prefixes its JSON with an anti-hijacking guard; a body without any
// JSON object yields no topics.
func (t *Trends) FetchTrendingTopics(ctx context.Context) ([]string, error) {
	query := url.Values{}
	query.Set("hl", t.opts.Language)
	query.Set("tz", t.opts.TZOffset)
	query.Set("geo", t.opts.Geo)
	query.Set("ns", "15")

	payload, err := t.src.get(ctx, t.opts.URL, query)
	if err != nil {
		return nil, err
	}

	idx := bytes.IndexByte(payload, '{')
	if idx < 0 {
		return nil, nil
	}

	var res dailyTrendsResponse
	if err := json.Unmarshal(payload[idx:], &res); err != nil {
		return nil, fmt.Errorf("google_trends decode: %w", err)
	}
	days := res.Default.TrendingSearchesDays
	if len(days) == 0 {
		return nil, nil
	}

	topics := make([]string, 0, len(days[0].TrendingSearches))
	for _, search := range days[0].TrendingSearches {
		if q := strings.TrimSpace(search.Title.Query); q != "" {
			topics = append(topics, q)
		}
	}
	return topics, nil
}

type dailyTrendsResponse struct {
	Default struct {
		TrendingSearchesDays []struct {
			TrendingSearches []struct {
				Title struct {
					Query string `json:"query"`
				} `json:"title"`
			} `json:"trendingSearches"`
		} `json:"trendingSearchesDays"`
	} `json:"default"`
}

var _ TrendsFetcher = (*Trends)(nil)
