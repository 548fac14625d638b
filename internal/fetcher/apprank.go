package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AppRankOptions parameterise the App Store RSS fetcher.
type AppRankOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// AppRank fetches the Apple top-free apps feed.
type AppRank struct {
	url string
	src httpSource
}

// NewAppRank constructs an app rank fetcher.
func NewAppRank(opts AppRankOptions, logger zerolog.Logger) *AppRank {
	endpoint := strings.TrimSpace(opts.URL)
	if endpoint == "" {
		endpoint = "https://rss.applemarketingtools.com/api/v2/us/apps/top-free/10/apps.json"
	}
	return &AppRank{url: endpoint, src: newHTTPSource("app_store", opts.Timeout, opts.UserAgent, logger)}
}

// FetchTopApps returns app names in feed order.
func (a *AppRank) FetchTopApps(ctx context.Context) ([]string, error) {
	var res appFeedResponse
	if err := a.src.getJSON(ctx, a.url, nil, &res); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(res.Feed.Results))
	for _, app := range res.Feed.Results {
		names = append(names, app.Name)
	}
	return names, nil
}

type appFeedResponse struct {
	Feed struct {
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	} `json:"feed"`
}

var _ AppRankFetcher = (*AppRank)(nil)
