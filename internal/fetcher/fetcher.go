package fetcher

import (
	"context"
)

// MarketDataFetcher retrieves global crypto market capitalisation data.
type MarketDataFetcher interface {
	FetchMarket(ctx context.Context) (MarketSnapshot, error)
}

// MacroFetcher retrieves recent M2 money supply observations, oldest first.
type MacroFetcher interface {
	FetchM2(ctx context.Context) ([]float64, error)
}

// SentimentFetcher retrieves the current fear & greed index (0-100).
type SentimentFetcher interface {
	FetchFearGreed(ctx context.Context) (int, error)
}

// TrendsFetcher retrieves today's trending search topics.
type TrendsFetcher interface {
	FetchTrendingTopics(ctx context.Context) ([]string, error)
}

// AppRankFetcher retrieves the names of the current top apps.
type AppRankFetcher interface {
	FetchTopApps(ctx context.Context) ([]string, error)
}
