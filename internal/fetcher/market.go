package fetcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const coingeckoGlobalPath = "/global"

var hundred = decimal.NewFromInt(100)

// MarketOptions parameterise the CoinGecko fetcher.
type MarketOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// MarketSnapshot is the global market state at fetch time.
type MarketSnapshot struct {
	BTCDominancePct decimal.Decimal
	ETHDominancePct decimal.Decimal
	TotalMarketCap  decimal.Decimal
}

// OthersRatio is the share of total market cap held outside BTC and ETH.
func (s MarketSnapshot) OthersRatio() (decimal.Decimal, error) {
	if !s.TotalMarketCap.IsPositive() {
		return decimal.Decimal{}, errors.New("total market cap must be positive")
	}
	btcCap := s.TotalMarketCap.Mul(s.BTCDominancePct).Div(hundred)
	ethCap := s.TotalMarketCap.Mul(s.ETHDominancePct).Div(hundred)
	others := s.TotalMarketCap.Sub(btcCap).Sub(ethCap)
	return others.Div(s.TotalMarketCap), nil
}

// Market fetches global market data from CoinGecko.
type Market struct {
	src     httpSource
	baseURL string
}

// NewMarket constructs a market data fetcher.
func NewMarket(opts MarketOptions, logger zerolog.Logger) *Market {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &Market{
		src:     newHTTPSource("coingecko", opts.Timeout, opts.UserAgent, logger),
		baseURL: baseURL,
	}
}

// FetchMarket retrieves BTC and ETH dominance and total market cap in USD.
func (m *Market) FetchMarket(ctx context.Context) (MarketSnapshot, error) {
	var res globalResponse
	if err := m.src.getJSON(ctx, m.baseURL+coingeckoGlobalPath, nil, &res); err != nil {
		return MarketSnapshot{}, err
	}

	btc, ok := res.Data.MarketCapPercentage["btc"]
	if !ok {
		return MarketSnapshot{}, errors.New("coingecko response missing btc dominance")
	}
	eth, ok := res.Data.MarketCapPercentage["eth"]
	if !ok {
		return MarketSnapshot{}, errors.New("coingecko response missing eth dominance")
	}
	total, ok := res.Data.TotalMarketCap["usd"]
	if !ok {
		return MarketSnapshot{}, errors.New("coingecko response missing usd market cap")
	}

	snap := MarketSnapshot{BTCDominancePct: btc, ETHDominancePct: eth, TotalMarketCap: total}
	m.src.logger.Debug().
		Str("btc_pct", btc.StringFixed(2)).
		Str("eth_pct", eth.StringFixed(2)).
		Str("total_usd", total.StringFixed(0)).
		Msg("market snapshot fetched")
	return snap, nil
}

type globalResponse struct {
	Data struct {
		MarketCapPercentage map[string]decimal.Decimal `json:"market_cap_percentage"`
		TotalMarketCap      map[string]decimal.Decimal `json:"total_market_cap"`
	} `json:"data"`
}

var _ MarketDataFetcher = (*Market)(nil)
