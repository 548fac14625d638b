package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const fredMissingValue = "."

// MacroOptions parameterise the FRED fetcher.
type MacroOptions struct {
	BaseURL   string
	APIKey    string
	SeriesID  string
	Timeout   time.Duration
	UserAgent string
}

// Macro fetches money supply observations from FRED.
type Macro struct {
	opts MacroOptions
	src  httpSource
}

// NewMacro constructs a FRED fetcher.
func NewMacro(opts MacroOptions, logger zerolog.Logger) *Macro {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.stlouisfed.org/fred/series/observations"
	}
	if opts.SeriesID == "" {
		opts.SeriesID = "M2NS"
	}
	return &Macro{opts: opts, src: newHTTPSource("fred", opts.Timeout, opts.UserAgent, logger)}
}

// FetchM2 returns the numeric observations of the configured series in chronological order.
// FRED encodes missing observations as "."; those are skipped.
func (m *Macro) FetchM2(ctx context.Context) ([]float64, error) {
	if m.opts.APIKey == "" {
		return nil, errors.New("fred api key not configured")
	}

	query := url.Values{}
	query.Set("series_id", m.opts.SeriesID)
	query.Set("api_key", m.opts.APIKey)
	query.Set("file_type", "json")

	var res observationsResponse
	if err := m.src.getJSON(ctx, m.opts.BaseURL, query, &res); err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(res.Observations))
	for _, obs := range res.Observations {
		raw := strings.TrimSpace(obs.Value)
		if raw == fredMissingValue || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse fred observation %s: %w", obs.Date, err)
		}
		values = append(values, v)
	}

	m.src.logger.Debug().Str("series", m.opts.SeriesID).Int("observations", len(values)).Msg("m2 series fetched")
	return values, nil
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

var _ MacroFetcher = (*Macro)(nil)
