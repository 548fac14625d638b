package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-exit-alerts/internal/alerting"
	"market-exit-alerts/internal/charting"
	"market-exit-alerts/internal/config"
	"market-exit-alerts/internal/fetcher"
	"market-exit-alerts/internal/history"
	"market-exit-alerts/internal/signal"
)

var (
	// ErrFetchFailure marks a required source that could not be read. The run aborts
	// before anything is recorded or sent.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrNotifyFailure marks an alert that could not be delivered.
	ErrNotifyFailure = errors.New("notify failure")
)

// Sources groups the fetchers one run reads from. Trends and AppRank are best-effort
// and may be nil.
type Sources struct {
	Market    fetcher.MarketDataFetcher
	Macro     fetcher.MacroFetcher
	Sentiment fetcher.SentimentFetcher
	Trends    fetcher.TrendsFetcher
	AppRank   fetcher.AppRankFetcher
}

// Readings are the raw values fetched in one run.
type Readings struct {
	BTCDominance float64
	ETHDominance float64
	OthersRatio  float64
	M2           []float64
	FearGreed    int
	Trends       signal.Probe
	AppRank      signal.Probe
}

// Hype is the combined social/app-rank signal.
func (r Readings) Hype() bool {
	return r.Trends.Active() || r.AppRank.Active()
}

// Result describes one completed run.
type Result struct {
	At       time.Time
	Readings Readings
	Inputs   signal.Inputs
	Triggers []signal.Trigger
	// SaveErr is set when history could not be persisted; alerts are still sent.
	SaveErr  error
	Notified int
}

// Summary renders the single-line run summary.
func (r Result) Summary() string {
	return fmt.Sprintf("%s | Triggers: %s", r.At.UTC().Format(time.RFC3339), signal.Summary(r.Triggers))
}

// Service runs the fetch, record, evaluate, notify pipeline.
type Service struct {
	sources  Sources
	notifier alerting.Notifier
	logger   zerolog.Logger
	now      func() time.Time

	historyPath string
	legacyPath  string
	retention   int

	rules      config.RulesConfig
	brand      string
	charts     config.ChartsConfig
	thresholds signal.Thresholds
}

// New constructs the monitoring service. A nil notifier disables delivery; triggers
// are still evaluated and logged.
func New(cfg *config.Config, sources Sources, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		sources:     sources,
		notifier:    notifier,
		logger:      logger.With().Str("component", "service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
		historyPath: cfg.History.Path,
		legacyPath:  cfg.History.LegacyPath,
		retention:   cfg.History.Retention,
		rules:       cfg.Rules,
		brand:       cfg.Sources.AppStore.Brand,
		charts:      cfg.Alerting.Charts,
		thresholds: signal.Thresholds{
			Dominance:        cfg.Rules.BTCDominanceThreshold,
			FearGreedExit:    cfg.Rules.FearGreedExit,
			PullbackFraction: cfg.Rules.PullbackFraction,
			PullbackWindow:   cfg.Rules.PullbackWindow,
		},
	}
}

// Thresholds exposes the rule thresholds derived from configuration.
func (s *Service) Thresholds() signal.Thresholds {
	return s.thresholds
}

// Tick adapts Check to the scheduler.
func (s *Service) Tick(ctx context.Context, slot time.Time) error {
	res, err := s.Check(ctx)
	if err != nil {
		return err
	}
	s.logger.Info().Time("slot", slot).Msg(res.Summary())
	return nil
}

// Check performs one full run.
func (s *Service) Check(ctx context.Context) (Result, error) {
	res := Result{At: s.now()}

	readings, err := s.fetchRequired(ctx)
	if err != nil {
		return res, err
	}
	readings.Trends = s.probeTrends(ctx)
	readings.AppRank = s.probeAppRank(ctx)
	res.Readings = readings

	store, err := s.OpenHistory()
	if err != nil {
		return res, err
	}

	detector := signal.NewPullback(store, signal.PullbackOptions{
		Indicator: history.AltRatio,
		Window:    s.rules.PullbackWindow,
		MinPoints: s.rules.PullbackMinPoints,
		Fraction:  s.rules.PullbackFraction,
	})

	store.Add(history.BTCDominance, readings.BTCDominance, res.At)
	store.Add(history.ETHDominance, readings.ETHDominance, res.At)
	store.Add(history.FearGreed, float64(readings.FearGreed), res.At)
	if n := len(readings.M2); n > 0 {
		store.Add(history.M2, readings.M2[n-1], res.At)
	}
	detector.Record(readings.OthersRatio, res.At)

	if err := store.Save(); err != nil {
		res.SaveErr = err
		s.logger.Error().Err(err).Str("path", store.Path()).Msg("failed to persist history")
	}

	res.Inputs = signal.Inputs{
		Dominance: readings.BTCDominance,
		Flat:      signal.IsFlat(readings.M2, s.rules.M2FlatTolerance),
		Pullback:  detector.Evaluate(readings.OthersRatio),
		FearGreed: readings.FearGreed,
		Hype:      readings.Hype(),
	}
	res.Triggers = signal.Combine(res.Inputs, s.thresholds)

	s.logger.Info().
		Float64("btc_dominance", readings.BTCDominance).
		Float64("others_ratio", readings.OthersRatio).
		Float64("others_high", detector.High()).
		Int("fear_greed", readings.FearGreed).
		Bool("m2_flat", res.Inputs.Flat).
		Bool("pullback", res.Inputs.Pullback).
		Str("trends", readings.Trends.String()).
		Str("app_rank", readings.AppRank.String()).
		Strs("triggers", signal.Names(res.Triggers)).
		Msg("signals evaluated")

	sent, err := s.Dispatch(ctx, store, res.Triggers)
	res.Notified = sent
	return res, err
}

// OpenHistory loads the history file, importing a legacy file first when configured.
// A corrupt file is logged and replaced by an empty store.
func (s *Service) OpenHistory() (*history.Store, error) {
	if s.legacyPath != "" {
		n, err := history.ImportLegacy(s.historyPath, s.legacyPath, s.retention)
		if err != nil {
			s.logger.Warn().Err(err).Str("legacy_path", s.legacyPath).Msg("legacy history import failed")
		} else if n > 0 {
			s.logger.Info().Int("points", n).Str("legacy_path", s.legacyPath).Msg("legacy history imported")
		}
	}

	store, err := history.Load(s.historyPath, s.retention)
	if err != nil {
		if errors.Is(err, history.ErrCorruptHistory) {
			s.logger.Error().Err(err).Str("path", s.historyPath).Msg("history unreadable, starting empty")
			return history.New(s.historyPath, s.retention), nil
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	return store, nil
}

// Dispatch sends one notification per trigger in order and stops at the first
// delivery failure. It returns the number of alerts delivered.
func (s *Service) Dispatch(ctx context.Context, store *history.Store, triggers []signal.Trigger) (int, error) {
	if len(triggers) == 0 {
		return 0, nil
	}
	if s.notifier == nil {
		s.logger.Warn().Strs("triggers", signal.Names(triggers)).Msg("alerting disabled; triggers not delivered")
		return 0, nil
	}

	sent := 0
	for _, trig := range triggers {
		note := alerting.Notification{
			Trigger:     trig.Name,
			Subject:     trig.Subject,
			Body:        trig.Body,
			Attachments: s.renderCharts(store, trig),
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			return sent, fmt.Errorf("%w: %s: %w", ErrNotifyFailure, trig.Name, err)
		}
		sent++
	}
	return sent, nil
}

func (s *Service) fetchRequired(ctx context.Context) (Readings, error) {
	var r Readings

	snap, err := s.sources.Market.FetchMarket(ctx)
	if err != nil {
		return r, fmt.Errorf("%w: market data: %w", ErrFetchFailure, err)
	}
	ratio, err := snap.OthersRatio()
	if err != nil {
		return r, fmt.Errorf("%w: market data: %w", ErrFetchFailure, err)
	}
	r.BTCDominance = snap.BTCDominancePct.InexactFloat64()
	r.ETHDominance = snap.ETHDominancePct.InexactFloat64()
	r.OthersRatio = ratio.InexactFloat64()

	r.M2, err = s.sources.Macro.FetchM2(ctx)
	if err != nil {
		return r, fmt.Errorf("%w: macro data: %w", ErrFetchFailure, err)
	}

	r.FearGreed, err = s.sources.Sentiment.FetchFearGreed(ctx)
	if err != nil {
		return r, fmt.Errorf("%w: sentiment: %w", ErrFetchFailure, err)
	}
	return r, nil
}

func (s *Service) probeTrends(ctx context.Context) signal.Probe {
	if s.sources.Trends == nil {
		return signal.Degrade(errors.New("trends source not configured"))
	}
	topics, err := s.sources.Trends.FetchTrendingTopics(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("social trends unavailable")
		return signal.Degrade(err)
	}
	hits := signal.TrendHits(topics, s.rules.SocialTerms)
	s.logger.Debug().Int("topics", len(topics)).Int("hits", hits).Msg("social trends checked")
	return signal.Hit(hits >= s.rules.TrendHitsRequired)
}

func (s *Service) probeAppRank(ctx context.Context) signal.Probe {
	if s.sources.AppRank == nil {
		return signal.Degrade(errors.New("app rank source not configured"))
	}
	names, err := s.sources.AppRank.FetchTopApps(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("app rank unavailable")
		return signal.Degrade(err)
	}
	return signal.Hit(signal.MentionsBrand(names, s.brand))
}

// renderCharts draws the history of every indicator the trigger concerns. Failures
// only cost the attachment.
func (s *Service) renderCharts(store *history.Store, trig signal.Trigger) []alerting.Attachment {
	if !s.charts.Enabled || store == nil {
		return nil
	}
	opts := charting.Options{Width: s.charts.Width, Height: s.charts.Height}

	var out []alerting.Attachment
	for _, indicator := range trig.Indicators {
		points := store.History(indicator, s.charts.Days)
		img, err := charting.PNG(chartTitle(indicator), points, opts)
		if err != nil {
			if !errors.Is(err, charting.ErrNotEnoughPoints) {
				s.logger.Warn().Err(err).Str("indicator", indicator).Msg("chart render failed")
			}
			continue
		}
		out = append(out, alerting.Attachment{
			Filename:    indicator + ".png",
			ContentType: "image/png",
			Data:        img,
		})
	}
	return out
}

func chartTitle(indicator string) string {
	switch indicator {
	case history.BTCDominance:
		return "BTC dominance (%)"
	case history.ETHDominance:
		return "ETH dominance (%)"
	case history.AltRatio:
		return "Others / total market cap"
	case history.FearGreed:
		return "Fear & Greed index"
	case history.M2:
		return "M2 money supply"
	default:
		return strings.ReplaceAll(indicator, "_", " ")
	}
}
