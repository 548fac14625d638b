package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"market-exit-alerts/internal/alerting"
	"market-exit-alerts/internal/config"
	"market-exit-alerts/internal/fetcher"
	"market-exit-alerts/internal/scheduler"
	"market-exit-alerts/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newSources() service.Sources {
	src := a.Config.Sources
	return service.Sources{
		Market: fetcher.NewMarket(fetcher.MarketOptions{
			BaseURL:   src.CoinGecko.BaseURL,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.Logger),
		Macro: fetcher.NewMacro(fetcher.MacroOptions{
			BaseURL:   src.FRED.BaseURL,
			APIKey:    src.FRED.APIKey,
			SeriesID:  src.FRED.SeriesID,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.Logger),
		Sentiment: fetcher.NewSentiment(fetcher.SentimentOptions{
			URL:       src.FearGreed.URL,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.Logger),
		Trends: fetcher.NewTrends(fetcher.TrendsOptions{
			URL:       src.Trends.URL,
			Language:  src.Trends.Language,
			TZOffset:  src.Trends.TZOffset,
			Geo:       src.Trends.Geo,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.Logger),
		AppRank: fetcher.NewAppRank(fetcher.AppRankOptions{
			URL:       src.AppStore.URL,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.Logger),
	}
}

// newNotifier builds the configured channels. It returns nil when alerting is disabled.
func (a *App) newNotifier() (alerting.Notifier, error) {
	if !a.Config.Alerting.Enabled {
		return nil, nil
	}
	if err := a.Config.ValidateAlerting(); err != nil {
		return nil, err
	}

	fanout := alerting.NewFanout()
	if a.Config.ChannelEnabled("email") {
		cfg := a.Config.Alerting.Email
		fanout.Add("email", alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
			To:       cfg.To,
			Timeout:  a.Config.Alerting.Timeout,
		}, a.Logger))
	}
	if a.Config.ChannelEnabled("telegram") {
		cfg := a.Config.Alerting.Telegram
		fanout.Add("telegram", alerting.NewTelegramNotifier(alerting.TelegramOptions{
			BotToken: cfg.BotToken,
			ChatID:   cfg.ChatID,
			APIBase:  cfg.APIBase,
			Timeout:  a.Config.Alerting.Timeout,
		}, a.Logger))
	}
	if fanout.Len() == 0 {
		return nil, errors.New("未配置任何告警通道")
	}
	return fanout, nil
}

func (a *App) newService() (*service.Service, error) {
	notifier, err := a.newNotifier()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		a.Logger.Warn().Msg("alerting disabled; triggers will only be logged")
	}
	return service.New(a.Config, a.newSources(), notifier, a.Logger), nil
}

// Check performs a single run and prints the summary line.
func (a *App) Check(ctx context.Context) error {
	svc, err := a.newService()
	if err != nil {
		return err
	}

	res, err := svc.Check(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Int("notified", res.Notified).Msg("check failed")
		return err
	}
	fmt.Fprintln(a.Out, res.Summary())
	return nil
}

// Watch executes the long-running monitoring loop.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc, err := a.newService()
	if err != nil {
		return err
	}

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting monitoring loop")
	err = sched.Run(ctx, svc.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitoring loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring loop stopped")
	return nil
}

// ExportOptions hold parameters for exporting indicator history.
type ExportOptions struct {
	Indicator string
	Days      int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Indicator string
	Limit     int
}

// ImportOptions configure the legacy history import.
type ImportOptions struct {
	From string
}

// SimulateOptions describe a synthetic snapshot of signals.
type SimulateOptions struct {
	Dominance float64
	Flat      bool
	Pullback  bool
	FearGreed int
	Hype      bool
	Send      bool
}
