package app

import (
	"context"
	"errors"
	"fmt"

	"market-exit-alerts/internal/service"
	"market-exit-alerts/internal/signal"
)

// Simulate 用给定读数评估规则，可选地把结果真正发送出去。
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.FearGreed < 0 || opts.FearGreed > 100 {
		return errors.New("--fear-greed 必须在 0-100 之间")
	}

	svc := service.New(a.Config, service.Sources{}, nil, a.Logger)
	inputs := signal.Inputs{
		Dominance: opts.Dominance,
		Flat:      opts.Flat,
		Pullback:  opts.Pullback,
		FearGreed: opts.FearGreed,
		Hype:      opts.Hype,
	}
	triggers := signal.Combine(inputs, svc.Thresholds())

	for _, t := range triggers {
		fmt.Fprintf(a.Out, "[%s] %s\n%s\n\n", t.Name, t.Subject, t.Body)
	}
	fmt.Fprintf(a.Out, "Triggers: %s\n", signal.Summary(triggers))

	if !opts.Send || len(triggers) == 0 {
		return nil
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("alerting 未启用")
	}

	store, err := a.openHistory()
	if err != nil {
		return err
	}
	svc = service.New(a.Config, service.Sources{}, notifier, a.Logger)
	sent, err := svc.Dispatch(ctx, store, triggers)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("sent", sent).Msg("simulated alerts dispatched")
	return nil
}
