package app

import (
	"context"
	"errors"
	"fmt"

	"market-exit-alerts/internal/history"
)

// ImportLegacy merges a pre multi-indicator history file into alt_ratio. It is a no-op
// once the current history file exists.
func (a *App) ImportLegacy(ctx context.Context, opts ImportOptions) error {
	from := opts.From
	if from == "" {
		from = a.Config.History.LegacyPath
	}
	if from == "" {
		return errors.New("--from 或 history.legacy_path 必须配置")
	}

	n, err := history.ImportLegacy(a.Config.History.Path, from, a.Config.History.Retention)
	if err != nil {
		return err
	}
	if n == 0 {
		a.Logger.Info().Str("path", a.Config.History.Path).Str("legacy_path", from).Msg("nothing imported")
	} else {
		a.Logger.Info().Int("points", n).Str("legacy_path", from).Msg("legacy history imported")
	}
	fmt.Fprintf(a.Out, "imported %d points into %s\n", n, history.AltRatio)
	return nil
}
