package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"market-exit-alerts/internal/charting"
	"market-exit-alerts/internal/history"
	"market-exit-alerts/internal/service"
)

// Export renders one indicator's history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Indicator == "" {
		return errors.New("--indicator must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openHistory()
	if err != nil {
		return err
	}

	points := store.History(opts.Indicator, opts.Days)
	if len(points) == 0 {
		a.Logger.Info().Str("indicator", opts.Indicator).Msg("no history found for export")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Str("indicator", opts.Indicator).
		Int("total", len(points)).
		Int("exported", len(downsampled)).
		Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, opts.Indicator, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePointsPNG(opts.PNGPath, opts.Indicator, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) openHistory() (*history.Store, error) {
	return service.New(a.Config, service.Sources{}, nil, a.Logger).OpenHistory()
}

func downsamplePoints(points []history.Point, max int) []history.Point {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]history.Point, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path, indicator string, points []history.Point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"indicator", "date", "value"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{indicator, p.Date, formatValue(p.Value)}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePointsPNG(path, indicator string, points []history.Point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := charting.RenderPNG(file, indicator, points, charting.Options{}); err != nil {
		return fmt.Errorf("render %s chart: %w", indicator, err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
