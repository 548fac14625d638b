package charting

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"market-exit-alerts/internal/history"
)

// ErrNotEnoughPoints is returned when a series is too short to draw a line.
var ErrNotEnoughPoints = errors.New("charting: at least two points required")

// Options size the rendered chart.
type Options struct {
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	return o
}

// RenderPNG draws points as a single time series line and writes the PNG to w.
func RenderPNG(w io.Writer, title string, points []history.Point, opts Options) error {
	if len(points) < 2 {
		return ErrNotEnoughPoints
	}
	opts = opts.withDefaults()

	x := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		day, err := time.Parse(history.DateLayout, p.Date)
		if err != nil {
			return fmt.Errorf("parse point date %q: %w", p.Date, err)
		}
		x[i] = day
		y[i] = p.Value
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4g")
	}
	graph := chart.Chart{
		Title:  title,
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           title,
			ValueFormatter: valueFormatter,
			Range:          paddedRange(y),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    title,
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// PNG renders points into memory.
func PNG(title string, points []history.Point, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderPNG(&buf, title, points, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// paddedRange keeps the y axis drawable when every value is identical.
func paddedRange(values []float64) chart.Range {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi > lo {
		return nil
	}
	pad := 1.0
	if lo != 0 {
		pad = lo * 0.01
		if pad < 0 {
			pad = -pad
		}
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
