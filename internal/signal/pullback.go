package signal

import (
	"time"

	"market-exit-alerts/internal/history"
)

// PullbackOptions parameterise the pullback detector.
type PullbackOptions struct {
	Indicator string
	Window    int
	MinPoints int
	Fraction  float64
}

// Pullback detects a ratio falling below a fraction of its trailing maximum.
// Readings must be recorded before they are evaluated; Check does both.
type Pullback struct {
	store *history.Store
	opts  PullbackOptions
}

// NewPullback binds a detector to store.
func NewPullback(store *history.Store, opts PullbackOptions) *Pullback {
	if opts.Indicator == "" {
		opts.Indicator = history.AltRatio
	}
	if opts.Window <= 0 {
		opts.Window = 30
	}
	if opts.MinPoints < 0 {
		opts.MinPoints = 0
	}
	return &Pullback{store: store, opts: opts}
}

// Record stores ratio as the reading for day, replacing any same-day reading.
func (p *Pullback) Record(ratio float64, day time.Time) {
	p.store.Add(p.opts.Indicator, ratio, day)
}

// Evaluate compares ratio against the trailing window already in the store.
// A window holding MinPoints or fewer points is insufficient history.
func (p *Pullback) Evaluate(ratio float64) bool {
	window := p.store.Values(p.opts.Indicator, p.opts.Window)
	if len(window) == 0 || len(window) <= p.opts.MinPoints {
		return false
	}
	return ratio < maxOf(window)*p.opts.Fraction
}

// Check records ratio for day and evaluates it.
func (p *Pullback) Check(ratio float64, day time.Time) bool {
	p.Record(ratio, day)
	return p.Evaluate(ratio)
}

// High returns the trailing maximum the detector compares against, or 0 without history.
func (p *Pullback) High() float64 {
	return maxOf(p.store.Values(p.opts.Indicator, p.opts.Window))
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	high := values[0]
	for _, v := range values[1:] {
		if v > high {
			high = v
		}
	}
	return high
}
