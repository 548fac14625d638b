package signal

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"market-exit-alerts/internal/history"
)

func TestIsFlat(t *testing.T) {
	cases := []struct {
		name   string
		series []float64
		want   bool
	}{
		{"flat", []float64{100.0, 100.001, 100.002}, true},
		{"rising", []float64{100.0, 110.0, 120.0}, false},
		{"too short", []float64{100.0, 100.0}, false},
		{"empty", nil, false},
		{"long series uses third from latest", []float64{1, 2, 100.0, 100.05, 100.01}, true},
	}
	for _, tc := range cases {
		if got := IsFlat(tc.series, 0.001); got != tc.want {
			t.Fatalf("%s: IsFlat(%v) = %v, want %v", tc.name, tc.series, got, tc.want)
		}
	}
}

func TestIsFlatZeroReference(t *testing.T) {
	// a zero reference falls back to an absolute difference
	if !IsFlat([]float64{0, 5, 0.0005}, 0.001) {
		t.Fatal("0 -> 0.0005 should be flat with denominator 1")
	}
	if IsFlat([]float64{0, 5, 0.002}, 0.001) {
		t.Fatal("0 -> 0.002 should not be flat with denominator 1")
	}
}

func seededStore(t *testing.T, days int, value func(d int) float64) *history.Store {
	t.Helper()
	s := history.New(filepath.Join(t.TempDir(), "history.json"), 90)
	for d := 1; d <= days; d++ {
		day, _ := time.Parse(history.DateLayout, fmt.Sprintf("2025-04-%02d", d))
		s.Add(history.AltRatio, value(d), day)
	}
	return s
}

func TestPullbackDetection(t *testing.T) {
	store := seededStore(t, 30, func(d int) float64 { return 0.4 + 0.1*float64(d)/30 })
	detector := NewPullback(store, PullbackOptions{Window: 30, MinPoints: 5, Fraction: 0.9})
	today, _ := time.Parse(history.DateLayout, "2025-05-01")

	if !detector.Check(0.4, today) {
		t.Fatal("0.4 is below 0.9 * 0.5 and should be a pullback")
	}
	if detector.Check(0.6, today) {
		t.Fatal("0.6 is above the trailing high and should not be a pullback")
	}

	got := store.History(history.AltRatio, 1)
	if len(got) != 1 || got[0].Date != "2025-05-01" || got[0].Value != 0.6 {
		t.Fatalf("today's reading should be recorded once with the latest value, got %+v", got)
	}
	if n := len(store.History(history.AltRatio, 0)); n != 31 {
		t.Fatalf("same-day checks must not append, series length %d", n)
	}
}

func TestPullbackInsufficientHistory(t *testing.T) {
	store := seededStore(t, 3, func(int) float64 { return 0.5 })
	detector := NewPullback(store, PullbackOptions{Window: 30, MinPoints: 5, Fraction: 0.9})
	today, _ := time.Parse(history.DateLayout, "2025-05-01")

	if detector.Check(0.01, today) {
		t.Fatal("fewer than six points should never report a pullback")
	}

	store = seededStore(t, 5, func(int) float64 { return 0.5 })
	detector = NewPullback(store, PullbackOptions{Window: 30, MinPoints: 5, Fraction: 0.9})
	if !detector.Check(0.01, today) {
		t.Fatal("six points including today should be enough history")
	}
}

func TestPullbackRecordThenEvaluate(t *testing.T) {
	store := seededStore(t, 10, func(int) float64 { return 0.5 })
	detector := NewPullback(store, PullbackOptions{Window: 30, MinPoints: 5, Fraction: 0.9})
	today, _ := time.Parse(history.DateLayout, "2025-05-01")

	detector.Record(0.7, today)
	if detector.High() != 0.7 {
		t.Fatalf("recorded reading should be part of the window, high=%v", detector.High())
	}
	if detector.Evaluate(0.7) {
		t.Fatal("a reading equal to the high is not a pullback")
	}
}

func TestCombineGoldenCases(t *testing.T) {
	th := Thresholds{Dominance: 45, FearGreedExit: 90, PullbackFraction: 0.9, PullbackWindow: 30}
	cases := []struct {
		name string
		in   Inputs
		want []string
	}{
		{"all", Inputs{Dominance: 44, Flat: true, Pullback: true, FearGreed: 95, Hype: true},
			[]string{TriggerBTCDominance, TriggerM2Flat, TriggerAltPullback, TriggerFullExit}},
		{"fear greed below exit", Inputs{Dominance: 44, Flat: true, Pullback: true, FearGreed: 85, Hype: true},
			[]string{TriggerBTCDominance, TriggerM2Flat, TriggerAltPullback}},
		{"no hype", Inputs{Dominance: 44, Flat: true, Pullback: true, FearGreed: 95, Hype: false},
			[]string{TriggerBTCDominance, TriggerM2Flat, TriggerAltPullback}},
		{"dominance above threshold", Inputs{Dominance: 46, Flat: true, Pullback: true, FearGreed: 95, Hype: true},
			[]string{TriggerM2Flat, TriggerAltPullback}},
		{"m2 not flat", Inputs{Dominance: 44, Flat: false, Pullback: true, FearGreed: 95, Hype: true},
			[]string{TriggerBTCDominance, TriggerAltPullback}},
		{"nothing", Inputs{Dominance: 46, FearGreed: 50}, []string{}},
	}
	for _, tc := range cases {
		got := Names(Combine(tc.in, th))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCombineMessages(t *testing.T) {
	th := Thresholds{Dominance: 45, FearGreedExit: 90, PullbackFraction: 0.9, PullbackWindow: 30}
	triggers := Combine(Inputs{Dominance: 44, Flat: true, Pullback: true, FearGreed: 95, Hype: true}, th)

	if triggers[0].Body != "BTC dom 44.00% < 45.0% → Trim low-cap alts." {
		t.Fatalf("unexpected dominance body: %q", triggers[0].Body)
	}
	if !strings.Contains(triggers[2].Body, ">10% from 30-day high") {
		t.Fatalf("unexpected pullback body: %q", triggers[2].Body)
	}
	exit := triggers[3]
	if exit.Subject != "🚨 FULL EXIT SIGNAL" || !strings.Contains(exit.Body, "Fear&Greed 95") {
		t.Fatalf("unexpected full exit alert: %+v", exit)
	}
	if len(exit.Indicators) != 4 {
		t.Fatalf("full exit should reference every charted indicator, got %v", exit.Indicators)
	}
}

func TestCombineKeepsConfiguredThresholdPrecision(t *testing.T) {
	th := Thresholds{Dominance: 44.25, FearGreedExit: 90, PullbackFraction: 0.9, PullbackWindow: 30}
	triggers := Combine(Inputs{Dominance: 44, Flat: true, FearGreed: 95, Hype: true}, th)

	if triggers[0].Body != "BTC dom 44.00% < 44.25% → Trim low-cap alts." {
		t.Fatalf("threshold must be printed as configured: %q", triggers[0].Body)
	}
	if !strings.Contains(triggers[len(triggers)-1].Body, "- BTC dom 44.00% < 44.25%") {
		t.Fatalf("full exit body must carry the configured threshold: %q", triggers[len(triggers)-1].Body)
	}
}

func TestSummary(t *testing.T) {
	if Summary(nil) != "None" {
		t.Fatal("empty summary should be None")
	}
	got := Summary([]Trigger{{Name: TriggerBTCDominance}, {Name: TriggerFullExit}})
	if got != "BTC dom, Full exit" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestProbe(t *testing.T) {
	if !Hit(true).Active() || Hit(false).Active() {
		t.Fatal("hit probes should mirror their value")
	}
	degraded := Degrade(errors.New("timeout"))
	degraded.Value = true
	if degraded.Active() {
		t.Fatal("degraded probes never count")
	}
	if degraded.Reason != "timeout" || degraded.String() != "degraded" {
		t.Fatalf("unexpected degraded probe %+v", degraded)
	}
}

func TestTrendHits(t *testing.T) {
	topics := []string{"Bitcoin moon", "Super Bowl", "crypto crash", "NFT bitcoin art"}
	if got := TrendHits(topics, []string{"bitcoin", "crypto"}); got != 3 {
		t.Fatalf("expected 3 topics matched, got %d", got)
	}
	if got := TrendHits(topics, []string{"nonexistent"}); got != 0 {
		t.Fatalf("expected no hits, got %d", got)
	}
	if got := TrendHits([]string{"bitcoin moon"}, []string{"bitcoin"}); got != 1 {
		t.Fatalf("expected one hit, got %d", got)
	}
}

func TestMentionsBrand(t *testing.T) {
	if !MentionsBrand([]string{"Threads", "Coinbase - Buy Bitcoin & Ether"}, "coinbase") {
		t.Fatal("coinbase should match case-insensitively")
	}
	if MentionsBrand([]string{"Other App"}, "coinbase") || MentionsBrand(nil, "coinbase") {
		t.Fatal("unexpected brand match")
	}
	if MentionsBrand([]string{"anything"}, "") {
		t.Fatal("empty brand never matches")
	}
}
