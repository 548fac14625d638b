package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-exit-alerts/internal/alerting"
	"market-exit-alerts/internal/config"
	"market-exit-alerts/internal/fetcher"
	"market-exit-alerts/internal/history"
	"market-exit-alerts/internal/signal"
)

type stubMarket struct {
	snap fetcher.MarketSnapshot
	err  error
}

func (s stubMarket) FetchMarket(context.Context) (fetcher.MarketSnapshot, error) {
	return s.snap, s.err
}

type stubMacro struct {
	values []float64
	err    error
}

func (s stubMacro) FetchM2(context.Context) ([]float64, error) {
	return s.values, s.err
}

type stubSentiment struct {
	value int
	err   error
}

func (s stubSentiment) FetchFearGreed(context.Context) (int, error) {
	return s.value, s.err
}

type stubTrends struct {
	topics []string
	err    error
}

func (s stubTrends) FetchTrendingTopics(context.Context) ([]string, error) {
	return s.topics, s.err
}

type stubApps struct {
	names []string
	err   error
}

func (s stubApps) FetchTopApps(context.Context) ([]string, error) {
	return s.names, s.err
}

type recordingNotifier struct {
	notes  []alerting.Notification
	failAt int
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	if r.failAt > 0 && len(r.notes)+1 == r.failAt {
		return errors.New("smtp down")
	}
	r.notes = append(r.notes, note)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		History: config.HistoryConfig{
			Path:      filepath.Join(t.TempDir(), "history.json"),
			Retention: 90,
		},
		Sources: config.SourcesConfig{AppStore: config.AppStoreConfig{Brand: "coinbase"}},
		Rules: config.RulesConfig{
			BTCDominanceThreshold: 45,
			M2FlatTolerance:       0.001,
			PullbackFraction:      0.9,
			PullbackWindow:        30,
			PullbackMinPoints:     5,
			FearGreedExit:         90,
			TrendHitsRequired:     2,
			SocialTerms:           []string{"bitcoin", "crypto"},
		},
	}
}

func snapshot(btc, eth float64) fetcher.MarketSnapshot {
	return fetcher.MarketSnapshot{
		BTCDominancePct: decimal.NewFromFloat(btc),
		ETHDominancePct: decimal.NewFromFloat(eth),
		TotalMarketCap:  decimal.NewFromInt(3_000_000_000_000),
	}
}

func exitSources() Sources {
	return Sources{
		Market:    stubMarket{snap: snapshot(44, 16)},
		Macro:     stubMacro{values: []float64{100.0, 100.001, 100.002}},
		Sentiment: stubSentiment{value: 95},
		Trends:    stubTrends{topics: []string{"Bitcoin ETF", "crypto crash", "weather"}},
		AppRank:   stubApps{names: []string{"Threads"}},
	}
}

func newTestService(cfg *config.Config, sources Sources, n alerting.Notifier) *Service {
	svc := New(cfg, sources, n, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestCheckFiresAndRecords(t *testing.T) {
	cfg := testConfig(t)
	n := &recordingNotifier{}
	svc := newTestService(cfg, exitSources(), n)

	res, err := svc.Check(context.Background())
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	want := []string{signal.TriggerBTCDominance, signal.TriggerM2Flat, signal.TriggerFullExit}
	if got := signal.Names(res.Triggers); !reflect.DeepEqual(got, want) {
		t.Fatalf("triggers = %v, want %v", got, want)
	}
	if res.Notified != 3 || len(n.notes) != 3 {
		t.Fatalf("expected three deliveries, got %d / %d", res.Notified, len(n.notes))
	}
	if n.notes[0].Subject != "⚠️ Trim Risky Alts" {
		t.Fatalf("unexpected first subject %q", n.notes[0].Subject)
	}
	if !res.Readings.Trends.Active() || res.Readings.AppRank.Active() {
		t.Fatalf("unexpected probes: trends=%s app=%s", res.Readings.Trends, res.Readings.AppRank)
	}
	if !strings.HasSuffix(res.Summary(), "| Triggers: BTC dom, M2 flat, Full exit") {
		t.Fatalf("unexpected summary %q", res.Summary())
	}

	store, err := history.Load(cfg.History.Path, 90)
	if err != nil {
		t.Fatalf("reload history: %v", err)
	}
	alt := store.History(history.AltRatio, 0)
	if len(alt) != 1 || alt[0].Date != "2025-05-01" {
		t.Fatalf("alt ratio not recorded: %+v", alt)
	}
	if diff := alt[0].Value - 0.4; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("others ratio = %v, want 0.4", alt[0].Value)
	}
	for _, name := range []string{history.BTCDominance, history.ETHDominance, history.FearGreed, history.M2} {
		if len(store.History(name, 0)) != 1 {
			t.Fatalf("%s not recorded", name)
		}
	}
}

func TestCheckAbortsOnRequiredFetchFailure(t *testing.T) {
	cases := map[string]func(*Sources){
		"market":    func(s *Sources) { s.Market = stubMarket{err: errors.New("502")} },
		"macro":     func(s *Sources) { s.Macro = stubMacro{err: errors.New("bad key")} },
		"sentiment": func(s *Sources) { s.Sentiment = stubSentiment{err: errors.New("timeout")} },
	}
	for name, breakIt := range cases {
		cfg := testConfig(t)
		sources := exitSources()
		breakIt(&sources)
		n := &recordingNotifier{}

		_, err := newTestService(cfg, sources, n).Check(context.Background())
		if !errors.Is(err, ErrFetchFailure) {
			t.Fatalf("%s: expected fetch failure, got %v", name, err)
		}
		if len(n.notes) != 0 {
			t.Fatalf("%s: no alert may be sent after a fetch failure", name)
		}
		if _, statErr := os.Stat(cfg.History.Path); !errors.Is(statErr, os.ErrNotExist) {
			t.Fatalf("%s: history must not be written after a fetch failure", name)
		}
	}
}

func TestCheckZeroMarketCapIsFetchFailure(t *testing.T) {
	sources := exitSources()
	sources.Market = stubMarket{snap: fetcher.MarketSnapshot{}}
	_, err := newTestService(testConfig(t), sources, nil).Check(context.Background())
	if !errors.Is(err, ErrFetchFailure) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
}

func TestCheckDegradesBestEffortSources(t *testing.T) {
	sources := exitSources()
	sources.Trends = stubTrends{err: errors.New("429")}
	sources.AppRank = stubApps{err: errors.New("dns")}
	n := &recordingNotifier{}

	res, err := newTestService(testConfig(t), sources, n).Check(context.Background())
	if err != nil {
		t.Fatalf("best-effort failures must not abort: %v", err)
	}
	if !res.Readings.Trends.Degraded || !res.Readings.AppRank.Degraded {
		t.Fatal("both probes should be degraded")
	}
	want := []string{signal.TriggerBTCDominance, signal.TriggerM2Flat}
	if got := signal.Names(res.Triggers); !reflect.DeepEqual(got, want) {
		t.Fatalf("degraded hype must suppress full exit, got %v", got)
	}
}

func TestCheckAppRankAloneIsHype(t *testing.T) {
	sources := exitSources()
	sources.Trends = stubTrends{topics: []string{"weather"}}
	sources.AppRank = stubApps{names: []string{"ChatGPT", "Coinbase: Buy Bitcoin & Ether"}}

	res, err := newTestService(testConfig(t), sources, nil).Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Inputs.Hype {
		t.Fatal("coinbase in the top apps should raise hype")
	}
}

func TestCheckNotifyFailure(t *testing.T) {
	cfg := testConfig(t)
	n := &recordingNotifier{failAt: 2}

	res, err := newTestService(cfg, exitSources(), n).Check(context.Background())
	if !errors.Is(err, ErrNotifyFailure) {
		t.Fatalf("expected notify failure, got %v", err)
	}
	if res.Notified != 1 {
		t.Fatalf("first alert was delivered before the failure, got %d", res.Notified)
	}
	if _, statErr := os.Stat(cfg.History.Path); statErr != nil {
		t.Fatalf("history is saved before notifying: %v", statErr)
	}
}

func TestCheckRecoversFromCorruptHistory(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.History.Path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := newTestService(cfg, exitSources(), nil).Check(context.Background())
	if err != nil {
		t.Fatalf("corrupt history must not fail the run: %v", err)
	}
	if res.SaveErr != nil {
		t.Fatalf("unexpected save error: %v", res.SaveErr)
	}
	store, err := history.Load(cfg.History.Path, 90)
	if err != nil {
		t.Fatalf("history should be rewritten in a readable form: %v", err)
	}
	if len(store.History(history.AltRatio, 0)) != 1 {
		t.Fatal("fresh history should hold today's reading")
	}
}

func TestCheckDetectsPullbackFromStoredHistory(t *testing.T) {
	cfg := testConfig(t)
	seed := history.New(cfg.History.Path, 90)
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		seed.Add(history.AltRatio, 0.5, start.AddDate(0, 0, i))
	}
	if err := seed.Save(); err != nil {
		t.Fatal(err)
	}

	sources := exitSources()
	sources.Market = stubMarket{snap: snapshot(50, 10)}
	res, err := newTestService(cfg, sources, nil).Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Inputs.Pullback {
		t.Fatalf("0.4 against a 0.5 high should be a pullback")
	}
	want := []string{signal.TriggerM2Flat, signal.TriggerAltPullback}
	if got := signal.Names(res.Triggers); !reflect.DeepEqual(got, want) {
		t.Fatalf("triggers = %v, want %v", got, want)
	}
}

func TestCheckImportsLegacyHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.LegacyPath = filepath.Join(filepath.Dir(cfg.History.Path), "legacy.json")
	legacy := `[{"date":"2025-04-01","ratio":0.5},{"date":"2025-04-02","ratio":0.45}]`
	if err := os.WriteFile(cfg.History.LegacyPath, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(cfg, exitSources(), nil)
	if _, err := svc.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Check(context.Background()); err != nil {
		t.Fatal(err)
	}

	store, err := history.Load(cfg.History.Path, 90)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(store.History(history.AltRatio, 0)); got != 3 {
		t.Fatalf("legacy points imported once plus today, got %d", got)
	}
}

func TestDispatchAttachesCharts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerting.Charts = config.ChartsConfig{Enabled: true, Days: 30, Width: 320, Height: 200}
	store := history.New(cfg.History.Path, 90)
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.Add(history.BTCDominance, 50-float64(i), start.AddDate(0, 0, i))
	}
	n := &recordingNotifier{}
	svc := newTestService(cfg, exitSources(), n)

	triggers := signal.Combine(signal.Inputs{Dominance: 44, Flat: true}, svc.Thresholds())
	sent, err := svc.Dispatch(context.Background(), store, triggers)
	if err != nil {
		t.Fatal(err)
	}
	if sent != 2 {
		t.Fatalf("expected two alerts, got %d", sent)
	}
	if len(n.notes[0].Attachments) != 1 || n.notes[0].Attachments[0].Filename != "btc_dominance.png" {
		t.Fatalf("dominance alert should carry its chart: %+v", n.notes[0].Attachments)
	}
	if len(n.notes[1].Attachments) != 0 {
		t.Fatal("m2 has no history, so no chart is attached")
	}
}

func TestDispatchWithoutNotifier(t *testing.T) {
	svc := newTestService(testConfig(t), exitSources(), nil)
	sent, err := svc.Dispatch(context.Background(), nil, []signal.Trigger{{Name: signal.TriggerM2Flat}})
	if err != nil || sent != 0 {
		t.Fatalf("disabled alerting should be a silent no-op, got %d %v", sent, err)
	}
}
