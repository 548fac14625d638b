package signal

import (
	"fmt"
	"strconv"
	"strings"

	"market-exit-alerts/internal/history"
)

// Trigger names, in evaluation order.
const (
	TriggerBTCDominance = "BTC dom"
	TriggerM2Flat       = "M2 flat"
	TriggerAltPullback  = "Alt pull"
	TriggerFullExit     = "Full exit"
)

// Inputs is one snapshot of independently computed signals.
type Inputs struct {
	Dominance float64
	Flat      bool
	Pullback  bool
	FearGreed int
	Hype      bool
}

// Thresholds configure the rule set.
type Thresholds struct {
	Dominance        float64
	FearGreedExit    int
	PullbackFraction float64
	PullbackWindow   int
}

// Trigger is a fired rule together with its alert text. Indicators lists the history
// series relevant to the alert.
type Trigger struct {
	Name       string
	Subject    string
	Body       string
	Indicators []string
}

// Combine evaluates the fixed rule set against in. The result is ordered
// BTC dom, M2 flat, Alt pull, Full exit, omitting rules that did not fire.
func Combine(in Inputs, th Thresholds) []Trigger {
	triggers := make([]Trigger, 0, 4)
	lowDominance := in.Dominance < th.Dominance

	if lowDominance {
		triggers = append(triggers, Trigger{
			Name:       TriggerBTCDominance,
			Subject:    "⚠️ Trim Risky Alts",
			Body:       fmt.Sprintf("BTC dom %.2f%% < %s%% → Trim low-cap alts.", in.Dominance, formatThreshold(th.Dominance)),
			Indicators: []string{history.BTCDominance},
		})
	}

	if in.Flat {
		triggers = append(triggers, Trigger{
			Name:       TriggerM2Flat,
			Subject:    "⚠️ Rotate Out of Midcaps",
			Body:       "Global M2 peaking/flattening → rotate out of midcaps.",
			Indicators: []string{history.M2},
		})
	}

	if in.Pullback {
		drop := (1 - th.PullbackFraction) * 100
		triggers = append(triggers, Trigger{
			Name:       TriggerAltPullback,
			Subject:    "⚠️ Altcoin Pullback",
			Body:       fmt.Sprintf("Others market cap dropped >%.0f%% from %d-day high → scale out of ETH.", drop, th.PullbackWindow),
			Indicators: []string{history.AltRatio},
		})
	}

	if lowDominance && in.Flat && in.FearGreed >= th.FearGreedExit && in.Hype {
		body := strings.Join([]string{
			"Multiple red flags:",
			fmt.Sprintf("- BTC dom %.2f%% < %s%%", in.Dominance, formatThreshold(th.Dominance)),
			"- M2 peak/flat",
			fmt.Sprintf("- Fear&Greed %d", in.FearGreed),
			fmt.Sprintf("- Social/Coinbase hype: %t", in.Hype),
			"EXIT ALL crypto positions now.",
		}, "\n")
		triggers = append(triggers, Trigger{
			Name:       TriggerFullExit,
			Subject:    "🚨 FULL EXIT SIGNAL",
			Body:       body,
			Indicators: []string{history.BTCDominance, history.M2, history.AltRatio, history.FearGreed},
		})
	}

	return triggers
}

// Names returns the trigger names in order.
func Names(triggers []Trigger) []string {
	names := make([]string, len(triggers))
	for i, t := range triggers {
		names[i] = t.Name
	}
	return names
}

// Summary renders names as the single-line run summary, "None" when empty.
func Summary(triggers []Trigger) string {
	if len(triggers) == 0 {
		return "None"
	}
	return strings.Join(Names(triggers), ", ")
}

// formatThreshold prints the configured value exactly, keeping one decimal for whole numbers.
func formatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
