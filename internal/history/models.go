package history

import "time"

// DateLayout is the on-disk representation of a history day.
const DateLayout = "2006-01-02"

// DefaultRetention is the number of daily points kept per indicator.
const DefaultRetention = 90

// Indicator names persisted by the monitor.
const (
	BTCDominance = "btc_dominance"
	ETHDominance = "eth_dominance"
	AltRatio     = "alt_ratio"
	FearGreed    = "fear_greed"
	M2           = "m2"
)

// Point is one observation of one indicator on one UTC day.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Day formats t as the UTC calendar day used for history keys.
func Day(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// legacyPoint is the pre multi-indicator file entry.
type legacyPoint struct {
	Date  string  `json:"date"`
	Ratio float64 `json:"ratio"`
}
