package signal

import "math"

// flatLookback is how many observations back the latest value is compared against.
const flatLookback = 3

// IsFlat reports whether the relative change between the latest value and the value
// three observations earlier (counting the latest) is below tolerance. Series shorter
// than three points are never flat.
//
// A zero reference value is divided by 1 instead, so the change degrades to an absolute
// difference. This matches the historical behaviour of the monitor and is not a general
// zero-handling policy.
func IsFlat(series []float64, tolerance float64) bool {
	if len(series) < flatLookback {
		return false
	}
	latest := series[len(series)-1]
	ref := series[len(series)-flatLookback]

	denom := ref
	if denom == 0 {
		denom = 1
	}
	delta := (latest - ref) / denom
	return math.Abs(delta) < tolerance
}
