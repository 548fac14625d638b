package signal

import "strings"

// Probe is the outcome of a best-effort source. A degraded probe never counts as a hit.
type Probe struct {
	Value    bool
	Degraded bool
	Reason   string
}

// Hit builds a successful probe.
func Hit(v bool) Probe {
	return Probe{Value: v}
}

// Degrade builds a probe for a source that could not be read.
func Degrade(err error) Probe {
	p := Probe{Degraded: true}
	if err != nil {
		p.Reason = err.Error()
	}
	return p
}

// Active reports whether the probe contributes to the hype signal.
func (p Probe) Active() bool {
	return !p.Degraded && p.Value
}

// String renders the probe for logs and alert bodies.
func (p Probe) String() string {
	switch {
	case p.Degraded:
		return "degraded"
	case p.Value:
		return "yes"
	default:
		return "no"
	}
}

// TrendHits counts topics that contain at least one of terms, case-insensitively.
func TrendHits(topics, terms []string) int {
	hits := 0
	for _, topic := range topics {
		t := strings.ToLower(topic)
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" && strings.Contains(t, term) {
				hits++
				break
			}
		}
	}
	return hits
}

// MentionsBrand reports whether any name contains brand, case-insensitively.
func MentionsBrand(names []string, brand string) bool {
	brand = strings.ToLower(strings.TrimSpace(brand))
	if brand == "" {
		return false
	}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), brand) {
			return true
		}
	}
	return false
}
