package decision

import (
	"encoding/json"
	"fmt"
)

// Verdict is the binary screening outcome.
type Verdict int

const (
	Negative Verdict = iota
	Positive
)

func (v Verdict) String() string {
	if v == Positive {
		return "POSITIVE"
	}
	return "NEGATIVE"
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// Decide returns Positive iff p >= threshold.
func Decide(p, threshold float64) Verdict {
	if p >= threshold {
		return Positive
	}
	return Negative
}

// Policy applies a fixed, per-model threshold. The thresholds in use sit well
// below 0.5 so the screen misses fewer positive cases.
type Policy struct {
	Threshold float64
}

// NewPolicy validates threshold, which must lie in (0, 1].
func NewPolicy(threshold float64) (Policy, error) {
	if !(threshold > 0 && threshold <= 1) {
		return Policy{}, fmt.Errorf("decision: threshold %v outside (0, 1]", threshold)
	}
	return Policy{Threshold: threshold}, nil
}

func (p Policy) Decide(probability float64) Verdict {
	return Decide(probability, p.Threshold)
}
