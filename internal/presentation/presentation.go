package presentation

import (
	"fmt"

	"github.com/Skufu/cardioscreen/internal/decision"
)

// Severity levels for result styling.
const (
	SeverityHigh = "high"
	SeverityLow  = "low"
)

// Payload is what a presentation layer renders for one screening.
type Payload struct {
	Verdict            decision.Verdict `json:"verdict"`
	Severity           string           `json:"severity"`
	Headline           string           `json:"headline"`
	Message            string           `json:"message"`
	Recommendation     string           `json:"recommendation"`
	Probability        float64          `json:"probability"`
	ProbabilityPercent string           `json:"probabilityPercent"`
}

// Present maps a verdict and probability to display text.
func Present(v decision.Verdict, probability float64) Payload {
	p := Payload{
		Verdict:            v,
		Probability:        probability,
		ProbabilityPercent: fmt.Sprintf("%.1f%%", probability*100),
	}
	if v == decision.Positive {
		p.Severity = SeverityHigh
		p.Headline = "High probability of heart disease"
		p.Message = "The patient presents clinical characteristics associated with cardiac risk."
		p.Recommendation = "Refer to cardiology for further evaluation."
		return p
	}
	p.Severity = SeverityLow
	p.Headline = "Low probability"
	p.Message = "Vital signs indicate a healthy pattern."
	p.Recommendation = "Continue routine follow-up."
	return p
}
