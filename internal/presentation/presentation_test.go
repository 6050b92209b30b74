package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skufu/cardioscreen/internal/decision"
)

func TestPresentPositive(t *testing.T) {
	p := Present(decision.Positive, 0.234)
	assert.Equal(t, SeverityHigh, p.Severity)
	assert.Contains(t, p.Headline, "High probability")
	assert.Contains(t, p.Recommendation, "cardiology")
	assert.Equal(t, "23.4%", p.ProbabilityPercent)
}

func TestPresentNegativeStillShowsProbability(t *testing.T) {
	p := Present(decision.Negative, 0.05)
	assert.Equal(t, SeverityLow, p.Severity)
	assert.Equal(t, "5.0%", p.ProbabilityPercent)
	assert.Contains(t, p.Recommendation, "routine")
}
