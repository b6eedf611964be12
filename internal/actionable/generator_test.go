package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meeting-router-go/internal/aggregator"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name   string
		in     aggregator.Insight
		action string
	}{
		{"dispatch failures", aggregator.Insight{TotalItems: 4, TotalCreated: 1, FailureRate: 0.75, RiskPoints: 2}, "Check task backend credentials and rate limits, then re-run the transcript"},
		{"risks", aggregator.Insight{TotalItems: 2, TotalCreated: 2, RiskPoints: 1, LowestScore: 0.12}, "Review the flagged decisions with the people involved"},
		{"nothing extracted", aggregator.Insight{}, "Confirm the meeting produced no commitments"},
		{"all good", aggregator.Insight{TotalItems: 2, TotalCreated: 2, Owners: make([]aggregator.OwnerStats, 2)}, "No follow-up needed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.action, Generate(tt.in).Action)
		})
	}
	assert.Contains(t, Generate(tests[0].in).Insight, "3 of 4")
}
