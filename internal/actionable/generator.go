package actionable

import (
	"fmt"

	"meeting-router-go/internal/aggregator"
)

// FollowUp is a one-line operator hint derived from a run's aggregate.
type FollowUp struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const failureRateAlert = 0.35

func Generate(ins aggregator.Insight) FollowUp {
	if ins.TotalItems > 0 && ins.FailureRate >= failureRateAlert {
		return FollowUp{
			Insight: fmt.Sprintf("%d of %d action items were not turned into tasks (%.0f%%)", ins.TotalItems-ins.TotalCreated, ins.TotalItems, ins.FailureRate*100),
			Action:  "Check task backend credentials and rate limits, then re-run the transcript",
			Impact:  "Owners may not know about their commitments",
		}
	}
	if ins.RiskPoints > 0 {
		return FollowUp{
			Insight: fmt.Sprintf("%d decision(s) discussed with negative sentiment (lowest %.2f)", ins.RiskPoints, ins.LowestScore),
			Action:  "Review the flagged decisions with the people involved",
			Impact:  "Surfaces disagreement before work starts",
		}
	}
	if ins.TotalItems == 0 {
		return FollowUp{
			Insight: "No action items detected",
			Action:  "Confirm the meeting produced no commitments",
			Impact:  "Low immediate intervention",
		}
	}
	return FollowUp{
		Insight: fmt.Sprintf("%d action item(s) routed to %d owner(s)", ins.TotalItems, len(ins.Owners)),
		Action:  "No follow-up needed",
		Impact:  "Low immediate intervention",
	}
}
