package aggregator

import (
	"sort"

	"meeting-router-go/internal/types"
)

type OwnerStats struct {
	Owner   string `json:"owner"`
	Items   int    `json:"items"`
	Created int    `json:"created"`
	Failed  int    `json:"failed"`
}

type Insight struct {
	Owners       []OwnerStats `json:"owners"`
	FailureRate  float64      `json:"failure_rate"`
	RiskPoints   int          `json:"risk_points"`
	LowestScore  float64      `json:"lowest_score,omitempty"`
	Decisions    int          `json:"decisions"`
	TotalItems   int          `json:"total_items"`
	TotalCreated int          `json:"total_created"`
}

// Aggregate summarizes one or more results. Owners are ordered by item
// count, then name.
func Aggregate(results ...types.ProcessingResult) Insight {
	byOwner := map[string]*OwnerStats{}
	var ins Insight
	lowest := 1.0
	for _, r := range results {
		for i, item := range r.ActionItems {
			s := byOwner[item.Owner]
			if s == nil {
				s = &OwnerStats{Owner: item.Owner}
				byOwner[item.Owner] = s
			}
			s.Items++
			ins.TotalItems++
			if i < len(r.DispatchOutcomes) && r.DispatchOutcomes[i].Succeeded {
				s.Created++
				ins.TotalCreated++
			} else {
				s.Failed++
			}
		}
		for _, rp := range r.RiskPoints {
			ins.RiskPoints++
			if rp.SentimentScore < lowest {
				lowest = rp.SentimentScore
			}
		}
		ins.Decisions += len(r.Decisions)
	}
	if ins.RiskPoints > 0 {
		ins.LowestScore = lowest
	}
	if ins.TotalItems > 0 {
		ins.FailureRate = float64(ins.TotalItems-ins.TotalCreated) / float64(ins.TotalItems)
	}

	ins.Owners = make([]OwnerStats, 0, len(byOwner))
	for _, s := range byOwner {
		ins.Owners = append(ins.Owners, *s)
	}
	sort.Slice(ins.Owners, func(i, j int) bool {
		if ins.Owners[i].Items != ins.Owners[j].Items {
			return ins.Owners[i].Items > ins.Owners[j].Items
		}
		return ins.Owners[i].Owner < ins.Owners[j].Owner
	})
	return ins
}
