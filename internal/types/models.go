package types

import (
	"slices"
	"time"

	mrerrors "meeting-router-go/internal/errors"
)

// UnknownSpeaker owns text that has no resolvable speaker label.
const UnknownSpeaker = "Unknown"

// DialogueUnit is one contiguous run of transcript text attributed to one speaker.
// StartOffset is the byte offset of the unit's first line in the source text.
type DialogueUnit struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
}

type ActionItem struct {
	Owner        string `json:"owner"`
	Description  string `json:"description"`
	ContextQuote string `json:"context_quote"`
}

type RiskPoint struct {
	ContextText    string  `json:"context_text"`
	SentimentScore float64 `json:"sentiment_score"`
	DecisionQuote  string  `json:"decision_quote"`
	Speaker        string  `json:"speaker,omitempty"`
}

// Decision is a sentence containing a decision phrase, scored or not.
type Decision struct {
	Quote   string `json:"quote"`
	Speaker string `json:"speaker,omitempty"`
	Offset  int    `json:"offset"`
}

// TaskRef points at a task created by a task sink.
type TaskRef struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type DispatchOutcome struct {
	Item      ActionItem    `json:"item"`
	Succeeded bool          `json:"succeeded"`
	Reference *TaskRef      `json:"reference,omitempty"`
	ErrorKind mrerrors.Kind `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	Waited    time.Duration `json:"waited_ns"`
}

// ProcessingResult is owned by one pipeline run and never mutated after the run completes.
type ProcessingResult struct {
	ActionItems      []ActionItem      `json:"action_items"`
	RiskPoints       []RiskPoint       `json:"risk_points"`
	Decisions        []Decision        `json:"decisions"`
	DispatchOutcomes []DispatchOutcome `json:"dispatch_outcomes"`
}

// Freeze returns a copy whose slices share no backing arrays with r.
func (r ProcessingResult) Freeze() ProcessingResult {
	return ProcessingResult{
		ActionItems:      nonNil(slices.Clone(r.ActionItems)),
		RiskPoints:       nonNil(slices.Clone(r.RiskPoints)),
		Decisions:        nonNil(slices.Clone(r.Decisions)),
		DispatchOutcomes: nonNil(slices.Clone(r.DispatchOutcomes)),
	}
}

// FailedDispatches returns the outcomes that did not create a task.
func (r ProcessingResult) FailedDispatches() []DispatchOutcome {
	var out []DispatchOutcome
	for _, o := range r.DispatchOutcomes {
		if !o.Succeeded {
			out = append(out, o)
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
