// Package summary renders a processing result as the markdown digest that
// is posted to the notification channel.
package summary

import (
	"fmt"
	"strings"
	"time"

	"meeting-router-go/internal/types"
)

const (
	HeaderPrefix      = "# Meeting Summary - "
	DecisionsHeading  = "## Key Decisions"
	ActionsHeading    = "## Action Items"
	RiskHeading       = "## 🚨 Risk Points for Review"
	FailedTaskMarker  = "⚠️ Task creation failed"
	timestampLayout   = "2006-01-02 15:04:05"
	noDecisionsText   = "No key decisions were recorded in this meeting."
	noActionItemsText = "No action items were identified in this meeting."
)

type Builder struct {
	Now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

// Build renders r. Action items are paired with DispatchOutcomes by index.
// The risk section only appears when there are risk points.
func (b *Builder) Build(source string, r types.ProcessingResult) string {
	now := time.Now
	if b != nil && b.Now != nil {
		now = b.Now
	}

	var sb strings.Builder
	sb.WriteString(HeaderPrefix + now().Format(timestampLayout) + "\n\n")
	if source != "" {
		fmt.Fprintf(&sb, "Source: `%s`\n\n", source)
	}

	writeDecisions(&sb, r.Decisions)
	writeActions(&sb, r)
	writeRisks(&sb, r.RiskPoints)

	return sb.String()
}

func writeDecisions(sb *strings.Builder, decisions []types.Decision) {
	sb.WriteString(DecisionsHeading + "\n")
	seen := map[string]bool{}
	n := 0
	for _, d := range decisions {
		key := strings.ToLower(strings.Join(strings.Fields(d.Quote), " "))
		if seen[key] {
			continue
		}
		seen[key] = true
		n++
		if d.Speaker != "" && d.Speaker != types.UnknownSpeaker {
			fmt.Fprintf(sb, "- %s (%s)\n", d.Quote, d.Speaker)
		} else {
			fmt.Fprintf(sb, "- %s\n", d.Quote)
		}
	}
	if n == 0 {
		sb.WriteString(noDecisionsText + "\n")
	}
	sb.WriteString("\n")
}

func writeActions(sb *strings.Builder, r types.ProcessingResult) {
	sb.WriteString(ActionsHeading + "\n")
	if len(r.ActionItems) == 0 {
		sb.WriteString(noActionItemsText + "\n\n")
		return
	}

	failed := 0
	for i, item := range r.ActionItems {
		fmt.Fprintf(sb, "- **%s**: %s\n", item.Owner, item.Description)
		switch {
		case i >= len(r.DispatchOutcomes):
			sb.WriteString("  - Task not dispatched\n")
		case r.DispatchOutcomes[i].Succeeded && r.DispatchOutcomes[i].Reference != nil:
			ref := r.DispatchOutcomes[i].Reference
			fmt.Fprintf(sb, "  - [%s](%s)\n", ref.ID, ref.URL)
		default:
			failed++
			o := r.DispatchOutcomes[i]
			fmt.Fprintf(sb, "  - %s (%s, %d attempts): %s\n", FailedTaskMarker, kindOrUnknown(o), o.Attempts, o.Error)
		}
		fmt.Fprintf(sb, "  - Context: \"%s\"\n", item.ContextQuote)
	}
	if failed > 0 {
		fmt.Fprintf(sb, "\n%d of %d action items could not be turned into tasks.\n", failed, len(r.ActionItems))
	}
	sb.WriteString("\n")
}

func writeRisks(sb *strings.Builder, risks []types.RiskPoint) {
	if len(risks) == 0 {
		return
	}
	sb.WriteString(RiskHeading + "\n")
	for _, rp := range risks {
		fmt.Fprintf(sb, "- **Sentiment Score: %.2f**\n", rp.SentimentScore)
		fmt.Fprintf(sb, "  - \"%s\"\n", rp.DecisionQuote)
		fmt.Fprintf(sb, "  - Context: %s\n\n", rp.ContextText)
	}
}

func kindOrUnknown(o types.DispatchOutcome) string {
	if o.ErrorKind == "" {
		return "unknown"
	}
	return string(o.ErrorKind)
}
