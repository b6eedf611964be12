// Package risk finds decision statements in a transcript and flags the ones
// whose surrounding discussion scores below a sentiment threshold.
package risk

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/logger"
	"meeting-router-go/internal/segment"
	"meeting-router-go/internal/sentiment"
	"meeting-router-go/internal/types"
)

// WindowRadius is how many sentences on each side of a decision sentence
// make up its context window.
const WindowRadius = 2

var DecisionPhrases = []string{
	"We decided",
	"The final choice is",
	"We agreed",
	"The decision is",
	"We're going with",
	"We'll go with",
}

type Detector struct {
	callTimeout time.Duration
	pattern     *regexp.Regexp
}

// New returns a Detector that bounds each scorer call by callTimeout (0 = no bound).
func New(callTimeout time.Duration) *Detector {
	alts := make([]string, 0, len(DecisionPhrases))
	for _, p := range DecisionPhrases {
		q := regexp.QuoteMeta(p)
		q = strings.ReplaceAll(q, "'", "['’]")
		q = strings.ReplaceAll(q, " ", `\s+`)
		alts = append(alts, q)
	}
	return &Detector{
		callTimeout: callTimeout,
		pattern:     regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`),
	}
}

type sentence struct {
	segment.Sentence
	speaker string
	offset  int
}

// sentences flattens the units into transcript-ordered sentences. Without
// units the raw text is split and attributed to Unknown.
func sentences(text string, units []types.DialogueUnit) []sentence {
	if len(units) == 0 {
		units = []types.DialogueUnit{{Speaker: types.UnknownSpeaker, Text: text}}
	}
	var out []sentence
	for _, u := range units {
		for _, s := range segment.SplitSentences(u.Text) {
			off := u.StartOffset
			if u.StartOffset <= len(text) {
				if i := strings.Index(text[u.StartOffset:], s.Text); i >= 0 {
					off = u.StartOffset + i
				}
			}
			out = append(out, sentence{Sentence: s, speaker: u.Speaker, offset: off})
		}
	}
	return out
}

func (d *Detector) decisionIndexes(all []sentence) []int {
	var idx []int
	for i, s := range all {
		if d.pattern.MatchString(s.Text) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Decisions returns every sentence containing a decision phrase, in transcript order.
func (d *Detector) Decisions(text string, units []types.DialogueUnit) []types.Decision {
	all := sentences(text, units)
	out := make([]types.Decision, 0)
	for _, i := range d.decisionIndexes(all) {
		out = append(out, types.Decision{Quote: all[i].Text, Speaker: all[i].speaker, Offset: all[i].offset})
	}
	return out
}

// Detect scores the context window of each decision sentence and returns a
// RiskPoint for every window scoring strictly below threshold. Scorer
// failures skip only the affected window.
func (d *Detector) Detect(ctx context.Context, text string, units []types.DialogueUnit, threshold float64, scorer sentiment.Scorer) []types.RiskPoint {
	points, _ := d.DetectWithErrors(ctx, text, units, threshold, scorer)
	return points
}

// DetectWithErrors is Detect plus the per-window scoring errors.
func (d *Detector) DetectWithErrors(ctx context.Context, text string, units []types.DialogueUnit, threshold float64, scorer sentiment.Scorer) ([]types.RiskPoint, []error) {
	log := logger.FromContext(ctx).WithField("component", "risk")

	all := sentences(text, units)
	points := make([]types.RiskPoint, 0)
	var errs []error

	for _, i := range d.decisionIndexes(all) {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			log.WithError(ctx.Err()).Warn("risk detection interrupted")
			break
		}

		decision := all[i]
		window := contextWindow(all, i)
		wlog := log.WithFields(logrus.Fields{"decision": truncate(decision.Text, 60), "offset": decision.offset})

		score, err := d.score(ctx, scorer, window)
		if err != nil {
			errs = append(errs, err)
			wlog.WithError(err).Error("sentiment scoring failed, skipping window")
			continue
		}

		if score < threshold {
			points = append(points, types.RiskPoint{
				ContextText:    window,
				SentimentScore: score,
				DecisionQuote:  decision.Text,
				Speaker:        decision.speaker,
			})
			wlog.WithField("score", score).Info("risk point detected")
		}
	}

	log.WithField("risk_points", len(points)).Info("risk detection finished")
	return points, errs
}

func (d *Detector) score(ctx context.Context, scorer sentiment.Scorer, window string) (float64, error) {
	if scorer == nil {
		return 0, &mrerrors.ScoringError{Window: window, Cause: errors.New("no scorer configured")}
	}
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	s, err := scorer.Score(ctx, window)
	if err != nil {
		var se *mrerrors.ScoringError
		if errors.As(err, &se) {
			return 0, err
		}
		return 0, &mrerrors.ScoringError{Window: window, Cause: err}
	}
	if err := sentiment.ValidScore(s); err != nil {
		return 0, &mrerrors.ScoringError{Window: window, Cause: err}
	}
	return s, nil
}

// contextWindow joins sentence i with up to WindowRadius sentences on each side.
func contextWindow(all []sentence, i int) string {
	lo := max(0, i-WindowRadius)
	hi := min(len(all), i+WindowRadius+1)
	parts := make([]string, 0, hi-lo)
	for _, s := range all[lo:hi] {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
