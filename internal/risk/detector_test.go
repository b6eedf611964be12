package risk

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-router-go/internal/segment"
	"meeting-router-go/internal/sentiment"
	"meeting-router-go/internal/types"
)

func detect(t *testing.T, text string, threshold float64, scorer sentiment.Scorer) []types.RiskPoint {
	t.Helper()
	units := segment.NewParser().Parse(text)
	return New(time.Second).Detect(context.Background(), text, units, threshold, scorer)
}

func TestDetect_NegativeDecisionFlagged(t *testing.T) {
	points := detect(t, "Bob: We decided to use Postgres. It might cause migration pain.", 0.3, sentiment.Fixed(0.2))

	require.Len(t, points, 1)
	p := points[0]
	assert.Contains(t, p.DecisionQuote, "We decided to use Postgres.")
	assert.Equal(t, "We decided to use Postgres. It might cause migration pain.", p.ContextText)
	assert.Equal(t, 0.2, p.SentimentScore)
	assert.Equal(t, "Bob", p.Speaker)
}

func TestDetect_AboveThresholdNotFlagged(t *testing.T) {
	assert.Empty(t, detect(t, "Bob: We decided to use Postgres.", 0.3, sentiment.Fixed(0.5)))
}

func TestDetect_ThresholdIsStrict(t *testing.T) {
	text := "Bob: We agreed to ship."
	assert.Empty(t, detect(t, text, 0.3, sentiment.Fixed(0.3)))
	assert.Len(t, detect(t, text, 0.3, sentiment.Fixed(math.Nextafter(0.3, 0))), 1)
}

func TestDetect_ScorerErrorSkipsOnlyThatWindow(t *testing.T) {
	text := "Alice: We decided to drop IE support.\n" +
		"Bob: Filler one. Filler two. Filler three. Filler four. Filler five.\n" +
		"Carol: The decision is final, sadly."

	calls := 0
	scorer := sentiment.ScorerFunc(func(ctx context.Context, s string) (float64, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("model unavailable")
		}
		return 0.1, nil
	})

	units := segment.NewParser().Parse(text)
	points, errs := New(time.Second).DetectWithErrors(context.Background(), text, units, 0.3, scorer)

	assert.Equal(t, 2, calls)
	require.Len(t, errs, 1)
	require.Len(t, points, 1)
	assert.Equal(t, "The decision is final, sadly.", points[0].DecisionQuote)
	assert.Equal(t, "Carol", points[0].Speaker)
}

func TestDetect_InvalidScoreSkipped(t *testing.T) {
	assert.Empty(t, detect(t, "Bob: We decided X.", 0.3, sentiment.Fixed(-1)))
	assert.Empty(t, detect(t, "Bob: We decided X.", 0.3, sentiment.Fixed(math.NaN())))
}

func TestDetect_WindowRadius(t *testing.T) {
	text := "Ann: S1. S2. S3. We agreed on Go. S5. S6. S7."
	points := detect(t, text, 0.9, sentiment.Fixed(0.1))

	require.Len(t, points, 1)
	assert.Equal(t, "S2. S3. We agreed on Go. S5. S6.", points[0].ContextText)
	for _, p := range points {
		assert.True(t, strings.Contains(p.ContextText, p.DecisionQuote))
	}
}

func TestDetect_AllPhrasesCaseInsensitive(t *testing.T) {
	text := "Ann: we DECIDED a. The final choice is b. We agreed c. The decision is d. We’re going with e. We'll go with f."
	points := detect(t, text, 0.5, sentiment.Fixed(0.1))
	assert.Len(t, points, 6)
}

func TestDetect_ScorerGetsBoundedContext(t *testing.T) {
	var hadDeadline bool
	scorer := sentiment.ScorerFunc(func(ctx context.Context, s string) (float64, error) {
		_, hadDeadline = ctx.Deadline()
		return 0.9, nil
	})
	detect(t, "Ann: We decided to wait.", 0.3, scorer)
	assert.True(t, hadDeadline)
}

func TestDetect_NoUnitsUsesRawText(t *testing.T) {
	points := New(0).Detect(context.Background(), "We decided to go. It hurts.", nil, 0.3, sentiment.Fixed(0.1))
	require.Len(t, points, 1)
	assert.Equal(t, types.UnknownSpeaker, points[0].Speaker)
}

func TestDetect_NilScorer(t *testing.T) {
	assert.Empty(t, detect(t, "Bob: We decided X.", 0.3, nil))
}

func TestDecisions(t *testing.T) {
	text := "Alice: Hello there.\nBob: We decided to use Postgres. OK.\nCarol: We'll go with Redis too."
	units := segment.NewParser().Parse(text)

	got := New(0).Decisions(text, units)

	require.Len(t, got, 2)
	assert.Equal(t, types.Decision{Quote: "We decided to use Postgres.", Speaker: "Bob", Offset: strings.Index(text, "We decided")}, got[0])
	assert.Equal(t, "Carol", got[1].Speaker)
}
