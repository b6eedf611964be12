package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	text := `We decided to use Postgres. It costs 3.5 times more! Really? "Yes." Done`

	got := SplitSentences(text)
	require.Len(t, got, 5)
	assert.Equal(t, "We decided to use Postgres.", got[0].Text)
	assert.Equal(t, "It costs 3.5 times more!", got[1].Text)
	assert.Equal(t, "Really?", got[2].Text)
	assert.Equal(t, `"Yes."`, got[3].Text)
	assert.Equal(t, "Done", got[4].Text)

	for _, s := range got {
		assert.Equal(t, s.Text, text[s.Start:s.End])
	}
}

func TestSplitSentences_Blank(t *testing.T) {
	assert.Empty(t, SplitSentences(""))
	assert.Empty(t, SplitSentences("  \n "))
}

func TestSentenceAt(t *testing.T) {
	text := "One. Two. Three."
	s := SplitSentences(text)
	assert.Equal(t, 1, SentenceAt(s, 5))
	assert.Equal(t, 2, SentenceAt(s, len(text)-1))
	assert.Equal(t, -1, SentenceAt(s, 4))
}
