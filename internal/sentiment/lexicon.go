package sentiment

import (
	"context"
	"strings"
	"unicode"
)

const negationSpan = 3

var (
	defaultPositive = []string{
		"good", "great", "excellent", "happy", "glad", "agree", "love", "like", "confident",
		"easy", "fast", "win", "success", "successful", "benefit", "improve", "improvement",
		"solid", "clear", "excited", "perfect", "nice", "safe", "stable", "cheap", "simple",
	}
	defaultNegative = []string{
		"bad", "pain", "painful", "risk", "risky", "concern", "concerned", "worried", "worry",
		"problem", "problems", "issue", "issues", "delay", "delays", "expensive", "fail", "failure",
		"hate", "difficult", "hard", "unfortunately", "blocker", "break", "breaks", "broken",
		"slow", "unsure", "disagree", "costly", "nightmare", "terrible", "annoying", "unhappy",
		"frustrated", "frustrating", "confusing", "complex", "regret", "scared", "afraid",
	}
	negations = map[string]bool{
		"not": true, "no": true, "never": true, "don't": true, "doesn't": true, "isn't": true,
		"won't": true, "can't": true, "cannot": true, "wasn't": true, "aren't": true, "without": true,
	}
)

// Lexicon is a deterministic word-list scorer. Text with no sentiment words
// scores 0.5. A negation within a few words before a hit flips its polarity.
type Lexicon struct {
	positive map[string]bool
	negative map[string]bool
}

func NewLexicon() *Lexicon {
	return NewLexiconWords(defaultPositive, defaultNegative)
}

func NewLexiconWords(positive, negative []string) *Lexicon {
	l := &Lexicon{positive: map[string]bool{}, negative: map[string]bool{}}
	for _, w := range positive {
		l.positive[strings.ToLower(w)] = true
	}
	for _, w := range negative {
		l.negative[strings.ToLower(w)] = true
	}
	return l
}

func (l *Lexicon) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	words := strings.FieldsFunc(strings.ToLower(strings.ReplaceAll(text, "’", "'")), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var pos, neg float64
	lastNegation := -negationSpan - 1
	for i, w := range words {
		if negations[w] {
			lastNegation = i
			continue
		}
		polarity := 0
		switch {
		case l.positive[w]:
			polarity = 1
		case l.negative[w]:
			polarity = -1
		}
		if polarity == 0 {
			continue
		}
		if i-lastNegation <= negationSpan {
			polarity = -polarity
		}
		if polarity > 0 {
			pos++
		} else {
			neg++
		}
	}

	return 0.5 + 0.5*(pos-neg)/(pos+neg+1), nil
}
