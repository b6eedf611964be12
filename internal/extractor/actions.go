// Package extractor finds spoken commitments in dialogue units and turns them
// into attributed action items.
package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"meeting-router-go/internal/segment"
	"meeting-router-go/internal/types"
)

// CommitmentPhrases is the ordered phrase set. Longer phrases that share a
// suffix with a shorter one come first so the longer one wins at a position.
var CommitmentPhrases = []string{
	"Let's follow up on",
	"Someone should",
	"We need to",
	"Need to",
	"I will",
	"I'll",
	"I can",
	"I should",
}

var hypotheticalMarkers = []string{"what if", "suppose", "imagine", "if"}

// Options tunes extraction. The zero value extracts every match, including
// matches in quotes and hypotheticals.
type Options struct {
	SkipHypothetical bool
}

type Extractor struct {
	opts    Options
	pattern *regexp.Regexp
}

func New(opts Options) *Extractor {
	return &Extractor{opts: opts, pattern: compilePhrases(CommitmentPhrases)}
}

func compilePhrases(phrases []string) *regexp.Regexp {
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		q := regexp.QuoteMeta(p)
		// accept typographic apostrophes in contractions
		q = strings.ReplaceAll(q, "'", "['’]")
		q = strings.ReplaceAll(q, " ", `\s+`)
		alts = append(alts, q)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// Extract returns one ActionItem per non-overlapping phrase match, in unit
// order and then match order. It never returns nil.
func (e *Extractor) Extract(units []types.DialogueUnit) []types.ActionItem {
	items := make([]types.ActionItem, 0)
	for _, u := range units {
		items = append(items, e.extractUnit(u)...)
	}
	return items
}

func (e *Extractor) extractUnit(u types.DialogueUnit) []types.ActionItem {
	owner := u.Speaker
	if strings.TrimSpace(owner) == "" {
		owner = types.UnknownSpeaker
	}

	sentences := segment.SplitSentences(u.Text)
	var items []types.ActionItem
	for _, loc := range e.pattern.FindAllStringIndex(u.Text, -1) {
		if continuesContraction(u.Text[loc[1]:]) {
			continue
		}
		idx := segment.SentenceAt(sentences, loc[0])
		if idx < 0 {
			continue
		}
		s := sentences[idx]
		if e.opts.SkipHypothetical && isHypothetical(u.Text, s, loc[0]) {
			continue
		}

		desc := strings.TrimSpace(u.Text[loc[1]:s.End])
		desc = strings.TrimLeft(desc, ",;: ")
		if !hasWordChar(desc) {
			continue
		}
		items = append(items, types.ActionItem{
			Owner:        owner,
			Description:  desc,
			ContextQuote: s.Text,
		})
	}
	return items
}

// isHypothetical reports whether the match at pos sits inside a double-quoted
// span of its sentence or after a conditional marker in the same sentence.
func isHypothetical(text string, s segment.Sentence, pos int) bool {
	before := text[s.Start:pos]
	if strings.Count(before, `"`)%2 == 1 || strings.Count(before, "“") > strings.Count(before, "”") {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(before), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	joined := " " + strings.Join(words, " ") + " "
	for _, m := range hypotheticalMarkers {
		if strings.Contains(joined, " "+m+" ") {
			return true
		}
	}
	return false
}

// continuesContraction reports whether rest starts a contraction suffix, as
// in "I can't", where the phrase match is only the first half of a word.
func continuesContraction(rest string) bool {
	r, size := utf8.DecodeRuneInString(rest)
	if r != '\'' && r != '’' {
		return false
	}
	next, _ := utf8.DecodeRuneInString(rest[size:])
	return unicode.IsLetter(next)
}

func hasWordChar(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
