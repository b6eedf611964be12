// Package segment splits raw meeting transcripts into speaker-attributed
// dialogue units and splits dialogue text into sentences.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/types"
)

const (
	maxLabelLen    = 40
	maxLabelTokens = 3
)

var (
	// Matches "<label>: <dialogue>" where label is 1-3 name-like tokens. Only
	// the last token may not end in a period, so "Dr. Brown" and "J. Smith"
	// qualify. The colon must be followed by whitespace or end of line, which
	// keeps "10:30" and "http://" from being read as labels.
	labelLineRegex = regexp.MustCompile(
		`^[ \t]*((?:[\p{L}\p{N}][\p{L}\p{N}'’\-]*\.?[ \t]+){0,2}[\p{L}\p{N}][\p{L}\p{N}'’\-]*)[ \t]*:(?:[ \t]*$|[ \t]+(.*)$)`)

	// Words that make a prefix read as a sentence rather than a name.
	sentenceWords = map[string]bool{
		"i": true, "we": true, "you": true, "they": true, "it": true, "he": true, "she": true,
		"the": true, "a": true, "an": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "to": true, "of": true, "and": true, "or": true, "but": true, "so": true,
		"this": true, "that": true, "these": true, "those": true, "here": true, "there": true,
		"our": true, "my": true, "your": true, "their": true, "following": true, "as": true,
		"note": true, "agenda": true, "action": true, "decision": true, "todo": true,
		// list enumerators such as "Step 2:" or "Option B:"
		"step": true, "option": true, "item": true, "point": true, "phase": true, "part": true,
	}
)

// Parser turns transcript text into ordered dialogue units.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse returns the dialogue units of text. Empty input yields an empty slice.
func (p *Parser) Parse(text string) []types.DialogueUnit {
	units, _ := p.ParseWithIssues(text)
	return units
}

// ParseWithIssues is Parse plus the non-fatal problems met along the way:
// text before the first label (attributed to Unknown) and invalid UTF-8.
func (p *Parser) ParseWithIssues(text string) ([]types.DialogueUnit, []*mrerrors.ParseError) {
	units := make([]types.DialogueUnit, 0)
	var issues []*mrerrors.ParseError

	var (
		current *types.DialogueUnit
		body    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(body, "\n"))
		units = append(units, *current)
		current, body = nil, nil
	}

	offset := 0
	for _, raw := range strings.Split(text, "\n") {
		lineStart := offset
		offset += len(raw) + 1
		line := strings.TrimSuffix(raw, "\r")

		if !utf8.ValidString(line) {
			issues = append(issues, &mrerrors.ParseError{Offset: lineStart, Line: line, Reason: "invalid UTF-8 replaced"})
			line = strings.ToValidUTF8(line, "�")
		}

		if speaker, dialogue, ok := MatchLabel(line); ok {
			flush()
			current = &types.DialogueUnit{Speaker: speaker, StartOffset: lineStart}
			body = []string{dialogue}
			continue
		}

		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			issues = append(issues, &mrerrors.ParseError{Offset: lineStart, Line: line, Reason: "text before first speaker label attributed to Unknown"})
			current = &types.DialogueUnit{Speaker: types.UnknownSpeaker, StartOffset: lineStart}
			body = []string{line}
			continue
		}

		if len(body) == 1 && strings.TrimSpace(body[0]) == "" {
			body[0] = line
		} else {
			body = append(body, line)
		}
	}
	flush()

	return units, issues
}

// MatchLabel reports whether line opens a new speaker turn and returns the
// normalized speaker and the dialogue after the colon.
func MatchLabel(line string) (speaker, dialogue string, ok bool) {
	m := labelLineRegex.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	label := strings.TrimSpace(m[1])
	if len(label) > maxLabelLen {
		return "", "", false
	}
	tokens := strings.Fields(label)
	if len(tokens) > maxLabelTokens {
		return "", "", false
	}
	for _, tok := range tokens {
		if sentenceWords[strings.ToLower(strings.TrimSuffix(tok, "."))] {
			return "", "", false
		}
	}
	return NormalizeSpeaker(label), strings.TrimSpace(m[2]), true
}
