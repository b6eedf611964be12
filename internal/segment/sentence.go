package segment

// Sentence is a trimmed sentence and its byte span [Start, End) in the text it was split from.
type Sentence struct {
	Text  string
	Start int
	End   int
}

// SplitSentences splits text at terminal punctuation (. ! ?) followed by
// whitespace or end of text. Closing quotes and brackets stay with the
// sentence they close. Text without terminal punctuation is one sentence.
func SplitSentences(text string) []Sentence {
	var out []Sentence
	start := 0
	n := len(text)
	for i := 0; i < n; {
		if !isTerminal(text[i]) {
			i++
			continue
		}
		j := i + 1
		for j < n && (isTerminal(text[j]) || isCloser(text[j])) {
			j++
		}
		if j == n || isSpace(text[j]) {
			out = appendSentence(out, text, start, j)
			start = j
		}
		i = j
	}
	return appendSentence(out, text, start, n)
}

// SentenceAt returns the index of the sentence containing byte offset pos, or -1.
func SentenceAt(sentences []Sentence, pos int) int {
	for i, s := range sentences {
		if pos >= s.Start && pos < s.End {
			return i
		}
	}
	return -1
}

func appendSentence(out []Sentence, text string, s, e int) []Sentence {
	for s < e && isSpace(text[s]) {
		s++
	}
	for e > s && isSpace(text[e-1]) {
		e--
	}
	if s < e {
		out = append(out, Sentence{Text: text[s:e], Start: s, End: e})
	}
	return out
}

func isTerminal(c byte) bool { return c == '.' || c == '!' || c == '?' }

func isCloser(c byte) bool { return c == '"' || c == '\'' || c == ')' || c == ']' }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
