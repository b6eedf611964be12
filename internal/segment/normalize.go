package segment

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"meeting-router-go/internal/types"
)

// NormalizeSpeaker trims, collapses internal whitespace and title-cases a raw
// label. It is idempotent. A blank label normalizes to types.UnknownSpeaker.
func NormalizeSpeaker(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return types.UnknownSpeaker
	}
	// cases.Caser is stateful; one per call.
	return cases.Title(language.English).String(strings.Join(fields, " "))
}
