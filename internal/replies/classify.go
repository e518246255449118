// Package replies owns the inbound side of the messaging channel: free-text
// classification and the per-phone ledger of the latest classified reply.
package replies

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Affirmative and negative vocabularies. Matching is on the first token of
// the normalized text; anything else is ambiguous and left unclassified.
var affirmative = tokenSet(
	"yes", "y", "yeah", "yep", "yup", "ok", "okay", "sure",
	"confirm", "confirmed", "confirming",
	"si", "claro", "confirmo",
)

var negative = tokenSet(
	"no", "n", "nope", "nah",
	"cancel", "cancelled", "canceled", "decline", "declined",
	"cant", "cannot",
)

func tokenSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize case-folds, strips diacritics and collapses punctuation to
// spaces, so "Sí!!" and "si" classify identically.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Classify reports whether the text reads as a confirmation or a decline.
// Both false means the reply is ambiguous.
func Classify(text string) (confirmed, declined bool) {
	fields := strings.Fields(Normalize(text))
	if len(fields) == 0 {
		return false, false
	}
	if _, ok := affirmative[fields[0]]; ok {
		return true, false
	}
	if _, ok := negative[fields[0]]; ok {
		return false, true
	}
	return false, false
}
