package selection

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a tag for comparison: accents removed, lowercased,
// surrounding whitespace dropped. "Extérieur" and "exterieur" compare equal.
// The chain carries internal buffers and is not safe to share across
// goroutines, so each call builds its own.
func Normalize(s string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
