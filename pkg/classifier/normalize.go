package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'", "`", "'", "´", "'")

// Normalize case-folds text and strips diacritics so "Déjà assuré" and
// "deja assure" compare equal. Typographic apostrophes become ASCII.
func Normalize(text string) string {
	lowered := strings.ToLower(apostropheReplacer.Replace(text))

	// A transform chain keeps state, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lowered)
	if err != nil {
		return lowered
	}
	return folded
}
