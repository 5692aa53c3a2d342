// Package address turns free-text Brazilian quadra/lote addresses into a
// canonical "STREET, Q-L" form.
package address

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics and upper-cases s ("Goiânia" -> "GOIANIA").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// collapseSpaces trims s and reduces every whitespace run to one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
