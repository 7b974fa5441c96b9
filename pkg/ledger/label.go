package ledger

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel canonicalizes a category label: Unicode NFKC, surrounding
// whitespace trimmed and inner whitespace runs collapsed to one space.
// Case and wording are preserved; two labels are only merged when they are
// the same text.
func NormalizeLabel(label string) string {
	label = norm.NFKC.String(label)

	var b strings.Builder
	b.Grow(len(label))
	space := false
	for _, r := range label {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
