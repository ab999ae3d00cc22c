package normalizer

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks, keeping the base letters
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

// isMn reports whether r is a nonspacing mark
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// FoldKey reduces s to a lookup key: ASCII transliteration, lower case,
// punctuation turned into spaces and runs of spaces collapsed.
// "Österreich" and "OESTERREICH" do not fold to the same key; list both spellings.
func FoldKey(s string) string {
	ascii := unidecode.Unidecode(StripDiacritics(s))
	ascii = strings.ToLower(ascii)
	ascii = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return ' '
	}, ascii)
	return strings.Join(strings.Fields(ascii), " ")
}
