package normalizer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanLine trims a raw source value and puts it in NFC form so composed and
// decomposed umlauts compare equal. Non-breaking spaces count as whitespace.
func CleanLine(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(norm.NFC.String(s))
}

// CompactLines cleans every line and drops the blank ones, keeping order.
func CompactLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if c := CleanLine(l); c != "" {
			out = append(out, c)
		}
	}
	return out
}
