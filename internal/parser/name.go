package parser

import "strings"

// extractTitle consumes the first line when it is a bare salutation
func (p *AddressParser) extractTitle(lines []string, acc *accumulator) []string {
	if len(lines) == 0 || !p.patterns.MatchTitle(lines[0]) {
		return lines
	}
	acc.title = strings.TrimSpace(lines[0])
	return lines[1:]
}

// extractName consumes one name line: "[title] lastname firstname ...".
// An inline title only fills an empty title slot but is always skipped.
// Tokens past the first name are ignored.
func (p *AddressParser) extractName(lines []string, acc *accumulator) []string {
	if len(lines) == 0 {
		return lines
	}

	tokens := strings.Fields(lines[0])
	if len(tokens) > 0 && p.patterns.MatchTitle(tokens[0]) {
		if acc.title == "" {
			acc.title = tokens[0]
		}
		tokens = tokens[1:]
	}

	acc.lastname = tokenAt(tokens, 0)
	acc.firstname = tokenAt(tokens, 1)
	acc.hasName = true
	return lines[1:]
}

func tokenAt(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}
