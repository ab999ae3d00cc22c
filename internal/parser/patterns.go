package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/address-formatter/internal/normalizer"
)

// Patterns precompiled line-role patterns. Immutable once built; share one
// instance between every parser and goroutine.
type Patterns struct {
	Title       *regexp.Regexp // whole-line salutation
	PoBox       *regexp.Regexp // box prefix + 1-4 digit number
	StreetHouse *regexp.Regexp // street name + house number block
	StreetOnly  *regexp.Regexp // street vocabulary without a number
	PostalToken *regexp.Regexp // first token of a locality line
	letter      *regexp.Regexp

	// RulesVersion identifies the vocabulary the patterns were built from
	RulesVersion string
}

const (
	titlePattern = `(?i)^\s*(?:FRAU|HERR|MADAME|MONSIEUR|MME|MR|MS|M)\s*$`

	poBoxPattern = `(?i)^\s*(?:P\.?\s*O\.?\s*Box|Postfach|Case\s+Postale|Casella\s+Postale|CP)\s+(?P<box>\d{1,4})\s*$`

	streetHousePattern = `(?i)^\s*(?P<street>.+?)\s*` +
		`(?P<number>[1-9]\d{0,3}(?:\s*(?:bis|ter|quater|quinquies|[a-z]))?(?:/[1-9]\d{0,3})?)\s*$`

	// a one-digit suffix needs a separator: "75001" is not 7500 + 1
	postalTokenPattern = `^(?:(?P<prefix>[A-Za-z]{1,2})-)?(?P<code>\d{4})` +
		`(?:[-\s]?(?P<suffix>\d{2})|[-\s](?P<short>\d))?$`

	// a word of a street name: letters, apostrophes, dots, hyphens
	streetWord = `[\p{L}'’.-]+`
)

// NewPatterns compiles the patterns with the street vocabulary from rules
func NewPatterns(rules *normalizer.RulesConfig) (*Patterns, error) {
	streetOnly, err := compileStreetOnly(rules.StreetPrefixes, rules.StreetSuffixes, rules.StreetCompoundSuffixes)
	if err != nil {
		return nil, fmt.Errorf("compile street vocabulary: %w", err)
	}

	return &Patterns{
		Title:        regexp.MustCompile(titlePattern),
		PoBox:        regexp.MustCompile(poBoxPattern),
		StreetHouse:  regexp.MustCompile(streetHousePattern),
		StreetOnly:   streetOnly,
		PostalToken:  regexp.MustCompile(postalTokenPattern),
		letter:       regexp.MustCompile(`\p{L}`),
		RulesVersion: rules.Version,
	}, nil
}

var defaultPatterns = mustDefaultPatterns()

// DefaultPatterns returns the patterns built from the embedded rules
func DefaultPatterns() *Patterns {
	return defaultPatterns
}

func mustDefaultPatterns() *Patterns {
	rules, err := normalizer.LoadRulesConfig()
	if err != nil {
		panic(err)
	}
	p, err := NewPatterns(rules)
	if err != nil {
		panic(err)
	}
	return p
}

// compileStreetOnly builds "<prefix> words", "words <suffix>" and
// "words name<compound>" from the vocabulary. A compound suffix needs at
// least three letters in front of it.
func compileStreetOnly(prefixes, suffixes, compounds []string) (*regexp.Regexp, error) {
	var alts []string
	if len(prefixes) > 0 {
		alts = append(alts, `(?:`+alternation(prefixes)+`)\.?\s+`+streetWord+`(?:\s+`+streetWord+`)*`)
	}
	if len(suffixes) > 0 {
		alts = append(alts, `(?:`+streetWord+`\s+)+(?:`+alternation(suffixes)+`)`)
	}
	if len(compounds) > 0 {
		alts = append(alts, `(?:`+streetWord+`\s+)*\p{L}{3,}(?:`+alternation(compounds)+`)`)
	}
	if len(alts) == 0 {
		// matches nothing
		return regexp.Compile(`^\b\B$`)
	}
	return regexp.Compile(`(?i)^\s*(?:` + strings.Join(alts, "|") + `)\s*$`)
}

// alternation quotes words, longest first
func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return strings.Join(quoted, "|")
}

// MatchTitle reports whether the whole line is a salutation
func (p *Patterns) MatchTitle(line string) bool {
	return p.Title.MatchString(line)
}

// MatchPoBox returns the box number of a PO box line
func (p *Patterns) MatchPoBox(line string) (string, bool) {
	m := p.PoBox.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[p.PoBox.SubexpIndex("box")], true
}

// MatchStreetHouse splits a "street number" line. The street part must
// contain at least one letter.
func (p *Patterns) MatchStreetHouse(line string) (street, number string, ok bool) {
	m := p.StreetHouse.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	street = strings.TrimSpace(m[p.StreetHouse.SubexpIndex("street")])
	number = strings.TrimSpace(m[p.StreetHouse.SubexpIndex("number")])
	if street == "" || !p.letter.MatchString(street) {
		return "", "", false
	}
	return street, number, true
}

// MatchStreetOnly reports whether the line is a street name without a number
func (p *Patterns) MatchStreetOnly(line string) bool {
	return p.StreetOnly.MatchString(line)
}

// LocalityMatch pieces of a "code city" line
type LocalityMatch struct {
	Prefix string // country prefix as written, e.g. "CH" in "CH-8001"
	Code   string
	Suffix string
	City   string
}

// MatchLocality splits the line on its first space and checks the first
// token against the postal code shape. The remainder is the city.
func (p *Patterns) MatchLocality(line string) (LocalityMatch, bool) {
	line = strings.TrimSpace(line)
	token, rest, _ := strings.Cut(line, " ")

	m := p.PostalToken.FindStringSubmatch(token)
	if m == nil {
		return LocalityMatch{}, false
	}
	suffix := m[p.PostalToken.SubexpIndex("suffix")]
	if suffix == "" {
		suffix = m[p.PostalToken.SubexpIndex("short")]
	}
	return LocalityMatch{
		Prefix: m[p.PostalToken.SubexpIndex("prefix")],
		Code:   m[p.PostalToken.SubexpIndex("code")],
		Suffix: suffix,
		City:   strings.TrimSpace(rest),
	}, true
}
