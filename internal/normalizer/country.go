package normalizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// fuzzyMinLength names shorter than this only match exactly
const fuzzyMinLength = 6

// CountryResolver maps country lines and postal prefixes to ISO alpha-2 codes.
// It is read-only after construction and safe for concurrent use.
type CountryResolver struct {
	byCode   map[string]string
	byName   map[string]string
	byPrefix map[string]string
	fuzzy    []fuzzyName
}

type fuzzyName struct {
	key  string
	code string
}

// NewCountryResolver builds a resolver from rule entries
func NewCountryResolver(rules []CountryRule) (*CountryResolver, error) {
	cr := &CountryResolver{
		byCode:   make(map[string]string),
		byName:   make(map[string]string),
		byPrefix: make(map[string]string),
	}

	for _, rule := range rules {
		code := strings.ToUpper(strings.TrimSpace(rule.Code))
		if len(code) != 2 {
			return nil, fmt.Errorf("country code %q: expected 2 letters", rule.Code)
		}
		cr.byCode[code] = code

		for _, name := range rule.Names {
			key := FoldKey(name)
			if key == "" {
				continue
			}
			if other, ok := cr.byName[key]; ok && other != code {
				return nil, fmt.Errorf("country name %q claimed by %s and %s", name, other, code)
			}
			cr.byName[key] = code
			if len(key) >= fuzzyMinLength {
				cr.fuzzy = append(cr.fuzzy, fuzzyName{key: key, code: code})
			}
		}

		for _, prefix := range rule.Prefixes {
			cr.byPrefix[strings.ToUpper(strings.TrimSpace(prefix))] = code
		}
	}

	return cr, nil
}

var (
	defaultResolver     *CountryResolver
	defaultResolverErr  error
	defaultResolverOnce sync.Once
)

// DefaultCountryResolver returns the resolver built from the embedded country table
func DefaultCountryResolver() (*CountryResolver, error) {
	defaultResolverOnce.Do(func() {
		rules, err := LoadRulesConfig()
		if err != nil {
			defaultResolverErr = err
			return
		}
		defaultResolver, defaultResolverErr = NewCountryResolver(rules.Countries)
	})
	return defaultResolver, defaultResolverErr
}

// Lookup returns the country code when the whole line names a country.
// ISO codes only match upper case ("DE", not "De"). Long names tolerate
// one edit ("Schwiz").
func (cr *CountryResolver) Lookup(line string) (string, bool) {
	if code, ok := cr.byCode[strings.TrimSpace(line)]; ok {
		return code, true
	}
	key := FoldKey(line)
	if key == "" {
		return "", false
	}
	if code, ok := cr.byName[key]; ok {
		return code, true
	}
	if len(key) < fuzzyMinLength {
		return "", false
	}

	for _, f := range cr.fuzzy {
		if abs(len(f.key)-len(key)) > 1 {
			continue
		}
		if levenshtein.ComputeDistance(key, f.key) <= 1 {
			return f.code, true
		}
	}
	return "", false
}

// ByPrefix resolves a postal code prefix such as "CH" or "D"
func (cr *CountryResolver) ByPrefix(prefix string) (string, bool) {
	code, ok := cr.byPrefix[strings.ToUpper(prefix)]
	return code, ok
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
