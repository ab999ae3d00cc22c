package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/normalizer"
)

// ErrMissingIdentifier record has no usable id
var ErrMissingIdentifier = errors.New("missing record identifier")

// ParseError rejection of one record. Index is the position in the batch,
// -1 outside a batch.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("parse address: %v", e.Err)
	}
	return fmt.Sprintf("parse address #%d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options parser behaviour switches
type Options struct {
	DefaultCountry string // country when no line names one, "CH" when empty
	StreetOnly     bool   // accept street names without a house number
	CountryLines   bool   // recognise lines naming a country
}

// DefaultOptions options used by NewDefaultParser
func DefaultOptions() Options {
	return Options{
		DefaultCountry: models.DefaultCountry,
		StreetOnly:     true,
		CountryLines:   true,
	}
}

// AddressParser turns legacy line blocks into structured addresses.
// It holds only read-only state and is safe for concurrent use.
type AddressParser struct {
	patterns  *Patterns
	countries *normalizer.CountryResolver
	opts      Options
}

// NewAddressParser creates an AddressParser. countries may be nil, which
// disables country lines and prefixed postal codes.
func NewAddressParser(patterns *Patterns, countries *normalizer.CountryResolver, opts Options) *AddressParser {
	if opts.DefaultCountry == "" {
		opts.DefaultCountry = models.DefaultCountry
	}
	opts.DefaultCountry = strings.ToUpper(opts.DefaultCountry)
	return &AddressParser{
		patterns:  patterns,
		countries: countries,
		opts:      opts,
	}
}

// NewDefaultParser creates a parser from the embedded rules
func NewDefaultParser() (*AddressParser, error) {
	countries, err := normalizer.DefaultCountryResolver()
	if err != nil {
		return nil, err
	}
	return NewAddressParser(DefaultPatterns(), countries, DefaultOptions()), nil
}

// RulesVersion version of the vocabulary behind the patterns
func (p *AddressParser) RulesVersion() string {
	return p.patterns.RulesVersion
}

// Profile identifies everything a parse result depends on besides the lines
func (p *AddressParser) Profile() string {
	return fmt.Sprintf("%s|%s|street_only=%t|country_lines=%t",
		p.patterns.RulesVersion, p.opts.DefaultCountry, p.opts.StreetOnly, p.opts.CountryLines)
}

// TracedLine one compacted input line and the role it was given
type TracedLine struct {
	Line string
	Role LineRole
}

// Trace per-line decisions of one parse
type Trace struct {
	Lines []TracedLine
}

// Dropped lines that found no free slot
func (t *Trace) Dropped() []string {
	var out []string
	for _, l := range t.Lines {
		if l.Role == RoleDropped {
			out = append(out, l.Line)
		}
	}
	return out
}

// Entries trace in its serialisable form
func (t *Trace) Entries() []models.TraceEntry {
	out := make([]models.TraceEntry, len(t.Lines))
	for i, l := range t.Lines {
		out[i] = models.TraceEntry{Line: l.Line, Role: l.Role.String()}
	}
	return out
}

type parseState int

const (
	stateExpectTitle parseState = iota
	stateExpectName
	stateConsumeRemaining
	stateDone
)

// Parse parses one record
func (p *AddressParser) Parse(raw models.UnstructuredAddress) (*models.StructuredAddress, error) {
	addr, _, err := p.ParseWithTrace(raw)
	return addr, err
}

// ParseWithTrace parses one record and reports the role of every line
func (p *AddressParser) ParseWithTrace(raw models.UnstructuredAddress) (*models.StructuredAddress, *Trace, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return nil, nil, &ParseError{Index: -1, Err: ErrMissingIdentifier}
	}

	lines := normalizer.CompactLines(raw.Lines[:])
	trace := &Trace{Lines: make([]TracedLine, 0, len(lines))}
	acc := &accumulator{}

	state := stateExpectTitle
	for state != stateDone {
		switch state {
		case stateExpectTitle:
			rest := p.extractTitle(lines, acc)
			if len(rest) < len(lines) {
				trace.Lines = append(trace.Lines, TracedLine{Line: lines[0], Role: RoleTitle})
			}
			lines = rest
			state = stateExpectName

		case stateExpectName:
			if len(lines) > 0 {
				trace.Lines = append(trace.Lines, TracedLine{Line: lines[0], Role: RoleName})
				lines = p.extractName(lines, acc)
			}
			state = stateConsumeRemaining

		case stateConsumeRemaining:
			for i, line := range lines {
				role := p.classify(line, lines[i+1:], acc)
				trace.Lines = append(trace.Lines, TracedLine{Line: line, Role: role})
			}
			state = stateDone
		}
	}

	return p.assemble(raw.ID, raw.Attributes, acc), trace, nil
}

// ParseBatch parses records independently. Results and errors are aligned
// with raws; a rejected record has a nil result and a *ParseError.
func (p *AddressParser) ParseBatch(raws []models.UnstructuredAddress) ([]*models.StructuredAddress, []error) {
	results := make([]*models.StructuredAddress, len(raws))
	errs := make([]error, len(raws))
	for i, raw := range raws {
		addr, err := p.Parse(raw)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Index = i
			}
			errs[i] = err
			continue
		}
		results[i] = addr
	}
	return results, errs
}

func (p *AddressParser) assemble(id string, attrs map[string]string, acc *accumulator) *models.StructuredAddress {
	addr := &models.StructuredAddress{
		ID:        id,
		Title:     acc.title,
		Lastname:  acc.lastname,
		Firstname: acc.firstname,
		Compl1:    acc.compl1,
		Compl2:    acc.compl2,
		Address:   acc.address,
		Postal:    acc.postal,
		City:      acc.city,
		Country:   acc.country,
	}
	if acc.hasName {
		addr.Name = strings.TrimSpace(acc.lastname + " " + acc.firstname)
	}
	if addr.Address == nil {
		addr.Address = models.Street{}
	}
	if addr.Country == "" {
		addr.Country = p.opts.DefaultCountry
	}
	if len(attrs) > 0 {
		addr.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			addr.Attributes[k] = v
		}
	}
	return addr
}
