package parser

import (
	"github.com/address-formatter/app/models"
)

// LineRole role assigned to one input line
type LineRole int

const (
	RoleTitle LineRole = iota
	RoleName
	RolePoBox
	RoleStreet
	RoleLocality
	RoleCountry
	RoleCompl1
	RoleCompl2
	RoleDropped
)

var roleNames = [...]string{
	RoleTitle:    "title",
	RoleName:     "name",
	RolePoBox:    "po_box",
	RoleStreet:   "street",
	RoleLocality: "locality",
	RoleCountry:  "country",
	RoleCompl1:   "compl1",
	RoleCompl2:   "compl2",
	RoleDropped:  "dropped",
}

func (r LineRole) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// accumulator slots filled while walking the lines of one record
type accumulator struct {
	title     string
	lastname  string
	firstname string
	hasName   bool

	address     models.AddressLine // nil until a PO box or street line is seen
	postal      models.PostalCode
	city        string
	hasLocality bool
	country     string

	compl1 string
	compl2 string
}

// classify assigns the first matching role whose slot is still empty, in
// fixed order: PO box, street with number, street only, locality, country,
// then the complement slots. A line that could be a PO box or a street is
// always a PO box. A street-only line yields the address slot when one of
// the lines in rest is a PO box or a street with a number.
func (p *AddressParser) classify(line string, rest []string, acc *accumulator) LineRole {
	if acc.address == nil {
		if box, ok := p.patterns.MatchPoBox(line); ok {
			acc.address = models.PoBox{BoxNumber: box}
			return RolePoBox
		}
		if street, number, ok := p.patterns.MatchStreetHouse(line); ok {
			acc.address = models.Street{Street: street, HouseNumber: number}
			return RoleStreet
		}
		if p.opts.StreetOnly && p.patterns.MatchStreetOnly(line) && !p.addressAhead(rest) {
			acc.address = models.Street{Street: line}
			return RoleStreet
		}
	}

	if !acc.hasLocality {
		if m, ok := p.patterns.MatchLocality(line); ok {
			if pc, ok := p.localityPostal(m, acc); ok {
				acc.postal = pc
				acc.city = m.City
				acc.hasLocality = true
				return RoleLocality
			}
		}
	}

	if p.opts.CountryLines && acc.country == "" && p.countries != nil {
		if code, ok := p.countries.Lookup(line); ok {
			acc.country = code
			return RoleCountry
		}
	}

	switch {
	case acc.compl1 == "":
		acc.compl1 = line
		return RoleCompl1
	case acc.compl2 == "":
		acc.compl2 = line
		return RoleCompl2
	default:
		return RoleDropped
	}
}

// localityPostal converts the postal token. A country prefix must be known;
// it sets the country unless a country was already identified.
func (p *AddressParser) localityPostal(m LocalityMatch, acc *accumulator) (models.PostalCode, bool) {
	pc, ok := ParsePostalCode(m.Code, m.Suffix)
	if !ok {
		return models.PostalCode{}, false
	}
	if m.Prefix == "" {
		return pc, true
	}
	if p.countries == nil {
		return models.PostalCode{}, false
	}
	code, ok := p.countries.ByPrefix(m.Prefix)
	if !ok {
		return models.PostalCode{}, false
	}
	if acc.country == "" {
		acc.country = code
	}
	return pc, true
}

// addressAhead reports whether a later line can fill the address slot on its own
func (p *AddressParser) addressAhead(rest []string) bool {
	for _, line := range rest {
		if _, ok := p.patterns.MatchPoBox(line); ok {
			return true
		}
		if _, _, ok := p.patterns.MatchStreetHouse(line); ok {
			return true
		}
	}
	return false
}
