package parser

import (
	"testing"

	"github.com/address-formatter/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T, opts Options) *AddressParser {
	t.Helper()
	p, err := NewDefaultParser()
	require.NoError(t, err)
	return NewAddressParser(p.patterns, p.countries, opts)
}

func TestClassify_PoBoxBeforeStreet(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	// the line satisfies both patterns; the PO box is tried first
	_, _, isStreet := p.patterns.MatchStreetHouse("Postfach 12")
	require.True(t, isStreet)

	acc := &accumulator{}
	role := p.classify("Postfach 12", nil, acc)

	assert.Equal(t, RolePoBox, role)
	assert.Equal(t, models.PoBox{BoxNumber: "12"}, acc.address)
}

func TestClassify_AddressSlotTakenOnce(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	acc := &accumulator{}

	assert.Equal(t, RoleStreet, p.classify("Bahnhofstrasse 12", nil, acc))
	assert.Equal(t, RoleCompl1, p.classify("Postfach 12", nil, acc))
	assert.Equal(t, RoleCompl2, p.classify("Seestrasse 3", nil, acc))

	assert.Equal(t, models.Street{Street: "Bahnhofstrasse", HouseNumber: "12"}, acc.address)
	assert.Equal(t, "Postfach 12", acc.compl1)
	assert.Equal(t, "Seestrasse 3", acc.compl2)
}

func TestClassify_LocalitySlotTakenOnce(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	acc := &accumulator{address: models.Street{}}

	assert.Equal(t, RoleLocality, p.classify("8001-02 Zürich", nil, acc))
	assert.Equal(t, RoleCompl1, p.classify("3000 Bern", nil, acc))

	require.NotNil(t, acc.postal.Suffix)
	assert.Equal(t, 8001, acc.postal.Code)
	assert.Equal(t, 2, *acc.postal.Suffix)
	assert.Equal(t, "Zürich", acc.city)
}

func TestClassify_MalformedPostalCodeIsComplement(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	acc := &accumulator{address: models.Street{}}

	assert.Equal(t, RoleCompl1, p.classify("800 Zürich", nil, acc))
	assert.False(t, acc.hasLocality)
	assert.True(t, acc.postal.IsZero())
}

func TestClassify_ComplementsThenDropped(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	acc := &accumulator{address: models.Street{}, hasLocality: true, country: "CH"}

	assert.Equal(t, RoleCompl1, p.classify("first", nil, acc))
	assert.Equal(t, RoleCompl2, p.classify("second", nil, acc))
	assert.Equal(t, RoleDropped, p.classify("third", nil, acc))
	assert.Equal(t, RoleDropped, p.classify("fourth", nil, acc))

	assert.Equal(t, "first", acc.compl1)
	assert.Equal(t, "second", acc.compl2)
}

func TestClassify_CountryPrefix(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	acc := &accumulator{}
	assert.Equal(t, RoleLocality, p.classify("D-7800 Freiburg", nil, acc))
	assert.Equal(t, "DE", acc.country)
	assert.Equal(t, 7800, acc.postal.Code)

	// unknown prefix is not a postal code
	acc = &accumulator{address: models.Street{}}
	assert.Equal(t, RoleCompl1, p.classify("XY-7800 Freiburg", nil, acc))
	assert.Equal(t, "", acc.country)

	// an identified country wins over the prefix
	acc = &accumulator{country: "CH"}
	assert.Equal(t, RoleLocality, p.classify("F-1234 Divonne", nil, acc))
	assert.Equal(t, "CH", acc.country)
}

func TestClassify_OptionalRoles(t *testing.T) {
	p := newTestParser(t, Options{})
	acc := &accumulator{}

	assert.Equal(t, RoleCompl1, p.classify("Bahnhofstrasse", nil, acc))
	assert.Equal(t, RoleCompl2, p.classify("Schweiz", nil, acc))
	assert.Nil(t, acc.address)
	assert.Equal(t, "", acc.country)

	withoutCountries := NewAddressParser(DefaultPatterns(), nil, DefaultOptions())
	acc = &accumulator{}
	assert.Equal(t, RoleCompl1, withoutCountries.classify("CH-8001 Zürich", nil, acc))
	assert.Equal(t, RoleCompl2, withoutCountries.classify("Schweiz", nil, acc))
}

func TestLineRole_String(t *testing.T) {
	assert.Equal(t, "po_box", RolePoBox.String())
	assert.Equal(t, "dropped", RoleDropped.String())
	assert.Equal(t, "unknown", LineRole(99).String())
}
