package parser

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/address-formatter/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesIdentifier(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	for _, id := range []string{"1", "42", "abc-001", " 7 "} {
		got, err := p.Parse(models.NewUnstructuredAddress(id, "Hans Müller"))
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
	}
}

func TestParse_MissingIdentifier(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	for _, id := range []string{"", "   "} {
		got, err := p.Parse(models.NewUnstructuredAddress(id, "HERR", "Hans Müller"))
		assert.Nil(t, got)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingIdentifier))

		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, -1, pe.Index)
	}
}

func TestParse_EmptyLines(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	got, trace, err := p.ParseWithTrace(models.NewUnstructuredAddress("9"))
	require.NoError(t, err)

	assert.Equal(t, models.Street{}, got.Address)
	assert.True(t, got.Postal.IsZero())
	assert.Equal(t, "", got.Name)
	assert.Equal(t, "CH", got.Country)
	assert.Empty(t, trace.Lines)
}

func TestParse_BlankSlotsAreCompacted(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	raw := models.UnstructuredAddress{
		ID:    "10",
		Lines: [6]string{"", "  HERR ", "", "Hans Müller", "  ", "8001 Zürich"},
	}
	got, err := p.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "HERR", got.Title)
	assert.Equal(t, "Hans Müller", got.Name)
	assert.Equal(t, 8001, got.Postal.Code)
	assert.Equal(t, "Zürich", got.City)
}

func TestParse_TitleLineKeepsInlineTitleOut(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	got, err := p.Parse(models.NewUnstructuredAddress("11", "MADAME", "MME Dubois Claire Marie"))
	require.NoError(t, err)

	assert.Equal(t, "MADAME", got.Title)
	assert.Equal(t, "Dubois", got.Lastname)
	assert.Equal(t, "Claire", got.Firstname)
	assert.Equal(t, "Dubois Claire", got.Name)
}

func TestParse_TitleOnlyNameLine(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	got, err := p.Parse(models.NewUnstructuredAddress("12", "Herr Meier"))
	require.NoError(t, err)

	assert.Equal(t, "Herr", got.Title)
	assert.Equal(t, "Meier", got.Lastname)
	assert.Equal(t, "", got.Firstname)
	assert.Equal(t, "Meier", got.Name)
}

func TestParse_DefaultCountryOption(t *testing.T) {
	p := newTestParser(t, Options{DefaultCountry: "li"})

	got, err := p.Parse(models.NewUnstructuredAddress("13", "Peter Frick", "9490 Vaduz"))
	require.NoError(t, err)
	assert.Equal(t, "LI", got.Country)
}

func TestParse_AttributesCopied(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	raw := models.NewUnstructuredAddress("14", "Hans Müller", "8001 Zürich")
	raw.Attributes = map[string]string{"iban": "CH9300762011623852957"}

	got, err := p.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, raw.Attributes, got.Attributes)

	got.Attributes["iban"] = "changed"
	assert.Equal(t, "CH9300762011623852957", raw.Attributes["iban"])
}

func TestParse_Idempotent(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	raw := models.NewUnstructuredAddress("15", "HERR", "Hans Müller", "c/o Firma", "Bahnhofstrasse 12", "8001-01 Zürich", "Schweiz")

	first, err := p.Parse(raw)
	require.NoError(t, err)
	second, err := p.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "CH", first.Country)
}

func TestParse_Concurrent(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	raws := make([]models.UnstructuredAddress, 50)
	for i := range raws {
		raws[i] = models.NewUnstructuredAddress(fmt.Sprint(i), "Hans Müller", fmt.Sprintf("Seestrasse %d", i+1), "8001 Zürich")
	}

	want := make([]*models.StructuredAddress, len(raws))
	for i, raw := range raws {
		got, err := p.Parse(raw)
		require.NoError(t, err)
		want[i] = got
	}

	var wg sync.WaitGroup
	got := make([]*models.StructuredAddress, len(raws))
	for i := range raws {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = p.Parse(raws[i])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, want, got)
}

func TestParseWithTrace_Dropped(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	_, trace, err := p.ParseWithTrace(models.NewUnstructuredAddress("16",
		"Muster AG", "Abteilung A", "Abteilung B", "Abteilung C", "Abteilung D", "3000 Bern"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Abteilung C", "Abteilung D"}, trace.Dropped())

	entries := trace.Entries()
	require.Len(t, entries, 6)
	assert.Equal(t, models.TraceEntry{Line: "Muster AG", Role: "name"}, entries[0])
	assert.Equal(t, models.TraceEntry{Line: "3000 Bern", Role: "locality"}, entries[5])
}

func TestParseBatch(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	results, errs := p.ParseBatch([]models.UnstructuredAddress{
		models.NewUnstructuredAddress("1", "Hans Müller"),
		models.NewUnstructuredAddress("", "Anna Keller"),
		models.NewUnstructuredAddress("3", "Peter Frick"),
	})

	require.Len(t, results, 3)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[2])
	assert.Nil(t, results[1])

	var pe *ParseError
	require.True(t, errors.As(errs[1], &pe))
	assert.Equal(t, 1, pe.Index)
	assert.ErrorIs(t, errs[1], ErrMissingIdentifier)
	assert.Equal(t, "parse address #1: missing record identifier", errs[1].Error())
}

func TestParse_StreetWithNumberWinsOverEarlierStreetName(t *testing.T) {
	p, err := NewDefaultParser()
	require.NoError(t, err)

	tests := []struct {
		name   string
		lines  []string
		street models.Street
		compl1 string
	}{
		{"company line", []string{"Hans Muster", "Müller Catering", "Bahnhofstrasse 12", "8001 Zürich"},
			models.Street{Street: "Bahnhofstrasse", HouseNumber: "12"}, "Müller Catering"},
		{"suffix inside word", []string{"Hans Muster", "Firma Goldring", "Seeweg 4", "6000 Luzern"},
			models.Street{Street: "Seeweg", HouseNumber: "4"}, "Firma Goldring"},
		{"street name then numbered street", []string{"Hans Muster", "Obere Gasse", "Seeweg 4", "6000 Luzern"},
			models.Street{Street: "Seeweg", HouseNumber: "4"}, "Obere Gasse"},
		{"street name alone", []string{"Hans Muster", "Abteilung Einkauf", "Obere Gasse", "6000 Luzern"},
			models.Street{Street: "Obere Gasse"}, "Abteilung Einkauf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, trace, err := p.ParseWithTrace(models.NewUnstructuredAddress("1", tt.lines...))
			require.NoError(t, err)
			assert.Equal(t, tt.street, got.Address)
			assert.Equal(t, tt.compl1, got.Compl1)
			assert.Empty(t, trace.Dropped())
		})
	}
}

func TestParse_FiveDigitTokenIsNotALocality(t *testing.T) {
	p, err := NewDefaultParser()
	require.NoError(t, err)

	got, err := p.Parse(models.NewUnstructuredAddress("1", "Jean Petit", "Rue Neuve 3bis", "75001 Paris"))
	require.NoError(t, err)
	assert.True(t, got.Postal.IsZero())
	assert.Equal(t, "", got.City)
	assert.Equal(t, "75001 Paris", got.Compl1)
}

func TestParse_LowerCaseCodeIsNotACountry(t *testing.T) {
	p, err := NewDefaultParser()
	require.NoError(t, err)

	got, err := p.Parse(models.NewUnstructuredAddress("1", "Hans Muster", "De", "3000 Bern", "DE"))
	require.NoError(t, err)
	assert.Equal(t, "De", got.Compl1)
	assert.Equal(t, "DE", got.Country)
}
