// Package sample generates synthetic legacy address records for load tests
// and demos of the migration pipeline.
package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/source"
	"github.com/jaswdr/faker"
)

// Locality postal code and city of a generated record
type Locality struct {
	Code int
	City string
}

var localities = []Locality{
	{8001, "Zürich"},
	{3011, "Bern"},
	{4051, "Basel"},
	{6003, "Luzern"},
	{1003, "Lausanne"},
	{1204, "Genève"},
	{6900, "Lugano"},
	{8400, "Winterthur"},
	{2502, "Biel/Bienne"},
	{7000, "Chur"},
}

var streets = []string{
	"Bahnhofstrasse", "Seestrasse", "Hauptstrasse", "Dorfstrasse", "Kirchgasse",
	"Rue du Rhône", "Avenue de la Gare", "Via Nassa", "Marktplatz", "Industriestrasse",
}

var titles = []string{"Herr", "Frau", "Monsieur", "Madame", "MME", "Mr"}

var countryLines = []string{"Schweiz", "Suisse", "SCHWEIZ", "Switzerland"}

// Generator produces legacy records with the irregularities found in real
// source tables: optional titles, care-of lines, PO boxes, blank slots and
// postal code suffixes. The same seed yields the same records.
type Generator struct {
	fake faker.Faker
}

// NewGenerator creates a seeded Generator
func NewGenerator(seed int64) *Generator {
	return &Generator{fake: faker.NewWithSeed(rand.NewSource(seed))}
}

// Expected what a generated record should parse to
type Expected struct {
	Postal models.PostalCode
	City   string
	PoBox  bool
}

// Record generates one record and the locality it was built with
func (g *Generator) Record(id string) (models.UnstructuredAddress, Expected) {
	f := g.fake
	person := f.Person()
	loc := localities[f.IntBetween(0, len(localities)-1)]
	exp := Expected{Postal: models.PostalCode{Code: loc.Code}, City: loc.City}

	var lines []string
	if f.IntBetween(0, 2) > 0 {
		lines = append(lines, titles[f.IntBetween(0, len(titles)-1)])
	}
	lines = append(lines, person.LastName()+" "+person.FirstName())
	if f.IntBetween(0, 4) == 0 {
		lines = append(lines, "c/o "+person.LastName()+" AG")
	}

	if f.IntBetween(0, 5) == 0 {
		lines = append(lines, fmt.Sprintf("Postfach %d", f.IntBetween(1, 9999)))
		exp.PoBox = true
	} else {
		lines = append(lines, fmt.Sprintf("%s %d", streets[f.IntBetween(0, len(streets)-1)], f.IntBetween(1, 250)))
	}

	locality := fmt.Sprintf("%04d %s", loc.Code, loc.City)
	if f.IntBetween(0, 9) == 0 {
		suffix := f.IntBetween(1, 99)
		exp.Postal.Suffix = &suffix
		locality = fmt.Sprintf("%04d-%02d %s", loc.Code, suffix, loc.City)
	}
	if f.IntBetween(0, 3) == 0 {
		locality = strings.ToUpper(locality)
		exp.City = strings.ToUpper(exp.City)
	}
	lines = append(lines, locality)

	if len(lines) < models.LineSlots && f.IntBetween(0, 4) == 0 {
		lines = append(lines, countryLines[f.IntBetween(0, len(countryLines)-1)])
	}

	// legacy exports often carry an empty slot between lines
	if len(lines) < models.LineSlots && f.IntBetween(0, 3) == 0 {
		at := f.IntBetween(1, len(lines)-1)
		lines = append(lines[:at], append([]string{""}, lines[at:]...)...)
	}

	raw := models.NewUnstructuredAddress(id, lines...)
	raw.Attributes = map[string]string{
		"iban":          f.Numerify("CH## #### #### #### #### #"),
		"account_owner": person.FirstName() + " " + person.LastName(),
	}
	return raw, exp
}

// WriteCSV writes n records laid out as mapping describes. Attribute
// columns other than iban and account_owner are left empty.
func (g *Generator) WriteCSV(w io.Writer, mapping source.Mapping, delimiter rune, n int) error {
	if err := mapping.Validate(); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	header := append([]string{mapping.IDColumn}, mapping.LineColumns...)
	header = append(header, mapping.AttributeColumns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for i := 1; i <= n; i++ {
		raw, _ := g.Record(fmt.Sprintf("%d", i))
		row[0] = raw.ID
		for j := range mapping.LineColumns {
			row[1+j] = raw.Lines[j]
		}
		for j, col := range mapping.AttributeColumns {
			row[1+len(mapping.LineColumns)+j] = raw.Attributes[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
