package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LineSlots is the number of free-text lines carried by a legacy address record.
const LineSlots = 6

// DefaultCountry is used when no line identifies a country.
const DefaultCountry = "CH"

// UnstructuredAddress legacy address record as read from the source table
type UnstructuredAddress struct {
	ID         string            `json:"id"`                   // Source record key
	Lines      [LineSlots]string `json:"lines"`                // Free-text lines, "" for an absent slot
	Attributes map[string]string `json:"attributes,omitempty"` // Pass-through columns (iban, account owner...)
}

// NewUnstructuredAddress builds a record from up to six lines. Extra lines are ignored.
func NewUnstructuredAddress(id string, lines ...string) UnstructuredAddress {
	raw := UnstructuredAddress{ID: id}
	for i := 0; i < len(lines) && i < LineSlots; i++ {
		raw.Lines[i] = lines[i]
	}
	return raw
}

// PostalCode 4-digit postal code with an optional 2-digit suffix
type PostalCode struct {
	Code   int  `json:"code"`             // 0..9999, rendered zero padded
	Suffix *int `json:"suffix,omitempty"` // nil when the source had no suffix
}

// IsZero reports whether the postal code is the unknown/default value.
func (p PostalCode) IsZero() bool {
	return p.Code == 0 && p.Suffix == nil
}

// Format renders the code as "0800" or "8001-01".
func (p PostalCode) Format() string {
	if p.Suffix == nil {
		return fmt.Sprintf("%04d", p.Code)
	}
	return fmt.Sprintf("%04d-%02d", p.Code, *p.Suffix)
}

// Long returns the numeric form stored in the destination schema:
// code*100+suffix when a suffix exists, the bare code otherwise.
func (p PostalCode) Long() int {
	if p.Suffix == nil {
		return p.Code
	}
	return p.Code*100 + *p.Suffix
}

// Equal compares code and suffix, treating nil and a set suffix as different.
func (p PostalCode) Equal(o PostalCode) bool {
	if p.Code != o.Code {
		return false
	}
	if p.Suffix == nil || o.Suffix == nil {
		return p.Suffix == nil && o.Suffix == nil
	}
	return *p.Suffix == *o.Suffix
}

// AddressLine is either a Street or a PoBox.
type AddressLine interface {
	Kind() string
	isAddressLine()
}

// Address line kinds
const (
	AddressKindStreet = "street"
	AddressKindPoBox  = "po_box"
)

// Street street name with house number
type Street struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
}

// PoBox post-office box
type PoBox struct {
	BoxNumber string `json:"box_number"`
}

func (Street) Kind() string { return AddressKindStreet }
func (PoBox) Kind() string  { return AddressKindPoBox }
func (Street) isAddressLine() {}
func (PoBox) isAddressLine()  {}

// StructuredAddress normalized address produced by the parser
type StructuredAddress struct {
	ID         string            `json:"id"`
	Title      string            `json:"title,omitempty"`
	Name       string            `json:"name,omitempty"`
	Lastname   string            `json:"lastname,omitempty"`
	Firstname  string            `json:"firstname,omitempty"`
	Compl1     string            `json:"compl1,omitempty"`
	Compl2     string            `json:"compl2,omitempty"`
	Address    AddressLine       `json:"-"`
	Postal     PostalCode        `json:"postal"`
	City       string            `json:"city"`
	Country    string            `json:"country"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// addressLineDoc tagged wire form of an AddressLine, shared by JSON and BSON
type addressLineDoc struct {
	Kind        string `json:"kind" bson:"kind"`
	Street      string `json:"street,omitempty" bson:"street,omitempty"`
	HouseNumber string `json:"house_number,omitempty" bson:"house_number,omitempty"`
	BoxNumber   string `json:"box_number,omitempty" bson:"box_number,omitempty"`
}

func encodeAddressLine(line AddressLine) addressLineDoc {
	switch v := line.(type) {
	case PoBox:
		return addressLineDoc{Kind: AddressKindPoBox, BoxNumber: v.BoxNumber}
	case Street:
		return addressLineDoc{Kind: AddressKindStreet, Street: v.Street, HouseNumber: v.HouseNumber}
	default:
		return addressLineDoc{Kind: AddressKindStreet}
	}
}

func (j addressLineDoc) decode() (AddressLine, error) {
	switch j.Kind {
	case AddressKindPoBox:
		return PoBox{BoxNumber: j.BoxNumber}, nil
	case AddressKindStreet, "":
		return Street{Street: j.Street, HouseNumber: j.HouseNumber}, nil
	default:
		return nil, fmt.Errorf("unknown address kind %q", j.Kind)
	}
}

// MarshalJSON encodes the address line as a tagged object.
func (a StructuredAddress) MarshalJSON() ([]byte, error) {
	type plain StructuredAddress
	return json.Marshal(struct {
		plain
		Address addressLineDoc `json:"address"`
	}{plain(a), encodeAddressLine(a.Address)})
}

// UnmarshalJSON decodes the tagged address line.
func (a *StructuredAddress) UnmarshalJSON(data []byte) error {
	type plain StructuredAddress
	aux := struct {
		*plain
		Address addressLineDoc `json:"address"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	line, err := aux.Address.decode()
	if err != nil {
		return err
	}
	a.Address = line
	return nil
}

// Destination row columns
const (
	ColOldID            = "old_id"
	ColTitle            = "title"
	ColName             = "name"
	ColLastname         = "lastname"
	ColFirstname        = "firstname"
	ColCompl1           = "compl1"
	ColCompl2           = "compl2"
	ColStreet           = "street"
	ColHouseNumber      = "house_number"
	ColPoBoxNumber      = "po_box_number"
	ColPostalCode       = "postal_code"
	ColPostalCodeSuffix = "postal_code_suffix"
	ColPostalCodeLong   = "postal_code_long"
	ColCity             = "city"
	ColCountry          = "country"
)

// RowColumns lists the columns produced by ToRow in a stable order, attributes excluded.
var RowColumns = []string{
	ColOldID, ColTitle, ColName, ColLastname, ColFirstname, ColCompl1, ColCompl2,
	ColStreet, ColHouseNumber, ColPoBoxNumber,
	ColPostalCode, ColPostalCodeSuffix, ColPostalCodeLong, ColCity, ColCountry,
}

// ToRow flattens the address into destination columns. Absent values are nil.
func (a *StructuredAddress) ToRow() map[string]interface{} {
	row := map[string]interface{}{
		ColOldID:            a.ID,
		ColTitle:            nullable(a.Title),
		ColName:             nullable(a.Name),
		ColLastname:         nullable(a.Lastname),
		ColFirstname:        nullable(a.Firstname),
		ColCompl1:           nullable(a.Compl1),
		ColCompl2:           nullable(a.Compl2),
		ColStreet:           nil,
		ColHouseNumber:      nil,
		ColPoBoxNumber:      nil,
		ColPostalCode:       a.Postal.Code,
		ColPostalCodeSuffix: nil,
		ColPostalCodeLong:   a.Postal.Long(),
		ColCity:             a.City,
		ColCountry:          a.Country,
	}
	switch v := a.Address.(type) {
	case PoBox:
		row[ColPoBoxNumber] = nullable(v.BoxNumber)
	case Street:
		row[ColStreet] = nullable(v.Street)
		row[ColHouseNumber] = nullable(v.HouseNumber)
	}
	if a.Postal.Suffix != nil {
		row[ColPostalCodeSuffix] = *a.Postal.Suffix
	}
	for k, v := range a.Attributes {
		row[k] = nullable(v)
	}
	return row
}

// TextRow renders ToRow values as strings in the given column order.
func (a *StructuredAddress) TextRow(columns []string) []string {
	row := a.ToRow()
	out := make([]string, len(columns))
	for i, c := range columns {
		if v, ok := row[c]; ok && v != nil {
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func nullable(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
