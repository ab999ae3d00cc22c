package models

import (
	"go.mongodb.org/mongo-driver/bson"
)

// structuredAddressDoc document layout of a StructuredAddress in MongoDB
type structuredAddressDoc struct {
	ID           string            `bson:"old_id"`
	Title        string            `bson:"title,omitempty"`
	Name         string            `bson:"name,omitempty"`
	Lastname     string            `bson:"lastname,omitempty"`
	Firstname    string            `bson:"firstname,omitempty"`
	Compl1       string            `bson:"compl1,omitempty"`
	Compl2       string            `bson:"compl2,omitempty"`
	Address      addressLineDoc    `bson:"address"`
	PostalCode   int               `bson:"postal_code"`
	PostalSuffix *int              `bson:"postal_code_suffix,omitempty"`
	City         string            `bson:"city"`
	Country      string            `bson:"country"`
	Attributes   map[string]string `bson:"attributes,omitempty"`
}

// MarshalBSON stores the address line as a tagged sub-document.
func (a StructuredAddress) MarshalBSON() ([]byte, error) {
	return bson.Marshal(structuredAddressDoc{
		ID:           a.ID,
		Title:        a.Title,
		Name:         a.Name,
		Lastname:     a.Lastname,
		Firstname:    a.Firstname,
		Compl1:       a.Compl1,
		Compl2:       a.Compl2,
		Address:      encodeAddressLine(a.Address),
		PostalCode:   a.Postal.Code,
		PostalSuffix: a.Postal.Suffix,
		City:         a.City,
		Country:      a.Country,
		Attributes:   a.Attributes,
	})
}

// UnmarshalBSON restores an address written by MarshalBSON.
func (a *StructuredAddress) UnmarshalBSON(data []byte) error {
	var doc structuredAddressDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	line, err := doc.Address.decode()
	if err != nil {
		return err
	}
	*a = StructuredAddress{
		ID:         doc.ID,
		Title:      doc.Title,
		Name:       doc.Name,
		Lastname:   doc.Lastname,
		Firstname:  doc.Firstname,
		Compl1:     doc.Compl1,
		Compl2:     doc.Compl2,
		Address:    line,
		Postal:     PostalCode{Code: doc.PostalCode, Suffix: doc.PostalSuffix},
		City:       doc.City,
		Country:    doc.Country,
		Attributes: doc.Attributes,
	}
	return nil
}
