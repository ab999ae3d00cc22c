// Package search indexes migrated addresses in Meilisearch
package search

import (
	"fmt"
	"strings"

	ms "github.com/meilisearch/meilisearch-go"
)

// NewClient creates a Meilisearch client
func NewClient(url, key string) ms.ServiceManager {
	return ms.New(url, ms.WithAPIKey(key))
}

// Filter filterable address fields, empty values are skipped
type Filter struct {
	Country    string
	PostalCode string
	City       string
	Kind       string
}

// String renders the filter expression, e.g. `country = "CH" AND postal_code = "8001"`
func (f Filter) String() string {
	var parts []string
	add := func(field, value string) {
		if value != "" {
			parts = append(parts, fmt.Sprintf("%s = %q", field, value))
		}
	}
	add("country", strings.ToUpper(f.Country))
	add("postal_code", f.PostalCode)
	add("city", f.City)
	add("kind", f.Kind)
	return strings.Join(parts, " AND ")
}
