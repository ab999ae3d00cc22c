package normalizer

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/countries.yaml
var countriesYAML []byte

//go:embed data/streets.yaml
var streetsYAML []byte

// CountryRule one country with the spellings and postal prefixes that identify it
type CountryRule struct {
	Code     string   `yaml:"code"`
	Names    []string `yaml:"names"`
	Prefixes []string `yaml:"prefixes"`
}

// RulesConfig vocabulary loaded from the embedded YAML files
type RulesConfig struct {
	Version        string        `yaml:"version"`
	Countries      []CountryRule `yaml:"countries"`
	StreetPrefixes []string      `yaml:"street_prefixes"`
	StreetSuffixes []string      `yaml:"street_suffixes"`

	StreetCompoundSuffixes []string `yaml:"street_compound_suffixes"`
}

// LoadRulesConfig loads the rules from the embedded YAML files
func LoadRulesConfig() (*RulesConfig, error) {
	config := &RulesConfig{}

	if err := yaml.Unmarshal(countriesYAML, config); err != nil {
		return nil, fmt.Errorf("load countries: %w", err)
	}
	if err := yaml.Unmarshal(streetsYAML, config); err != nil {
		return nil, fmt.Errorf("load streets: %w", err)
	}

	return config, nil
}
