package parser

import (
	"strconv"

	"github.com/address-formatter/app/models"
)

// ParsePostalCode converts matched code and suffix tokens. code must be
// exactly four digits; suffix is empty or one to two digits. Anything else
// is not a postal code.
func ParsePostalCode(code, suffix string) (models.PostalCode, bool) {
	if len(code) != 4 || !allDigits(code) {
		return models.PostalCode{}, false
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return models.PostalCode{}, false
	}

	pc := models.PostalCode{Code: n}
	if suffix == "" {
		return pc, true
	}
	if len(suffix) > 2 || !allDigits(suffix) {
		return models.PostalCode{}, false
	}
	s, err := strconv.Atoi(suffix)
	if err != nil {
		return models.PostalCode{}, false
	}
	pc.Suffix = &s
	return pc, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
