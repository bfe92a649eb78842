package utils

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone parses raw as a phone number and returns it in E.164 form.
// Numbers without a country prefix are read in defaultRegion.
func NormalizePhone(raw, defaultRegion string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	parsed, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", false
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), true
}
