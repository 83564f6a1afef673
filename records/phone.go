package records

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Daskott/relief/models"
)

const DEFAULT_COUNTRY_CODE = "84"

// PhoneFormatter rewrites local phone numbers into international form for one
// country calling code.
type PhoneFormatter struct {
	CountryCode string
}

var defaultFormatter = PhoneFormatter{CountryCode: DEFAULT_COUNTRY_CODE}

// NormalizePhone normalizes raw with the default country code.
func NormalizePhone(raw string) string {
	return defaultFormatter.Normalize(raw)
}

// Normalize strips whitespace, then
//   - replaces a leading 0 with +<cc>
//   - prefixes a bare <cc> with +
//   - leaves +... unchanged
//   - prefixes anything else with +<cc>
//
// Every phone number written to the store or used as a lookup key goes through
// here, since teams and supports are keyed by it.
func (f PhoneFormatter) Normalize(raw string) string {
	cc := f.countryCode()
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	switch {
	case strings.HasPrefix(cleaned, "0"):
		return "+" + cc + cleaned[1:]
	case strings.HasPrefix(cleaned, cc):
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "+"):
		return cleaned
	}
	return "+" + cc + cleaned
}

func (f PhoneFormatter) countryCode() string {
	cc := strings.TrimPrefix(strings.TrimSpace(f.CountryCode), "+")
	if cc == "" {
		return DEFAULT_COUNTRY_CODE
	}
	return cc
}

// ValidatePhone accepts 10 to 15 digits with an optional leading '+',
// ignoring whitespace.
func ValidatePhone(raw string) error {
	if !models.IsValidPhoneDigits(raw) {
		return models.NewValidationError(fmt.Sprintf("'%v' is not a valid phone number, expected 10-15 digits", raw))
	}
	return nil
}
