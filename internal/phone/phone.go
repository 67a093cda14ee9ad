// Package phone turns user-supplied phone numbers into backend chat
// identifiers.
package phone

import "strings"

const (
	DefaultCountryCode = "62"
	DefaultSuffix      = "@c.us"
)

// Normalizer maps raw phone strings to canonical digit strings. It performs
// no validity checking: malformed input yields a malformed destination.
type Normalizer struct {
	CountryCode string
	Suffix      string
}

// NewNormalizer returns a Normalizer, falling back to the package defaults
// for empty arguments.
func NewNormalizer(countryCode, suffix string) Normalizer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return Normalizer{CountryCode: countryCode, Suffix: suffix}
}

// Normalize strips every non-digit and ensures the result starts with the
// country code, replacing a single leading zero when present.
func (n Normalizer) Normalize(raw string) string {
	digits := stripNonDigits(raw)
	if strings.HasPrefix(digits, n.CountryCode) {
		return digits
	}
	if strings.HasPrefix(digits, "0") {
		return n.CountryCode + digits[1:]
	}
	return n.CountryCode + digits
}

// ChatID appends the backend suffix to a canonical number.
func (n Normalizer) ChatID(canonical string) string {
	return canonical + n.Suffix
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
