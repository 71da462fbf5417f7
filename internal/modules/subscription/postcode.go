package subscription

import (
	"regexp"
	"strings"
)

// UK postcode shape after stripping internal whitespace: outward code
// (area letters, district digit, optional sub-district) plus optional
// inward code. Outward-only entries like "E1" or "SW1A" are accepted.
var postcodePattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]?([0-9][A-Z]{2})?$`)

// London postcode areas. Two-letter areas are checked before one-letter
// ones so "EC1" matches EC rather than E followed by a non-digit.
var (
	londonAreasTwo = []string{"EC", "WC", "NW", "SE", "SW"}
	londonAreasOne = []string{"E", "N", "W"}
)

// NormalizePostcode uppercases and strips all whitespace.
func NormalizePostcode(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

// IsLondonPostcode reports whether a normalized postcode belongs to a
// London area. Longest prefix wins: "EN1" is not London because after
// the single-letter "E" the next character must be a digit.
func IsLondonPostcode(normalized string) bool {
	for _, area := range londonAreasTwo {
		if strings.HasPrefix(normalized, area) {
			return true
		}
	}
	for _, area := range londonAreasOne {
		if strings.HasPrefix(normalized, area) && len(normalized) > 1 {
			next := normalized[1]
			if next >= '0' && next <= '9' {
				return true
			}
		}
	}
	return false
}

// ValidatePostcode checks shape and London membership, returning a
// human-readable reason on failure and the normalized form on success.
func ValidatePostcode(raw string) (string, string) {
	normalized := NormalizePostcode(raw)
	if normalized == "" {
		return "", "postcode is required"
	}
	if !postcodePattern.MatchString(normalized) {
		return "", "not a valid UK postcode"
	}
	if !IsLondonPostcode(normalized) {
		return "", "we only cover London postcodes for now"
	}
	return normalized, ""
}
