package models

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxPostalCodeLength caps raw input before any parsing
const MaxPostalCodeLength = 10

// DefaultCountry is assumed for digit-only postal codes
const DefaultCountry = "PL"

// postalCodePattern accepts a two letter country code followed by 1-5 digits
var postalCodePattern = regexp.MustCompile(`^[A-Z]{2}\d{1,5}$`)

// CleanPostalCode uppercases and strips spaces and hyphens
func CleanPostalCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

// ValidatePostalCode checks the request-level postal code format
func ValidatePostalCode(field, code string) error {
	if code == "" {
		return &ValidationError{Field: field, Value: code, Message: field + " is required"}
	}

	if len(code) > MaxPostalCodeLength {
		return &ValidationError{Field: field, Value: code, Message: field + " is too long"}
	}

	if !postalCodePattern.MatchString(CleanPostalCode(code)) {
		return &ValidationError{
			Field:   field,
			Value:   code,
			Message: "invalid postal code format, expected country code and digits (e.g. PL50, DE10)",
		}
	}

	return nil
}

// NormalizeRegionCode reduces a postal code to its region-level key:
// country letters plus the first two digits. Digit-only codes get DefaultCountry.
func NormalizeRegionCode(code string) string {
	clean := CleanPostalCode(code)

	if len(clean) >= 4 && isLetters(clean[:2]) {
		return clean[:4]
	}

	if len(clean) >= 2 && isDigits(clean) {
		return DefaultCountry + clean[:2]
	}

	return clean
}

// SplitPostalCode separates a cleaned code into country prefix and local digits
func SplitPostalCode(code string) (country, local string, ok bool) {
	clean := CleanPostalCode(code)
	if clean == "" {
		return "", "", false
	}

	if isDigits(clean) {
		return DefaultCountry, clean, true
	}

	if len(clean) < 2 || !isLetters(clean[:2]) {
		return "", "", false
	}

	local = clean[2:]
	if local != "" && !isDigits(local) {
		return "", "", false
	}

	return clean[:2], local, true
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ValidationError represents a request validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
