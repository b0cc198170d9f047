// Package validate provides centralized input validation and sanitization
// for fields that arrive from citizen-facing forms: names of persons,
// staff remarks, receipt numbers, and uploaded document metadata.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if
// validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count; names carry diacritics.
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// SanitizeHTML escapes HTML special characters to prevent XSS attacks.
// This should be called on all user-generated text that will be displayed in HTML.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// personNamePattern allows letters (including ñ and other diacritics
// common in Filipino names), spaces, and the punctuation that appears in
// legal names.
var personNamePattern = regexp.MustCompile(`^[\p{L}][\p{L} .,'\-]*$`)

// PersonName validates an applicant or deceased person name:
// 1-150 characters, letters with name punctuation only.
func PersonName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:      1,
		MaxLength:      150,
		AllowedPattern: personNamePattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// Remarks validates staff remarks on a return or payment rejection:
// non-empty, at most 1000 characters, HTML-escaped since remarks are shown
// back to the citizen.
func Remarks(remarks string) (string, error) {
	validated, err := String(remarks, StringConstraints{
		MinLength:  1,
		MaxLength:  1000,
		AllowEmpty: false,
		TrimSpace:  true,
	})
	if err != nil {
		return "", err
	}
	return SanitizeHTML(validated), nil
}

// receiptNumberPattern allows the digit-and-dash formats issued by the
// treasurer's office and the gateway's alphanumeric receipt codes.
var receiptNumberPattern = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)

// ReceiptNumber validates a manually entered official receipt number:
// 1-50 characters, alphanumeric and dashes.
func ReceiptNumber(number string) (string, error) {
	return String(number, StringConstraints{
		MinLength:      1,
		MaxLength:      50,
		AllowedPattern: receiptNumberPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}
