package veil

import (
	"strings"
	"unicode"
)

// Masker hides a plaintext value before it is attached to an event.
type Masker interface {
	// Mask applies masking to the value.
	Mask(value string) string
}

// MaskerFunc adapts a function to Masker.
type MaskerFunc func(string) string

// Mask implements Masker.
func (f MaskerFunc) Mask(value string) string { return f(value) }

// defaultMasker picks a format-aware mask by the shape of the value.
type defaultMasker struct{}

// DefaultMasker returns the masker used unless WithMasker overrides it:
// emails keep their first character and domain, digit strings keep their
// last four digits, anything else keeps the first character of each word.
func DefaultMasker() Masker {
	return &defaultMasker{}
}

func (m *defaultMasker) Mask(value string) string {
	switch {
	case value == "":
		return ""
	case strings.Contains(value, "@"):
		return maskEmail(value)
	case isMostlyDigits(value):
		return maskDigits(value)
	default:
		return maskWords(value)
	}
}

// maskEmail masks email format: alice@example.com -> a***@example.com
func maskEmail(value string) string {
	atIdx := strings.LastIndex(value, "@")
	if atIdx < 1 {
		// No @ or @ at start, mask everything
		return strings.Repeat("*", len(value))
	}

	local := value[:atIdx]
	domain := value[atIdx:]
	return string([]rune(local)[0]) + "***" + domain
}

// maskDigits keeps the last four digits: 4111111111111111 -> ************1111
func maskDigits(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// maskWords masks names: John Smith -> J*** S****
func maskWords(value string) string {
	words := strings.Fields(value)
	masked := make([]string, len(words))

	for i, word := range words {
		runes := []rune(word)
		masked[i] = string(runes[0]) + strings.Repeat("*", len(runes)-1)
	}

	return strings.Join(masked, " ")
}

// extractDigits returns only the digit characters from a string.
func extractDigits(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

func isMostlyDigits(s string) bool {
	d := len(extractDigits(s))
	return d >= 4 && d*2 >= len(s)
}
