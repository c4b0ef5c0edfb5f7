package messaging

import "strings"

const (
	minE164Digits = 8
	maxE164Digits = 15
)

// NormalizeE164 canonicalizes a raw phone string to E.164, prepending
// defaultCountryCode when the number arrives in national format. Returns ""
// when the input cannot be a phone number; callers treat "" as "no match",
// never as a fatal error.
//
// Handles transport prefixes ("whatsapp:+9725..."), international 00
// prefixes and national numbers with a leading trunk zero.
func NormalizeE164(value, defaultCountryCode string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	// Channel prefix, e.g. "whatsapp:+972501234567".
	if idx := strings.LastIndex(value, ":"); idx >= 0 {
		value = value[idx+1:]
	}

	international := strings.HasPrefix(value, "+")
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}

	if !international {
		switch {
		case strings.HasPrefix(digits, "00"):
			digits = digits[2:]
		case strings.HasPrefix(digits, "0"):
			digits = defaultCountryCode + digits[1:]
		case strings.HasPrefix(digits, defaultCountryCode):
			// Already carries the country code, just missing the plus.
		default:
			digits = defaultCountryCode + digits
		}
	}

	if len(digits) < minE164Digits || len(digits) > maxE164Digits {
		return ""
	}
	return "+" + digits
}

// sanitizePhone strips every non-digit rune.
func sanitizePhone(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}
