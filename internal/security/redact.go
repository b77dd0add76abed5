package security

import (
	"regexp"
	"strings"
)

var sensitiveSubstrings = []string{
	"token",
	"password",
	"authorization",
	"apikey",
	"api_key",
	"secret",
	"account_number",
	"card_number",
	"cvv",
	"pin",
	"otp",
	"aadhaar",
	"pan_number",
	"ifsc",
	"upi_id",
	"cookie",
	"session",
}

var allowList = map[string]struct{}{
	"shopping": {},
}

// longDigits matches card and account numbers embedded in free text.
var longDigits = regexp.MustCompile(`\d{9,}`)

// RedactArguments returns a copy of arguments with sensitive values replaced.
func RedactArguments(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	redacted := make(map[string]any, len(values))
	for key, value := range values {
		if isSensitiveKey(key) {
			redacted[key] = "***"
			continue
		}
		if s, ok := value.(string); ok {
			redacted[key] = MaskDigits(s)
			continue
		}
		redacted[key] = value
	}
	return redacted
}

// MaskDigits keeps the last four digits of every run of nine or more digits.
func MaskDigits(value string) string {
	return longDigits.ReplaceAllStringFunc(value, func(run string) string {
		return strings.Repeat("X", len(run)-4) + run[len(run)-4:]
	})
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if _, ok := allowList[lower]; ok {
		return false
	}
	for _, part := range sensitiveSubstrings {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
