// Package redact masks sensitive key/value pairs and card-number-shaped digit
// runs before request/response text is persisted or displayed. Matching is
// regex based, not a real JSON/XML parse, which is good enough for audit
// output and keeps malformed payloads redactable.
package redact

import (
	"regexp"
	"strings"
	"unicode"
)

const placeholder = "***REDACTED***"

var sensitiveKeys = []string{
	"cardNumber", "pan", "cvv", "cvc", "securityCode", "trackData", "track1",
	"track2", "authorization", "apiKey", "apiSecret", "sourceKey", "pin",
	"accessToken", "paymentKey", "token", "softwareKey",
}

var (
	jsonKeyPattern = regexp.MustCompile(
		`(?i)"(` + strings.Join(sensitiveKeys, "|") + `)"\s*:\s*"([^"]*)"`)
	// One pattern per key: the close tag must repeat the open tag, and RE2 has
	// no backreferences.
	xmlKeyPatterns = compileXMLPatterns()
	panPattern     = regexp.MustCompile(`\b\d{12,19}\b`)
	maskedPattern  = regexp.MustCompile(`^\*+\d{4}$`)
)

func compileXMLPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(sensitiveKeys))
	for _, key := range sensitiveKeys {
		patterns = append(patterns, regexp.MustCompile(`(?i)<(`+key+`)>([^<]*)</`+key+`>`))
	}
	return patterns
}

// Redact masks sensitive content in JSON or XML shaped text. Blank input
// yields an empty string. The result is stable under re-redaction.
func Redact(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	out := jsonKeyPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := jsonKeyPattern.FindStringSubmatch(match)
		return `"` + groups[1] + `": "` + maskValue(groups[2]) + `"`
	})

	for _, pattern := range xmlKeyPatterns {
		out = pattern.ReplaceAllStringFunc(out, func(match string) string {
			groups := pattern.FindStringSubmatch(match)
			return "<" + groups[1] + ">" + maskValue(groups[2]) + "</" + groups[1] + ">"
		})
	}

	return panPattern.ReplaceAllStringFunc(out, maskPAN)
}

// maskValue applies the masking rule to one captured value: digit-bearing
// values are masked like card numbers, everything else collapses to the
// redaction placeholder. Already-masked values pass through unchanged so
// redaction stays idempotent.
func maskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	if value == placeholder || maskedPattern.MatchString(value) {
		return value
	}
	if strings.ContainsFunc(value, unicode.IsDigit) {
		return maskPAN(value)
	}
	return placeholder
}

// maskPAN keeps only the last 4 digits of a card-number-like value. Values
// with fewer than 6 digits carry no maskable tail and collapse entirely.
func maskPAN(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	ds := digits.String()
	if len(ds) < 6 {
		return placeholder
	}
	return strings.Repeat("*", len(ds)-4) + ds[len(ds)-4:]
}
