package capture

import (
	"regexp"
	"strings"
)

// emailShape is deliberately permissive: one @, no whitespace, dotted
// domain. Real mailbox verification is not this system's job.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeDocument strips everything but digits and accepts exactly the two
// valid document lengths: 11 (CPF) or 14 (CNPJ). Shape check only, no
// checksum validation.
func NormalizeDocument(text string) (string, bool) {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 || len(d) == 14 {
		return d, true
	}
	return "", false
}

// ValidEmail reports whether text has a local@domain.tld shape.
func ValidEmail(text string) bool {
	return emailShape.MatchString(strings.TrimSpace(text))
}
