// Package rotation resolves scanned product codes to stored sales-rotation figures.
package rotation

import (
	"strings"
)

const (
	// maxCodeDigits is the longest code kept as is; longer inputs are cut to an EAN-13
	maxCodeDigits = 20
	ean13Digits   = 13
	// minSignificantDigits guards short codes (EAN-8) against zero stripping
	minSignificantDigits = 8
)

// NormalizeCode keeps the digits of code, cuts overlong scans to 13 digits and
// strips leading zeros unless that would leave fewer than 8 digits.
func NormalizeCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) > maxCodeDigits {
		digits = digits[:ean13Digits]
	}

	stripped := strings.TrimLeft(digits, "0")
	if len(stripped) >= minSignificantDigits {
		return stripped
	}
	return digits
}
