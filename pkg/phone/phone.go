// Package phone normalizes provider-supplied phone numbers to E.164 so the
// same person never produces duplicate contacts. The provider is not
// consistent: numbers arrive as bare digits, formatted US numbers, or
// already-normalized E.164 strings.
package phone

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeE164 converts raw input to +<country><number>.
//
// Heuristic (NANP-first, matching the business's telephony provider):
//   - strip everything that is not a digit
//   - 10 digits             -> assume US/Canada, prefix +1
//   - 11 digits leading "1" -> prefix +
//   - anything else >= 8 digits -> prefix + and trust the caller included
//     the country code
func NormalizeE164(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty phone number")
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return "+1" + digits, nil
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits, nil
	case len(digits) >= 8 && len(digits) <= 15:
		return "+" + digits, nil
	default:
		return "", fmt.Errorf("invalid phone number length: %d digits", len(digits))
	}
}
