// Package phone canonicalises phone-number-like input into the digits-only,
// country-prefixed form used as the store key and transport address.
package phone

import "strings"

// Normalize strips every non-digit from raw and prepends prefix unless the
// remaining digits already start with it. Empty input yields the bare prefix,
// which Valid rejects.
func Normalize(raw, prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, prefix) {
		return digits
	}
	return prefix + digits
}

// Normalizer applies a fixed country prefix.
type Normalizer struct {
	Prefix string
}

func (n Normalizer) Normalize(raw string) string {
	return Normalize(raw, n.Prefix)
}

// Valid reports whether canonical carries subscriber digits beyond the prefix.
func (n Normalizer) Valid(canonical string) bool {
	return len(canonical) > len(n.Prefix) && strings.HasPrefix(canonical, n.Prefix)
}
