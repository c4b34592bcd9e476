package vault

import "strings"

// Mask hides an API key for display. Keys of up to 8 characters are fully
// starred; longer keys keep their first 3 and last 4 characters. Lengths are
// counted in runes so a multi-byte character is never split.
func Mask(key string) string {
	r := []rune(key)
	n := len(r)
	switch {
	case n == 0:
		return ""
	case n <= 8:
		return strings.Repeat("*", n)
	default:
		return string(r[:3]) + strings.Repeat("*", n-7) + string(r[n-4:])
	}
}
