package util

import "strings"

// NormalizePhone returns an E.164 number ("+27821234567") for South African
// input in any of the usual local forms. Other international numbers only
// lose their formatting characters.
func NormalizePhone(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	digits := onlyDigits(p)

	switch {
	case strings.HasPrefix(digits, "27") && len(digits) == 11:
		return "+" + digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "+27" + digits[1:]
	case len(digits) == 9 && !strings.HasPrefix(p, "+"):
		return "+27" + digits
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
