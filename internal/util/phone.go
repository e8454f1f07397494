package util

import (
	"errors"
	"regexp"
	"strings"
)

// ErrAmbiguousNumber is returned when a number carries no country code and no
// default country code was configured.
var ErrAmbiguousNumber = errors.New("phone number has no country code")

var (
	nonDialable = regexp.MustCompile(`[^\d+]+`)
	nonDigit    = regexp.MustCompile(`\D+`)
)

// DigitCount returns the number of digits in raw, ignoring every other character.
func DigitCount(raw string) int {
	return len(nonDigit.ReplaceAllString(raw, ""))
}

// NormalizeE164 turns user input into +<cc><digits>. Numbers starting with "+" or
// "00" are taken as international. Anything else gets defaultCC prepended (with a
// leading trunk 0 dropped) only when defaultCC is set; otherwise ErrAmbiguousNumber.
func NormalizeE164(raw, defaultCC string) (string, error) {
	s := nonDialable.ReplaceAllString(strings.TrimSpace(raw), "")

	switch {
	case strings.HasPrefix(s, "+"):
		s = "+" + strings.ReplaceAll(s[1:], "+", "")
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	default:
		cc := strings.TrimPrefix(nonDialable.ReplaceAllString(defaultCC, ""), "+")
		if cc == "" {
			return "", ErrAmbiguousNumber
		}
		s = "+" + cc + strings.TrimLeft(strings.ReplaceAll(s, "+", ""), "0")
	}

	if n := len(s) - 1; n < 8 || n > 15 {
		return "", errors.New("phone number has an invalid length")
	}

	return s, nil
}
