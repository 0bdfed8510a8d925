// Package normalize parses the locale-ambiguous numbers, heterogeneous dates
// and free-text labels found in the raw LTV export.
package normalize

import (
	"strconv"
	"strings"
)

// Amount returns the numeric value of raw, or 0 when it cannot be parsed.
func Amount(raw string) float64 {
	v, _ := ParseAmount(raw)
	return v
}

// ParseAmount is Amount with an explicit success flag, for callers that must
// tell a literal zero apart from an unparseable value.
//
// Only digits, ',', '.' and '-' survive. When both separators appear the
// rightmost one is the decimal point. A lone comma is decimal only when exactly
// two digits follow the last one. Several dots without a comma are thousands
// separators, and so is a single dot with exactly three digits after it and a
// non-zero integer part ("1.234" is 1234, "0.125" stays fractional).
func ParseAmount(raw string) (float64, bool) {
	s := stripNonNumeric(raw)
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case lastDot >= 0 && isThousandsDot(s, lastDot):
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isThousandsDot reads a lone dot as grouping only in the "1.234" shape: one
// non-zero digit, then exactly three. "246.912" and "1234.567" stay decimals.
func isThousandsDot(s string, dot int) bool {
	if len(s)-dot-1 != 3 {
		return false
	}
	intPart := strings.TrimPrefix(s[:dot], "-")
	return len(intPart) == 1 && intPart != "0"
}

func stripNonNumeric(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= '0' && c <= '9') || c == ',' || c == '.' || c == '-' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
