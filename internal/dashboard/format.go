package dashboard

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CompactAmount renders v with a K or M suffix, matching the headline cards.
func CompactAmount(v float64) string {
	p := message.NewPrinter(language.English)
	switch {
	case v >= 1_000_000:
		return p.Sprintf("%.2fM", v/1_000_000)
	case v >= 1_000:
		return p.Sprintf("%.1fK", v/1_000)
	default:
		return p.Sprintf("%.0f", v)
	}
}

// Count renders n with thousands separators.
func Count(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// Money renders v with thousands separators and two decimals.
func Money(v float64) string {
	return message.NewPrinter(language.English).Sprintf("%.2f", v)
}
