package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
	"null": {},
	"nat":  {},
	"<na>": {},
}

// IsNull reports whether raw is blank or one of the placeholder tokens that
// spreadsheet and dataframe exports write for missing cells.
func IsNull(raw string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// Label trims raw and upper-cases the first letter of every word, leaving the
// remaining letters as written. Null tokens become the empty string.
func Label(raw string) string {
	if IsNull(raw) {
		return ""
	}
	// a Caser keeps state between calls and is not safe to share
	return cases.Title(language.Und, cases.NoLower).String(strings.TrimSpace(raw))
}
