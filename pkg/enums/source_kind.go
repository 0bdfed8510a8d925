package enums

import "fmt"

// SourceKind identifies where a dataset was loaded from.
type SourceKind string

const (
	SourceKindDatabase SourceKind = "database"
	SourceKindCSV      SourceKind = "csv"
	SourceKindXLSX     SourceKind = "xlsx"
	SourceKindSnapshot SourceKind = "snapshot"
)

var validSourceKinds = []SourceKind{
	SourceKindDatabase,
	SourceKindCSV,
	SourceKindXLSX,
	SourceKindSnapshot,
}

func (s SourceKind) String() string {
	return string(s)
}

// IsValid reports whether the kind is known.
func (s SourceKind) IsValid() bool {
	for _, candidate := range validSourceKinds {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSourceKind converts raw input into a SourceKind.
func ParseSourceKind(value string) (SourceKind, error) {
	for _, candidate := range validSourceKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source kind %q", value)
}
