package enums

import (
	"fmt"
	"strings"
)

// Dimension is a fact attribute the aggregation engine can group by.
type Dimension string

const (
	DimensionDate      Dimension = "date"
	DimensionCountry   Dimension = "country"
	DimensionAffiliate Dimension = "affiliate"
	DimensionSource    Dimension = "source"
)

var validDimensions = []Dimension{
	DimensionDate,
	DimensionCountry,
	DimensionAffiliate,
	DimensionSource,
}

func (d Dimension) String() string {
	return string(d)
}

// IsValid reports whether the dimension is known.
func (d Dimension) IsValid() bool {
	for _, candidate := range validDimensions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDimension converts raw input into a Dimension, ignoring case and padding.
func ParseDimension(value string) (Dimension, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDimensions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dimension %q", value)
}
