package enums

import "fmt"

// DropReason labels why the reconciler discarded a raw row.
type DropReason string

const (
	DropReasonUnresolvedCountry  DropReason = "unresolved_country"
	DropReasonMissingAffiliate   DropReason = "missing_affiliate"
	DropReasonTotalSentinel      DropReason = "total_sentinel"
	DropReasonCountryAsAffiliate DropReason = "country_as_affiliate"
	DropReasonDuplicate          DropReason = "duplicate"
	DropReasonInvalidDate        DropReason = "invalid_date"
)

var validDropReasons = []DropReason{
	DropReasonUnresolvedCountry,
	DropReasonMissingAffiliate,
	DropReasonTotalSentinel,
	DropReasonCountryAsAffiliate,
	DropReasonDuplicate,
	DropReasonInvalidDate,
}

// DropReasons returns every known reason in reporting order.
func DropReasons() []DropReason {
	out := make([]DropReason, len(validDropReasons))
	copy(out, validDropReasons)
	return out
}

func (d DropReason) String() string {
	return string(d)
}

// IsValid reports whether the reason is known.
func (d DropReason) IsValid() bool {
	for _, candidate := range validDropReasons {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDropReason converts raw input into a DropReason.
func ParseDropReason(value string) (DropReason, error) {
	for _, candidate := range validDropReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid drop reason %q", value)
}
