package enums

import "fmt"

// RunStatus describes the lifecycle state of a pipeline run. A partial run wrote
// the snapshot file but not the relational store.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusPartial   RunStatus = "partial"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

var validRunStatuses = []RunStatus{
	RunStatusRunning,
	RunStatusPartial,
	RunStatusSucceeded,
	RunStatusFailed,
}

// String returns the literal string for the status.
func (r RunStatus) String() string {
	return string(r)
}

// IsValid reports whether the status is known.
func (r RunStatus) IsValid() bool {
	for _, candidate := range validRunStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the run has finished.
func (r RunStatus) IsTerminal() bool {
	return r != RunStatusRunning && r.IsValid()
}

// ParseRunStatus converts raw input into a RunStatus.
func ParseRunStatus(value string) (RunStatus, error) {
	for _, candidate := range validRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid run status %q", value)
}
