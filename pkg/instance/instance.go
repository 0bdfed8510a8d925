package instance

import "os"

const defaultID = "ltv-0"

// GetID returns the process identifier recorded on pipeline runs and locks:
// LTV_INSTANCE_ID, then the hostname, then a fixed default.
func GetID() string {
	if id := os.Getenv("LTV_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
