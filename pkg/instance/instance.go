// Package instance names the running process in logs and lock owners.
package instance

import "os"

// GetID returns SKSHOP_INSTANCE_ID, then the platform dyno name, then the
// hostname, falling back to "local".
func GetID() string {
	for _, key := range []string{"SKSHOP_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
