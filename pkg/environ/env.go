package environ

import (
	"os"
	"strings"
	"time"

	"k8s.io/kube-openapi/pkg/validation/strfmt"
)

func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}

	return fallback
}

// GetDuration accepts Go durations plus day and week units ("1d", "2w").
func GetDuration(key string, fallback time.Duration) time.Duration {
	if d, ok := LookupDuration(key); ok {
		return d
	}
	return fallback
}

// LookupDuration reports whether key holds a parseable duration.
func LookupDuration(key string) (time.Duration, bool) {
	if value, ok := os.LookupEnv(key); ok {
		if t, err := strfmt.ParseDuration(value); err == nil {
			return t, true
		}
	}
	return 0, false
}

// GetStringSlice splits a comma separated value, dropping blank entries.
func GetStringSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
