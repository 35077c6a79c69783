package config

import "strings"

// RetryBackoffMode enumerates supported backoff growth modes.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoffMode maps a raw string onto a known mode, defaulting to linear.
func NormalizeRetryBackoffMode(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fixed":
		return RetryBackoffFixed
	case "exponential", "exp":
		return RetryBackoffExponential
	default:
		return RetryBackoffLinear
	}
}
