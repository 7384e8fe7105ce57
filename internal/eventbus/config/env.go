// Package config provides the small env/YAML configuration-loading
// helpers shared by every service's bootstrap.Config, lifted from the
// env-override pattern used across the pack's hexagonal services.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StringOr returns the environment variable name's value, or fallback if
// unset or empty.
func StringOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// IntOr parses the environment variable name as an int, or returns
// fallback if unset or unparseable.
func IntOr(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// BoolOr parses 1/true/yes and 0/false/no (case-insensitive), or returns
// fallback otherwise.
func BoolOr(name string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch raw {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

// DurationSecondsOr reads name as a count of seconds, or returns fallback.
func DurationSecondsOr(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// FloatOr parses name as a float64, or returns fallback.
func FloatOr(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
