package config

import (
	"strconv"
	"strings"
)

// placeholderValues are configuration values shipped in example env files and
// compose stacks. A secret equal to any of them (case-insensitive) was never
// replaced by the operator.
var placeholderValues = map[string]struct{}{
	"secret":                          {},
	"dev-password-placeholder":        {},
	"dev-jwt-secret-placeholder":      {},
	"dev-mailer-key-placeholder":      {},
	"dev-notify-key-placeholder":      {},
	"dev-audit-key-placeholder":       {},
	"replace-with-twilio-account-sid": {},
	"replace-with-twilio-auth-token":  {},
	"replace-with-twilio-from-number": {},
	"your-smtp-user":                  {},
	"your-smtp-password":              {},
	"your-smtp-from@example.com":      {},
}

// ConfigError reports a configuration value that prevents the relay from
// starting. It is always fatal.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Name + " " + e.Reason
}

// IsPlaceholder reports whether value looks like an unconfigured example
// value rather than a real credential.
func IsPlaceholder(value string) bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if _, ok := placeholderValues[normalized]; ok {
		return true
	}
	return strings.Contains(normalized, "placeholder") ||
		strings.HasPrefix(normalized, "your-") ||
		strings.Contains(normalized, "example.com") ||
		strings.Contains(normalized, "replace-with")
}

// RequireSecret returns the trimmed secret, or a *ConfigError when raw is
// blank or a placeholder.
func RequireSecret(name, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ConfigError{Name: name, Reason: "is required and cannot be blank"}
	}
	if IsPlaceholder(trimmed) {
		return "", &ConfigError{Name: name, Reason: "uses a placeholder value and must be replaced"}
	}
	return trimmed, nil
}

// BoundedInt is an integer setting with a default and an inclusive range.
// Out-of-range values are clamped, never rejected.
type BoundedInt struct {
	Default int
	Min     int
	Max     int
}

// Clamp forces n into [Min, Max].
func (b BoundedInt) Clamp(n int) int {
	return max(b.Min, min(n, b.Max))
}

// Parse resolves raw against b. A nil raw means the setting is absent and
// yields the default.
func (b BoundedInt) Parse(name string, raw *string) (int, error) {
	if raw == nil {
		return b.Clamp(b.Default), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		return 0, &ConfigError{Name: name, Reason: "must be a valid integer"}
	}
	return b.Clamp(n), nil
}

// RequireBoundedInt parses raw (or uses def when raw is nil) and clamps the
// result into [lo, hi]. Only unparsable input is an error.
func RequireBoundedInt(name string, raw *string, def, lo, hi int) (int, error) {
	return BoundedInt{Default: def, Min: lo, Max: hi}.Parse(name, raw)
}

// TwilioTimeoutMS bounds the carrier request timeout in milliseconds.
var TwilioTimeoutMS = BoundedInt{Default: 5000, Min: 1000, Max: 30000}
