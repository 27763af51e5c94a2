// Package config loads, normalizes, and validates the TOML configuration for
// the mind movie pipeline. Path fields are tilde-expanded and made absolute;
// API keys fall back to environment variables.
package config
