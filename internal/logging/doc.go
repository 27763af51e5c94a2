// Package logging builds slog loggers from application configuration and
// provides standardized attribute helpers and context enrichment used across
// the pipeline.
package logging
