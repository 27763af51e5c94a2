// Package anthropic wraps the Anthropic Messages API with bounded retry and
// JSON payload decoding for the planning stages.
package anthropic
