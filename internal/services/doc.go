// Package services defines the shared error taxonomy for external
// collaborators (LLM and video providers, ffmpeg). Clients tag failures with
// sentinel markers; the asset coordinator and stage sequencer classify them
// into retryable and permanent outcomes.
package services
