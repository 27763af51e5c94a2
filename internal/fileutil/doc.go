// Package fileutil provides small filesystem helpers shared across the
// pipeline, most importantly atomic whole-file writes used by the checkpoint
// store and artifact downloads.
package fileutil
