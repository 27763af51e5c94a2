package state

import (
	"fmt"
	"path/filepath"
)

const (
	snapshotFilename   = "state.json"
	lockFilename       = "mindmovie.lock"
	goalsFilename      = "goals.json"
	scenesFilename     = "scenes.json"
	transcriptFilename = "transcript.json"
	// DefaultOutputFilename is the composed movie name when no output path
	// is configured.
	DefaultOutputFilename = "mind_movie.mp4"
)

// SnapshotPath returns the location of the run snapshot inside dir.
func SnapshotPath(dir string) string {
	return filepath.Join(dir, snapshotFilename)
}

// GoalsPath returns the location of the persisted goal set inside dir.
func GoalsPath(dir string) string {
	return filepath.Join(dir, goalsFilename)
}

// ScenesPath returns the location of the persisted scene plan inside dir.
func ScenesPath(dir string) string {
	return filepath.Join(dir, scenesFilename)
}

// TranscriptPath returns the location of the saved interview inside dir.
func TranscriptPath(dir string) string {
	return filepath.Join(dir, transcriptFilename)
}

// ScenePath returns the clip location for a scene index inside dir.
func ScenePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("scene_%02d.mp4", index))
}
