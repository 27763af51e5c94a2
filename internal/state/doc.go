// Package state persists pipeline run snapshots. A run is a single JSON file
// rewritten atomically on every mutation, guarded by a process-wide file lock,
// so that a crash at any point leaves either the previous or the next complete
// snapshot on disk.
package state
