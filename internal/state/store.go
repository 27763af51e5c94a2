package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mindmovie/internal/fileutil"
)

// CorruptStateError reports an unreadable or invalid snapshot. The snapshot
// file is left in place so the operator can inspect or recover it.
type CorruptStateError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt state snapshot %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt state snapshot %s: %s", e.Path, e.Reason)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// Store persists run snapshots in a build directory. Every mutation rewrites
// the full snapshot with write-to-temp plus rename so a crash can never leave
// a half-written file, and a file lock keeps a second process from working the
// same directory.
type Store struct {
	mu   sync.Mutex
	dir  string
	lock *flock.Flock
	run  *Run
}

// Open prepares a store over dir and acquires the directory lock. It does not
// read or create a snapshot; call LoadOrCreate for that.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create build directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFilename))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("build directory %s is locked by another process", dir)
	}
	return &Store{dir: dir, lock: lock}, nil
}

// Close releases the directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil {
		return nil
	}
	err := s.lock.Unlock()
	s.lock = nil
	return err
}

// Dir returns the build directory the store operates on.
func (s *Store) Dir() string { return s.dir }

// Exists reports whether a snapshot is already present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(SnapshotPath(s.dir))
	return err == nil
}

// LoadOrCreate reads the existing snapshot or starts a fresh run. A snapshot
// that cannot be parsed or fails validation yields a *CorruptStateError and is
// never deleted or overwritten.
func (s *Store) LoadOrCreate() (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := SnapshotPath(s.dir)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		now := time.Now().UTC()
		run := &Run{
			ID:           uuid.NewString(),
			CreatedAt:    now,
			UpdatedAt:    now,
			CurrentStage: StageGoalExtraction,
		}
		if err := s.persistLocked(run); err != nil {
			return nil, err
		}
		s.run = run
		return s.snapshotLocked(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state snapshot: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, &CorruptStateError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if err := run.validate(); err != nil {
		return nil, &CorruptStateError{Path: path, Reason: err.Error()}
	}
	s.run = &run
	return s.snapshotLocked(), nil
}

// SaveGoals records the durable goal artifact and advances the run to scene
// generation. The artifact must already exist on disk; the snapshot pointer is
// only updated after that is verified.
func (s *Store) SaveGoals(goalsPath string) (*Run, error) {
	if _, err := os.Stat(goalsPath); err != nil {
		return nil, fmt.Errorf("goals artifact missing: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return nil, err
	}
	s.run.GoalsPath = goalsPath
	if err := s.advanceLocked(StageSceneGeneration); err != nil {
		return nil, err
	}
	if err := s.persistLocked(s.run); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// SaveScenes records the durable scene artifact, initializes asset tracking
// for sceneCount clips, and advances the run to asset generation.
func (s *Store) SaveScenes(scenesPath string, sceneCount int) (*Run, error) {
	if _, err := os.Stat(scenesPath); err != nil {
		return nil, fmt.Errorf("scenes artifact missing: %w", err)
	}
	if sceneCount <= 0 {
		return nil, fmt.Errorf("scene count must be positive, got %d", sceneCount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return nil, err
	}
	s.run.ScenesPath = scenesPath
	if len(s.run.Assets) == 0 {
		assets := make([]AssetItem, sceneCount)
		for i := range assets {
			assets[i] = AssetItem{Index: i, Status: AssetPending}
		}
		s.run.Assets = assets
	}
	if err := s.advanceLocked(StageAssetGeneration); err != nil {
		return nil, err
	}
	if err := s.persistLocked(s.run); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// SetEstimatedCost records the pre-generation cost estimate.
func (s *Store) SetEstimatedCost(amount float64) error {
	return s.mutate(func(run *Run) error {
		run.EstimatedCost = amount
		return nil
	})
}

// SetMusicPath records the background music track used at composition.
func (s *Store) SetMusicPath(path string) error {
	return s.mutate(func(run *Run) error {
		run.MusicPath = path
		return nil
	})
}

// MarkAssetInProgress transitions an asset to IN_PROGRESS and bumps its
// attempt counter.
func (s *Store) MarkAssetInProgress(index int) error {
	return s.mutate(func(run *Run) error {
		item, err := run.Asset(index)
		if err != nil {
			return err
		}
		if item.Status == AssetDone {
			return fmt.Errorf("asset %d already done", index)
		}
		item.Status = AssetInProgress
		item.Attempts++
		return nil
	})
}

// MarkAssetDone records a completed clip. The artifact must already be
// durable on disk before the snapshot says DONE.
func (s *Store) MarkAssetDone(index int, artifactPath string) error {
	if _, err := os.Stat(artifactPath); err != nil {
		return fmt.Errorf("asset %d artifact missing: %w", index, err)
	}
	return s.mutate(func(run *Run) error {
		item, err := run.Asset(index)
		if err != nil {
			return err
		}
		item.Status = AssetDone
		item.ArtifactPath = artifactPath
		item.LastError = ""
		return nil
	})
}

// MarkAssetFailed records a terminal failure for one clip.
func (s *Store) MarkAssetFailed(index int, cause error) error {
	return s.mutate(func(run *Run) error {
		item, err := run.Asset(index)
		if err != nil {
			return err
		}
		if item.Status == AssetDone {
			return fmt.Errorf("asset %d already done", index)
		}
		item.Status = AssetFailed
		if cause != nil {
			item.LastError = cause.Error()
		}
		return nil
	})
}

// AdvanceToComposition moves the run past asset generation.
func (s *Store) AdvanceToComposition() error {
	return s.mutate(func(run *Run) error {
		return s.advanceRunLocked(run, StageComposition)
	})
}

// CompleteComposition records the final movie artifact and marks the run
// COMPLETE.
func (s *Store) CompleteComposition(outputPath string, actualCost float64) error {
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("output artifact missing: %w", err)
	}
	return s.mutate(func(run *Run) error {
		run.OutputPath = outputPath
		run.ActualCost = actualCost
		return s.advanceRunLocked(run, StageComplete)
	})
}

// Clear removes the snapshot and every generated artifact so the next
// invocation starts fresh: plans, transcript, scene clips, and the composed
// movie, including recorded artifact paths outside the build directory.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.run
	if run == nil {
		if data, err := os.ReadFile(SnapshotPath(s.dir)); err == nil {
			var decoded Run
			if json.Unmarshal(data, &decoded) == nil {
				run = &decoded
			}
		}
	}

	targets := []string{
		SnapshotPath(s.dir),
		GoalsPath(s.dir),
		ScenesPath(s.dir),
		TranscriptPath(s.dir),
	}
	clips, err := filepath.Glob(filepath.Join(s.dir, "scene_*.mp4"))
	if err != nil {
		return err
	}
	targets = append(targets, clips...)
	if run != nil {
		for i := range run.Assets {
			if path := run.Assets[i].ArtifactPath; path != "" {
				targets = append(targets, path)
			}
		}
		if run.OutputPath != "" {
			targets = append(targets, run.OutputPath)
		}
	}

	s.run = nil
	for _, path := range targets {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Current returns a copy of the in-memory run, or nil when nothing is loaded.
func (s *Store) Current() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	return s.snapshotLocked()
}

func (s *Store) mutate(apply func(*Run) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	if err := apply(s.run); err != nil {
		return err
	}
	return s.persistLocked(s.run)
}

func (s *Store) requireLoadedLocked() error {
	if s.run == nil {
		return fmt.Errorf("no run loaded; call LoadOrCreate first")
	}
	return nil
}

// advanceLocked moves the in-memory run forward. Stage order is monotonic: an
// attempt to move backwards is a programming error and is rejected.
func (s *Store) advanceLocked(next Stage) error {
	return s.advanceRunLocked(s.run, next)
}

func (s *Store) advanceRunLocked(run *Run, next Stage) error {
	if !next.Valid() {
		return fmt.Errorf("unknown stage %q", next)
	}
	if next.Rank() < run.CurrentStage.Rank() {
		return fmt.Errorf("stage cannot move backwards from %s to %s", run.CurrentStage, next)
	}
	run.CurrentStage = next
	return nil
}

func (s *Store) persistLocked(run *Run) error {
	run.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(SnapshotPath(s.dir), data, 0o644); err != nil {
		return fmt.Errorf("write state snapshot: %w", err)
	}
	return nil
}

func (s *Store) snapshotLocked() *Run {
	cp := *s.run
	if s.run.Assets != nil {
		cp.Assets = make([]AssetItem, len(s.run.Assets))
		copy(cp.Assets, s.run.Assets)
	}
	return &cp
}
