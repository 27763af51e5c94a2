package state

import (
	"fmt"
	"time"
)

// Stage identifies a phase of the generation pipeline. Stages advance in a
// fixed order and never move backwards.
type Stage string

const (
	StageGoalExtraction  Stage = "GOAL_EXTRACTION"
	StageSceneGeneration Stage = "SCENE_GENERATION"
	StageAssetGeneration Stage = "ASSET_GENERATION"
	StageComposition     Stage = "COMPOSITION"
	StageComplete        Stage = "COMPLETE"
)

var stageRank = map[Stage]int{
	StageGoalExtraction:  0,
	StageSceneGeneration: 1,
	StageAssetGeneration: 2,
	StageComposition:     3,
	StageComplete:        4,
}

// Valid reports whether the stage is one of the known pipeline phases.
func (s Stage) Valid() bool {
	_, ok := stageRank[s]
	return ok
}

// Rank returns the position of the stage in pipeline order, or -1 when the
// stage is unknown.
func (s Stage) Rank() int {
	rank, ok := stageRank[s]
	if !ok {
		return -1
	}
	return rank
}

// Before reports whether s precedes other in pipeline order.
func (s Stage) Before(other Stage) bool {
	return s.Rank() < other.Rank()
}

// AssetStatus tracks the lifecycle of a single scene clip.
type AssetStatus string

const (
	AssetPending    AssetStatus = "PENDING"
	AssetInProgress AssetStatus = "IN_PROGRESS"
	AssetDone       AssetStatus = "DONE"
	AssetFailed     AssetStatus = "FAILED"
)

// AssetItem records generation progress for one scene clip.
type AssetItem struct {
	Index        int         `json:"index"`
	Status       AssetStatus `json:"status"`
	ArtifactPath string      `json:"artifact_path,omitempty"`
	Attempts     int         `json:"attempts,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
}

// Run is the persistent snapshot of a pipeline execution. All mutation goes
// through Store methods so that every change is durable before callers
// observe it.
type Run struct {
	ID            string      `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CurrentStage  Stage       `json:"current_stage"`
	GoalsPath     string      `json:"goals_path,omitempty"`
	ScenesPath    string      `json:"scenes_path,omitempty"`
	MusicPath     string      `json:"music_path,omitempty"`
	OutputPath    string      `json:"output_path,omitempty"`
	Assets        []AssetItem `json:"assets,omitempty"`
	EstimatedCost float64     `json:"estimated_cost,omitempty"`
	ActualCost    float64     `json:"actual_cost,omitempty"`
}

// Asset returns the asset item for the given scene index.
func (r *Run) Asset(index int) (*AssetItem, error) {
	for i := range r.Assets {
		if r.Assets[i].Index == index {
			return &r.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("asset %d not tracked", index)
}

// PendingAssets returns the scene indexes that still need generation work.
// Items already DONE are never returned, which is what makes resume
// idempotent. FAILED and IN_PROGRESS items are retried: IN_PROGRESS in a
// loaded snapshot means a previous process died mid-flight.
func (r *Run) PendingAssets() []int {
	pending := make([]int, 0, len(r.Assets))
	for _, item := range r.Assets {
		if item.Status != AssetDone {
			pending = append(pending, item.Index)
		}
	}
	return pending
}

// AllAssetsDone reports whether every tracked asset finished successfully.
func (r *Run) AllAssetsDone() bool {
	if len(r.Assets) == 0 {
		return false
	}
	for _, item := range r.Assets {
		if item.Status != AssetDone {
			return false
		}
	}
	return true
}

// DoneAssets counts assets that finished successfully.
func (r *Run) DoneAssets() int {
	done := 0
	for _, item := range r.Assets {
		if item.Status == AssetDone {
			done++
		}
	}
	return done
}

// Resumable reports whether the run has remaining work.
func (r *Run) Resumable() bool {
	return r.CurrentStage != StageComplete
}

func (r *Run) validate() error {
	if r.ID == "" {
		return fmt.Errorf("run has empty id")
	}
	if !r.CurrentStage.Valid() {
		return fmt.Errorf("run has unknown stage %q", r.CurrentStage)
	}
	seen := make(map[int]bool, len(r.Assets))
	for _, item := range r.Assets {
		if seen[item.Index] {
			return fmt.Errorf("duplicate asset index %d", item.Index)
		}
		seen[item.Index] = true
		switch item.Status {
		case AssetPending, AssetInProgress, AssetDone, AssetFailed:
		default:
			return fmt.Errorf("asset %d has unknown status %q", item.Index, item.Status)
		}
		if item.Status == AssetDone && item.ArtifactPath == "" {
			return fmt.Errorf("asset %d marked done without artifact path", item.Index)
		}
	}
	return nil
}
