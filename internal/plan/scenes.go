package plan

import (
	"fmt"
	"strings"
	"time"

	"mindmovie/internal/services"
)

// Scene count bounds for a complete movie.
const (
	MinScenes = 10
	MaxScenes = 15
)

// Scene describes one clip of the final movie.
type Scene struct {
	Index       int      `json:"index"`
	Category    Category `json:"category"`
	Affirmation string   `json:"affirmation"`
	VideoPrompt string   `json:"video_prompt"`
}

// ScenePlan is the structured outcome of the scene generation stage. Scenes
// are stored in playback order with zero-based contiguous indexes.
type ScenePlan struct {
	Title       string    `json:"title"`
	Scenes      []Scene   `json:"scenes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Validate checks scene count bounds, index contiguity, and per-scene fields.
func (p *ScenePlan) Validate() error {
	if p == nil {
		return services.Wrap(services.ErrValidation, "scene_generation", "validate", "scene plan is nil", nil)
	}
	if len(p.Scenes) < MinScenes || len(p.Scenes) > MaxScenes {
		return services.Wrap(services.ErrValidation, "scene_generation", "validate",
			fmt.Sprintf("scene count %d outside range %d-%d", len(p.Scenes), MinScenes, MaxScenes), nil)
	}
	for i, scene := range p.Scenes {
		if scene.Index != i {
			return services.Wrap(services.ErrValidation, "scene_generation", "validate",
				fmt.Sprintf("scene at position %d has index %d", i, scene.Index), nil)
		}
		if !scene.Category.Valid() {
			return services.Wrap(services.ErrValidation, "scene_generation", "validate",
				fmt.Sprintf("scene %d has unknown category %q", i, scene.Category), nil)
		}
		if err := validateAffirmation(scene.Affirmation); err != nil {
			return services.Wrap(services.ErrValidation, "scene_generation", "validate",
				fmt.Sprintf("scene %d: %v", i, err), nil)
		}
		if strings.TrimSpace(scene.VideoPrompt) == "" {
			return services.Wrap(services.ErrValidation, "scene_generation", "validate",
				fmt.Sprintf("scene %d has empty video prompt", i), nil)
		}
	}
	return nil
}

// Len returns the number of scenes in the plan.
func (p *ScenePlan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Scenes)
}
