package scenegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mindmovie/internal/logging"
	"mindmovie/internal/plan"
	"mindmovie/internal/questionnaire"
	"mindmovie/internal/services"
	"mindmovie/internal/services/anthropic"
)

// Completer is the LLM surface the generator needs.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// Generator turns interview transcripts into goals and goals into scene
// plans. A reply that fails validation gets one repair round trip before the
// stage fails.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// NewGenerator builds a planning generator.
func NewGenerator(completer Completer, logger *slog.Logger) (*Generator, error) {
	if completer == nil {
		return nil, fmt.Errorf("scenegen: completer required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{completer: completer, logger: logger}, nil
}

// ExtractGoals distills the interview transcript into a validated goal set.
func (g *Generator) ExtractGoals(ctx context.Context, transcript *questionnaire.Transcript) (*plan.GoalSet, error) {
	if transcript == nil || len(transcript.Messages) == 0 {
		return nil, services.Wrap(services.ErrValidation, "goal_extraction", "extract", "transcript is empty", nil)
	}

	user := transcriptPrompt(renderTranscript(transcript))
	var goals plan.GoalSet
	err := g.completeValidated(ctx, "goal_extraction", goalExtractionSystem, user, &goals, func() error {
		return goals.Validate()
	})
	if err != nil {
		return nil, err
	}
	goals.ExtractedAt = time.Now().UTC()
	g.logger.Info("goals extracted",
		logging.String(logging.FieldEventType, "goals_extracted"),
		logging.Int("goals", len(goals.Goals)),
		logging.Int("categories", len(goals.CoveredCategories())))
	return &goals, nil
}

// GenerateScenes expands a goal set into a validated scene plan of numScenes
// scenes.
func (g *Generator) GenerateScenes(ctx context.Context, goals *plan.GoalSet, numScenes int) (*plan.ScenePlan, error) {
	if err := goals.Validate(); err != nil {
		return nil, err
	}
	if numScenes < plan.MinScenes || numScenes > plan.MaxScenes {
		return nil, services.Wrap(services.ErrValidation, "scene_generation", "generate",
			fmt.Sprintf("scene count %d outside range %d-%d", numScenes, plan.MinScenes, plan.MaxScenes), nil)
	}

	var scenes plan.ScenePlan
	err := g.completeValidated(ctx, "scene_generation", sceneGenerationSystem(numScenes), goalsPrompt(goals), &scenes, func() error {
		if err := scenes.Validate(); err != nil {
			return err
		}
		if scenes.Len() != numScenes {
			return services.Wrap(services.ErrValidation, "scene_generation", "generate",
				fmt.Sprintf("expected %d scenes, got %d", numScenes, scenes.Len()), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	scenes.GeneratedAt = time.Now().UTC()
	g.logger.Info("scenes generated",
		logging.String(logging.FieldEventType, "scenes_generated"),
		logging.Int("scenes", scenes.Len()))
	return &scenes, nil
}

// completeValidated asks the model, decodes into target, and validates. One
// repair attempt feeds the rejection back to the model.
func (g *Generator) completeValidated(ctx context.Context, stage, system, user string, target any, validate func() error) error {
	reply, err := g.completer.CompleteJSON(ctx, system, user)
	if err != nil {
		return err
	}
	firstErr := decodeAndValidate(reply, target, validate)
	if firstErr == nil {
		return nil
	}

	g.logger.Warn("planning reply rejected, requesting repair",
		logging.String(logging.FieldStage, stage),
		logging.Error(firstErr))
	repaired, err := g.completer.CompleteJSON(ctx, system, repairPrompt(reply, firstErr))
	if err != nil {
		return err
	}
	if err := decodeAndValidate(repaired, target, validate); err != nil {
		return services.Wrap(services.ErrValidation, stage, "repair",
			fmt.Sprintf("model output invalid after repair: %v", err), nil)
	}
	return nil
}

func decodeAndValidate(reply string, target any, validate func() error) error {
	if err := anthropic.DecodeJSONPayload(reply, target); err != nil {
		return err
	}
	return validate()
}

func renderTranscript(transcript *questionnaire.Transcript) string {
	var sb strings.Builder
	for _, message := range transcript.Messages {
		switch message.Role {
		case "assistant":
			fmt.Fprintf(&sb, "Coach: %s\n", message.Content)
		case "user":
			fmt.Fprintf(&sb, "Person: %s\n", message.Content)
		}
	}
	return sb.String()
}
