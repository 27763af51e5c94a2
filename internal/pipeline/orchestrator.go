package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mindmovie/internal/assets"
	"mindmovie/internal/composer"
	"mindmovie/internal/config"
	"mindmovie/internal/cost"
	"mindmovie/internal/fileutil"
	"mindmovie/internal/logging"
	"mindmovie/internal/notifications"
	"mindmovie/internal/plan"
	"mindmovie/internal/questionnaire"
	"mindmovie/internal/services"
	"mindmovie/internal/state"
)

// GoalExtractor distills an interview transcript into goals.
type GoalExtractor interface {
	ExtractGoals(ctx context.Context, transcript *questionnaire.Transcript) (*plan.GoalSet, error)
}

// SceneGenerator expands goals into a scene plan.
type SceneGenerator interface {
	GenerateScenes(ctx context.Context, goals *plan.GoalSet, numScenes int) (*plan.ScenePlan, error)
}

// Planner combines the two planning stages; scenegen.Generator satisfies it.
type Planner interface {
	GoalExtractor
	SceneGenerator
}

// MovieComposer assembles clips into the final movie.
type MovieComposer interface {
	Compose(ctx context.Context, req composer.Request) error
}

// ConfirmFunc approves estimated spend before any paid video call. A nil
// ConfirmFunc approves everything.
type ConfirmFunc func(breakdown cost.Breakdown) (bool, error)

// ErrDeclined is returned when the user rejects the cost confirmation.
var ErrDeclined = fmt.Errorf("generation declined")

// Result reports what a pipeline run accomplished.
type Result struct {
	Run        *state.Run
	Summary    assets.Summary
	Breakdown  cost.Breakdown
	DryRun     bool
	OutputPath string
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Config    *config.Config
	Store     *state.Store
	Planner   Planner
	Generator assets.Generator
	Composer  MovieComposer
	Notifier  notifications.Service
	Logger    *slog.Logger
	Confirm   ConfirmFunc
	// DryRun stops before asset generation, reporting the cost estimate.
	DryRun bool
	// AssetsOnly stops after asset generation, leaving the run parked at
	// COMPOSITION for a later compile.
	AssetsOnly bool
	// OnProgress receives asset generation progress updates.
	OnProgress func(settled, total int)
}

// Orchestrator walks a run through its stages, resuming from whatever the
// snapshot says was last durable.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New validates the wiring and builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline: config required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("pipeline: store required")
	}
	// Planner and Generator may be nil when the caller knows the run is past
	// the stages that need them (compile-only invocations); the stage
	// handlers refuse to run without them.
	if opts.Composer == nil {
		return nil, fmt.Errorf("pipeline: composer required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(opts.Config)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Orchestrator{opts: opts, logger: opts.Logger}, nil
}

// Run executes or resumes the pipeline. The transcript is required only when
// the run has not yet passed goal extraction.
func (o *Orchestrator) Run(ctx context.Context, transcript *questionnaire.Transcript) (*Result, error) {
	run, err := o.opts.Store.LoadOrCreate()
	if err != nil {
		return nil, err
	}
	ctx = logging.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, o.logger)
	result := &Result{Run: run, DryRun: o.opts.DryRun}

	if run.CurrentStage == state.StageComplete {
		logger.Info("run already complete",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("output", run.OutputPath))
		result.OutputPath = run.OutputPath
		return result, nil
	}

	if run.CurrentStage == state.StageGoalExtraction {
		if run, err = o.extractGoals(ctx, logger, transcript); err != nil {
			return nil, o.failed(ctx, "goal extraction", err)
		}
		result.Run = run
	}

	if run.CurrentStage == state.StageSceneGeneration {
		if run, err = o.generateScenes(ctx, logger); err != nil {
			return nil, o.failed(ctx, "scene generation", err)
		}
		result.Run = run
	}

	scenes, err := o.loadScenes(run)
	if err != nil {
		return nil, err
	}

	if run.CurrentStage == state.StageAssetGeneration {
		breakdown, proceed, err := o.generateAssets(ctx, logger, run, scenes, result)
		result.Breakdown = breakdown
		if err != nil {
			// A declined confirmation is a user decision, not a failure.
			if errors.Is(err, ErrDeclined) {
				return result, err
			}
			return result, o.failed(ctx, "asset generation", err)
		}
		if !proceed {
			return result, nil
		}
		if err := o.opts.Store.AdvanceToComposition(); err != nil {
			return result, err
		}
		run = o.opts.Store.Current()
		result.Run = run
		if o.opts.AssetsOnly {
			return result, nil
		}
	}

	if run.CurrentStage == state.StageComposition {
		if err := o.compose(ctx, logger, run, scenes, result); err != nil {
			return result, o.failed(ctx, "composition", err)
		}
		result.Run = o.opts.Store.Current()
		result.OutputPath = result.Run.OutputPath
	}

	return result, nil
}

func (o *Orchestrator) extractGoals(ctx context.Context, logger *slog.Logger, transcript *questionnaire.Transcript) (*state.Run, error) {
	ctx = logging.WithStage(ctx, string(state.StageGoalExtraction))
	if o.opts.Planner == nil {
		return nil, services.Wrap(services.ErrConfiguration, "goal_extraction", "run", "no planner configured", nil)
	}
	if transcript == nil || !transcript.Completed {
		return nil, services.Wrap(services.ErrValidation, "goal_extraction", "run",
			"completed questionnaire transcript required; run the questionnaire first", nil)
	}
	goals, err := o.opts.Planner.ExtractGoals(ctx, transcript)
	if err != nil {
		return nil, err
	}
	goalsPath := state.GoalsPath(o.opts.Store.Dir())
	if err := writeJSON(goalsPath, goals); err != nil {
		return nil, err
	}
	run, err := o.opts.Store.SaveGoals(goalsPath)
	if err != nil {
		return nil, err
	}
	logger.Info("goal extraction complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String(logging.FieldStage, string(state.StageGoalExtraction)),
		logging.Int("goals", len(goals.Goals)))
	return run, nil
}

func (o *Orchestrator) generateScenes(ctx context.Context, logger *slog.Logger) (*state.Run, error) {
	ctx = logging.WithStage(ctx, string(state.StageSceneGeneration))
	if o.opts.Planner == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scene_generation", "run", "no planner configured", nil)
	}
	run := o.opts.Store.Current()
	goals, err := loadGoals(run.GoalsPath)
	if err != nil {
		return nil, err
	}
	scenes, err := o.opts.Planner.GenerateScenes(ctx, goals, o.opts.Config.Movie.NumScenes)
	if err != nil {
		return nil, err
	}
	scenesPath := state.ScenesPath(o.opts.Store.Dir())
	if err := writeJSON(scenesPath, scenes); err != nil {
		return nil, err
	}
	run, err = o.opts.Store.SaveScenes(scenesPath, scenes.Len())
	if err != nil {
		return nil, err
	}
	logger.Info("scene generation complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String(logging.FieldStage, string(state.StageSceneGeneration)),
		logging.Int("scenes", scenes.Len()))
	return run, nil
}

// generateAssets runs the coordinator over pending scenes. It returns false
// when the pipeline should stop without composing (dry run, declined
// confirmation, or failures without allow_partial).
func (o *Orchestrator) generateAssets(ctx context.Context, logger *slog.Logger, run *state.Run, scenes *plan.ScenePlan, result *Result) (cost.Breakdown, bool, error) {
	ctx = logging.WithStage(ctx, string(state.StageAssetGeneration))
	if o.opts.Generator == nil {
		return cost.Breakdown{}, false, services.Wrap(services.ErrConfiguration, "asset_generation", "run", "no video generator configured", nil)
	}

	pending := run.PendingAssets()
	breakdown, err := cost.Estimate(
		o.opts.Generator.Name(),
		o.opts.Config.Video.Model,
		scenes.Len(),
		o.opts.Generator.ClipSeconds(),
	)
	if err != nil {
		return cost.Breakdown{}, false, err
	}
	if err := o.opts.Store.SetEstimatedCost(breakdown.Total); err != nil {
		return breakdown, false, err
	}

	if o.opts.DryRun {
		logger.Info("dry run: stopping before asset generation",
			logging.String(logging.FieldEventType, "dry_run"),
			logging.Float64("estimated_cost", breakdown.Total),
			logging.Int("pending", len(pending)))
		return breakdown, false, nil
	}

	if len(pending) > 0 && o.opts.Confirm != nil {
		approved, err := o.opts.Confirm(breakdown)
		if err != nil {
			return breakdown, false, err
		}
		if !approved {
			return breakdown, false, ErrDeclined
		}
	}

	if err := o.opts.Notifier.NotifyRunStarted(ctx, scenes.Title, scenes.Len()); err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}

	items := buildItems(run, scenes, o.opts.Store.Dir())
	coordinator, err := assets.NewCoordinator(o.opts.Generator, o.opts.Store, assets.Options{
		MaxConcurrent: o.opts.Config.Video.MaxConcurrent,
		MaxRetries:    o.opts.Config.Video.MaxRetries,
		RetryBase:     time.Duration(o.opts.Config.Video.RetryBaseSeconds) * time.Second,
		RetryMax:      time.Duration(o.opts.Config.Video.RetryMaxSeconds) * time.Second,
		Logger:        o.logger,
		OnProgress:    o.opts.OnProgress,
	})
	if err != nil {
		return breakdown, false, err
	}

	started := time.Now()
	summary, err := coordinator.Run(ctx, items)
	result.Summary = summary
	if err != nil {
		return breakdown, false, err
	}
	if notifyErr := o.opts.Notifier.NotifyAssetsCompleted(ctx, summary.Succeeded, summary.Failed, time.Since(started)); notifyErr != nil {
		logger.Warn("notification failed", logging.Error(notifyErr))
	}

	if summary.Failed > 0 && !o.opts.Config.Video.AllowPartial {
		return breakdown, false, services.Wrap(services.ErrValidation, "asset_generation", "run",
			fmt.Sprintf("%d of %d scenes failed; fix or enable video.allow_partial: %s",
				summary.Failed, summary.Total, describeFailures(summary.Failures)), nil)
	}
	logger.Info("asset generation complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String(logging.FieldStage, string(state.StageAssetGeneration)),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed))
	return breakdown, true, nil
}

func (o *Orchestrator) compose(ctx context.Context, logger *slog.Logger, run *state.Run, scenes *plan.ScenePlan, result *Result) error {
	ctx = logging.WithStage(ctx, string(state.StageComposition))

	clips, captions := doneClips(run, scenes)
	if len(clips) == 0 {
		return services.Wrap(services.ErrValidation, "composition", "run", "no completed clips to compose", nil)
	}

	outputPath := o.outputPath()
	musicPath := o.opts.Config.Music.FilePath
	if musicPath != "" {
		if err := o.opts.Store.SetMusicPath(musicPath); err != nil {
			return err
		}
	}
	if err := o.opts.Composer.Compose(ctx, composer.Request{
		Title:      scenes.Title,
		ClipPaths:  clips,
		Captions:   captions,
		MusicPath:  musicPath,
		OutputPath: outputPath,
	}); err != nil {
		return err
	}

	actual := result.Breakdown.ActualCost(run.DoneAssets())
	if actual == 0 && run.EstimatedCost > 0 {
		// Resumed run: the breakdown was not rebuilt, fall back to the
		// snapshot estimate.
		actual = run.EstimatedCost
	}
	if err := o.opts.Store.CompleteComposition(outputPath, actual); err != nil {
		return err
	}
	if err := o.opts.Notifier.NotifyMovieReady(ctx, scenes.Title, outputPath); err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}
	logger.Info("composition complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("output", outputPath),
		logging.Float64("actual_cost", actual))
	return nil
}

func (o *Orchestrator) loadScenes(run *state.Run) (*plan.ScenePlan, error) {
	if run.CurrentStage.Before(state.StageAssetGeneration) {
		return nil, fmt.Errorf("pipeline: scenes not yet generated (stage %s)", run.CurrentStage)
	}
	return loadScenePlan(run.ScenesPath)
}

func (o *Orchestrator) outputPath() string {
	output := o.opts.Config.Paths.OutputPath
	if output == "" {
		output = state.DefaultOutputFilename
	}
	if !filepath.IsAbs(output) {
		output = filepath.Join(o.opts.Store.Dir(), output)
	}
	return output
}

func (o *Orchestrator) failed(ctx context.Context, stageLabel string, err error) error {
	if notifyErr := o.opts.Notifier.NotifyError(ctx, err, stageLabel); notifyErr != nil {
		o.logger.Warn("notification failed", logging.Error(notifyErr))
	}
	return err
}

func buildItems(run *state.Run, scenes *plan.ScenePlan, dir string) []assets.Item {
	items := make([]assets.Item, 0, scenes.Len())
	for _, scene := range scenes.Scenes {
		item := assets.Item{
			Index:      scene.Index,
			Prompt:     scene.VideoPrompt,
			OutputPath: state.ScenePath(dir, scene.Index),
		}
		if tracked, err := run.Asset(scene.Index); err == nil && tracked.Status == state.AssetDone {
			item.Done = true
		}
		items = append(items, item)
	}
	return items
}

// doneClips returns completed clip paths in scene order, each paired with its
// scene's affirmation for the overlay.
func doneClips(run *state.Run, scenes *plan.ScenePlan) ([]string, []string) {
	affirmations := make(map[int]string, scenes.Len())
	for _, scene := range scenes.Scenes {
		affirmations[scene.Index] = scene.Affirmation
	}
	clips := make([]string, 0, len(run.Assets))
	captions := make([]string, 0, len(run.Assets))
	for _, item := range run.Assets {
		if item.Status == state.AssetDone {
			clips = append(clips, item.ArtifactPath)
			captions = append(captions, affirmations[item.Index])
		}
	}
	return clips, captions
}

func describeFailures(failures []assets.Failure) string {
	parts := make([]string, 0, len(failures))
	for _, failure := range failures {
		parts = append(parts, fmt.Sprintf("scene %d: %v", failure.Index, failure.Err))
	}
	return strings.Join(parts, "; ")
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: encode %s: %w", filepath.Base(path), err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

func loadGoals(path string) (*plan.GoalSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read goals: %w", err)
	}
	var goals plan.GoalSet
	if err := json.Unmarshal(data, &goals); err != nil {
		return nil, fmt.Errorf("pipeline: decode goals: %w", err)
	}
	if err := goals.Validate(); err != nil {
		return nil, err
	}
	return &goals, nil
}

func loadScenePlan(path string) (*plan.ScenePlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read scenes: %w", err)
	}
	var scenes plan.ScenePlan
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, fmt.Errorf("pipeline: decode scenes: %w", err)
	}
	if err := scenes.Validate(); err != nil {
		return nil, err
	}
	return &scenes, nil
}
