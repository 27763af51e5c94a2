package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"mindmovie/internal/composer"
	"mindmovie/internal/config"
	"mindmovie/internal/cost"
	"mindmovie/internal/notifications"
	"mindmovie/internal/plan"
	"mindmovie/internal/questionnaire"
	"mindmovie/internal/services"
	"mindmovie/internal/services/anthropic"
	"mindmovie/internal/state"
	"mindmovie/internal/testsupport"
)

type fakePlanner struct {
	extractCalls  int
	generateCalls int
	sceneCount    int
}

func (p *fakePlanner) ExtractGoals(ctx context.Context, transcript *questionnaire.Transcript) (*plan.GoalSet, error) {
	p.extractCalls++
	return &plan.GoalSet{
		Title: "Ocean Life",
		Goals: []plan.Goal{
			{Category: plan.CategoryHealth, Description: "run daily", Affirmation: "I am strong"},
		},
		ExtractedAt: time.Now().UTC(),
	}, nil
}

func (p *fakePlanner) GenerateScenes(ctx context.Context, goals *plan.GoalSet, numScenes int) (*plan.ScenePlan, error) {
	p.generateCalls++
	count := p.sceneCount
	if count == 0 {
		count = numScenes
	}
	scenePlan := &plan.ScenePlan{Title: goals.Title, GeneratedAt: time.Now().UTC()}
	for i := 0; i < count; i++ {
		scenePlan.Scenes = append(scenePlan.Scenes, plan.Scene{
			Index:       i,
			Category:    plan.CategoryHealth,
			Affirmation: "I am thriving",
			VideoPrompt: fmt.Sprintf("shot %d", i),
		})
	}
	return scenePlan, nil
}

type fakeVideoGenerator struct {
	mu    sync.Mutex
	calls map[string]int
	fail  func(prompt string) error
}

func newFakeVideoGenerator() *fakeVideoGenerator {
	return &fakeVideoGenerator{calls: make(map[string]int)}
}

func (g *fakeVideoGenerator) Name() string     { return "veo" }
func (g *fakeVideoGenerator) ClipSeconds() int { return 8 }

func (g *fakeVideoGenerator) GenerateClip(ctx context.Context, prompt, outputPath string) error {
	g.mu.Lock()
	g.calls[prompt]++
	g.mu.Unlock()
	if g.fail != nil {
		if err := g.fail(prompt); err != nil {
			return err
		}
	}
	return os.WriteFile(outputPath, []byte("clip"), 0o644)
}

func (g *fakeVideoGenerator) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

type fakeComposer struct {
	calls   int
	lastReq composer.Request
	fail    error
}

func (c *fakeComposer) Compose(ctx context.Context, req composer.Request) error {
	c.calls++
	c.lastReq = req
	if c.fail != nil {
		return c.fail
	}
	return os.WriteFile(req.OutputPath, []byte("movie"), 0o644)
}

func completedTranscript() *questionnaire.Transcript {
	return &questionnaire.Transcript{
		Messages: []anthropic.Message{
			{Role: "assistant", Content: "q"},
			{Role: "user", Content: "a"},
		},
		Completed: true,
	}
}

type fixture struct {
	cfg       *config.Config
	store     *state.Store
	planner   *fakePlanner
	generator *fakeVideoGenerator
	composer  *fakeComposer
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Movie.NumScenes = 10
	store, err := state.Open(cfg.Paths.BuildDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &fixture{
		cfg:       cfg,
		store:     store,
		planner:   &fakePlanner{},
		generator: newFakeVideoGenerator(),
		composer:  &fakeComposer{},
	}
}

func (f *fixture) orchestrator(t *testing.T, mutate func(*Options)) *Orchestrator {
	t.Helper()
	opts := Options{
		Config:    f.cfg,
		Store:     f.store,
		Planner:   f.planner,
		Generator: f.generator,
		Composer:  f.composer,
		Notifier:  notifications.NewService(f.cfg),
	}
	if mutate != nil {
		mutate(&opts)
	}
	orch, err := New(opts)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func TestRunFullPipeline(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, nil)

	result, err := orch.Run(context.Background(), completedTranscript())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Run.CurrentStage != state.StageComplete {
		t.Fatalf("stage = %s", result.Run.CurrentStage)
	}
	if result.Summary.Succeeded != 10 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	if f.composer.calls != 1 {
		t.Fatalf("composer called %d times", f.composer.calls)
	}
	if len(f.composer.lastReq.ClipPaths) != 10 {
		t.Fatalf("composed %d clips", len(f.composer.lastReq.ClipPaths))
	}
	if len(f.composer.lastReq.Captions) != 10 || f.composer.lastReq.Captions[0] != "I am thriving" {
		t.Fatalf("captions = %v", f.composer.lastReq.Captions)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if result.Run.ActualCost == 0 {
		t.Fatal("actual cost not recorded")
	}
}

func TestRunDryRunStopsBeforeGeneration(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, func(o *Options) { o.DryRun = true })

	result, err := orch.Run(context.Background(), completedTranscript())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.generator.totalCalls() != 0 {
		t.Fatal("dry run reached the video provider")
	}
	if f.composer.calls != 0 {
		t.Fatal("dry run reached the composer")
	}
	if result.Breakdown.Total == 0 {
		t.Fatal("dry run should report a cost estimate")
	}
	// 10 scenes x 8s x $0.15/s for the fast veo model.
	if result.Breakdown.Total != 12.0 {
		t.Fatalf("estimate = %f, want 12.0", result.Breakdown.Total)
	}
	if result.Run.CurrentStage == state.StageComplete {
		t.Fatal("dry run should not complete the pipeline")
	}
}

func TestRunConfirmDeclinedAborts(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, func(o *Options) {
		o.Confirm = func(cost.Breakdown) (bool, error) { return false, nil }
	})

	_, err := orch.Run(context.Background(), completedTranscript())
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if f.generator.totalCalls() != 0 {
		t.Fatal("declined run reached the video provider")
	}
}

func TestRunResumeSkipsDoneAssets(t *testing.T) {
	f := newFixture(t)
	// First run: scenes 3 and 7 fail permanently.
	f.generator.fail = func(prompt string) error {
		if prompt == "shot 3" || prompt == "shot 7" {
			return services.Wrap(services.ErrValidation, "", "fake", "prompt rejected", nil)
		}
		return nil
	}
	orch := f.orchestrator(t, nil)
	_, err := orch.Run(context.Background(), completedTranscript())
	if err == nil {
		t.Fatal("expected failure with allow_partial disabled")
	}
	if f.generator.totalCalls() != 10 {
		t.Fatalf("first run calls = %d, want 10", f.generator.totalCalls())
	}

	// Second run: provider recovered. Only the two failed scenes are retried
	// and the planning stages are not repeated.
	f.generator.fail = nil
	result, err := orch.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f.generator.totalCalls() != 12 {
		t.Fatalf("total calls = %d, want 12 (10 + 2 retries)", f.generator.totalCalls())
	}
	if f.planner.extractCalls != 1 || f.planner.generateCalls != 1 {
		t.Fatalf("planning repeated on resume: extract=%d generate=%d", f.planner.extractCalls, f.planner.generateCalls)
	}
	if result.Run.CurrentStage != state.StageComplete {
		t.Fatalf("stage = %s", result.Run.CurrentStage)
	}
	if result.Summary.Skipped != 8 || result.Summary.Succeeded != 2 {
		t.Fatalf("summary = %+v", result.Summary)
	}
}

func TestRunAllowPartialComposesSubset(t *testing.T) {
	f := newFixture(t)
	f.cfg.Video.AllowPartial = true
	f.generator.fail = func(prompt string) error {
		if prompt == "shot 5" {
			return services.Wrap(services.ErrValidation, "", "fake", "prompt rejected", nil)
		}
		return nil
	}
	orch := f.orchestrator(t, nil)

	result, err := orch.Run(context.Background(), completedTranscript())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Run.CurrentStage != state.StageComplete {
		t.Fatalf("stage = %s", result.Run.CurrentStage)
	}
	if len(f.composer.lastReq.ClipPaths) != 9 {
		t.Fatalf("composed %d clips, want 9", len(f.composer.lastReq.ClipPaths))
	}
}

func TestRunAssetsOnlyParksAtComposition(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, func(o *Options) { o.AssetsOnly = true })

	result, err := orch.Run(context.Background(), completedTranscript())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Run.CurrentStage != state.StageComposition {
		t.Fatalf("stage = %s, want COMPOSITION", result.Run.CurrentStage)
	}
	if f.composer.calls != 0 {
		t.Fatal("assets-only run reached the composer")
	}

	// A later full run finishes composition without touching the provider.
	full := f.orchestrator(t, nil)
	result, err = full.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.Run.CurrentStage != state.StageComplete {
		t.Fatalf("stage = %s", result.Run.CurrentStage)
	}
	if f.generator.totalCalls() != 10 {
		t.Fatalf("provider calls = %d, want 10", f.generator.totalCalls())
	}
}

func TestRunRequiresTranscriptAtStart(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, nil)
	if _, err := orch.Run(context.Background(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := orch.Run(context.Background(), &questionnaire.Transcript{Completed: false}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for incomplete transcript, got %v", err)
	}
}

func TestRunPassesMusicToComposer(t *testing.T) {
	f := newFixture(t, testsupport.WithMusic())

	orch := f.orchestrator(t, nil)
	result, err := orch.Run(context.Background(), completedTranscript())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.composer.lastReq.MusicPath != f.cfg.Music.FilePath {
		t.Fatalf("composer music = %q, want %q", f.composer.lastReq.MusicPath, f.cfg.Music.FilePath)
	}
	if result.Run.MusicPath != f.cfg.Music.FilePath {
		t.Fatalf("run music = %q", result.Run.MusicPath)
	}
}

func TestRunCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, nil)
	if _, err := orch.Run(context.Background(), completedTranscript()); err != nil {
		t.Fatalf("run: %v", err)
	}
	composerCalls := f.composer.calls
	providerCalls := f.generator.totalCalls()

	result, err := orch.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.composer.calls != composerCalls || f.generator.totalCalls() != providerCalls {
		t.Fatal("completed run did more work on re-run")
	}
	if result.OutputPath == "" {
		t.Fatal("completed run should report its output")
	}
}

func TestRunComposerFailureLeavesRunResumable(t *testing.T) {
	f := newFixture(t)
	f.composer.fail = services.Wrap(services.ErrExternalTool, "composition", "ffmpeg", "boom", nil)
	orch := f.orchestrator(t, nil)

	_, err := orch.Run(context.Background(), completedTranscript())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	run := f.store.Current()
	if run.CurrentStage != state.StageComposition {
		t.Fatalf("stage = %s, want COMPOSITION", run.CurrentStage)
	}

	// Composer recovers; resume finishes without regenerating clips.
	f.composer.fail = nil
	providerCalls := f.generator.totalCalls()
	result, err := orch.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f.generator.totalCalls() != providerCalls {
		t.Fatal("resume regenerated clips")
	}
	if result.Run.CurrentStage != state.StageComplete {
		t.Fatalf("stage = %s", result.Run.CurrentStage)
	}
}
