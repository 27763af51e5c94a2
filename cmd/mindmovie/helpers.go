package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mindmovie/internal/composer"
	"mindmovie/internal/cost"
	"mindmovie/internal/logging"
	"mindmovie/internal/pipeline"
	"mindmovie/internal/questionnaire"
	"mindmovie/internal/scenegen"
	"mindmovie/internal/state"
)

// pipelineInvocation selects how much of the pipeline a command drives.
type pipelineInvocation struct {
	dryRun     bool
	assetsOnly bool
	assumeYes  bool
	// composeOnly skips the planner and video provider wiring; the run must
	// already be parked at COMPOSITION.
	composeOnly bool
}

// runPipeline wires the orchestrator from configuration and executes it,
// with a progress bar over clip generation.
func runPipeline(cmd *cobra.Command, cmdCtx *commandContext, inv pipelineInvocation) (*pipeline.Result, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Config:     cfg,
		Composer:   newComposer(cfg, composer.WithLogger(logger)),
		Logger:     logger,
		DryRun:     inv.dryRun,
		AssetsOnly: inv.assetsOnly,
	}

	var transcript *questionnaire.Transcript
	if !inv.composeOnly {
		transcript, err = loadTranscriptIfPresent(cfg.Paths.BuildDir)
		if err != nil {
			return nil, err
		}
		completer, err := newAnthropicClient(cfg)
		if err != nil {
			return nil, err
		}
		planner, err := scenegen.NewGenerator(completer, logger)
		if err != nil {
			return nil, err
		}
		generator, err := newVideoGenerator(cfg)
		if err != nil {
			return nil, err
		}
		opts.Planner = planner
		opts.Generator = generator
		opts.Confirm = costConfirmer(cmd, inv.assumeYes)
	}

	store, err := state.Open(cfg.Paths.BuildDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	opts.Store = store

	var bar *progressbar.ProgressBar
	opts.OnProgress = func(settled, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("generating clips"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(settled)
	}

	orch, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}

	result, err := orch.Run(cmd.Context(), transcript)
	if bar != nil {
		_ = bar.Finish()
	}
	return result, err
}

// loadTranscriptIfPresent tolerates a missing transcript: a resumed run past
// goal extraction no longer needs it, and a fresh run without one gets a
// clear error from the pipeline.
func loadTranscriptIfPresent(buildDir string) (*questionnaire.Transcript, error) {
	path := state.TranscriptPath(buildDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return questionnaire.LoadTranscript(path)
}

// costConfirmer prompts on the terminal before paid generation. Non-interactive
// invocations must pass --yes explicitly.
func costConfirmer(cmd *cobra.Command, assumeYes bool) pipeline.ConfirmFunc {
	if assumeYes {
		return nil
	}
	return func(breakdown cost.Breakdown) (bool, error) {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, breakdown.FormatSummary())
		fmt.Fprintln(out)

		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return false, fmt.Errorf("cost confirmation requires a terminal; re-run with --yes to approve $%.2f", breakdown.Total)
		}

		fmt.Fprintf(out, "Proceed with generation (~$%.2f)? [y/N] ", breakdown.Total)
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}
