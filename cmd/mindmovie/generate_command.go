package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mindmovie/internal/pipeline"
	"mindmovie/internal/state"
)

func newGenerateCommand(cmdCtx *commandContext) *cobra.Command {
	var dryRun bool
	var assumeYes bool
	var noResume bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run or resume the movie pipeline",
		Long: `Run the pipeline from the saved questionnaire transcript: extract goals,
plan scenes, generate video clips, and compose the final movie. An
interrupted run resumes from its last checkpoint; completed clips are
never regenerated. Pass --no-resume to discard the prior run and start
over.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			prior, err := readSnapshot(cfg.Paths.BuildDir)
			if err != nil {
				return err
			}
			if prior != nil {
				if noResume {
					if err := discardRun(cfg.Paths.BuildDir); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Discarded prior run; starting over.")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Resuming run %s at stage %s. Pass --no-resume to start over.\n",
						prior.ID, prior.CurrentStage)
				}
			}

			result, err := runPipeline(cmd, cmdCtx, pipelineInvocation{
				dryRun:    dryRun,
				assumeYes: assumeYes,
			})
			if err != nil {
				if errors.Is(err, pipeline.ErrDeclined) {
					fmt.Fprintln(cmd.OutOrStdout(), "Generation declined; nothing was submitted.")
					return nil
				}
				return err
			}

			if result.DryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "Dry run: no clips were generated.")
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprint(cmd.OutOrStdout(), result.Breakdown.FormatSummary())
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Movie ready: %s\n", result.OutputPath)
			if result.Run.ActualCost > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Cost: $%.2f\n", result.Run.ActualCost)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Estimate cost and stop before any paid video call")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the cost confirmation prompt")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Discard the prior run and its artifacts before starting")

	return cmd
}

// discardRun clears the prior run under its own lock so runPipeline can
// reopen the store on a clean directory.
func discardRun(buildDir string) error {
	store, err := state.Open(buildDir)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Clear()
}
