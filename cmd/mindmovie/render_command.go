package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mindmovie/internal/pipeline"
	"mindmovie/internal/state"
)

func newRenderCommand(cmdCtx *commandContext) *cobra.Command {
	var dryRun bool
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Generate video clips from saved scenes",
		Long: `Generate a clip for each planned scene using the configured video
provider, then stop before composition. Requires completed goal and scene
planning (run 'mindmovie generate' or 'mindmovie questionnaire' first).
Progress is checkpointed per clip, so an interrupted render resumes where
it left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			run, err := readSnapshot(cfg.Paths.BuildDir)
			if err != nil {
				return err
			}
			if run == nil || run.CurrentStage.Before(state.StageAssetGeneration) {
				return fmt.Errorf("scenes not planned yet; run 'mindmovie generate' first")
			}
			if !run.CurrentStage.Before(state.StageComposition) {
				fmt.Fprintln(cmd.OutOrStdout(), "All clips already generated. Run 'mindmovie compile' to assemble the movie.")
				return nil
			}

			result, err := runPipeline(cmd, cmdCtx, pipelineInvocation{
				dryRun:     dryRun,
				assetsOnly: true,
				assumeYes:  assumeYes,
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

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d clip(s), %d skipped, %d failed.\n",
				result.Summary.Succeeded, result.Summary.Skipped, result.Summary.Failed)
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'mindmovie compile' to assemble the movie.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Estimate cost for pending clips without generating")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the cost confirmation prompt")

	return cmd
}
