package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindmovie/internal/state"
)

func newCompileCommand(cmdCtx *commandContext) *cobra.Command {
	var outputPath string
	var musicPath string

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Assemble the final movie from generated clips",
		Long: `Combine the title card, generated scene clips with affirmation overlays,
optional background music, and a closing card into a single MP4. Runs
locally with ffmpeg; no provider calls or cost. Requires generated clips
(run 'mindmovie render' or 'mindmovie generate' first).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			run, err := readSnapshot(cfg.Paths.BuildDir)
			if err != nil {
				return err
			}
			if run == nil || run.CurrentStage.Before(state.StageComposition) {
				return fmt.Errorf("clips not generated yet; run 'mindmovie render' first")
			}

			if outputPath != "" {
				cfg.Paths.OutputPath = outputPath
			}
			if musicPath != "" {
				cfg.Music.FilePath = musicPath
			}

			result, err := runPipeline(cmd, cmdCtx, pipelineInvocation{composeOnly: true})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Movie ready: %s\n", result.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path for the compiled movie")
	cmd.Flags().StringVarP(&musicPath, "music", "m", "", "Background music file, overrides the configured track")

	return cmd
}
