package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindmovie/internal/logging"
	"mindmovie/internal/questionnaire"
	"mindmovie/internal/state"
)

func newQuestionnaireCommand(cmdCtx *commandContext) *cobra.Command {
	var maxTurns int

	cmd := &cobra.Command{
		Use:     "questionnaire",
		Aliases: []string{"interview"},
		Short:   "Run the guided goal interview",
		Long: `Conduct an interactive interview about your goals across health, wealth,
career, relationships, growth, and lifestyle. The transcript is saved to
the build directory and feeds the generate command. Type /done to finish
early.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			completer, err := newAnthropicClient(cfg)
			if err != nil {
				return err
			}

			opts := []questionnaire.Option{questionnaire.WithLogger(logger)}
			if maxTurns > 0 {
				opts = append(opts, questionnaire.WithMaxTurns(maxTurns))
			}
			engine, err := questionnaire.NewEngine(completer, cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
			if err != nil {
				return err
			}

			transcript, err := engine.Run(cmd.Context())
			if err != nil {
				return err
			}

			path := state.TranscriptPath(cfg.Paths.BuildDir)
			if err := questionnaire.SaveTranscript(path, transcript); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nTranscript saved to %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'mindmovie generate' to build your movie.")
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "Override the interview turn limit")

	return cmd
}
