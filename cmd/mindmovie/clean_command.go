package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindmovie/internal/state"
)

func newCleanCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Discard the current run and its artifacts",
		Long: `Remove the run snapshot and everything it produced: saved plans, the
interview transcript, generated scene clips, and the composed movie. The
next generate starts from scratch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := state.Open(cfg.Paths.BuildDir)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Run snapshot and generated artifacts removed.")
			return nil
		},
	}
}
