package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mindmovie/internal/state"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var showAssets bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current run and its progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			run, err := readSnapshot(cfg.Paths.BuildDir)
			if err != nil {
				return err
			}
			if run == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No run in progress. Start with 'mindmovie questionnaire'.")
				return nil
			}

			out := cmd.OutOrStdout()
			rows := []table.Row{
				{"Run", run.ID},
				{"Stage", string(run.CurrentStage)},
				{"Created", run.CreatedAt.Local().Format("2006-01-02 15:04:05")},
				{"Updated", run.UpdatedAt.Local().Format("2006-01-02 15:04:05")},
			}
			if len(run.Assets) > 0 {
				rows = append(rows, table.Row{"Clips", fmt.Sprintf("%d/%d done", run.DoneAssets(), len(run.Assets))})
			}
			if run.EstimatedCost > 0 {
				rows = append(rows, table.Row{"Estimated cost", fmt.Sprintf("$%.2f", run.EstimatedCost)})
			}
			if run.ActualCost > 0 {
				rows = append(rows, table.Row{"Actual cost", fmt.Sprintf("$%.2f", run.ActualCost)})
			}
			if run.OutputPath != "" {
				rows = append(rows, table.Row{"Output", run.OutputPath})
			}
			renderTable(out, table.Row{"Field", "Value"}, rows)

			if showAssets && len(run.Assets) > 0 {
				fmt.Fprintln(out)
				assetRows := make([]table.Row, 0, len(run.Assets))
				for _, item := range run.Assets {
					assetRows = append(assetRows, table.Row{
						item.Index,
						string(item.Status),
						item.Attempts,
						item.LastError,
					})
				}
				renderTable(out, table.Row{"Scene", "Status", "Attempts", "Last Error"}, assetRows)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showAssets, "assets", false, "Show per-scene clip status")

	return cmd
}

// readSnapshot decodes the run snapshot without taking the run lock, so
// status works while a generate command holds it. Returns nil when no
// snapshot exists yet.
func readSnapshot(buildDir string) (*state.Run, error) {
	data, err := os.ReadFile(state.SnapshotPath(buildDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var run state.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run snapshot: %w", err)
	}
	return &run, nil
}
