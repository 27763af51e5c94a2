package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mindmovie/internal/config"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCommand(cmdCtx))
	cmd.AddCommand(newConfigShowCommand(cmdCtx))
	return cmd
}

func newConfigInitCommand(cmdCtx *commandContext) *cobra.Command {
	var toStdout bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if cmdCtx.configFlag != nil {
				path = *cmdCtx.configFlag
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if toStdout {
				fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig())
				return nil
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the sample configuration instead of writing it")

	return cmd
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			rows := []table.Row{
				{"paths.build_dir", cfg.Paths.BuildDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.output_path", cfg.Paths.OutputPath},
				{"video.provider", cfg.Video.Provider},
				{"video.model", cfg.Video.Model},
				{"video.resolution", cfg.Video.Resolution},
				{"video.max_concurrent", cfg.Video.MaxConcurrent},
				{"video.max_retries", cfg.Video.MaxRetries},
				{"video.allow_partial", yesNo(cfg.Video.AllowPartial)},
				{"movie.num_scenes", cfg.Movie.NumScenes},
				{"movie.scene_duration", cfg.Movie.SceneDuration},
				{"movie.crossfade_duration", cfg.Movie.CrossfadeDuration},
				{"movie.fps", cfg.Movie.FPS},
				{"music.file_path", cfg.Music.FilePath},
				{"music.volume", cfg.Music.Volume},
				{"api.anthropic_model", cfg.API.AnthropicModel},
				{"api.anthropic_key_set", yesNo(cfg.API.AnthropicAPIKey != "")},
				{"api.gemini_key_set", yesNo(cfg.API.GeminiAPIKey != "")},
				{"api.byteplus_key_set", yesNo(cfg.API.BytePlusAPIKey != "")},
				{"notifications.ntfy_topic", cfg.Notifications.NtfyTopic},
				{"logging.level", cfg.Logging.Level},
				{"logging.format", cfg.Logging.Format},
			}
			renderTable(cmd.OutOrStdout(), table.Row{"Setting", "Value"}, rows)
			return nil
		},
	}
}
