package main

import (
	"fmt"
	"time"

	"mindmovie/internal/assets"
	"mindmovie/internal/composer"
	"mindmovie/internal/config"
	"mindmovie/internal/services/anthropic"
	"mindmovie/internal/services/seedance"
	"mindmovie/internal/services/veo"
)

func newAnthropicClient(cfg *config.Config) (*anthropic.Client, error) {
	if cfg.API.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("api.anthropic_api_key is not configured")
	}
	return anthropic.NewClient(anthropic.Config{
		APIKey:  cfg.API.AnthropicAPIKey,
		BaseURL: cfg.API.AnthropicBaseURL,
		Model:   cfg.API.AnthropicModel,
	}), nil
}

// newVideoGenerator selects the text-to-video backend from video.provider.
func newVideoGenerator(cfg *config.Config) (assets.Generator, error) {
	switch cfg.Video.Provider {
	case "veo":
		if cfg.API.GeminiAPIKey == "" {
			return nil, fmt.Errorf("api.gemini_api_key is required for the veo provider")
		}
		return veo.NewClient(veo.Config{
			APIKey:           cfg.API.GeminiAPIKey,
			Model:            cfg.Video.Model,
			Resolution:       cfg.Video.Resolution,
			AspectRatio:      cfg.Video.AspectRatio,
			GenerateAudio:    cfg.Video.GenerateAudio,
			PollInterval:     time.Duration(cfg.Video.PollIntervalSeconds) * time.Second,
			RequestTimeout:   time.Duration(cfg.Video.RequestTimeoutSeconds) * time.Second,
			SubmitsPerMinute: cfg.Video.SubmitsPerMinute,
		}), nil
	case "seedance":
		if cfg.API.BytePlusAPIKey == "" {
			return nil, fmt.Errorf("api.byteplus_api_key is required for the seedance provider")
		}
		return seedance.NewClient(seedance.Config{
			APIKey:           cfg.API.BytePlusAPIKey,
			Model:            cfg.Video.Model,
			Resolution:       cfg.Video.Resolution,
			AspectRatio:      cfg.Video.AspectRatio,
			ClipSeconds:      cfg.Movie.SceneDuration,
			PollInterval:     time.Duration(cfg.Video.PollIntervalSeconds) * time.Second,
			RequestTimeout:   time.Duration(cfg.Video.RequestTimeoutSeconds) * time.Second,
			SubmitsPerMinute: cfg.Video.SubmitsPerMinute,
		}), nil
	default:
		return nil, fmt.Errorf("unknown video provider %q (expected veo or seedance)", cfg.Video.Provider)
	}
}

func newComposer(cfg *config.Config, opts ...composer.Option) *composer.Composer {
	return composer.New(composer.Settings{
		FFmpegBinary:     cfg.FFmpegBinary(),
		SceneSeconds:     cfg.Movie.SceneDuration,
		CrossfadeSeconds: cfg.Movie.CrossfadeDuration,
		FPS:              cfg.Movie.FPS,
		MusicVolume:      cfg.Music.Volume,
		TitleSeconds:     cfg.Movie.TitleDuration,
		ClosingSeconds:   cfg.Movie.ClosingDuration,
		Resolution:       cfg.Video.Resolution,
		AspectRatio:      cfg.Video.AspectRatio,
	}, opts...)
}
