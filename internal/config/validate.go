package config

import (
	"errors"
	"fmt"
)

var validResolutions = map[string]struct{}{
	"480p":  {},
	"720p":  {},
	"1080p": {},
	"4K":    {},
}

var validAspectRatios = map[string]struct{}{
	"16:9": {},
	"9:16": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateMovie(); err != nil {
		return err
	}
	if err := c.validateMusic(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateVideo() error {
	switch c.Video.Provider {
	case "veo", "seedance":
	default:
		return fmt.Errorf("video.provider must be %q or %q, got %q", "veo", "seedance", c.Video.Provider)
	}
	if _, ok := validResolutions[c.Video.Resolution]; !ok {
		return fmt.Errorf("video.resolution must be one of 480p, 720p, 1080p, 4K; got %q", c.Video.Resolution)
	}
	if _, ok := validAspectRatios[c.Video.AspectRatio]; !ok {
		return fmt.Errorf("video.aspect_ratio must be 16:9 or 9:16; got %q", c.Video.AspectRatio)
	}
	if c.Video.MaxConcurrent < 1 || c.Video.MaxConcurrent > 10 {
		return errors.New("video.max_concurrent must be between 1 and 10")
	}
	if c.Video.MaxRetries < 0 || c.Video.MaxRetries > 10 {
		return errors.New("video.max_retries must be between 0 and 10")
	}
	if c.Video.RetryMaxSeconds < c.Video.RetryBaseSeconds {
		return errors.New("video.retry_max_seconds must be at least video.retry_base_seconds")
	}
	return nil
}

func (c *Config) validateMovie() error {
	if c.Movie.SceneDuration < 5 || c.Movie.SceneDuration > 15 {
		return errors.New("movie.scene_duration must be between 5 and 15 seconds")
	}
	if c.Movie.NumScenes < 10 || c.Movie.NumScenes > 15 {
		return errors.New("movie.num_scenes must be between 10 and 15")
	}
	if c.Movie.TitleDuration < 3 || c.Movie.TitleDuration > 10 {
		return errors.New("movie.title_duration must be between 3 and 10 seconds")
	}
	if c.Movie.ClosingDuration < 3 || c.Movie.ClosingDuration > 10 {
		return errors.New("movie.closing_duration must be between 3 and 10 seconds")
	}
	if c.Movie.CrossfadeDuration < 0 || c.Movie.CrossfadeDuration > 2 {
		return errors.New("movie.crossfade_duration must be between 0 and 2 seconds")
	}
	if c.Movie.FPS < 24 || c.Movie.FPS > 60 {
		return errors.New("movie.fps must be between 24 and 60")
	}
	return nil
}

func (c *Config) validateMusic() error {
	if c.Music.Volume < 0 || c.Music.Volume > 1 {
		return errors.New("music.volume must be between 0.0 and 1.0")
	}
	return nil
}
