package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeVideo()
	c.normalizeLogging()
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BuildDir) == "" {
		c.Paths.BuildDir = defaultBuildDir
	}
	if c.Paths.BuildDir, err = expandPath(c.Paths.BuildDir); err != nil {
		return fmt.Errorf("paths.build_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputPath) == "" {
		c.Paths.OutputPath = defaultOutputPath
	}
	if strings.TrimSpace(c.Music.FilePath) != "" {
		if c.Music.FilePath, err = expandPath(c.Music.FilePath); err != nil {
			return fmt.Errorf("music.file_path: %w", err)
		}
	}
	return nil
}

// API keys may come from the environment instead of the config file, matching
// the ANTHROPIC_API_KEY / GEMINI_API_KEY / BYTEPLUS_API_KEY conventions.
func (c *Config) normalizeAPI() {
	if strings.TrimSpace(c.API.AnthropicAPIKey) == "" {
		c.API.AnthropicAPIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if strings.TrimSpace(c.API.GeminiAPIKey) == "" {
		c.API.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if strings.TrimSpace(c.API.BytePlusAPIKey) == "" {
		c.API.BytePlusAPIKey = strings.TrimSpace(os.Getenv("BYTEPLUS_API_KEY"))
	}
	if model := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); model != "" {
		c.API.AnthropicModel = model
	}
	if strings.TrimSpace(c.API.AnthropicModel) == "" {
		c.API.AnthropicModel = defaultAnthropicModel
	}
	if strings.TrimSpace(c.API.AnthropicBaseURL) == "" {
		c.API.AnthropicBaseURL = defaultAnthropicBaseURL
	}
}

func (c *Config) normalizeVideo() {
	c.Video.Provider = strings.ToLower(strings.TrimSpace(c.Video.Provider))
	if c.Video.Provider == "" {
		c.Video.Provider = defaultVideoProvider
	}
	if strings.TrimSpace(c.Video.Model) == "" {
		switch c.Video.Provider {
		case "seedance":
			c.Video.Model = defaultSeedanceModel
		default:
			c.Video.Model = defaultVideoModel
		}
	}
	if c.Video.RetryBaseSeconds <= 0 {
		c.Video.RetryBaseSeconds = defaultRetryBaseSeconds
	}
	if c.Video.RetryMaxSeconds <= 0 {
		c.Video.RetryMaxSeconds = defaultRetryMaxSeconds
	}
	if c.Video.PollIntervalSeconds <= 0 {
		c.Video.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Video.RequestTimeoutSeconds <= 0 {
		c.Video.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.Video.SubmitsPerMinute <= 0 {
		c.Video.SubmitsPerMinute = defaultSubmitsPerMinute
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
