package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and output configuration.
type Paths struct {
	BuildDir   string `toml:"build_dir"`
	LogDir     string `toml:"log_dir"`
	OutputPath string `toml:"output_path"`
}

// API contains credentials and model selection for external providers.
type API struct {
	AnthropicAPIKey  string `toml:"anthropic_api_key"`
	AnthropicBaseURL string `toml:"anthropic_base_url"`
	AnthropicModel   string `toml:"anthropic_model"`
	GeminiAPIKey     string `toml:"gemini_api_key"`
	BytePlusAPIKey   string `toml:"byteplus_api_key"`
}

// Video contains video generation settings.
type Video struct {
	// Provider selects the text-to-video backend: "veo" or "seedance".
	Provider      string `toml:"provider"`
	Model         string `toml:"model"`
	Resolution    string `toml:"resolution"`
	AspectRatio   string `toml:"aspect_ratio"`
	GenerateAudio bool   `toml:"generate_audio"`
	// MaxConcurrent caps simultaneous provider calls during asset generation.
	MaxConcurrent int `toml:"max_concurrent"`
	// MaxRetries bounds retry attempts per scene for transient failures.
	MaxRetries            int  `toml:"max_retries"`
	RetryBaseSeconds      int  `toml:"retry_base_seconds"`
	RetryMaxSeconds       int  `toml:"retry_max_seconds"`
	PollIntervalSeconds   int  `toml:"poll_interval_seconds"`
	RequestTimeoutSeconds int  `toml:"request_timeout_seconds"`
	SubmitsPerMinute      int  `toml:"submits_per_minute"`
	// AllowPartial lets composition proceed when some scenes remain failed
	// after retries are exhausted. Failed scenes are omitted from the cut.
	AllowPartial bool `toml:"allow_partial"`
}

// Movie contains mind movie structure settings.
type Movie struct {
	SceneDuration     int     `toml:"scene_duration"`
	NumScenes         int     `toml:"num_scenes"`
	TitleDuration     int     `toml:"title_duration"`
	ClosingDuration   int     `toml:"closing_duration"`
	CrossfadeDuration float64 `toml:"crossfade_duration"`
	FPS               int     `toml:"fps"`
}

// Music contains background music settings.
type Music struct {
	FilePath string  `toml:"file_path"`
	Volume   float64 `toml:"volume"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for the mind movie pipeline.
//
// Configuration sections by subsystem:
//   - Paths: build directory, log directory, default output path
//   - API: Anthropic / Gemini / BytePlus credentials and model IDs
//   - Video: provider selection, concurrency and retry policy
//   - Movie: scene count, durations, crossfade, frame rate
//   - Music: background music file and mix volume
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Video         Video         `toml:"video"`
	Movie         Movie         `toml:"movie"`
	Music         Music         `toml:"music"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mindmovie/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. It returns the resolved
// path and whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mindmovie.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the build and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.BuildDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for composition.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, refusing to overwrite.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o600)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
