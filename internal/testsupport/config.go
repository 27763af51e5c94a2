package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mindmovie/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.API.AnthropicAPIKey = "test"
	cfgVal.API.GeminiAPIKey = "test"
	cfgVal.Paths.BuildDir = filepath.Join(base, "build")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.OutputPath = filepath.Join(base, "mind_movie.mp4")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProvider sets the video provider on the test config.
func WithProvider(provider string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Video.Provider = provider
	}
}

// WithMusic writes a placeholder music track and points the config at it.
func WithMusic() ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "music.mp3")
		if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
			b.t.Fatalf("write music stub: %v", err)
		}
		b.cfg.Music.FilePath = path
	}
}

// WithBytePlusKey sets a placeholder BytePlus credential, as the seedance
// provider refuses to construct without one.
func WithBytePlusKey() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BytePlusAPIKey = "test"
	}
}
