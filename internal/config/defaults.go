package config

const (
	defaultBuildDir   = "~/.local/share/mindmovie/build"
	defaultLogDir     = "~/.local/share/mindmovie/logs"
	defaultOutputPath = "mind_movie.mp4"

	defaultAnthropicBaseURL = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel   = "claude-sonnet-4-20250514"

	defaultVideoProvider         = "veo"
	defaultVideoModel            = "veo-3.1-fast-generate-preview"
	defaultSeedanceModel         = "seedance-1-5-pro-251215"
	defaultResolution            = "1080p"
	defaultAspectRatio           = "16:9"
	defaultMaxConcurrent         = 5
	defaultMaxRetries            = 3
	defaultRetryBaseSeconds      = 4
	defaultRetryMaxSeconds       = 60
	defaultPollIntervalSeconds   = 10
	defaultRequestTimeoutSeconds = 600
	defaultSubmitsPerMinute      = 10

	defaultSceneDuration     = 8
	defaultNumScenes         = 12
	defaultTitleDuration     = 5
	defaultClosingDuration   = 5
	defaultCrossfadeDuration = 0.5
	defaultFPS               = 24

	defaultMusicVolume = 0.20

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BuildDir:   defaultBuildDir,
			LogDir:     defaultLogDir,
			OutputPath: defaultOutputPath,
		},
		API: API{
			AnthropicBaseURL: defaultAnthropicBaseURL,
			AnthropicModel:   defaultAnthropicModel,
		},
		Video: Video{
			Provider:              defaultVideoProvider,
			Model:                 defaultVideoModel,
			Resolution:            defaultResolution,
			AspectRatio:           defaultAspectRatio,
			GenerateAudio:         true,
			MaxConcurrent:         defaultMaxConcurrent,
			MaxRetries:            defaultMaxRetries,
			RetryBaseSeconds:      defaultRetryBaseSeconds,
			RetryMaxSeconds:       defaultRetryMaxSeconds,
			PollIntervalSeconds:   defaultPollIntervalSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			SubmitsPerMinute:      defaultSubmitsPerMinute,
		},
		Movie: Movie{
			SceneDuration:     defaultSceneDuration,
			NumScenes:         defaultNumScenes,
			TitleDuration:     defaultTitleDuration,
			ClosingDuration:   defaultClosingDuration,
			CrossfadeDuration: defaultCrossfadeDuration,
			FPS:               defaultFPS,
		},
		Music: Music{
			Volume: defaultMusicVolume,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
	}
}
