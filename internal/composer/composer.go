package composer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"mindmovie/internal/logging"
	"mindmovie/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Settings controls how clips are assembled.
type Settings struct {
	FFmpegBinary     string
	SceneSeconds     int
	CrossfadeSeconds float64
	FPS              int
	MusicVolume      float64
	TitleSeconds     int
	ClosingSeconds   int
	Resolution       string
	AspectRatio      string
}

// Request describes one composition job.
type Request struct {
	Title     string
	ClipPaths []string
	// Captions holds the affirmation text drawn over each clip, aligned with
	// ClipPaths. Empty entries draw nothing.
	Captions   []string
	MusicPath  string
	OutputPath string
}

// Composer stitches scene clips into the final movie with ffmpeg: crossfaded
// video, optional title and closing cards, optional background music.
type Composer struct {
	settings Settings
	exec     Executor
	logger   *slog.Logger
}

// Option customizes the composer.
type Option func(*Composer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(c *Composer) {
		if executor != nil {
			c.exec = executor
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a composer with the supplied settings.
func New(settings Settings, opts ...Option) *Composer {
	if settings.FFmpegBinary == "" {
		settings.FFmpegBinary = "ffmpeg"
	}
	if settings.SceneSeconds <= 0 {
		settings.SceneSeconds = 8
	}
	if settings.FPS <= 0 {
		settings.FPS = 24
	}
	if settings.CrossfadeSeconds < 0 {
		settings.CrossfadeSeconds = 0
	}
	if settings.MusicVolume <= 0 || settings.MusicVolume > 1 {
		settings.MusicVolume = 0.3
	}
	composer := &Composer{
		settings: settings,
		exec:     commandExecutor{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(composer)
	}
	return composer
}

// Compose runs ffmpeg over the request. The output is written to a temporary
// name and renamed into place only on success.
func (c *Composer) Compose(ctx context.Context, req Request) error {
	if len(req.ClipPaths) == 0 {
		return services.Wrap(services.ErrValidation, "composition", "compose", "no clips to compose", nil)
	}
	for _, clip := range req.ClipPaths {
		if _, err := os.Stat(clip); err != nil {
			return services.Wrap(services.ErrValidation, "composition", "compose",
				fmt.Sprintf("clip missing: %s", clip), err)
		}
	}
	if req.MusicPath != "" {
		if _, err := os.Stat(req.MusicPath); err != nil {
			return services.Wrap(services.ErrValidation, "composition", "compose",
				fmt.Sprintf("music track missing: %s", req.MusicPath), err)
		}
	}
	if req.OutputPath == "" {
		return services.Wrap(services.ErrValidation, "composition", "compose", "output path required", nil)
	}
	if len(req.Captions) > 0 && len(req.Captions) != len(req.ClipPaths) {
		return services.Wrap(services.ErrValidation, "composition", "compose",
			fmt.Sprintf("%d captions for %d clips", len(req.Captions), len(req.ClipPaths)), nil)
	}

	tempOutput := req.OutputPath + ".part.mp4"
	args := BuildArgs(c.settings, req, tempOutput)

	c.logger.Info("composing movie",
		logging.String(logging.FieldEventType, "compose_start"),
		logging.Int("clips", len(req.ClipPaths)),
		logging.Bool("music", req.MusicPath != ""))

	output, err := c.exec.Run(ctx, c.settings.FFmpegBinary, args)
	if err != nil {
		os.Remove(tempOutput)
		snippet := lastLines(string(output), 10)
		return services.Wrap(services.ErrExternalTool, "composition", "ffmpeg",
			fmt.Sprintf("exit: %v: %s", err, snippet), nil)
	}
	if err := os.Rename(tempOutput, req.OutputPath); err != nil {
		return fmt.Errorf("composition: move output into place: %w", err)
	}
	c.logger.Info("movie composed",
		logging.String(logging.FieldEventType, "compose_done"),
		logging.String("output", req.OutputPath))
	return nil
}

// BuildArgs assembles the full ffmpeg argument list for a request. Exposed so
// tests can verify the filter graph without running ffmpeg.
func BuildArgs(settings Settings, req Request, outputPath string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	cardCount := 0
	if settings.TitleSeconds > 0 {
		cardCount++
	}
	if settings.ClosingSeconds > 0 {
		cardCount++
	}

	for _, clip := range req.ClipPaths {
		args = append(args, "-i", clip)
	}
	musicInput := -1
	if req.MusicPath != "" {
		musicInput = len(req.ClipPaths)
		args = append(args, "-stream_loop", "-1", "-i", req.MusicPath)
	}

	filter, lastVideo := buildVideoGraph(settings, req, cardCount)
	audioLabel := ""
	if musicInput >= 0 {
		totalSeconds := movieSeconds(settings, len(req.ClipPaths))
		filter += fmt.Sprintf(";[%d:a]volume=%.2f,atrim=duration=%.2f,afade=t=out:st=%.2f:d=2[aout]",
			musicInput, settings.MusicVolume, totalSeconds, totalSeconds-2)
		audioLabel = "[aout]"
	}

	args = append(args, "-filter_complex", filter, "-map", lastVideo)
	if audioLabel != "" {
		args = append(args, "-map", audioLabel, "-c:a", "aac", "-shortest")
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", settings.FPS),
		"-movflags", "+faststart",
		outputPath,
	)
	return args
}

// buildVideoGraph chains clips (and title/closing cards) with xfade. Returns
// the filter graph and the label of the final video stream.
func buildVideoGraph(settings Settings, req Request, cardCount int) (string, string) {
	var parts []string
	var labels []string
	durations := make(map[string]float64)

	width, height := frameSize(settings.Resolution, settings.AspectRatio)

	if settings.TitleSeconds > 0 {
		label := "[title]"
		parts = append(parts, fmt.Sprintf(
			"color=c=black:s=%dx%d:d=%d:r=%d,drawtext=text='%s':fontcolor=white:fontsize=64:x=(w-text_w)/2:y=(h-text_h)/2%s",
			width, height, settings.TitleSeconds, settings.FPS, escapeDrawtext(req.Title), label))
		labels = append(labels, label)
		durations[label] = float64(settings.TitleSeconds)
	}
	for i := range req.ClipPaths {
		label := fmt.Sprintf("[v%d]", i)
		chain := fmt.Sprintf("[%d:v]scale=%d:%d,setsar=1,fps=%d", i, width, height, settings.FPS)
		if i < len(req.Captions) && req.Captions[i] != "" {
			chain += fmt.Sprintf(",drawtext=text='%s':fontcolor=white:fontsize=40:borderw=2:bordercolor=black:x=(w-text_w)/2:y=h-text_h-80",
				escapeDrawtext(req.Captions[i]))
		}
		parts = append(parts, chain+label)
		labels = append(labels, label)
		durations[label] = float64(settings.SceneSeconds)
	}
	if settings.ClosingSeconds > 0 {
		label := "[closing]"
		parts = append(parts, fmt.Sprintf(
			"color=c=black:s=%dx%d:d=%d:r=%d,drawtext=text='%s':fontcolor=white:fontsize=48:x=(w-text_w)/2:y=(h-text_h)/2%s",
			width, height, settings.ClosingSeconds, settings.FPS, escapeDrawtext("Believe it. Live it."), label))
		labels = append(labels, label)
		durations[label] = float64(settings.ClosingSeconds)
	}

	if len(labels) == 1 {
		return strings.Join(parts, ";"), labels[0]
	}

	// Chain xfades: each transition starts crossfade seconds before the end
	// of the accumulated stream.
	crossfade := settings.CrossfadeSeconds
	current := labels[0]
	elapsed := durations[current]
	for i := 1; i < len(labels); i++ {
		next := labels[i]
		out := fmt.Sprintf("[x%d]", i)
		offset := elapsed - crossfade
		if offset < 0 {
			offset = 0
		}
		parts = append(parts, fmt.Sprintf("%s%sxfade=transition=fade:duration=%.2f:offset=%.2f%s",
			current, next, crossfade, offset, out))
		elapsed = offset + durations[next]
		current = out
	}
	return strings.Join(parts, ";"), current
}

func movieSeconds(settings Settings, clipCount int) float64 {
	total := float64(settings.TitleSeconds + settings.ClosingSeconds + clipCount*settings.SceneSeconds)
	segments := clipCount
	if settings.TitleSeconds > 0 {
		segments++
	}
	if settings.ClosingSeconds > 0 {
		segments++
	}
	if segments > 1 {
		total -= float64(segments-1) * settings.CrossfadeSeconds
	}
	return total
}

func frameSize(resolution, aspectRatio string) (int, int) {
	var width, height int
	switch resolution {
	case "480p":
		width, height = 854, 480
	case "1080p":
		width, height = 1920, 1080
	case "4K":
		width, height = 3840, 2160
	default:
		width, height = 1280, 720
	}
	if aspectRatio == "9:16" {
		width, height = height, width
	}
	return width, height
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "'", `\'`, ":", `\:`, "%", `\%`)
	return replacer.Replace(text)
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
