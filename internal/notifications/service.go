package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mindmovie/internal/config"
)

const userAgent = "Mindmovie-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRunStarted(ctx context.Context, title string, sceneCount int) error
	NotifyAssetsCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	NotifyMovieReady(ctx context.Context, title, outputPath string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, title string, sceneCount int) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Mindmovie - Generation Started",
		message: fmt.Sprintf("Generating %d scenes for: %s", sceneCount, title),
		tags:    []string{"mindmovie", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAssetsCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Mindmovie - Clips Ready"
		message = fmt.Sprintf("All %d clips generated in %s", succeeded, duration)
	} else {
		title = "Mindmovie - Clips Ready (with errors)"
		message = fmt.Sprintf("%d clips generated, %d failed in %s", succeeded, failed, duration)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"mindmovie", "assets", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMovieReady(ctx context.Context, title, outputPath string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Your mind movie is ready: %s", title)
	if outputPath = strings.TrimSpace(outputPath); outputPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputPath)
	}
	data := payload{
		title:    "Mindmovie - Complete",
		message:  message,
		tags:     []string{"mindmovie", "movie", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Mindmovie - Error",
		message:  builder.String(),
		tags:     []string{"mindmovie", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Mindmovie - Test",
		message:  "Notification system test",
		tags:     []string{"mindmovie", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, int) error                  { return nil }
func (noopService) NotifyAssetsCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyMovieReady(context.Context, string, string) error               { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
