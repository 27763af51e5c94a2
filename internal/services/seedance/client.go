package seedance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mindmovie/internal/fileutil"
	"mindmovie/internal/services"
)

const (
	defaultBaseURL        = "https://ark.ap-southeast.bytepluses.com/api/v3"
	defaultClipSeconds    = 8
	defaultPollInterval   = 10 * time.Second
	defaultRequestTimeout = 10 * time.Minute
	defaultSubmitsPerMin  = 10
)

// Config captures the runtime settings for Seedance video generation.
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	Resolution       string
	AspectRatio      string
	ClipSeconds      int
	PollInterval     time.Duration
	RequestTimeout   time.Duration
	SubmitsPerMinute int
}

// Client drives the BytePlus content generation task API: create a task, poll
// its status, then download the produced clip.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	sleeper    func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a Seedance client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ClipSeconds <= 0 {
		cfg.ClipSeconds = defaultClipSeconds
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.SubmitsPerMinute <= 0 {
		cfg.SubmitsPerMinute = defaultSubmitsPerMin
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.SubmitsPerMinute)/60.0), 1),
		sleeper:    sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name identifies the provider in logs and cost tables.
func (c *Client) Name() string { return "seedance" }

// ClipSeconds returns the configured clip duration.
func (c *Client) ClipSeconds() int { return c.cfg.ClipSeconds }

type createTaskRequest struct {
	Model   string        `json:"model"`
	Content []taskContent `json:"content"`
}

type taskContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type taskResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content *struct {
		VideoURL string `json:"video_url"`
	} `json:"content"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateClip creates a generation task, polls it to completion, and
// downloads the clip to outputPath.
func (c *Client) GenerateClip(ctx context.Context, prompt, outputPath string) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "asset_generation", "seedance generate", "api key required", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return services.Wrap(services.ErrValidation, "asset_generation", "seedance generate", "prompt required", nil)
	}

	taskID, err := c.createTask(ctx, prompt)
	if err != nil {
		return err
	}
	videoURL, err := c.pollTask(ctx, taskID)
	if err != nil {
		return err
	}
	return c.download(ctx, videoURL, outputPath)
}

// createTask submits the prompt with generation parameters appended as text
// flags, which is how the task API receives resolution and duration.
func (c *Client) createTask(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	text := fmt.Sprintf("%s --resolution %s --ratio %s --duration %d",
		strings.TrimSpace(prompt), c.cfg.Resolution, c.cfg.AspectRatio, c.cfg.ClipSeconds)
	payload := createTaskRequest{
		Model:   c.cfg.Model,
		Content: []taskContent{{Type: "text", Text: text}},
	}
	var decoded taskResponse
	endpoint := c.cfg.BaseURL + "/contents/generations/tasks"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &decoded, "seedance submit"); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", services.Wrap(services.ErrTransient, "asset_generation", "seedance submit", "task id missing", nil)
	}
	return decoded.ID, nil
}

func (c *Client) pollTask(ctx context.Context, taskID string) (string, error) {
	deadline := time.Now().Add(c.cfg.RequestTimeout)
	endpoint := c.cfg.BaseURL + "/contents/generations/tasks/" + taskID
	for {
		var decoded taskResponse
		if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &decoded, "seedance poll"); err != nil {
			return "", err
		}
		switch decoded.Status {
		case "succeeded":
			if decoded.Content == nil || decoded.Content.VideoURL == "" {
				return "", services.Wrap(services.ErrTransient, "asset_generation", "seedance poll",
					fmt.Sprintf("task %s succeeded without video url", taskID), nil)
			}
			return decoded.Content.VideoURL, nil
		case "failed", "cancelled":
			message := decoded.Status
			if decoded.Error != nil {
				message = fmt.Sprintf("%s (%s): %s", decoded.Status, decoded.Error.Code, decoded.Error.Message)
			}
			return "", classifyTaskFailure(decoded.Error, message)
		case "queued", "running", "":
		default:
			return "", services.Wrap(services.ErrTransient, "asset_generation", "seedance poll",
				fmt.Sprintf("task %s has unknown status %q", taskID, decoded.Status), nil)
		}
		if time.Now().After(deadline) {
			return "", services.Wrap(services.ErrTimeout, "asset_generation", "seedance poll",
				fmt.Sprintf("task %s not done after %s", taskID, c.cfg.RequestTimeout), nil)
		}
		if err := c.sleeper(ctx, c.cfg.PollInterval); err != nil {
			return "", err
		}
	}
}

func (c *Client) download(ctx context.Context, videoURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return fmt.Errorf("seedance download: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "asset_generation", "seedance download", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, "seedance download", readSnippet(resp.Body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "asset_generation", "seedance download", "read body", err)
	}
	if err := fileutil.WriteFileAtomic(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("seedance download: write clip: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload, target any, op string) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = strings.NewReader(string(encoded))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrTransient, "asset_generation", op, "", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "asset_generation", op, "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, op, string(raw))
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func classifyTaskFailure(taskErr *struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}, message string) error {
	if taskErr != nil {
		code := strings.ToLower(taskErr.Code)
		switch {
		case strings.Contains(code, "sensitive"), strings.Contains(code, "invalid"):
			return services.Wrap(services.ErrValidation, "asset_generation", "seedance poll", message, nil)
		case strings.Contains(code, "quota"), strings.Contains(code, "rate"):
			return services.Wrap(services.ErrRateLimited, "asset_generation", "seedance poll", message, nil)
		}
	}
	return services.Wrap(services.ErrTransient, "asset_generation", "seedance poll", message, nil)
}

func classifyStatus(status int, op, body string) error {
	snippet := strings.TrimSpace(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	message := fmt.Sprintf("http %d: %s", status, snippet)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrAuth, "asset_generation", op, message, nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "asset_generation", op, message, nil)
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "asset_generation", op, message, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return services.Wrap(services.ErrValidation, "asset_generation", op, message, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "asset_generation", op, message, nil)
	default:
		return services.Wrap(services.ErrValidation, "asset_generation", op, message, nil)
	}
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(data)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
