package veo

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

// VeoClipSeconds is the duration of every clip Veo produces. The API does not
// accept a duration parameter; requests for other lengths are served 8 second
// clips regardless.
const VeoClipSeconds = 8

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultPollInterval   = 10 * time.Second
	defaultRequestTimeout = 10 * time.Minute
	defaultSubmitsPerMin  = 10
)

// Config captures the runtime settings for Veo video generation.
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	Resolution       string
	AspectRatio      string
	GenerateAudio    bool
	PollInterval     time.Duration
	RequestTimeout   time.Duration
	SubmitsPerMinute int
}

// Client drives the Veo long-running generation API: submit, poll until the
// operation completes, then download the clip.
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

// NewClient constructs a Veo client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
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
func (c *Client) Name() string { return "veo" }

// ClipSeconds returns the fixed clip duration Veo produces.
func (c *Client) ClipSeconds() int { return VeoClipSeconds }

type submitRequest struct {
	Instances  []submitInstance `json:"instances"`
	Parameters submitParameters `json:"parameters"`
}

type submitInstance struct {
	Prompt string `json:"prompt"`
}

type submitParameters struct {
	AspectRatio   string `json:"aspectRatio,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	GenerateAudio bool   `json:"generateAudio"`
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
			RAIMediaFilteredCount   int      `json:"raiMediaFilteredCount"`
			RAIMediaFilteredReasons []string `json:"raiMediaFilteredReasons"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

// GenerateClip submits a prompt, polls the resulting operation to completion,
// and downloads the clip to outputPath. The download is written through a
// temp file so outputPath only ever holds a complete clip.
func (c *Client) GenerateClip(ctx context.Context, prompt, outputPath string) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "asset_generation", "veo generate", "api key required", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return services.Wrap(services.ErrValidation, "asset_generation", "veo generate", "prompt required", nil)
	}

	operation, err := c.submit(ctx, prompt)
	if err != nil {
		return err
	}
	videoURI, err := c.pollUntilDone(ctx, operation)
	if err != nil {
		return err
	}
	return c.download(ctx, videoURI, outputPath)
}

func (c *Client) submit(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	payload := submitRequest{
		Instances: []submitInstance{{Prompt: prompt}},
		Parameters: submitParameters{
			AspectRatio:   c.cfg.AspectRatio,
			Resolution:    c.cfg.Resolution,
			GenerateAudio: c.cfg.GenerateAudio,
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", c.cfg.BaseURL, c.cfg.Model)
	var decoded operationResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &decoded, "veo submit"); err != nil {
		return "", err
	}
	if decoded.Name == "" {
		return "", services.Wrap(services.ErrTransient, "asset_generation", "veo submit", "operation name missing", nil)
	}
	return decoded.Name, nil
}

func (c *Client) pollUntilDone(ctx context.Context, operation string) (string, error) {
	deadline := time.Now().Add(c.cfg.RequestTimeout)
	endpoint := fmt.Sprintf("%s/%s", c.cfg.BaseURL, strings.TrimPrefix(operation, "/"))
	for {
		var decoded operationResponse
		if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &decoded, "veo poll"); err != nil {
			return "", err
		}
		if decoded.Done {
			if decoded.Error != nil {
				return "", classifyOperationError(decoded.Error.Code, decoded.Error.Message)
			}
			if decoded.Response == nil || len(decoded.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
				reasons := ""
				if decoded.Response != nil {
					reasons = strings.Join(decoded.Response.GenerateVideoResponse.RAIMediaFilteredReasons, "; ")
				}
				return "", services.Wrap(services.ErrValidation, "asset_generation", "veo poll",
					fmt.Sprintf("no video produced (filtered: %s)", reasons), nil)
			}
			return decoded.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI, nil
		}
		if time.Now().After(deadline) {
			return "", services.Wrap(services.ErrTimeout, "asset_generation", "veo poll",
				fmt.Sprintf("operation %s not done after %s", operation, c.cfg.RequestTimeout), nil)
		}
		if err := c.sleeper(ctx, c.cfg.PollInterval); err != nil {
			return "", err
		}
	}
}

func (c *Client) download(ctx context.Context, videoURI, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURI, nil)
	if err != nil {
		return fmt.Errorf("veo download: new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "asset_generation", "veo download", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, "veo download", readSnippet(resp.Body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "asset_generation", "veo download", "read body", err)
	}
	if err := fileutil.WriteFileAtomic(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("veo download: write clip: %w", err)
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
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
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

func classifyOperationError(code int, message string) error {
	detail := fmt.Sprintf("operation failed (code %d): %s", code, message)
	// gRPC-style codes: 3 invalid argument, 8 resource exhausted, 13/14
	// internal/unavailable.
	switch code {
	case 8:
		return services.Wrap(services.ErrRateLimited, "asset_generation", "veo poll", detail, nil)
	case 13, 14, 4:
		return services.Wrap(services.ErrTransient, "asset_generation", "veo poll", detail, nil)
	default:
		return services.Wrap(services.ErrValidation, "asset_generation", "veo poll", detail, nil)
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
