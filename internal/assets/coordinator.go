package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mindmovie/internal/logging"
	"mindmovie/internal/services"
)

// Generator produces one video clip for a prompt and writes it to outputPath.
type Generator interface {
	Name() string
	ClipSeconds() int
	GenerateClip(ctx context.Context, prompt, outputPath string) error
}

// Checkpointer records per-item progress durably. Every transition is
// persisted before the coordinator moves on, so a crash resumes exactly where
// it left off.
type Checkpointer interface {
	MarkAssetInProgress(index int) error
	MarkAssetDone(index int, artifactPath string) error
	MarkAssetFailed(index int, cause error) error
}

// Item is one clip to generate. Done items are skipped without touching the
// provider, which makes resume idempotent.
type Item struct {
	Index      int
	Prompt     string
	OutputPath string
	Done       bool
}

// Failure records why one item gave up.
type Failure struct {
	Index    int
	Attempts int
	Err      error
}

// Summary reports the outcome of a coordinator run. Item failures live here
// rather than in the returned error so one bad prompt never aborts the batch.
type Summary struct {
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Failures  []Failure
}

// AllDone reports whether every item ended up with a clip.
func (s Summary) AllDone() bool {
	return s.Failed == 0 && s.Skipped+s.Succeeded == s.Total
}

// Options tunes coordinator behavior.
type Options struct {
	MaxConcurrent int
	// MaxRetries counts retries after the first attempt, so an item sees at
	// most MaxRetries+1 provider calls.
	MaxRetries int
	RetryBase  time.Duration
	RetryMax   time.Duration
	Logger     *slog.Logger
	// Sleeper performs backoff waits; tests inject an instant one.
	Sleeper func(context.Context, time.Duration) error
	// OnProgress is invoked after each item settles with the number of
	// settled items (skipped included) and the total.
	OnProgress func(settled, total int)
}

// Coordinator fans items out to a generator with bounded concurrency and
// per-item retry, checkpointing every transition.
type Coordinator struct {
	generator  Generator
	checkpoint Checkpointer
	opts       Options
}

// NewCoordinator wires a generator to a checkpointer.
func NewCoordinator(generator Generator, checkpoint Checkpointer, opts Options) (*Coordinator, error) {
	if generator == nil {
		return nil, fmt.Errorf("assets: generator required")
	}
	if checkpoint == nil {
		return nil, fmt.Errorf("assets: checkpointer required")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 4 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Sleeper == nil {
		opts.Sleeper = sleepContext
	}
	return &Coordinator{generator: generator, checkpoint: checkpoint, opts: opts}, nil
}

// Run generates every non-done item. It returns a summary of outcomes; the
// error is non-nil only for coordinator-level failures such as cancellation,
// never for individual item failures. After the context is cancelled no new
// items are submitted, but in-flight items are allowed to finish.
func (c *Coordinator) Run(ctx context.Context, items []Item) (Summary, error) {
	summary := Summary{Total: len(items)}
	if len(items) == 0 {
		return summary, nil
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		settled   int
		semaphore = make(chan struct{}, c.opts.MaxConcurrent)
	)

	settle := func(update func()) {
		mu.Lock()
		update()
		settled++
		count := settled
		mu.Unlock()
		if c.opts.OnProgress != nil {
			c.opts.OnProgress(count, summary.Total)
		}
	}

	// The semaphore is acquired here, before the worker is spawned, so that
	// cancellation stops new submissions while in-flight items finish.
submission:
	for _, item := range items {
		if item.Done {
			settle(func() { summary.Skipped++ })
			continue
		}
		select {
		case <-ctx.Done():
			break submission
		case semaphore <- struct{}{}:
		}
		wg.Add(1)
		go func(item Item) {
			defer wg.Done()
			defer func() { <-semaphore }()

			attempts, err := c.generateWithRetry(ctx, item)
			if err != nil {
				settle(func() {
					summary.Failed++
					summary.Failures = append(summary.Failures, Failure{Index: item.Index, Attempts: attempts, Err: err})
				})
				return
			}
			settle(func() { summary.Succeeded++ })
		}(item)
	}
	wg.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Index < summary.Failures[j].Index
	})
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Coordinator) generateWithRetry(ctx context.Context, item Item) (int, error) {
	logger := c.opts.Logger.With(
		logging.Int(logging.FieldSceneIndex, item.Index),
		logging.String(logging.FieldProvider, c.generator.Name()),
	)
	maxAttempts := c.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// A cancelled item stays IN_PROGRESS in the snapshot; the next run
		// picks it up again.
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		if err := c.checkpoint.MarkAssetInProgress(item.Index); err != nil {
			return attempt - 1, fmt.Errorf("checkpoint in-progress mark: %w", err)
		}

		err := c.generator.GenerateClip(ctx, item.Prompt, item.OutputPath)
		if err == nil {
			if markErr := c.checkpoint.MarkAssetDone(item.Index, item.OutputPath); markErr != nil {
				return attempt, fmt.Errorf("checkpoint done mark: %w", markErr)
			}
			logger.Info("clip generated",
				logging.String(logging.FieldEventType, "asset_done"),
				logging.Int("attempt", attempt))
			return attempt, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return attempt, err
		}
		if !services.IsRetryable(err) || attempt == maxAttempts {
			if markErr := c.checkpoint.MarkAssetFailed(item.Index, err); markErr != nil {
				logger.Error("checkpoint failed mark", logging.Error(markErr))
			}
			logger.Warn("clip generation failed",
				logging.String(logging.FieldEventType, "asset_failed"),
				logging.Int("attempt", attempt),
				logging.Error(err))
			return attempt, err
		}

		delay := backoffDelay(c.opts.RetryBase, c.opts.RetryMax, attempt)
		logger.Warn("clip generation retrying",
			logging.String(logging.FieldEventType, "asset_retry"),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err))
		if sleepErr := c.opts.Sleeper(ctx, delay); sleepErr != nil {
			return attempt, sleepErr
		}
	}
	return maxAttempts, lastErr
}

// backoffDelay doubles the base per attempt, capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > max/2 {
			return max
		}
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
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
