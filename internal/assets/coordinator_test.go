package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mindmovie/internal/services"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    map[int]int
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     func(index, attempt int) error
	block    chan struct{}
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{calls: make(map[int]int)}
}

func (g *fakeGenerator) Name() string     { return "fake" }
func (g *fakeGenerator) ClipSeconds() int { return 8 }

func (g *fakeGenerator) GenerateClip(ctx context.Context, prompt, outputPath string) error {
	current := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	defer g.inFlight.Add(-1)

	index, attempt := g.record(prompt)
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if g.fail != nil {
		return g.fail(index, attempt)
	}
	return nil
}

// record derives the item index from the prompt ("scene <n>") and bumps its
// call count.
func (g *fakeGenerator) record(prompt string) (int, int) {
	var index int
	fmt.Sscanf(prompt, "scene %d", &index)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[index]++
	return index, g.calls[index]
}

func (g *fakeGenerator) callCount(index int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[index]
}

type fakeCheckpointer struct {
	mu         sync.Mutex
	inProgress map[int]int
	done       map[int]string
	failed     map[int]string
}

func newFakeCheckpointer() *fakeCheckpointer {
	return &fakeCheckpointer{
		inProgress: make(map[int]int),
		done:       make(map[int]string),
		failed:     make(map[int]string),
	}
}

func (c *fakeCheckpointer) MarkAssetInProgress(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inProgress[index]++
	return nil
}

func (c *fakeCheckpointer) MarkAssetDone(index int, artifactPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done[index] = artifactPath
	delete(c.failed, index)
	return nil
}

func (c *fakeCheckpointer) MarkAssetFailed(index int, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[index] = cause.Error()
	return nil
}

func makeItems(count int) []Item {
	items := make([]Item, count)
	for i := range items {
		items[i] = Item{
			Index:      i,
			Prompt:     fmt.Sprintf("scene %d", i),
			OutputPath: fmt.Sprintf("scene_%02d.mp4", i),
		}
	}
	return items
}

func instantSleeper(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newCoordinator(t *testing.T, gen Generator, cp Checkpointer, opts Options) *Coordinator {
	t.Helper()
	if opts.Sleeper == nil {
		opts.Sleeper = instantSleeper
	}
	coord, err := NewCoordinator(gen, cp, opts)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return coord
}

func TestRunAllSucceed(t *testing.T) {
	gen := newFakeGenerator()
	cp := newFakeCheckpointer()
	coord := newCoordinator(t, gen, cp, Options{MaxConcurrent: 4})

	summary, err := coord.Run(context.Background(), makeItems(12))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Succeeded != 12 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.AllDone() {
		t.Fatal("summary should report all done")
	}
	if len(cp.done) != 12 {
		t.Fatalf("checkpointed done = %d", len(cp.done))
	}
}

func TestRunSkipsDoneItems(t *testing.T) {
	gen := newFakeGenerator()
	cp := newFakeCheckpointer()
	coord := newCoordinator(t, gen, cp, Options{MaxConcurrent: 4})

	items := makeItems(12)
	for i := 0; i < 5; i++ {
		items[i].Done = true
	}
	summary, err := coord.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Skipped != 5 || summary.Succeeded != 7 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for i := 0; i < 5; i++ {
		if gen.callCount(i) != 0 {
			t.Fatalf("done item %d was submitted to the provider", i)
		}
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = make(chan struct{})
	cp := newFakeCheckpointer()
	coord := newCoordinator(t, gen, cp, Options{MaxConcurrent: 3})

	done := make(chan Summary)
	go func() {
		summary, _ := coord.Run(context.Background(), makeItems(12))
		done <- summary
	}()

	// Let workers pile up against the semaphore, then release them.
	time.Sleep(50 * time.Millisecond)
	close(gen.block)
	summary := <-done

	if summary.Succeeded != 12 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if peak := gen.peak.Load(); peak > 3 {
		t.Fatalf("observed %d concurrent generations, limit is 3", peak)
	}
}

func TestRunTransientFailureRetriesThenSucceeds(t *testing.T) {
	gen := newFakeGenerator()
	// Item 4 burns every retry and only succeeds on the final allowed attempt.
	gen.fail = func(index, attempt int) error {
		if index == 4 && attempt <= 3 {
			return services.Wrap(services.ErrTransient, "", "fake", "flaky", nil)
		}
		return nil
	}
	cp := newFakeCheckpointer()
	coord := newCoordinator(t, gen, cp, Options{MaxConcurrent: 2, MaxRetries: 3})

	summary, err := coord.Run(context.Background(), makeItems(6))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Succeeded != 6 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got := gen.callCount(4); got != 4 {
		t.Fatalf("item 4 called %d times, want 4", got)
	}
	if _, ok := cp.done[4]; !ok {
		t.Fatal("item 4 not checkpointed DONE")
	}
	if _, ok := cp.failed[4]; ok {
		t.Fatal("item 4 left marked FAILED")
	}
}

func TestRunTransientFailureExhaustsRetries(t *testing.T) {
	gen := newFakeGenerator()
	gen.fail = func(index, attempt int) error {
		if index == 2 {
			return services.Wrap(services.ErrTransient, "", "fake", "always down", nil)
		}
		return nil
	}
	cp := newFakeCheckpointer()
	coord := newCoordinator(t, gen, cp, Options{MaxConcurrent: 2, MaxRetries: 3})

	summary, err := coord.Run(context.Background(), makeItems(5))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// MaxRetries retries plus the first attempt.
	if got := gen.callCount(2); got != 4 {
		t.Fatalf("item 2 called %d times, want 4", got)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Index != 2 {
		t.Fatalf("unexpected failures: %+v", summary.Failures)
	}
	if cp.failed[2] == "" {
		t.Fatal("failure was not checkpointed")
	}
}

func TestRunPermanentFailureSingleAttempt(t *testing.T) {
	gen := newFakeGenerator()
	gen.fail = func(index, attempt int) error {
		if index == 3 || index == 7 {
			return services.Wrap(services.ErrValidation, "", "fake", "prompt rejected", nil)
		}
		return nil
	}
	cp := newFakeCheckpointer()
	coord := newCoordinator(t, gen, cp, Options{MaxConcurrent: 4, MaxRetries: 3})

	summary, err := coord.Run(context.Background(), makeItems(12))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 2 || summary.Succeeded != 10 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, index := range []int{3, 7} {
		if got := gen.callCount(index); got != 1 {
			t.Fatalf("permanent failure %d called %d times, want 1", index, got)
		}
	}
	if summary.Failures[0].Index != 3 || summary.Failures[1].Index != 7 {
		t.Fatalf("failures not sorted by index: %+v", summary.Failures)
	}
}

func TestRunCancellationStopsNewSubmissions(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = make(chan struct{})
	cp := newFakeCheckpointer()
	coord := newCoordinator(t, gen, cp, Options{MaxConcurrent: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var summary Summary
	var runErr error
	go func() {
		summary, runErr = coord.Run(ctx, makeItems(20))
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	close(gen.block)
	<-done

	if !errors.Is(runErr, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", runErr)
	}
	if summary.Succeeded+summary.Failed >= 20 {
		t.Fatalf("cancellation did not stop submissions: %+v", summary)
	}
}

func TestRunEmptyItems(t *testing.T) {
	coord := newCoordinator(t, newFakeGenerator(), newFakeCheckpointer(), Options{MaxConcurrent: 2})
	summary, err := coord.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 0 || !summary.AllDone() {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunProgressCallback(t *testing.T) {
	gen := newFakeGenerator()
	cp := newFakeCheckpointer()
	var mu sync.Mutex
	var last int
	coord := newCoordinator(t, gen, cp, Options{
		MaxConcurrent: 3,
		OnProgress: func(settled, total int) {
			mu.Lock()
			defer mu.Unlock()
			if settled > last {
				last = settled
			}
			if total != 8 {
				t.Errorf("total = %d, want 8", total)
			}
		},
	})
	if _, err := coord.Run(context.Background(), makeItems(8)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if last != 8 {
		t.Fatalf("final progress = %d, want 8", last)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	base := 4 * time.Second
	max := 60 * time.Second
	want := []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second}
	for attempt := 1; attempt <= len(want); attempt++ {
		if got := backoffDelay(base, max, attempt); got != want[attempt-1] {
			t.Fatalf("attempt %d delay = %s, want %s", attempt, got, want[attempt-1])
		}
	}
}
