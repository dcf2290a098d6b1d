// File: internal/pipeline/coordinator.go

// Package pipeline fans lesson captures out across a bounded set of workers,
// giving each attempt a fresh tab and retrying failures with backoff.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/coursepack/internal/capture"
	"github.com/xkilldash9x/coursepack/internal/discovery"
	"github.com/xkilldash9x/coursepack/internal/session"
)

// Tab is what a capture attempt needs from the browser layer. *browser.Tab
// satisfies it.
type Tab interface {
	capture.Tab
	ApplyCookies(ctx context.Context, cookies []session.Cookie) error
	Close()
}

// TabProvider hands out fresh tabs; each attempt gets its own.
type TabProvider interface {
	NewTab(ctx context.Context) (Tab, error)
}

// Capturer renders one lesson through a tab. *capture.Capturer satisfies it.
type Capturer interface {
	Capture(ctx context.Context, tab capture.Tab, ref discovery.LessonRef, courseDir string) (*capture.Result, error)
}

// Artifact is the outcome of one lesson task, success or failure.
type Artifact struct {
	Index     int
	URL       string
	Title     string
	Dir       string
	TextBlock string
	PDFPath   string
	Attempts  int
	Err       error
}

// Coordinator runs all lesson tasks under a weighted semaphore.
type Coordinator struct {
	tabs     TabProvider
	capturer Capturer
	cookies  []session.Cookie
	retry    RetryPolicy
	workers  int
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewCoordinator wires a coordinator. cookies is the shared authenticated
// session applied read-only to every fresh tab. ratePerSecond of zero
// disables pacing.
func NewCoordinator(tabs TabProvider, capturer Capturer, cookies []session.Cookie,
	retry RetryPolicy, workers int, ratePerSecond float64, logger *zap.Logger) *Coordinator {

	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Coordinator{
		tabs:     tabs,
		capturer: capturer,
		cookies:  cookies,
		retry:    retry,
		workers:  workers,
		limiter:  limiter,
		logger:   logger.Named("pipeline"),
	}
}

// RunAll captures every lesson and returns one artifact per input ref, in
// the same order as refs regardless of completion order. One lesson's
// failure never aborts its siblings; cancellation stops new tasks from being
// issued.
func (c *Coordinator) RunAll(ctx context.Context, refs []discovery.LessonRef, courseDir string) []Artifact {
	c.logger.Info("Starting captures.",
		zap.Int("lessons", len(refs)),
		zap.Int("workers", c.workers))

	results := make([]Artifact, len(refs))
	sem := semaphore.NewWeighted(int64(c.workers))
	var wg sync.WaitGroup

	var done int
	var doneMu sync.Mutex

	for i, ref := range refs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled: everything not yet issued fails with the context
			// error, preserving its slot in the results.
			for j := i; j < len(refs); j++ {
				results[j] = Artifact{Index: refs[j].Index, URL: refs[j].URL, Err: err}
			}
			break
		}

		wg.Add(1)
		go func(slot int, ref discovery.LessonRef) {
			defer wg.Done()
			defer sem.Release(1)
			results[slot] = c.runTask(ctx, ref, courseDir)

			doneMu.Lock()
			done++
			n := done
			doneMu.Unlock()
			if n%5 == 0 || n == len(refs) {
				c.logger.Info("Progress.", zap.Int("done", n), zap.Int("total", len(refs)))
			}
		}(i, ref)
	}

	wg.Wait()
	return results
}

// runTask drives one lesson through the retry loop, opening a fresh tab with
// the session cookies re-applied on every attempt.
func (c *Coordinator) runTask(ctx context.Context, ref discovery.LessonRef, courseDir string) Artifact {
	log := c.logger.With(zap.Int("lesson", ref.Index), zap.String("url", ref.URL))
	art := Artifact{Index: ref.Index, URL: ref.URL}

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		art.Attempts = attempt
		if err := c.limiter.Wait(ctx); err != nil {
			art.Err = err
			return art
		}

		res, err := c.attempt(ctx, ref, courseDir, attempt == c.retry.MaxAttempts)
		if err == nil {
			art.Title = res.Title
			art.Dir = res.Dir
			art.TextBlock = res.TextBlock
			art.PDFPath = res.PDFPath
			art.Err = nil
			return art
		}
		art.Err = err

		if ctx.Err() != nil {
			art.Err = ctx.Err()
			return art
		}
		if attempt < c.retry.MaxAttempts {
			wait := c.retry.Backoff(attempt)
			log.Warn("Capture attempt failed; retrying.",
				zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
			if err := sleep(ctx, wait); err != nil {
				art.Err = err
				return art
			}
		}
	}

	log.Error("Lesson failed after all attempts.",
		zap.Int("attempts", art.Attempts), zap.Error(art.Err))
	return art
}

// attempt opens a fresh tab, applies the session, and captures once. On the
// last attempt a failure also leaves a debug screenshot next to the output.
func (c *Coordinator) attempt(ctx context.Context, ref discovery.LessonRef, courseDir string, last bool) (*capture.Result, error) {
	tab, err := c.tabs.NewTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	defer tab.Close()

	if err := tab.ApplyCookies(ctx, c.cookies); err != nil {
		return nil, err
	}

	res, err := c.capturer.Capture(ctx, tab, ref, courseDir)
	if err != nil && last {
		c.saveDebugScreenshot(ctx, tab, ref, courseDir)
	}
	return res, err
}

// saveDebugScreenshot is best-effort; the tab may be in any state.
func (c *Coordinator) saveDebugScreenshot(ctx context.Context, tab Tab, ref discovery.LessonRef, courseDir string) {
	shotCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	shot, err := tab.FullScreenshot(shotCtx)
	if err != nil {
		return
	}
	path := filepath.Join(courseDir, fmt.Sprintf("debug_%03d.png", ref.Index))
	if err := os.WriteFile(path, shot, 0o644); err == nil {
		c.logger.Debug("Debug screenshot saved.", zap.String("path", path))
	}
}
