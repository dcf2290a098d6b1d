// File: internal/pipeline/coordinator_test.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/capture"
	"github.com/xkilldash9x/coursepack/internal/discovery"
	"github.com/xkilldash9x/coursepack/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTab records cookie application; capture behavior lives in the fake
// capturer.
type fakeTab struct {
	applied int32
	closed  int32
}

func (f *fakeTab) Navigate(context.Context, string) error                { return nil }
func (f *fakeTab) Title(context.Context) (string, error)                 { return "", nil }
func (f *fakeTab) HTML(context.Context) (string, error)                  { return "", nil }
func (f *fakeTab) Evaluate(context.Context, string, time.Duration) error { return nil }
func (f *fakeTab) PrintToPDF(context.Context, float64) ([]byte, error) {
	return []byte("%PDF"), nil
}
func (f *fakeTab) FullScreenshot(context.Context) ([]byte, error) {
	return nil, errors.New("no screenshot in tests")
}
func (f *fakeTab) ApplyCookies(_ context.Context, _ []session.Cookie) error {
	atomic.AddInt32(&f.applied, 1)
	return nil
}
func (f *fakeTab) Close() { atomic.AddInt32(&f.closed, 1) }

// fakeProvider hands out tabs and remembers them.
type fakeProvider struct {
	mu   sync.Mutex
	tabs []*fakeTab
}

func (p *fakeProvider) NewTab(context.Context) (Tab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := &fakeTab{}
	p.tabs = append(p.tabs, t)
	return t, nil
}

// fakeCapturer fails a lesson a scripted number of times before succeeding.
type fakeCapturer struct {
	mu        sync.Mutex
	failures  map[int]int // index -> failures before success
	attempts  map[int]int
	inFlight  int32
	maxActive int32
	delay     time.Duration
}

func newFakeCapturer(failures map[int]int) *fakeCapturer {
	if failures == nil {
		failures = map[int]int{}
	}
	return &fakeCapturer{failures: failures, attempts: map[int]int{}}
}

func (c *fakeCapturer) Capture(ctx context.Context, _ capture.Tab, ref discovery.LessonRef, _ string) (*capture.Result, error) {
	active := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&c.maxActive)
		if active <= cur || atomic.CompareAndSwapInt32(&c.maxActive, cur, active) {
			break
		}
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	c.attempts[ref.Index]++
	remaining := c.failures[ref.Index]
	if remaining > 0 {
		c.failures[ref.Index]--
	}
	c.mu.Unlock()

	if remaining > 0 {
		return nil, fmt.Errorf("scripted failure for lesson %d", ref.Index)
	}
	return &capture.Result{
		Index: ref.Index,
		URL:   ref.URL,
		Title: fmt.Sprintf("Lesson %d", ref.Index),
	}, nil
}

func refs(n int) []discovery.LessonRef {
	out := make([]discovery.LessonRef, n)
	for i := range out {
		out[i] = discovery.LessonRef{Index: i + 1, URL: fmt.Sprintf("https://www.example.io/courses/c/l%d", i+1)}
	}
	return out
}

func testCoordinator(p TabProvider, c Capturer, workers int) *Coordinator {
	return NewCoordinator(p, c,
		[]session.Cookie{{Name: "logged_in", Value: "1"}},
		RetryPolicy{MaxAttempts: 3, Unit: time.Millisecond},
		workers, 0, zap.NewNop())
}

func TestRunAllKeepsInputOrder(t *testing.T) {
	provider := &fakeProvider{}
	capturer := newFakeCapturer(nil)
	capturer.delay = time.Millisecond

	coord := testCoordinator(provider, capturer, 4)
	results := coord.RunAll(context.Background(), refs(9), t.TempDir())

	require.Len(t, results, 9)
	for i, art := range results {
		assert.NoError(t, art.Err)
		assert.Equal(t, i+1, art.Index, "results keyed by sequence index")
		assert.Equal(t, 1, art.Attempts)
	}
}

func TestRunAllRespectsWorkerBound(t *testing.T) {
	provider := &fakeProvider{}
	capturer := newFakeCapturer(nil)
	capturer.delay = 20 * time.Millisecond

	coord := testCoordinator(provider, capturer, 2)
	coord.RunAll(context.Background(), refs(8), t.TempDir())

	assert.LessOrEqual(t, capturer.maxActive, int32(2))
}

func TestRunAllRetriesThenSucceeds(t *testing.T) {
	provider := &fakeProvider{}
	capturer := newFakeCapturer(map[int]int{2: 2}) // lesson 2 fails twice

	coord := testCoordinator(provider, capturer, 3)
	results := coord.RunAll(context.Background(), refs(3), t.TempDir())

	assert.NoError(t, results[1].Err)
	assert.Equal(t, 3, results[1].Attempts)
	assert.Equal(t, 3, capturer.attempts[2])

	// Every attempt got a fresh tab with cookies applied and was closed.
	for _, tab := range provider.tabs {
		assert.Equal(t, int32(1), tab.applied)
		assert.Equal(t, int32(1), tab.closed)
	}
	assert.Len(t, provider.tabs, 5) // 1 + 3 + 1
}

func TestRunAllExhaustionDoesNotAbortSiblings(t *testing.T) {
	provider := &fakeProvider{}
	capturer := newFakeCapturer(map[int]int{1: 99}) // lesson 1 never succeeds

	coord := testCoordinator(provider, capturer, 2)
	results := coord.RunAll(context.Background(), refs(3), t.TempDir())

	assert.Error(t, results[0].Err)
	assert.Equal(t, 3, results[0].Attempts)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestRunAllCancellationStopsNewTasks(t *testing.T) {
	provider := &fakeProvider{}
	capturer := newFakeCapturer(nil)
	capturer.delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	coord := testCoordinator(provider, capturer, 1)
	results := coord.RunAll(ctx, refs(6), t.TempDir())

	require.Len(t, results, 6)
	var failed int
	for _, art := range results {
		if art.Err != nil {
			failed++
			assert.ErrorIs(t, art.Err, context.Canceled)
		}
	}
	assert.Greater(t, failed, 0, "cancellation should surface in unstarted tasks")
}
