// File: internal/browser/manager.go

// Package browser owns the Chrome process lifecycle and exposes per-task tabs
// with the small set of operations the rest of the pipeline needs.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager handles the browser process lifecycle and tab creation.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	wg sync.WaitGroup // tracks open tabs so shutdown does not race captures

	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager. The Chrome process itself is not
// launched until the first tab is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	m.logger.Info("Browser manager created (launch deferred).")
	return m
}

// initialize builds the exec allocator and launches the shared browser
// process exactly once.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser...",
			zap.Bool("headless", m.cfg.Browser.Headless))

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", m.cfg.Browser.Headless),
			chromedp.DisableGPU,
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			// Keeps navigator.webdriver from advertising automation; some
			// login pages change behavior when they detect it.
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(m.cfg.Browser.WindowWidth, m.cfg.Browser.WindowHeight),
		)
		if m.cfg.Browser.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(m.cfg.Browser.UserAgent))
		}
		for _, arg := range m.cfg.Browser.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx)

		// An empty run forces the browser process to start now, so launch
		// failures surface here instead of mid-pipeline.
		launchCtx, cancel := context.WithTimeout(m.browserCtx, 60*time.Second)
		defer cancel()
		if err := chromedp.Run(launchCtx); err != nil {
			m.initErr = fmt.Errorf("failed to launch browser: %w", err)
			m.browserCancel()
			m.allocCancel()
			return
		}
		m.logger.Info("Browser launched.")
	})
	if m.initErr != nil {
		return m.initErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// NewTab opens a fresh tab in the shared browser. The caller must Close it.
func (m *Manager) NewTab(ctx context.Context) (*Tab, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx)
	m.wg.Add(1)

	return &Tab{
		ctx:     tabCtx,
		cancel:  tabCancel,
		cfg:     m.cfg,
		logger:  m.logger.Named("tab"),
		onClose: m.wg.Done,
	}, nil
}

// Shutdown waits for open tabs to close (up to a grace period) and then tears
// down the browser process.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.browserCancel == nil {
		return
	}
	m.logger.Info("Shutting down browser...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Timed out waiting for tabs to close; forcing shutdown.")
	case <-ctx.Done():
	}

	m.browserCancel()
	m.allocCancel()
	m.logger.Info("Browser shut down.")
}
