// File: internal/auth/auth.go

// Package auth establishes an authenticated browser session: restoring a
// persisted one when possible, otherwise driving a credential or manual
// login flow and persisting the resulting cookies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/config"
	"github.com/xkilldash9x/coursepack/internal/session"
)

// Sentinel errors for the distinct authentication failure modes. All of them
// are fatal to a run.
var (
	ErrNoCredentials       = errors.New("no credentials provided and manual login not requested")
	ErrSelectorNotFound    = errors.New("login form element not found")
	ErrLoginTimeout        = errors.New("timed out waiting for login to complete")
	ErrLivenessCheckFailed = errors.New("session liveness check failed")
)

// Page is the subset of browser tab operations the authenticator drives.
// *browser.Tab satisfies it; tests provide fakes.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	CookieValue(ctx context.Context, name string) (string, bool, error)
	HarvestCookies(ctx context.Context) ([]session.Cookie, error)
	ApplyCookies(ctx context.Context, cookies []session.Cookie) error
	ClickFirst(ctx context.Context, selectors []string) (string, error)
	FillFirst(ctx context.Context, selectors []string, value string) (string, error)
}

// Authenticator owns the login state machine.
type Authenticator struct {
	cfg    config.AuthConfig
	store  *session.Store
	logger *zap.Logger
}

// New creates an Authenticator backed by the given session store.
func New(cfg config.AuthConfig, store *session.Store, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		cfg:    cfg,
		store:  store,
		logger: logger.Named("auth"),
	}
}

// Authenticate brings the page into an authenticated state. It tries the
// persisted session first; if that is absent or stale it runs the configured
// login strategy and persists the fresh cookie set on success.
func (a *Authenticator) Authenticate(ctx context.Context, page Page) error {
	if a.tryRestoredSession(ctx, page) {
		return nil
	}

	switch {
	case a.cfg.Manual:
		if err := a.manualLogin(ctx, page); err != nil {
			return err
		}
	case a.cfg.Email != "" && a.cfg.Password != "":
		if err := a.credentialLogin(ctx, page); err != nil {
			return err
		}
	default:
		return ErrNoCredentials
	}

	return a.persist(ctx, page)
}

// tryRestoredSession applies persisted cookies and probes an
// authenticated-only page. Any failure here just means a real login is
// needed.
func (a *Authenticator) tryRestoredSession(ctx context.Context, page Page) bool {
	sess := a.store.Load()
	if sess.Empty() {
		return false
	}
	a.logger.Info("Found persisted session; probing it.",
		zap.Int("cookies", len(sess.Cookies)))

	if err := page.ApplyCookies(ctx, sess.Cookies); err != nil {
		a.logger.Warn("Failed to apply persisted cookies.", zap.Error(err))
		return false
	}
	if err := page.Navigate(ctx, a.cfg.ProbeURL); err != nil {
		a.logger.Warn("Probe navigation failed.", zap.Error(err))
		return false
	}

	live, err := a.isLive(ctx, page)
	if err != nil {
		a.logger.Warn("Liveness probe errored; treating session as stale.", zap.Error(err))
		return false
	}
	if !live {
		a.logger.Info("Persisted session is stale; logging in fresh.")
		return false
	}

	a.logger.Info("Restored session is live; skipping login.")
	return true
}

// credentialLogin auto-fills the login form and waits out the OTP window for
// the user to complete any second factor.
func (a *Authenticator) credentialLogin(ctx context.Context, page Page) error {
	a.logger.Info("Starting credential login.", zap.String("url", a.cfg.LoginURL))
	if err := page.Navigate(ctx, a.cfg.LoginURL); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	if _, err := page.FillFirst(ctx, emailSelectors, a.cfg.Email); err != nil {
		return fmt.Errorf("email field: %w", asSelectorErr(err))
	}
	if _, err := page.FillFirst(ctx, passwordSelectors, a.cfg.Password); err != nil {
		return fmt.Errorf("password field: %w", asSelectorErr(err))
	}
	if _, err := page.ClickFirst(ctx, submitSelectors); err != nil {
		return fmt.Errorf("submit button: %w", asSelectorErr(err))
	}

	a.logger.Info("Login submitted. Complete any OTP/verification in the browser.",
		zap.Duration("window", a.cfg.OTPWait))
	return a.waitForLiveness(ctx, page, a.cfg.OTPWait)
}

// manualLogin opens the site and waits for the user to log in by whatever
// method they prefer.
func (a *Authenticator) manualLogin(ctx context.Context, page Page) error {
	a.logger.Info("Manual login: complete the login in the browser window.",
		zap.String("url", a.cfg.ProbeURL),
		zap.Duration("window", a.cfg.ManualWait))
	if err := page.Navigate(ctx, a.cfg.ProbeURL); err != nil {
		return fmt.Errorf("opening site for manual login: %w", err)
	}
	return a.waitForLiveness(ctx, page, a.cfg.ManualWait)
}

// waitForLiveness polls the liveness check until it passes or the window
// elapses. Transient probe errors are tolerated; the user may be mid-redirect.
func (a *Authenticator) waitForLiveness(ctx context.Context, page Page, window time.Duration) error {
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	lastReport := time.Now()
	for {
		live, err := a.isLive(ctx, page)
		if err != nil {
			a.logger.Debug("Liveness poll errored.", zap.Error(err))
		}
		if live {
			a.logger.Info("Login detected.")
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLoginTimeout
		}
		if time.Since(lastReport) >= 15*time.Second {
			a.logger.Info("Waiting for login...",
				zap.Duration("remaining", remaining.Round(time.Second)))
			lastReport = time.Now()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// isLive reports whether the page currently holds an authenticated session:
// the liveness cookie is present and we were not bounced to the login page.
func (a *Authenticator) isLive(ctx context.Context, page Page) (bool, error) {
	loc, err := page.Location(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLivenessCheckFailed, err)
	}
	if strings.HasPrefix(loc, a.cfg.LoginURL) {
		return false, nil
	}
	_, found, err := page.CookieValue(ctx, a.cfg.LivenessCookie)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLivenessCheckFailed, err)
	}
	return found, nil
}

// persist harvests the live cookie jar and writes it through the store.
func (a *Authenticator) persist(ctx context.Context, page Page) error {
	cookies, err := page.HarvestCookies(ctx)
	if err != nil {
		return fmt.Errorf("harvesting session cookies: %w", err)
	}
	return a.store.Save(&session.Session{Cookies: cookies})
}

// asSelectorErr maps the browser layer's chain-exhausted error onto the auth
// sentinel so callers can match on a stable identity.
func asSelectorErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w (%v)", ErrSelectorNotFound, err)
}
