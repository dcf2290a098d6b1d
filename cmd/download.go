// File: cmd/download.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/assemble"
	"github.com/xkilldash9x/coursepack/internal/auth"
	"github.com/xkilldash9x/coursepack/internal/browser"
	"github.com/xkilldash9x/coursepack/internal/capture"
	"github.com/xkilldash9x/coursepack/internal/config"
	"github.com/xkilldash9x/coursepack/internal/discovery"
	"github.com/xkilldash9x/coursepack/internal/observability"
	"github.com/xkilldash9x/coursepack/internal/pipeline"
	"github.com/xkilldash9x/coursepack/internal/session"
)

var courseSlugRe = regexp.MustCompile(`/courses/([^/]+)`)

// newDownloadCmd creates and configures the `download` command.
func newDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download [course-url]",
		Short: "Downloads a full course as PDF and/or text",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line values override
			// the config file and environment with the right precedence.
			bindings := map[string]string{
				"download.format":       "format",
				"download.pdf_strategy": "pdf-strategy",
				"download.workers":      "workers",
				"download.output_dir":   "output",
				"auth.manual":           "manual",
				"auth.email":            "email",
				"browser.headless":      "headless",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from Execute (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			courseURL := normalizeCourseURL(args[0])
			courseName := courseNameFromURL(courseURL)
			courseDir := filepath.Join(cfg.Download.OutputDir, courseName)
			if err := os.MkdirAll(courseDir, 0o755); err != nil {
				return fmt.Errorf("creating course directory: %w", err)
			}

			runID := uuid.New().String()
			logger.Info("Starting course download",
				zap.String("runID", runID),
				zap.String("course_url", courseURL),
				zap.String("course_dir", courseDir),
				zap.String("format", cfg.Download.Format),
				zap.String("pdf_strategy", cfg.Download.PDFStrategy),
				zap.Int("workers", cfg.Download.Workers),
			)

			manager := browser.NewManager(cfg, logger)
			defer manager.Shutdown(context.WithoutCancel(ctx))

			store := session.NewStore(filepath.Join(cfg.Download.OutputDir, "session.json"), logger)

			// 1. Authenticate and discover on a dedicated tab.
			refs, err := authenticateAndDiscover(ctx, cfg, manager, store, courseURL, logger)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				return errors.New("no lessons discovered; the course page may have changed or the session may lack access")
			}

			// 2. Capture every lesson under bounded concurrency.
			capturer := capture.New(cfg.Capture, cfg.Download.Format, cfg.Download.PDFStrategy, logger)
			coordinator := pipeline.NewCoordinator(
				managerTabs{manager},
				capturer,
				store.Load().Cookies,
				pipeline.RetryPolicy{MaxAttempts: cfg.Download.MaxRetries, Unit: cfg.Download.BackoffUnit},
				cfg.Download.Workers,
				cfg.Download.RatePerSecond,
				logger,
			)
			artifacts := coordinator.RunAll(ctx, refs, courseDir)

			// 3. Assemble course-level outputs.
			assembler := assemble.New(logger)
			var mergedPDF, mergedText string
			if cfg.Download.Format == config.FormatPDF || cfg.Download.Format == config.FormatBoth {
				mergedPDF, err = assembler.MergePDFs(artifacts, filepath.Join(courseDir, courseName+"_COMPLETE.pdf"))
				if err != nil {
					logger.Error("PDF merge failed", zap.Error(err))
				}
			}
			if cfg.Download.Format == config.FormatText || cfg.Download.Format == config.FormatBoth {
				mergedText, err = assembler.WriteText(artifacts, filepath.Join(courseDir, courseName+"_COMPLETE.txt"))
				if err != nil {
					logger.Error("Text assembly failed", zap.Error(err))
				}
			}

			// 4. Summary and exit semantics: partial success is success, a
			// run with zero captured lessons is not.
			succeeded := 0
			for _, art := range artifacts {
				if art.Err == nil {
					succeeded++
				}
			}
			logger.Info("Course download finished",
				zap.String("runID", runID),
				zap.Int("succeeded", succeeded),
				zap.Int("total", len(artifacts)),
			)

			fmt.Printf("\nDownload complete: %d/%d lessons captured.\n", succeeded, len(artifacts))
			if mergedPDF != "" {
				fmt.Printf("Course PDF: %s\n", mergedPDF)
			}
			if mergedText != "" {
				fmt.Printf("Course text: %s\n", mergedText)
			}
			for _, art := range artifacts {
				if art.Err != nil {
					fmt.Printf("  failed [%d] %s (attempts: %d): %v\n", art.Index, art.URL, art.Attempts, art.Err)
				}
			}

			if succeeded == 0 {
				return errors.New("every lesson capture failed")
			}
			return nil
		},
	}

	downloadCmd.Flags().String("format", config.FormatPDF, "output format: text, pdf, or both")
	downloadCmd.Flags().String("pdf-strategy", config.PDFStrategyScreenshot, "PDF rendering: print or screenshot")
	downloadCmd.Flags().Int("workers", 3, "concurrent lesson captures")
	downloadCmd.Flags().StringP("output", "o", "./output", "output root directory")
	downloadCmd.Flags().Bool("manual", false, "log in manually in the browser window")
	downloadCmd.Flags().String("email", "", "account email (password via COURSEPACK_AUTH_PASSWORD)")
	downloadCmd.Flags().Bool("headless", true, "run the browser headless (disable for manual login)")

	return downloadCmd
}

// authenticateAndDiscover runs the login flow and lesson discovery on a
// single tab, then closes it. Both failures are fatal to the run.
func authenticateAndDiscover(ctx context.Context, cfg *config.Config, manager *browser.Manager,
	store *session.Store, courseURL string, logger *zap.Logger) ([]discovery.LessonRef, error) {

	tab, err := manager.NewTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser tab: %w", err)
	}
	defer tab.Close()

	authenticator := auth.New(cfg.Auth, store, logger)
	if err := authenticator.Authenticate(ctx, tab); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	refs, err := discovery.New(logger).Discover(ctx, tab, courseURL)
	if err != nil {
		return nil, fmt.Errorf("lesson discovery failed: %w", err)
	}
	return refs, nil
}

// managerTabs adapts the browser manager to the pipeline's tab provider.
type managerTabs struct {
	m *browser.Manager
}

func (p managerTabs) NewTab(ctx context.Context) (pipeline.Tab, error) {
	tab, err := p.m.NewTab(ctx)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

// normalizeCourseURL ensures the target carries a scheme.
func normalizeCourseURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// courseNameFromURL extracts the course slug for directory naming, falling
// back to the last path segment and then a constant.
func courseNameFromURL(courseURL string) string {
	if m := courseSlugRe.FindStringSubmatch(courseURL); m != nil {
		return capture.SanitizeFilename(m[1], 80)
	}
	if u, err := url.Parse(courseURL); err == nil {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := segs[len(segs)-1]; last != "" {
			return capture.SanitizeFilename(last, 80)
		}
	}
	return "course"
}
