// File: internal/capture/capture.go

// Package capture turns one lesson page into on-disk artifacts: extracted
// text, a printed PDF, or a full-page-screenshot PDF.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/config"
	"github.com/xkilldash9x/coursepack/internal/discovery"
)

// Tab is the subset of browser tab operations a capture needs. *browser.Tab
// satisfies it.
type Tab interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, js string, timeout time.Duration) error
	PrintToPDF(ctx context.Context, scale float64) ([]byte, error)
	FullScreenshot(ctx context.Context) ([]byte, error)
}

// Result is what one successful lesson capture produced.
type Result struct {
	Index     int
	URL       string
	Title     string
	Dir       string
	TextBlock string // non-empty when text output was requested
	PDFPath   string // non-empty when PDF output was requested
}

// Capturer renders lessons according to the configured format and strategy.
type Capturer struct {
	cfg    config.CaptureConfig
	format string
	pdfVia string
	logger *zap.Logger
}

// New creates a Capturer. format is one of config.Format*; pdfStrategy one of
// config.PDFStrategy*.
func New(cfg config.CaptureConfig, format, pdfStrategy string, logger *zap.Logger) *Capturer {
	return &Capturer{
		cfg:    cfg,
		format: format,
		pdfVia: pdfStrategy,
		logger: logger.Named("capture"),
	}
}

// Capture navigates the tab to the lesson and produces the requested
// artifacts under courseDir in a `NNN_Title` directory.
func (c *Capturer) Capture(ctx context.Context, tab Tab, ref discovery.LessonRef, courseDir string) (*Result, error) {
	log := c.logger.With(zap.Int("lesson", ref.Index), zap.String("url", ref.URL))
	log.Info("Capturing lesson.")

	if err := tab.Navigate(ctx, ref.URL); err != nil {
		return nil, err
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, err
	}

	title, body, err := ExtractLessonText(html, ref.URL, c.cfg.MinTextChars)
	if err != nil {
		return nil, err
	}
	// The document title tends to be cleaner than an extracted heading; use
	// it for naming when available.
	if docTitle, err := tab.Title(ctx); err == nil {
		if t := strings.TrimSpace(strings.SplitN(docTitle, "|", 2)[0]); t != "" {
			title = t
		}
	}

	safe := SanitizeFilename(title, c.cfg.TitleMaxLen)
	if safe == "" {
		safe = "lesson"
	}
	dir := filepath.Join(courseDir, fmt.Sprintf("%03d_%s", ref.Index, safe))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lesson directory: %w", err)
	}

	res := &Result{Index: ref.Index, URL: ref.URL, Title: title, Dir: dir}

	if c.format == config.FormatText || c.format == config.FormatBoth {
		res.TextBlock = FormatTextBlock(title, body)
		if err := os.WriteFile(filepath.Join(dir, "content.txt"), []byte(res.TextBlock), 0o644); err != nil {
			return nil, fmt.Errorf("writing lesson text: %w", err)
		}
	}

	if c.format == config.FormatPDF || c.format == config.FormatBoth {
		pdfPath := filepath.Join(dir, safe+".pdf")
		var pdf []byte
		switch c.pdfVia {
		case config.PDFStrategyPrint:
			pdf, err = c.printPDF(ctx, tab)
		default:
			pdf, err = c.screenshotPDF(ctx, tab)
		}
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
			return nil, fmt.Errorf("writing lesson PDF: %w", err)
		}
		res.PDFPath = pdfPath
		log.Info("Lesson PDF written.",
			zap.String("path", pdfPath), zap.Int("bytes", len(pdf)))
	}

	return res, nil
}

// printPDF renders through the browser's print pipeline.
func (c *Capturer) printPDF(ctx context.Context, tab Tab) ([]byte, error) {
	return tab.PrintToPDF(ctx, c.cfg.PrintScale)
}

// screenshotPDF forces lazy content to materialize, captures the full page
// as a PNG, and wraps it in a single-page PDF sized to the image.
func (c *Capturer) screenshotPDF(ctx context.Context, tab Tab) ([]byte, error) {
	imageWait := fmt.Sprintf(imageWaitJS, c.cfg.ImageLoadTimeout.Milliseconds())
	if err := tab.Evaluate(ctx, imageWait, 2*time.Minute); err != nil {
		c.logger.Debug("Image wait failed; continuing.", zap.Error(err))
	}

	scroll := fmt.Sprintf(steppedScrollJS, c.cfg.ScrollDwell.Milliseconds())
	if err := tab.Evaluate(ctx, scroll, 3*time.Minute); err != nil {
		c.logger.Debug("Stepped scroll failed; continuing.", zap.Error(err))
	}

	// Best-effort overlay cleanup.
	if err := tab.Evaluate(ctx, hideMinimapJS, 10*time.Second); err != nil {
		c.logger.Debug("Minimap dismissal failed; continuing.", zap.Error(err))
	}

	shot, err := tab.FullScreenshot(ctx)
	if err != nil {
		return nil, err
	}
	return pngToPDF(shot)
}

// pngToPDF embeds a PNG into a PDF whose single page matches the image's
// pixel dimensions at 96 DPI.
func pngToPDF(pngData []byte) ([]byte, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}

	// Points are 1/72in; browser pixels are 1/96in.
	wd := float64(cfg.Width) * 72.0 / 96.0
	ht := float64(cfg.Height) * 72.0 / 96.0

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: wd, Ht: ht},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(pngData))
	pdf.ImageOptions("page", 0, 0, wd, ht, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("building PDF from screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
