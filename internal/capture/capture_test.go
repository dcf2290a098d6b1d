// File: internal/capture/capture_test.go
package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/config"
	"github.com/xkilldash9x/coursepack/internal/discovery"
)

// fakeTab scripts the Tab surface without a browser.
type fakeTab struct {
	html       string
	title      string
	pdf        []byte
	screenshot []byte

	navigated []string
	evaluated []string
	printed   int
	shot      int
}

func (f *fakeTab) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeTab) Title(context.Context) (string, error) { return f.title, nil }

func (f *fakeTab) HTML(context.Context) (string, error) { return f.html, nil }

func (f *fakeTab) Evaluate(_ context.Context, js string, _ time.Duration) error {
	f.evaluated = append(f.evaluated, js)
	return nil
}

func (f *fakeTab) PrintToPDF(context.Context, float64) ([]byte, error) {
	f.printed++
	return f.pdf, nil
}

func (f *fakeTab) FullScreenshot(context.Context) ([]byte, error) {
	f.shot++
	return f.screenshot, nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testCaptureConfig() config.CaptureConfig {
	return config.CaptureConfig{
		MinTextChars:     50,
		TitleMaxLen:      80,
		PrintScale:       0.95,
		ScrollDwell:      time.Millisecond,
		ImageLoadTimeout: time.Millisecond,
	}
}

const lessonHTML = `
<html><body>
  <h1>Buffered Channels</h1>
  <div class="lesson-content">
    A buffered channel decouples the sender from the receiver, up to the
    capacity of the buffer. Sends block only when the buffer is full.
  </div>
</body></html>`

func TestCapturePrintStrategy(t *testing.T) {
	dir := t.TempDir()
	tab := &fakeTab{
		html:  lessonHTML,
		title: "Buffered Channels | Grokking Go",
		pdf:   []byte("%PDF-1.4 fake"),
	}
	c := New(testCaptureConfig(), config.FormatPDF, config.PDFStrategyPrint, zap.NewNop())

	res, err := c.Capture(context.Background(), tab, discovery.LessonRef{Index: 4, URL: lessonURL}, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, tab.printed)
	assert.Zero(t, tab.shot)
	assert.Equal(t, "Buffered Channels", res.Title, "doc title is trimmed at the pipe")
	assert.Equal(t, filepath.Join(dir, "004_Buffered_Channels"), res.Dir)

	data, err := os.ReadFile(res.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, tab.pdf, data)
	assert.Empty(t, res.TextBlock)
}

func TestCaptureScreenshotStrategy(t *testing.T) {
	dir := t.TempDir()
	tab := &fakeTab{
		html:       lessonHTML,
		screenshot: testPNG(t, 1200, 3000),
	}
	c := New(testCaptureConfig(), config.FormatPDF, config.PDFStrategyScreenshot, zap.NewNop())

	res, err := c.Capture(context.Background(), tab, discovery.LessonRef{Index: 1, URL: lessonURL}, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, tab.shot)
	assert.Zero(t, tab.printed)
	// Image wait, stepped scroll, minimap dismissal.
	assert.Len(t, tab.evaluated, 3)

	data, err := os.ReadFile(res.PDFPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output should be a PDF")
}

func TestCaptureTextFormat(t *testing.T) {
	dir := t.TempDir()
	tab := &fakeTab{html: lessonHTML}
	c := New(testCaptureConfig(), config.FormatText, config.PDFStrategyScreenshot, zap.NewNop())

	res, err := c.Capture(context.Background(), tab, discovery.LessonRef{Index: 2, URL: lessonURL}, dir)
	require.NoError(t, err)

	assert.Zero(t, tab.printed)
	assert.Zero(t, tab.shot)
	assert.Empty(t, res.PDFPath)
	assert.Contains(t, res.TextBlock, "Buffered Channels")
	assert.Contains(t, res.TextBlock, "decouples the sender")

	data, err := os.ReadFile(filepath.Join(res.Dir, "content.txt"))
	require.NoError(t, err)
	assert.Equal(t, res.TextBlock, string(data))
}

func TestCaptureBothFormats(t *testing.T) {
	dir := t.TempDir()
	tab := &fakeTab{html: lessonHTML, pdf: []byte("%PDF-1.4 fake")}
	c := New(testCaptureConfig(), config.FormatBoth, config.PDFStrategyPrint, zap.NewNop())

	res, err := c.Capture(context.Background(), tab, discovery.LessonRef{Index: 3, URL: lessonURL}, dir)
	require.NoError(t, err)

	assert.NotEmpty(t, res.TextBlock)
	assert.NotEmpty(t, res.PDFPath)
}

func TestPngToPDF(t *testing.T) {
	out, err := pngToPDF(testPNG(t, 800, 600))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = pngToPDF([]byte("not a png"))
	assert.Error(t, err)
}
