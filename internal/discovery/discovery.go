// File: internal/discovery/discovery.go

// Package discovery turns a course root page into an ordered list of lesson
// URLs by reading the rendered table of contents.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// LessonRef is one entry in the course's table of contents. Index is the
// 1-based position in discovery order and drives output naming and merge
// ordering.
type LessonRef struct {
	Index int
	URL   string
}

// PageSource is the subset of tab operations discovery needs.
type PageSource interface {
	Navigate(ctx context.Context, url string) error
	ClickFirst(ctx context.Context, selectors []string) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Candidate selector chains, ordered most-specific first. The first selector
// that yields any anchors wins.
var lessonLinkSelectors = []string{
	".toc a[href*='/courses/']",
	"[class*='lesson'] a[href*='/courses/']",
	"[class*='curriculum'] a[href*='/courses/']",
	"nav a[href*='/courses/']",
	"a[href*='/courses/']",
}

// Reveal controls: clicking these is best-effort, since a course page may
// already show its full table of contents.
var (
	contentTabSelectors = []string{
		"//button[contains(., 'Content')]",
		"//a[contains(., 'Content')]",
	}
	expandAllSelectors = []string{
		"//button[contains(., 'Expand All')]",
		"//*[contains(text(), 'Expand All')]",
	}
)

// Hrefs containing any of these are never lessons.
var excludedHrefFragments = []string{"/profile", "/login", "/signup", "#"}

// Discoverer extracts lesson references from a course page.
type Discoverer struct {
	logger *zap.Logger
}

// New creates a Discoverer.
func New(logger *zap.Logger) *Discoverer {
	return &Discoverer{logger: logger.Named("discovery")}
}

// Discover navigates to the course root, reveals the table of contents, and
// extracts lesson URLs. An empty result is not an error here; the caller
// decides whether zero lessons is fatal.
func (d *Discoverer) Discover(ctx context.Context, page PageSource, courseURL string) ([]LessonRef, error) {
	d.logger.Info("Discovering lessons.", zap.String("course_url", courseURL))
	if err := page.Navigate(ctx, courseURL); err != nil {
		return nil, fmt.Errorf("opening course page: %w", err)
	}

	// Reveal the full table of contents if the page hides it behind a
	// Content tab or collapsed chapters.
	if sel, err := page.ClickFirst(ctx, contentTabSelectors); err == nil {
		d.logger.Debug("Opened content tab.", zap.String("selector", sel))
	}
	if sel, err := page.ClickFirst(ctx, expandAllSelectors); err == nil {
		d.logger.Debug("Expanded all chapters.", zap.String("selector", sel))
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting course page: %w", err)
	}

	refs, err := ExtractLessonRefs(html, courseURL)
	if err != nil {
		return nil, err
	}
	d.logger.Info("Lesson discovery complete.", zap.Int("lessons", len(refs)))
	return refs, nil
}

// ExtractLessonRefs parses a rendered course page and returns lesson
// references in document order: the first selector chain entry with any
// matches wins, then URLs are filtered to strict descendants of the course
// root path and deduplicated preserving first-seen order.
func ExtractLessonRefs(html, courseURL string) ([]LessonRef, error) {
	root, err := url.Parse(courseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing course URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing course page: %w", err)
	}

	var hrefs []string
	for _, sel := range lessonLinkSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" || isExcludedHref(href) {
				return
			}
			hrefs = append(hrefs, href)
		})
		if len(hrefs) > 0 {
			break
		}
	}

	rootPath := strings.TrimSuffix(root.Path, "/")
	seen := make(map[string]struct{}, len(hrefs))
	var refs []LessonRef
	for _, href := range hrefs {
		rel, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := root.ResolveReference(rel)
		abs.Fragment = ""

		if abs.Host != root.Host {
			continue
		}
		// A lesson lives strictly below the course root; the root itself (with
		// or without a trailing slash) is not a lesson.
		path := strings.TrimSuffix(abs.Path, "/")
		if path == rootPath || !strings.HasPrefix(path, rootPath+"/") {
			continue
		}

		key := abs.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, LessonRef{Index: len(refs) + 1, URL: key})
	}
	return refs, nil
}

func isExcludedHref(href string) bool {
	for _, frag := range excludedHrefFragments {
		if strings.Contains(href, frag) {
			return true
		}
	}
	return false
}
