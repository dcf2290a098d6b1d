// File: internal/capture/text.go
package capture

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Container candidates for lesson body text, most-specific first.
var contentSelectors = []string{
	".lesson-content",
	"[class*='lesson']",
	"[class*='content']",
	"article",
	"main",
}

// Title candidates: a lesson's h1 is authoritative, a title-classed element
// is a fallback, and the URL slug is the last resort.
var titleSelectors = []string{
	"h1",
	"[class*='title']",
}

const blockRule = "================================================================================"

// ExtractLessonText pulls the lesson title and body text out of a rendered
// page. When no container yields at least minChars characters, the paragraphs
// of the page are concatenated instead; the full body text is the final
// fallback.
func ExtractLessonText(html, lessonURL string, minChars int) (title, body string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parsing lesson page: %w", err)
	}

	title = extractTitle(doc, lessonURL)
	body = extractBody(doc, minChars)
	return title, body, nil
}

// FormatTextBlock renders one lesson as a titled block for the combined
// course text file.
func FormatTextBlock(title, body string) string {
	return fmt.Sprintf("\n%s\n%s\n%s\n\n%s\n\n", blockRule, title, blockRule, body)
}

func extractTitle(doc *goquery.Document, lessonURL string) string {
	for _, sel := range titleSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return titleFromSlug(lessonURL)
}

// titleFromSlug derives a readable title from the last URL path segment,
// e.g. "buffered-channels" becomes "Buffered Channels".
func titleFromSlug(lessonURL string) string {
	u, err := url.Parse(lessonURL)
	if err != nil {
		return "Untitled Lesson"
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	slug := segs[len(segs)-1]
	if slug == "" {
		return "Untitled Lesson"
	}

	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func extractBody(doc *goquery.Document, minChars int) string {
	var container *goquery.Selection
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			container = s
			break
		}
	}
	if container == nil {
		container = doc.Find("body").First()
	}

	text := normalizeText(container.Text())
	if len(text) >= minChars {
		return text
	}

	// The container was hollow; gather paragraph text from the whole page.
	var paras []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if joined := strings.Join(paras, "\n\n"); len(joined) > len(text) {
		return joined
	}
	return text
}

// normalizeText trims each line and drops blank runs so rendered-DOM
// whitespace does not dominate the output.
func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
