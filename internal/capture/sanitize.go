// File: internal/capture/sanitize.go
package capture

import (
	"regexp"
	"strings"
)

var (
	unsafeChars   = regexp.MustCompile(`[^\w\s-]`)
	separatorRuns = regexp.MustCompile(`[-\s]+`)
)

// SanitizeFilename makes a lesson title safe to use as a directory or file
// name: unsafe characters are dropped, whitespace and hyphen runs collapse to
// a single underscore, and the result is capped at maxLen. The function is
// idempotent, so re-sanitizing an already-sanitized name is a no-op.
func SanitizeFilename(name string, maxLen int) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = separatorRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if maxLen > 0 && len(name) > maxLen {
		name = name[:maxLen]
		name = strings.TrimRight(name, "_")
	}
	return name
}
