// File: internal/browser/tab_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsXPath(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     bool
	}{
		{"css class", ".lesson-title", false},
		{"css attribute", `input[type="email"]`, false},
		{"css descendant", "nav a.item", false},
		{"xpath absolute", `//button[contains(text(), "Login")]`, true},
		{"xpath grouped", `(//a[@href])[1]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isXPath(tt.selector))
		})
	}
}
