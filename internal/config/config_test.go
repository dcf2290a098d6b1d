// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, "logged_in", cfg.Auth.LivenessCookie)
	assert.Equal(t, 120*time.Second, cfg.Auth.OTPWait)
	assert.Equal(t, 3, cfg.Download.Workers)
	assert.Equal(t, PDFStrategyScreenshot, cfg.Download.PDFStrategy)
	assert.Equal(t, 2*time.Second, cfg.Download.BackoffUnit)
	assert.Equal(t, 50, cfg.Capture.MinTextChars)
	assert.Equal(t, 0.95, cfg.Capture.PrintScale)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	base := NewDefaultConfig()

	err := base.Validate()
	assert.NoError(t, err, "a default config should validate")

	t.Run("Invalid Workers", func(t *testing.T) {
		cfg := *base
		cfg.Download.Workers = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "download.workers must be a positive integer")
	})

	t.Run("Invalid Retries", func(t *testing.T) {
		cfg := *base
		cfg.Download.MaxRetries = -1
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "download.max_retries must be a positive integer")
	})

	t.Run("Invalid Format", func(t *testing.T) {
		cfg := *base
		cfg.Download.Format = "epub"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "download.format")
	})

	t.Run("Invalid PDF Strategy", func(t *testing.T) {
		cfg := *base
		cfg.Download.PDFStrategy = "auto"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "download.pdf_strategy")
	})

	t.Run("Invalid Print Scale", func(t *testing.T) {
		cfg := *base
		cfg.Capture.PrintScale = 2.5
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "capture.print_scale")
	})

	t.Run("Missing Liveness Cookie", func(t *testing.T) {
		cfg := *base
		cfg.Auth.LivenessCookie = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "auth.liveness_cookie")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
download:
  workers: 8
  format: both
network:
  navigation_timeout: 45s
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 8, cfg.Download.Workers)
		assert.Equal(t, FormatBoth, cfg.Download.Format)
		assert.Equal(t, 45*time.Second, cfg.Network.NavigationTimeout)
		// Check a default value was also loaded.
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("download.workers", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("Credential Environment Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		t.Setenv("COURSEPACK_AUTH_EMAIL", "student@example.com")
		t.Setenv("COURSEPACK_AUTH_PASSWORD", "hunter2")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "student@example.com", cfg.Auth.Email)
		assert.Equal(t, "hunter2", cfg.Auth.Password)
	})

	t.Run("Home Expansion", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("download.output_dir", "~/courses")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Download.OutputDir, "~")
	})
}
