package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, OCRBackendTesseract, cfg.OCRBackend)
	assert.Equal(t, 60*time.Millisecond, cfg.RequestBudget)
	assert.Equal(t, 45*time.Millisecond, cfg.OCRBudget)
	assert.False(t, cfg.AuditEnabled)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OCR_BACKEND", "HTTP")
	t.Setenv("OCR_SERVICE_URL", "http://ocr.local/extract")
	t.Setenv("REQUEST_BUDGET", "100ms")
	t.Setenv("OCR_BUDGET", "70ms")
	t.Setenv("AUDIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "12.5")

	cfg := FromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, OCRBackendHTTP, cfg.OCRBackend)
	assert.Equal(t, 100*time.Millisecond, cfg.RequestBudget)
	assert.Equal(t, 70*time.Millisecond, cfg.OCRBudget)
	assert.True(t, cfg.AuditEnabled)
	assert.Equal(t, 12.5, cfg.RateLimitRPS)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TESSERACT_PSM", "six")
	t.Setenv("OCR_BUDGET", "soon")
	t.Setenv("AUDIT_ENABLED", "maybe")

	cfg := FromEnv()

	assert.Equal(t, 6, cfg.TesseractPSM)
	assert.Equal(t, 45*time.Millisecond, cfg.OCRBudget)
	assert.False(t, cfg.AuditEnabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"ocr budget not below request budget", func(c *AppConfig) { c.OCRBudget = c.RequestBudget }},
		{"zero request budget", func(c *AppConfig) { c.RequestBudget = 0 }},
		{"unknown backend", func(c *AppConfig) { c.OCRBackend = "paddle" }},
		{"http backend without url", func(c *AppConfig) { c.OCRBackend = OCRBackendHTTP; c.OCRServiceURL = "" }},
		{"short jwt secret", func(c *AppConfig) { c.JWTSecret = "short" }},
		{"zero receipt limit", func(c *AppConfig) { c.MaxReceiptBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
