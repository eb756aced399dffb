// backend/src/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported OCR backends.
const (
	OCRBackendTesseract = "tesseract"
	OCRBackendHTTP      = "http"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Model settings
	ModelPath string

	// OCR settings
	OCRBackend        string
	TesseractPath     string
	TesseractLang     string
	TesseractPSM      int
	OCRServiceURL     string
	OCRServiceTimeout time.Duration

	// Latency budgets
	RequestBudget time.Duration
	OCRBudget     time.Duration

	// Receipt limits
	ReceiptRoot      string
	MaxReceiptBytes  int64
	MaxReceiptPixels int

	// HTTP limits
	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConnections int

	// Caching
	ExtractionCacheTTL time.Duration
	RedisAddr          string

	// OCR token audit
	AuditEnabled   bool
	AuditDBPath    string
	AuditQueueSize int

	// Service-to-service auth. Empty disables it.
	JWTSecret string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = FromEnv()

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, Model=%s, OCRBackend=%s, RequestBudget=%s, OCRBudget=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.ModelPath, Cfg.OCRBackend, Cfg.RequestBudget, Cfg.OCRBudget)
}

// FromEnv builds an AppConfig from the current process environment only.
func FromEnv() *AppConfig {
	return &AppConfig{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		ModelPath: getEnv("MODEL_PATH", "data/fraud_model.json"),

		OCRBackend:        strings.ToLower(getEnv("OCR_BACKEND", OCRBackendTesseract)),
		TesseractPath:     getEnv("TESSERACT_PATH", "tesseract"),
		TesseractLang:     getEnv("TESSERACT_LANG", "eng"),
		TesseractPSM:      getEnvAsInt("TESSERACT_PSM", 6),
		OCRServiceURL:     getEnv("OCR_SERVICE_URL", ""),
		OCRServiceTimeout: getEnvAsDuration("OCR_SERVICE_TIMEOUT", 5*time.Second),

		RequestBudget: getEnvAsDuration("REQUEST_BUDGET", 60*time.Millisecond),
		OCRBudget:     getEnvAsDuration("OCR_BUDGET", 45*time.Millisecond),

		ReceiptRoot:      getEnv("RECEIPT_ROOT", ""),
		MaxReceiptBytes:  getEnvAsInt64("MAX_RECEIPT_BYTES", 10*1024*1024),
		MaxReceiptPixels: getEnvAsInt("MAX_RECEIPT_PIXELS", 40_000_000),

		MaxBodyBytes:   getEnvAsInt64("MAX_BODY_BYTES", 64*1024),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 200),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 400),
		MaxConnections: getEnvAsInt("MAX_CONNECTIONS", 512),

		ExtractionCacheTTL: getEnvAsDuration("EXTRACTION_CACHE_TTL", 15*time.Minute),
		RedisAddr:          getEnv("REDIS_ADDR", ""),

		AuditEnabled:   getEnvAsBool("AUDIT_ENABLED", false),
		AuditDBPath:    getEnv("AUDIT_DB_PATH", "./audit.db"),
		AuditQueueSize: getEnvAsInt("AUDIT_QUEUE_SIZE", 256),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

// Validate reports configuration combinations the service cannot run with.
func (c *AppConfig) Validate() error {
	if c.RequestBudget <= 0 || c.OCRBudget <= 0 {
		return fmt.Errorf("latency budgets must be positive (request=%s, ocr=%s)", c.RequestBudget, c.OCRBudget)
	}
	if c.OCRBudget >= c.RequestBudget {
		return fmt.Errorf("OCR_BUDGET (%s) must be smaller than REQUEST_BUDGET (%s)", c.OCRBudget, c.RequestBudget)
	}
	switch c.OCRBackend {
	case OCRBackendTesseract:
	case OCRBackendHTTP:
		if c.OCRServiceURL == "" {
			return fmt.Errorf("OCR_SERVICE_URL is required when OCR_BACKEND=%s", OCRBackendHTTP)
		}
	default:
		return fmt.Errorf("unknown OCR_BACKEND %q", c.OCRBackend)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes when set")
	}
	if c.MaxReceiptBytes <= 0 {
		return fmt.Errorf("MAX_RECEIPT_BYTES must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
