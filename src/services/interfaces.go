// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"

	"github.com/username/merchantguard/backend/src/models"
	"github.com/username/merchantguard/backend/src/security/validation"
)

// Define common service errors
var (
	ErrOCRFailure = errors.New("receipt extraction failed")
	ErrOCRTimeout = errors.New("receipt extraction timed out")
	// ErrScoringTimeout means the scoring leg did not finish inside the request budget.
	ErrScoringTimeout = errors.New("scoring exceeded request budget")
)

// FraudScorer is the loaded classifier.
type FraudScorer interface {
	Score(v models.FeatureVector) (models.FraudScore, error)
	Threshold() float64
}

// TextExtractor is an OCR engine. Any error means "no tokens".
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) ([]models.OCRToken, error)
	Name() string
}

// ReceiptImageLoader reads and validates a receipt image.
type ReceiptImageLoader interface {
	Load(path string) ([]byte, validation.ImageInfo, error)
}

// ReceiptParser turns tokens into merchant and total fields.
type ReceiptParser interface {
	Parse(tokens []models.OCRToken) models.ReceiptExtraction
}

// ExtractionCache stores parsed receipts by image digest.
type ExtractionCache interface {
	Get(ctx context.Context, digest string) (models.ReceiptExtraction, bool)
	Set(ctx context.Context, digest string, ext models.ReceiptExtraction)
}

// AuditSink accepts OCR audit records without blocking the caller.
type AuditSink interface {
	// Offer returns false when the record was dropped.
	Offer(rec models.OCRAuditRecord) bool
}

// ScoreOutcome is a scored request plus how its receipt leg ended.
type ScoreOutcome struct {
	Response      models.ScoreResponse
	ReceiptStatus models.ReceiptStatus
	Flagged       bool
}

// ScoringService handles scoring requests end to end.
type ScoringService interface {
	Score(ctx context.Context, req models.ScoreRequest) (*ScoreOutcome, error)
	// ExtractReceipt runs only the receipt leg, with the longer extraction timeout.
	ExtractReceipt(ctx context.Context, path string) models.ReceiptResult
	EngineName() string
}
