package ocr

import (
	"context"
	"fmt"

	"github.com/username/merchantguard/backend/src/models"
)

// UnavailableExtractor stands in when no OCR engine could be set up. Scoring keeps
// working and every receipt comes back empty.
type UnavailableExtractor struct {
	Reason error
}

func (e UnavailableExtractor) Name() string { return "unavailable" }

func (e UnavailableExtractor) Extract(context.Context, []byte) ([]models.OCRToken, error) {
	return nil, fmt.Errorf("OCR engine unavailable: %w", e.Reason)
}
