// backend/src/ocr/http_extractor.go
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/username/merchantguard/backend/src/models"
)

// EngineHTTP is the engine name reported when the remote service does not name itself.
const EngineHTTP = "ocr-service"

const maxOCRResponseBytes = 8 << 20

// HTTPExtractor posts image bytes to a remote OCR service, for example an
// EasyOCR sidecar, and reads back word boxes.
type HTTPExtractor struct {
	url    string
	engine string
	client *http.Client
}

// HTTPExtractorOption configures an HTTPExtractor.
type HTTPExtractorOption func(*HTTPExtractor)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPExtractorOption {
	return func(e *HTTPExtractor) { e.client = c }
}

// WithEngineName sets the name reported in ocr_engine_used.
func WithEngineName(name string) HTTPExtractorOption {
	return func(e *HTTPExtractor) { e.engine = name }
}

// NewHTTPExtractor creates a client for the OCR service at url. Requests are bounded by
// the caller's context; timeout only caps calls made without a deadline.
func NewHTTPExtractor(url string, timeout time.Duration, opts ...HTTPExtractorOption) *HTTPExtractor {
	e := &HTTPExtractor{
		url:    url,
		engine: EngineHTTP,
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *HTTPExtractor) Name() string { return e.engine }

// ocrServiceToken accepts either a 4-point polygon (EasyOCR style) or an
// axis-aligned box.
type ocrServiceToken struct {
	Text        string              `json:"text"`
	Box         [][]float64         `json:"box"`
	BoundingBox *models.BoundingBox `json:"bounding_box"`
	Confidence  float64             `json:"confidence"`
}

type ocrServiceResponse struct {
	Tokens []ocrServiceToken `json:"tokens"`
}

// Extract sends the raw image as the request body.
func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) ([]models.OCRToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("OCR service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOCRResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded ocrServiceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	tokens := make([]models.OCRToken, 0, len(decoded.Tokens))
	for _, t := range decoded.Tokens {
		box, ok := t.boundingBox()
		if !ok {
			continue
		}
		tokens = append(tokens, models.OCRToken{Text: t.Text, Box: box, Confidence: clampConfidence(t.Confidence)})
	}
	return tokens, nil
}

func (t ocrServiceToken) boundingBox() (models.BoundingBox, bool) {
	if t.BoundingBox != nil {
		return *t.BoundingBox, true
	}
	if len(t.Box) == 0 {
		return models.BoundingBox{}, false
	}
	b := models.BoundingBox{Left: math.Inf(1), Top: math.Inf(1), Right: math.Inf(-1), Bottom: math.Inf(-1)}
	for _, pt := range t.Box {
		if len(pt) < 2 {
			return models.BoundingBox{}, false
		}
		b.Left = math.Min(b.Left, pt[0])
		b.Right = math.Max(b.Right, pt[0])
		b.Top = math.Min(b.Top, pt[1])
		b.Bottom = math.Max(b.Bottom, pt[1])
	}
	return b, true
}
