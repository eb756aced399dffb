package models

// BoundingBox is the axis-aligned region of a token in image pixel coordinates.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// CenterY returns the vertical midpoint of the box.
func (b BoundingBox) CenterY() float64 { return (b.Top + b.Bottom) / 2 }

// Height returns the box height, never negative.
func (b BoundingBox) Height() float64 {
	if b.Bottom < b.Top {
		return 0
	}
	return b.Bottom - b.Top
}

// OCRToken is one recognized text fragment as produced by a text extractor.
type OCRToken struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"bounding_box"`
	Confidence float64     `json:"confidence"` // In [0, 1]
}

// ReceiptExtraction holds the fields recovered from a receipt.
// A nil field means it was not found, never zero.
type ReceiptExtraction struct {
	MerchantName *string  `json:"merchant_name"`
	TotalAmount  *float64 `json:"total_amount"`
}

// Empty reports whether neither field was recovered.
func (e ReceiptExtraction) Empty() bool {
	return e.MerchantName == nil && e.TotalAmount == nil
}

// ReceiptStatus describes how the receipt leg of a request ended.
type ReceiptStatus string

const (
	ReceiptOK      ReceiptStatus = "ok"      // At least one field extracted
	ReceiptMiss    ReceiptStatus = "miss"    // Tokens present, nothing matched
	ReceiptCached  ReceiptStatus = "cached"  // Served from the extraction cache
	ReceiptTimeout ReceiptStatus = "timeout" // Exceeded the OCR budget
	ReceiptFailed  ReceiptStatus = "failed"  // Unreadable image or extractor error
	ReceiptSkipped ReceiptStatus = "skipped" // No receipt path supplied
)

// ReceiptResult is the outcome of the receipt-only extraction endpoint and batch mode.
type ReceiptResult struct {
	MerchantName *string       `json:"merchant_name"`
	TotalAmount  *float64      `json:"total_amount"`
	Engine       string        `json:"ocr_engine_used"`
	Status       ReceiptStatus `json:"status,omitempty"`
}
