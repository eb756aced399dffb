package models

import "time"

// OCRAuditRecord captures what the OCR engine saw for one receipt, for offline
// parser tuning. It is written asynchronously and never read on the request path.
type OCRAuditRecord struct {
	ID            string
	RequestID     string
	ReceiptDigest string
	Engine        string
	Status        ReceiptStatus
	Tokens        []OCRToken
	MerchantName  *string
	TotalAmount   *float64
	CreatedAt     time.Time
}
