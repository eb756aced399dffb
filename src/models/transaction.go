package models

// Transfer categories known to the model at training time.
const (
	TypeCashIn   = "CASH_IN"
	TypeCashOut  = "CASH_OUT"
	TypeDebit    = "DEBIT"
	TypePayment  = "PAYMENT"
	TypeTransfer = "TRANSFER"
)

// Geo is the optional sign-up location attached to a transaction.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TransactionRecord is a validated micro-merchant sign-up transaction.
// It is built once at the HTTP boundary and never mutated afterwards.
type TransactionRecord struct {
	Step           int     `json:"step"`           // Ordinal time unit
	Type           string  `json:"type"`           // One of the Type* constants, or an unseen category
	Amount         float64 `json:"amount"`         // Always >= 0 once validated
	OldBalanceOrg  float64 `json:"oldbalanceOrg"`  // Originating balance before the transfer
	NewBalanceOrig float64 `json:"newbalanceOrig"` // Originating balance after the transfer
	OldBalanceDest float64 `json:"oldbalanceDest"` // Destination balance before the transfer
	NewBalanceDest float64 `json:"newbalanceDest"` // Destination balance after the transfer
	IsFlaggedFraud int     `json:"isFlaggedFraud"` // 0 or 1

	DeviceID *string `json:"device_id,omitempty"`
	Geo      *Geo    `json:"geo,omitempty"`
	BIN      *string `json:"BIN,omitempty"` // Leading card digits
}

// TransactionPayload is the wire shape of a transaction. Pointers mark required
// fields so that a missing field can be told apart from a zero value.
type TransactionPayload struct {
	Step           *int     `json:"step"`
	Type           *string  `json:"type"`
	Amount         *float64 `json:"amount"`
	OldBalanceOrg  *float64 `json:"oldbalanceOrg"`
	NewBalanceOrig *float64 `json:"newbalanceOrig"`
	OldBalanceDest *float64 `json:"oldbalanceDest"`
	NewBalanceDest *float64 `json:"newbalanceDest"`
	IsFlaggedFraud *int     `json:"isFlaggedFraud"`

	DeviceID *string `json:"device_id"`
	Geo      *Geo    `json:"geo"`
	BIN      *string `json:"BIN"`
}

// ScoreRequest is the body of POST /score.
type ScoreRequest struct {
	Transaction *TransactionPayload `json:"transaction"`
	ReceiptPath string              `json:"receipt_path"`
}
