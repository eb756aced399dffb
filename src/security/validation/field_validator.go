// backend/src/security/validation/field_validator.go
package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/username/merchantguard/backend/src/models"
)

// ErrValidationFailed is the sentinel every validation error unwraps to.
var ErrValidationFailed = errors.New("validation failed")

const (
	MaxTypeLength     = 32
	MaxDeviceIDLength = 128
	MaxBINLength      = 19
	MaxStep           = math.MaxInt32
)

// ValidationError describes a malformed or missing transaction field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidationFailed, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return invalid(fieldName, "cannot be empty")
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return invalid(fieldName, fmt.Sprintf("exceeds maximum length of %d characters", maxLength))
	}
	return nil
}

// --- Numeric Validators ---

// ValidateFinite rejects NaN and infinities.
func ValidateFinite(v float64, fieldName string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(fieldName, "must be a finite number")
	}
	return nil
}

// ValidateNonNegative rejects values below zero.
func ValidateNonNegative(v float64, fieldName string) error {
	if v < 0 {
		return invalid(fieldName, "cannot be negative")
	}
	return nil
}

// --- Transaction Validator ---

// ValidateTransaction checks the required fields of a wire payload and returns the
// immutable record used for feature derivation. Balances may be negative; that is
// tolerated and surfaced as an anomaly feature downstream.
func ValidateTransaction(p *models.TransactionPayload) (models.TransactionRecord, error) {
	if p == nil {
		return models.TransactionRecord{}, invalid("transaction", "is required")
	}

	switch {
	case p.Step == nil:
		return models.TransactionRecord{}, invalid("step", "is required")
	case p.Type == nil:
		return models.TransactionRecord{}, invalid("type", "is required")
	case p.Amount == nil:
		return models.TransactionRecord{}, invalid("amount", "is required")
	case p.OldBalanceOrg == nil:
		return models.TransactionRecord{}, invalid("oldbalanceOrg", "is required")
	case p.NewBalanceOrig == nil:
		return models.TransactionRecord{}, invalid("newbalanceOrig", "is required")
	case p.OldBalanceDest == nil:
		return models.TransactionRecord{}, invalid("oldbalanceDest", "is required")
	case p.NewBalanceDest == nil:
		return models.TransactionRecord{}, invalid("newbalanceDest", "is required")
	case p.IsFlaggedFraud == nil:
		return models.TransactionRecord{}, invalid("isFlaggedFraud", "is required")
	}

	if *p.Step < 0 {
		return models.TransactionRecord{}, invalid("step", "cannot be negative")
	}
	if *p.Step > MaxStep {
		return models.TransactionRecord{}, invalid("step", "is out of range")
	}

	txType := strings.TrimSpace(*p.Type)
	if err := ValidateStringNotEmpty(txType, "type"); err != nil {
		return models.TransactionRecord{}, err
	}
	if err := ValidateStringMaxLength(txType, MaxTypeLength, "type"); err != nil {
		return models.TransactionRecord{}, err
	}

	numeric := []struct {
		name string
		v    float64
	}{
		{"amount", *p.Amount},
		{"oldbalanceOrg", *p.OldBalanceOrg},
		{"newbalanceOrig", *p.NewBalanceOrig},
		{"oldbalanceDest", *p.OldBalanceDest},
		{"newbalanceDest", *p.NewBalanceDest},
	}
	for _, f := range numeric {
		if err := ValidateFinite(f.v, f.name); err != nil {
			return models.TransactionRecord{}, err
		}
	}
	if err := ValidateNonNegative(*p.Amount, "amount"); err != nil {
		return models.TransactionRecord{}, err
	}

	if *p.IsFlaggedFraud != 0 && *p.IsFlaggedFraud != 1 {
		return models.TransactionRecord{}, invalid("isFlaggedFraud", "must be 0 or 1")
	}

	rec := models.TransactionRecord{
		Step:           *p.Step,
		Type:           txType,
		Amount:         *p.Amount,
		OldBalanceOrg:  *p.OldBalanceOrg,
		NewBalanceOrig: *p.NewBalanceOrig,
		OldBalanceDest: *p.OldBalanceDest,
		NewBalanceDest: *p.NewBalanceDest,
		IsFlaggedFraud: *p.IsFlaggedFraud,
		DeviceID:       optionalString(p.DeviceID, MaxDeviceIDLength),
		BIN:            optionalString(p.BIN, MaxBINLength),
	}
	if p.Geo != nil {
		geo := *p.Geo
		rec.Geo = &geo
	}
	return rec, nil
}

// optionalString trims optional text; blank or oversized values count as absent.
func optionalString(s *string, maxLength int) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(StripUnprintable(*s))
	if v == "" || utf8.RuneCountInString(v) > maxLength {
		return nil
	}
	return &v
}
