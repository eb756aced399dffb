package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/username/merchantguard/backend/src/models"
)

// AuditRepository stores raw OCR output for offline parser tuning.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertOCRAudit(ctx context.Context, rec models.OCRAuditRecord) error {
	tokens, err := json.Marshal(rec.Tokens)
	if err != nil {
		return fmt.Errorf("encode audit tokens: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ocr_audit (id, request_id, receipt_digest, engine, status, token_count, tokens_json, merchant_name, total_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.ReceiptDigest, rec.Engine, string(rec.Status), len(rec.Tokens), string(tokens),
		nullString(rec.MerchantName), nullFloat(rec.TotalAmount), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert ocr audit %s: %w", rec.ID, err)
	}
	return nil
}

// RecentByDigest returns the newest audit records for a receipt, newest first.
func (r *AuditRepository) RecentByDigest(ctx context.Context, digest string, limit int) ([]models.OCRAuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, receipt_digest, engine, status, tokens_json, merchant_name, total_amount, created_at
		FROM ocr_audit WHERE receipt_digest = ? ORDER BY created_at DESC LIMIT ?`, digest, limit)
	if err != nil {
		return nil, fmt.Errorf("query ocr audit: %w", err)
	}
	defer rows.Close()

	var out []models.OCRAuditRecord
	for rows.Next() {
		var (
			rec       models.OCRAuditRecord
			status    string
			tokens    string
			merchant  sql.NullString
			total     sql.NullFloat64
			createdAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.ReceiptDigest, &rec.Engine, &status, &tokens, &merchant, &total, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ocr audit: %w", err)
		}
		if err := json.Unmarshal([]byte(tokens), &rec.Tokens); err != nil {
			return nil, fmt.Errorf("decode audit tokens for %s: %w", rec.ID, err)
		}
		rec.Status = models.ReceiptStatus(status)
		if merchant.Valid {
			rec.MerchantName = &merchant.String
		}
		if total.Valid {
			rec.TotalAmount = &total.Float64
		}
		rec.CreatedAt = createdAt
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
