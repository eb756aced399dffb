// backend/src/services/batch.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/models"
)

// BatchImageExtensions are the receipt file types picked up in batch mode.
var BatchImageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// BatchResults maps a file name to what was extracted from it.
type BatchResults map[string]models.ReceiptResult

// ExtractFolder runs receipt extraction over every image directly inside dir.
// The service's image loader must accept paths relative to dir.
func ExtractFolder(ctx context.Context, svc ScoringService, dir string) (BatchResults, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch directory %s: %w", dir, err)
	}

	results := BatchResults{}
	for _, entry := range entries {
		if entry.IsDir() || !BatchImageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := svc.ExtractReceipt(ctx, entry.Name())
		if res.Status == models.ReceiptFailed || res.Status == models.ReceiptTimeout {
			res.Engine = fmt.Sprintf("error: %s", res.Status)
		}
		results[entry.Name()] = res

		logger.L.Info("Batch receipt processed", "file", entry.Name(), "merchant", deref(res.MerchantName), "total", res.TotalAmount, "engine", res.Engine, "status", res.Status)
	}
	return results, nil
}

// WriteBatchResults writes results as indented JSON.
func WriteBatchResults(path string, results BatchResults) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode batch results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write batch results %s: %w", path, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
