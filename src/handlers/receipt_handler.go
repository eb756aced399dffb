package handlers

import (
	"net/http"
	"strings"

	"github.com/username/merchantguard/backend/src/services"
)

type ReceiptHandler struct {
	scoringService services.ScoringService
}

func NewReceiptHandler(scoringService services.ScoringService) *ReceiptHandler {
	return &ReceiptHandler{scoringService: scoringService}
}

type extractReceiptRequest struct {
	ReceiptPath string `json:"receipt_path"`
}

// HandleExtract serves POST /receipts/extract. Extraction failures still return 200
// with null fields and a status.
func (h *ReceiptHandler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractReceiptRequest
	if status, msg := decodeJSONBody(r, &req); status != 0 {
		sendJSONError(w, msg, status)
		return
	}
	if strings.TrimSpace(req.ReceiptPath) == "" {
		sendJSONError(w, "receipt_path is required", http.StatusBadRequest)
		return
	}

	result := h.scoringService.ExtractReceipt(r.Context(), req.ReceiptPath)
	w.Header().Set(ReceiptStatusHeader, string(result.Status))
	sendJSON(w, http.StatusOK, result)
}
