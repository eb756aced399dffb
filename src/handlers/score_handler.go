// backend/src/handlers/score_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/models"
	"github.com/username/merchantguard/backend/src/scoring"
	"github.com/username/merchantguard/backend/src/security/validation"
	"github.com/username/merchantguard/backend/src/services"
)

// ReceiptStatusHeader tells clients why merchant_name/total may be null.
const ReceiptStatusHeader = "X-Receipt-Status"

type ScoreHandler struct {
	scoringService services.ScoringService
}

func NewScoreHandler(scoringService services.ScoringService) *ScoreHandler {
	return &ScoreHandler{scoringService: scoringService}
}

// HandleScore serves POST /score.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req models.ScoreRequest
	if status, msg := decodeJSONBody(r, &req); status != 0 {
		ctxLogger.Debug("Rejected score request body", "error", msg)
		sendJSONError(w, msg, status)
		return
	}

	outcome, err := h.scoringService.Score(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrValidationFailed):
			sendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrScoringTimeout):
			logger.ErrorFromContext(r.Context(), "Scoring timed out", "error", err)
			sendJSONError(w, "Scoring timed out", http.StatusServiceUnavailable)
		case errors.Is(err, scoring.ErrScorerUnavailable), errors.Is(err, scoring.ErrInternal):
			logger.ErrorFromContext(r.Context(), "Scoring failed", "error", err)
			sendJSONError(w, "Scoring failed", http.StatusInternalServerError)
		default:
			logger.ErrorFromContext(r.Context(), "Unexpected scoring error", "error", err)
			sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set(ReceiptStatusHeader, string(outcome.ReceiptStatus))
	sendJSON(w, http.StatusOK, outcome.Response)
}

// decodeJSONBody returns a non-zero status and message when the body is not a
// single JSON object.
func decodeJSONBody(r *http.Request, dst any) (int, string) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return http.StatusUnsupportedMediaType, "Content-Type must be application/json"
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return http.StatusRequestEntityTooLarge, "Request body too large"
		case errors.Is(err, io.EOF):
			return http.StatusBadRequest, "Request body is empty"
		default:
			return http.StatusBadRequest, "Malformed JSON: " + err.Error()
		}
	}
	if dec.More() {
		return http.StatusBadRequest, "Request body must contain a single JSON object"
	}
	return 0, ""
}
