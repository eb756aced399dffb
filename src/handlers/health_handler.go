package handlers

import (
	"net/http"
)

// ModelInfo describes the loaded fraud model.
type ModelInfo interface {
	Kind() string
	Version() string
}

type HealthHandler struct {
	model      ModelInfo
	engineName func() string
}

func NewHealthHandler(model ModelInfo, engineName func() string) *HealthHandler {
	return &HealthHandler{model: model, engineName: engineName}
}

// HandleLive serves GET /healthz.
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady serves GET /readyz. The service is ready once the model is loaded;
// a missing OCR engine is reported as degraded since scoring still works.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.model == nil {
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "model not loaded"})
		return
	}

	engine := h.engineName()
	status := "ready"
	if engine == "unavailable" {
		status = "degraded"
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"model": map[string]string{
			"kind":    h.model.Kind(),
			"version": h.model.Version(),
		},
		"ocr_engine": engine,
	})
}
