package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/username/merchantguard/backend/src/security"
	"github.com/username/merchantguard/backend/src/services"
)

// RouterConfig carries what the HTTP layer needs. Limiter and Auth are optional.
type RouterConfig struct {
	ScoringService services.ScoringService
	Model          ModelInfo
	Limiter        *rate.Limiter
	Auth           *security.AuthService
	MaxBodyBytes   int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	scoreHandler := NewScoreHandler(cfg.ScoringService)
	receiptHandler := NewReceiptHandler(cfg.ScoringService)
	healthHandler := NewHealthHandler(cfg.Model, cfg.ScoringService.EngineName)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(ContextualLoggerMiddleware)

	r.Get("/healthz", healthHandler.HandleLive)
	r.Get("/readyz", healthHandler.HandleReady)

	r.Group(func(r chi.Router) {
		if cfg.MaxBodyBytes > 0 {
			r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
		}
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter))
		}
		if cfg.Auth != nil {
			r.Use(AuthMiddleware(cfg.Auth))
		}

		r.Post("/score", scoreHandler.HandleScore)
		r.Post("/receipts/extract", receiptHandler.HandleExtract)
	})

	return r
}
