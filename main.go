package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/username/merchantguard/backend/src/config"
	"github.com/username/merchantguard/backend/src/database"
	"github.com/username/merchantguard/backend/src/handlers"
	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/ocr"
	"github.com/username/merchantguard/backend/src/parsers/receipt"
	"github.com/username/merchantguard/backend/src/processors"
	"github.com/username/merchantguard/backend/src/scoring"
	"github.com/username/merchantguard/backend/src/security"
	"github.com/username/merchantguard/backend/src/services"
)

func main() {
	batchDir := flag.String("batch-dir", "", "extract every receipt image in this folder and exit")
	batchOut := flag.String("batch-out", "ocr_results.json", "output file for -batch-dir")
	flag.Parse()

	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	if err := config.Cfg.Validate(); err != nil {
		logger.L.Error("Configuration invalid", "error", err)
		os.Exit(1)
	}

	logger.L.Info("MerchantGuard scoring service starting...")

	scorer, err := scoring.LoadModel(config.Cfg.ModelPath, processors.FeatureNames)
	if err != nil {
		logger.L.Error("Failed to load fraud model", "path", config.Cfg.ModelPath, "error", err)
		os.Exit(1)
	}

	receiptRoot := config.Cfg.ReceiptRoot
	if *batchDir != "" {
		receiptRoot = *batchDir
	}

	var remote redis.UniversalClient
	if config.Cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: config.Cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.L.Warn("Redis not reachable, extraction cache stays in-process until it recovers", "addr", config.Cfg.RedisAddr, "error", err)
		}
		cancel()
		defer client.Close()
		remote = client
	}

	var audit services.AuditSink = services.NoopAuditSink{}
	if config.Cfg.AuditEnabled {
		logger.L.Info("Initializing audit database...", "path", config.Cfg.AuditDBPath)
		db, err := database.Open(config.Cfg.AuditDBPath)
		if err != nil {
			logger.L.Error("Failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := database.RunMigrations(db); err != nil {
			logger.L.Error("Failed to run audit migrations", "error", err)
			os.Exit(1)
		}
		sink := services.NewAsyncAuditSink(database.NewAuditRepository(db), config.Cfg.AuditQueueSize)
		defer func() {
			sink.Close()
			if dropped := sink.Dropped(); dropped > 0 {
				logger.L.Warn("Audit records dropped", "count", dropped)
			}
		}()
		audit = sink
	}

	scoringService := services.NewScoringService(services.ScoringServiceConfig{
		Builder:        processors.NewFeatureBuilder(),
		Scorer:         scorer,
		Extractor:      newExtractor(),
		Loader:         ocr.NewImageLoader(receiptRoot, config.Cfg.MaxReceiptBytes, config.Cfg.MaxReceiptPixels),
		Parser:         receipt.NewParser(),
		Cache:          services.NewExtractionCache(config.Cfg.ExtractionCacheTTL, remote),
		Audit:          audit,
		RequestBudget:  config.Cfg.RequestBudget,
		OCRBudget:      config.Cfg.OCRBudget,
		ExtractTimeout: config.Cfg.OCRServiceTimeout,
	})

	if *batchDir != "" {
		runBatch(scoringService, *batchDir, *batchOut)
		return
	}

	var authService *security.AuthService
	if config.Cfg.JWTSecret != "" {
		authService = security.NewAuthService(config.Cfg.JWTSecret)
	} else {
		logger.L.Warn("JWT_SECRET not set, scoring endpoints are unauthenticated")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		ScoringService: scoringService,
		Model:          scorer,
		Limiter:        rate.NewLimiter(rate.Limit(config.Cfg.RateLimitRPS), config.Cfg.RateLimitBurst),
		Auth:           authService,
		MaxBodyBytes:   config.Cfg.MaxBodyBytes,
	})

	serverAddr := ":" + config.Cfg.Port
	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		stdlog.Fatalf("Failed to listen on %s: %v", serverAddr, err)
	}
	if config.Cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, config.Cfg.MaxConnections)
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr, "model", scorer.Version(), "ocrEngine", scoringService.EngineName())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.L.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), config.Cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("Graceful shutdown failed", "error", err)
	}
}

// newExtractor picks the configured OCR backend. A missing tesseract binary only
// degrades receipt extraction.
func newExtractor() services.TextExtractor {
	if config.Cfg.OCRBackend == config.OCRBackendHTTP {
		return ocr.NewHTTPExtractor(config.Cfg.OCRServiceURL, config.Cfg.OCRServiceTimeout)
	}

	extractor, err := ocr.NewTesseractExtractor(config.Cfg.TesseractPath, config.Cfg.TesseractLang, config.Cfg.TesseractPSM)
	if err != nil {
		logger.L.Warn("Tesseract unavailable, receipts will not be read", "path", config.Cfg.TesseractPath, "error", err)
		return ocr.UnavailableExtractor{Reason: err}
	}
	return extractor
}

func runBatch(svc services.ScoringService, dir, out string) {
	results, err := services.ExtractFolder(context.Background(), svc, dir)
	if err != nil {
		logger.L.Error("Batch extraction failed", "dir", dir, "error", err)
		os.Exit(1)
	}
	if err := services.WriteBatchResults(out, results); err != nil {
		logger.L.Error("Failed to write batch results", "path", out, "error", err)
		os.Exit(1)
	}
	logger.L.Info("Batch extraction complete", "files", len(results), "output", out)
}
