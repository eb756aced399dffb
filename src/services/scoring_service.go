// backend/src/services/scoring_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/models"
	"github.com/username/merchantguard/backend/src/processors"
	"github.com/username/merchantguard/backend/src/security/validation"
)

// Request states, logged at debug level.
const (
	stateReceived      = "RECEIVED"
	stateFeaturesReady = "FEATURES_READY"
	stateOCRReady      = "OCR_READY"
	stateTimedOut      = "TIMED_OUT"
	stateMerged        = "MERGED"
	stateResponded     = "RESPONDED"
)

// ScoringServiceConfig wires the collaborators of the scoring service.
// Cache and Audit are optional.
type ScoringServiceConfig struct {
	Builder   *processors.FeatureBuilder
	Scorer    FraudScorer
	Extractor TextExtractor
	Loader    ReceiptImageLoader
	Parser    ReceiptParser
	Cache     ExtractionCache
	Audit     AuditSink

	RequestBudget  time.Duration
	OCRBudget      time.Duration
	ExtractTimeout time.Duration
}

type scoringServiceImpl struct {
	builder   *processors.FeatureBuilder
	scorer    FraudScorer
	extractor TextExtractor
	loader    ReceiptImageLoader
	parser    ReceiptParser
	cache     ExtractionCache
	audit     AuditSink

	requestBudget  time.Duration
	ocrBudget      time.Duration
	extractTimeout time.Duration
}

func NewScoringService(cfg ScoringServiceConfig) ScoringService {
	s := &scoringServiceImpl{
		builder:        cfg.Builder,
		scorer:         cfg.Scorer,
		extractor:      cfg.Extractor,
		loader:         cfg.Loader,
		parser:         cfg.Parser,
		cache:          cfg.Cache,
		audit:          cfg.Audit,
		requestBudget:  cfg.RequestBudget,
		ocrBudget:      cfg.OCRBudget,
		extractTimeout: cfg.ExtractTimeout,
	}
	if s.builder == nil {
		s.builder = processors.NewFeatureBuilder()
	}
	if s.cache == nil {
		s.cache = NewExtractionCache(DefaultCacheExpiration, nil)
	}
	if s.audit == nil {
		s.audit = NoopAuditSink{}
	}
	if s.extractTimeout <= 0 {
		s.extractTimeout = 5 * time.Second
	}
	return s
}

func (s *scoringServiceImpl) EngineName() string { return s.extractor.Name() }

type scoreLegResult struct {
	score    models.FraudScore
	err      error
	duration time.Duration
}

type receiptLegResult struct {
	extraction models.ReceiptExtraction
	status     models.ReceiptStatus
	digest     string
	tokens     []models.OCRToken
	err        error
	duration   time.Duration
}

// Score validates the transaction, then runs the scoring leg and the receipt leg
// concurrently. A scoring failure fails the request; a receipt failure only
// leaves merchant_name and total null.
func (s *scoringServiceImpl) Score(ctx context.Context, req models.ScoreRequest) (*ScoreOutcome, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	log.Debug("Scoring request state", "state", stateReceived, "hasReceipt", req.ReceiptPath != "")

	tx, err := validation.ValidateTransaction(req.Transaction)
	if err != nil {
		return nil, err
	}

	if s.requestBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestBudget)
		defer cancel()
	}

	scoreCh := make(chan scoreLegResult, 1)
	go func() {
		legStart := time.Now()
		score, err := s.scorer.Score(s.builder.Build(tx))
		scoreCh <- scoreLegResult{score: score, err: err, duration: time.Since(legStart)}
	}()

	var receiptCh chan receiptLegResult
	var ocrCtx context.Context
	if req.ReceiptPath != "" {
		var cancelOCR context.CancelFunc
		ocrCtx, cancelOCR = context.WithTimeout(ctx, s.ocrBudget)
		defer cancelOCR()

		receiptCh = make(chan receiptLegResult, 1)
		go func() {
			receiptCh <- s.runReceiptLeg(ocrCtx, req.ReceiptPath)
		}()
	}

	// Scoring leg.
	var scored scoreLegResult
	select {
	case scored = <-scoreCh:
	case <-ctx.Done():
		select {
		case scored = <-scoreCh:
		default:
			log.Debug("Scoring request state", "state", stateTimedOut, "leg", "score")
			return nil, fmt.Errorf("%w: %v", ErrScoringTimeout, ctx.Err())
		}
	}
	if scored.err != nil {
		return nil, scored.err
	}
	log.Debug("Scoring request state", "state", stateFeaturesReady, "scoreMs", ms(scored.duration))

	// Receipt leg.
	receipt := receiptLegResult{status: models.ReceiptSkipped}
	if receiptCh != nil {
		receipt = s.awaitReceipt(ocrCtx, receiptCh)
		if receipt.status == models.ReceiptTimeout {
			log.Debug("Scoring request state", "state", stateTimedOut, "leg", "ocr")
		} else {
			log.Debug("Scoring request state", "state", stateOCRReady, "status", receipt.status, "ocrMs", ms(receipt.duration))
		}
		if receipt.err != nil {
			logger.WarnFromContext(ctx, "Receipt extraction absorbed", "status", receipt.status, "error", receipt.err)
		}
		s.offerAudit(ctx, receipt)
	}

	out := &ScoreOutcome{
		Response: models.ScoreResponse{
			FraudScore:   scored.score,
			MerchantName: receipt.extraction.MerchantName,
			Total:        receipt.extraction.TotalAmount,
		},
		ReceiptStatus: receipt.status,
		Flagged:       float64(scored.score) >= s.scorer.Threshold(),
	}
	log.Debug("Scoring request state", "state", stateMerged)

	if out.Flagged {
		logger.InfoFromContext(ctx, "Transaction flagged",
			"fraudScore", float64(scored.score), "threshold", s.scorer.Threshold(),
			"type", tx.Type, "amount", tx.Amount, "binNetwork", binNetwork(tx).String())
	}
	log.Debug("Scoring request state", "state", stateResponded, "receiptStatus", receipt.status, "totalMs", ms(time.Since(start)))
	return out, nil
}

// awaitReceipt waits for the receipt leg until its context expires. A result that
// races the deadline still wins.
func (s *scoringServiceImpl) awaitReceipt(ctx context.Context, ch <-chan receiptLegResult) receiptLegResult {
	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		select {
		case r := <-ch:
			return r
		default:
		}
		return receiptLegResult{status: models.ReceiptTimeout, err: fmt.Errorf("%w: %v", ErrOCRTimeout, ctx.Err())}
	}
}

// ExtractReceipt runs the receipt leg alone.
func (s *scoringServiceImpl) ExtractReceipt(ctx context.Context, path string) models.ReceiptResult {
	ctx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	ch := make(chan receiptLegResult, 1)
	go func() { ch <- s.runReceiptLeg(ctx, path) }()
	r := s.awaitReceipt(ctx, ch)

	if r.err != nil {
		logger.WarnFromContext(ctx, "Receipt extraction failed", "path", path, "status", r.status, "error", r.err)
	}
	s.offerAudit(ctx, r)

	return models.ReceiptResult{
		MerchantName: r.extraction.MerchantName,
		TotalAmount:  r.extraction.TotalAmount,
		Engine:       s.extractor.Name(),
		Status:       r.status,
	}
}

// runReceiptLeg loads, extracts and parses one receipt. It never returns a
// partial extraction alongside an error.
func (s *scoringServiceImpl) runReceiptLeg(ctx context.Context, path string) receiptLegResult {
	start := time.Now()
	fail := func(status models.ReceiptStatus, err error) receiptLegResult {
		return receiptLegResult{status: status, err: err, duration: time.Since(start)}
	}

	image, _, err := s.loader.Load(path)
	if err != nil {
		return fail(models.ReceiptFailed, fmt.Errorf("%w: %v", ErrOCRFailure, err))
	}
	if ctx.Err() != nil {
		return fail(models.ReceiptTimeout, fmt.Errorf("%w: %v", ErrOCRTimeout, ctx.Err()))
	}

	digest := ReceiptDigest(image)
	if ext, ok := s.cache.Get(ctx, digest); ok {
		return receiptLegResult{extraction: ext, status: models.ReceiptCached, digest: digest, duration: time.Since(start)}
	}

	tokens, err := s.extractor.Extract(ctx, image)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fail(models.ReceiptTimeout, fmt.Errorf("%w: %v", ErrOCRTimeout, err))
		}
		return fail(models.ReceiptFailed, fmt.Errorf("%w: %v", ErrOCRFailure, err))
	}

	ext := s.parser.Parse(tokens)
	s.cache.Set(ctx, digest, ext)

	status := models.ReceiptOK
	if ext.Empty() {
		status = models.ReceiptMiss
	}
	return receiptLegResult{extraction: ext, status: status, digest: digest, tokens: tokens, duration: time.Since(start)}
}

func (s *scoringServiceImpl) offerAudit(ctx context.Context, r receiptLegResult) {
	if r.tokens == nil {
		return
	}
	s.audit.Offer(models.OCRAuditRecord{
		RequestID:     logger.RequestIDFromContext(ctx),
		ReceiptDigest: r.digest,
		Engine:        s.extractor.Name(),
		Status:        r.status,
		Tokens:        r.tokens,
		MerchantName:  r.extraction.MerchantName,
		TotalAmount:   r.extraction.TotalAmount,
	})
}

func binNetwork(tx models.TransactionRecord) processors.CardNetwork {
	if tx.BIN == nil {
		return processors.CardNetworkUnknown
	}
	network, _ := processors.ClassifyBIN(*tx.BIN)
	return network
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
