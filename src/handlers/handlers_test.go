package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/username/merchantguard/backend/src/models"
	"github.com/username/merchantguard/backend/src/ocr"
	"github.com/username/merchantguard/backend/src/parsers/receipt"
	"github.com/username/merchantguard/backend/src/processors"
	"github.com/username/merchantguard/backend/src/scoring"
	"github.com/username/merchantguard/backend/src/security"
	"github.com/username/merchantguard/backend/src/services"
)

const scenarioTx = `{"step":1,"type":"TRANSFER","amount":500.0,"oldbalanceOrg":1500.0,"newbalanceOrig":1000.0,"oldbalanceDest":200.0,"newbalanceDest":700.0,"isFlaggedFraud":0}`

type tokenExtractor struct{ tokens []models.OCRToken }

func (e tokenExtractor) Name() string { return "fake-ocr" }

func (e tokenExtractor) Extract(context.Context, []byte) ([]models.OCRToken, error) {
	return e.tokens, nil
}

func box(text string, left, top float64) models.OCRToken {
	return models.OCRToken{Text: text, Box: models.BoundingBox{Left: left, Top: top, Right: left + 60, Bottom: top + 20}, Confidence: 0.9}
}

type testServer struct {
	handler http.Handler
	scorer  *scoring.Scorer
}

func newTestServer(t *testing.T, cfg RouterConfig) testServer {
	t.Helper()
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 64))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "walmart.png"), buf.Bytes(), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.jpg"), []byte("\xff\xd8\xff\xe0 not a jpeg"), 0o600))

	scorer, err := scoring.LoadModel(filepath.Join("..", "..", "data", "fraud_model.json"), processors.FeatureNames)
	require.NoError(t, err)

	svc := services.NewScoringService(services.ScoringServiceConfig{
		Scorer: scorer,
		Extractor: tokenExtractor{tokens: []models.OCRToken{
			box("Walmart", 100, 10),
			box("TOTAL", 10, 200), box("$123.45", 300, 200),
		}},
		Loader:        ocr.NewImageLoader(dir, 1<<20, 0),
		Parser:        receipt.NewParser(),
		RequestBudget: 500 * time.Millisecond,
		OCRBudget:     300 * time.Millisecond,
	})

	cfg.ScoringService = svc
	cfg.Model = scorer
	return testServer{handler: NewRouter(cfg), scorer: scorer}
}

func post(t *testing.T, h http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestScore_ReceiptExtracted(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := post(t, srv.handler, "/score", fmt.Sprintf(`{"transaction":%s,"receipt_path":"walmart.png"}`, scenarioTx))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ok", rec.Header().Get(ReceiptStatusHeader))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	body := decodeBody(t, rec)
	score, ok := body["fraud_score"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Equal(t, "Walmart", body["merchant_name"])
	assert.Equal(t, 123.45, body["total"])
}

func TestScore_CorruptReceiptReturnsNulls(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := post(t, srv.handler, "/score", fmt.Sprintf(`{"transaction":%s,"receipt_path":"corrupt.jpg"}`, scenarioTx))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", rec.Header().Get(ReceiptStatusHeader))

	body := decodeBody(t, rec)
	assert.Contains(t, body, "fraud_score")
	assert.Contains(t, body, "merchant_name")
	assert.Nil(t, body["merchant_name"])
	assert.Contains(t, body, "total")
	assert.Nil(t, body["total"])
}

func TestScore_NegativeAmountRejected(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	tx := strings.Replace(scenarioTx, `"amount":500.0`, `"amount":-50.0`, 1)

	rec := post(t, srv.handler, "/score", fmt.Sprintf(`{"transaction":%s}`, tx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.NotContains(t, body, "fraud_score")
	assert.Contains(t, body["error"], "amount")
}

func TestScore_MalformedRequests(t *testing.T) {
	srv := newTestServer(t, RouterConfig{MaxBodyBytes: 512})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty", "", http.StatusBadRequest},
		{"not json", "{nope", http.StatusBadRequest},
		{"two objects", `{"transaction":` + scenarioTx + `} {}`, http.StatusBadRequest},
		{"missing transaction", `{"receipt_path":"walmart.png"}`, http.StatusBadRequest},
		{"wrong type", `{"transaction":{"step":"one"}}`, http.StatusBadRequest},
		{"too large", `{"transaction":` + scenarioTx + `,"receipt_path":"` + strings.Repeat("a", 1024) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv.handler, "/score", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, decodeBody(t, rec), "error")
		})
	}
}

func TestScore_WrongContentType(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	rec := post(t, srv.handler, "/score", `{}`, "Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestScore_Idempotent(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	body := fmt.Sprintf(`{"transaction":%s,"receipt_path":"walmart.png"}`, scenarioTx)

	first := post(t, srv.handler, "/score", body)
	second := post(t, srv.handler, "/score", body)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "cached", second.Header().Get(ReceiptStatusHeader))
}

func TestExtractReceipt(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := post(t, srv.handler, "/receipts/extract", `{"receipt_path":"walmart.png"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Walmart", body["merchant_name"])
	assert.Equal(t, 123.45, body["total_amount"])
	assert.Equal(t, "fake-ocr", body["ocr_engine_used"])
	assert.Equal(t, "ok", body["status"])

	rec = post(t, srv.handler, "/receipts/extract", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "fake-ocr", body["ocr_engine"])
	assert.Equal(t, scoring.KindTreeEnsemble, body["model"].(map[string]any)["kind"])
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := post(t, srv.handler, "/score", fmt.Sprintf(`{"transaction":%s}`, scenarioTx), RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "skipped", rec.Header().Get(ReceiptStatusHeader))

	rec = post(t, srv.handler, "/score", fmt.Sprintf(`{"transaction":%s}`, scenarioTx), RequestIDHeader, "bad id\n")
	assert.NotEqual(t, "bad id\n", rec.Header().Get(RequestIDHeader))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, RouterConfig{Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	body := fmt.Sprintf(`{"transaction":%s}`, scenarioTx)

	assert.Equal(t, http.StatusOK, post(t, srv.handler, "/score", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, srv.handler, "/score", body).Code)
}

func TestAuth(t *testing.T) {
	auth := security.NewAuthService("0123456789abcdef0123456789abcdef")
	srv := newTestServer(t, RouterConfig{Auth: auth})
	body := fmt.Sprintf(`{"transaction":%s}`, scenarioTx)

	assert.Equal(t, http.StatusUnauthorized, post(t, srv.handler, "/score", body).Code)
	assert.Equal(t, http.StatusUnauthorized, post(t, srv.handler, "/score", body, "Authorization", "Bearer junk").Code)

	token, err := auth.GenerateToken("onboarding", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, post(t, srv.handler, "/score", body, "Authorization", "Bearer "+token).Code)

	// Probes stay open.
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingService struct {
	services.ScoringService
	err error
}

func (f failingService) Score(context.Context, models.ScoreRequest) (*services.ScoreOutcome, error) {
	return nil, f.err
}

func (f failingService) EngineName() string { return "fake" }

func TestScore_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: width", scoring.ErrInternal), http.StatusInternalServerError},
		{fmt.Errorf("%w: nan", scoring.ErrScorerUnavailable), http.StatusInternalServerError},
		{fmt.Errorf("%w: deadline", services.ErrScoringTimeout), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewRouter(RouterConfig{ScoringService: failingService{err: tt.err}})
			rec := post(t, h, "/score", fmt.Sprintf(`{"transaction":%s}`, scenarioTx))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
