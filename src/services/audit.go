// backend/src/services/audit.go
package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/models"
)

// AuditStore persists OCR audit records.
type AuditStore interface {
	InsertOCRAudit(ctx context.Context, rec models.OCRAuditRecord) error
}

const auditWriteTimeout = 2 * time.Second

// AsyncAuditSink queues audit records and writes them from a single goroutine.
// When the queue is full new records are dropped.
type AsyncAuditSink struct {
	queue   chan models.OCRAuditRecord
	store   AuditStore
	dropped atomic.Int64
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncAuditSink(store AuditStore, queueSize int) *AsyncAuditSink {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &AsyncAuditSink{
		queue: make(chan models.OCRAuditRecord, queueSize),
		store: store,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Offer queues rec without blocking. It reports false when the record was
// dropped, either because the queue is full or the sink is closed.
func (s *AsyncAuditSink) Offer(rec models.OCRAuditRecord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	select {
	case s.queue <- rec:
		return true
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			logger.L.Warn("Audit queue full, dropping records", "dropped", n)
		}
		return false
	}
}

// Dropped reports how many records were discarded so far.
func (s *AsyncAuditSink) Dropped() int64 { return s.dropped.Load() }

// Close stops accepting records and waits for the queue to drain. Later
// Offers are refused. Close may be called more than once.
func (s *AsyncAuditSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *AsyncAuditSink) run() {
	defer s.wg.Done()
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		if err := s.store.InsertOCRAudit(ctx, rec); err != nil {
			logger.L.Error("Failed to write OCR audit record", "auditID", rec.ID, "requestID", rec.RequestID, "error", err)
		}
		cancel()
	}
}

// NoopAuditSink discards everything.
type NoopAuditSink struct{}

func (NoopAuditSink) Offer(models.OCRAuditRecord) bool { return true }
