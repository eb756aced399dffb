// backend/src/services/extraction_cache.go
package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/models"
)

const (
	ckReceiptExtraction    = "receipt:"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
	remoteWriteTimeout     = 250 * time.Millisecond
)

// ReceiptDigest identifies a receipt by its image bytes.
func ReceiptDigest(image []byte) string {
	sum := blake2b.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// receiptCache keeps extractions in process memory and, when a redis client is
// given, shares them across replicas. Redis errors count as misses.
type receiptCache struct {
	local  *cache.Cache
	remote redis.UniversalClient
	ttl    time.Duration
}

// NewExtractionCache builds the extraction cache. remote may be nil.
func NewExtractionCache(ttl time.Duration, remote redis.UniversalClient) ExtractionCache {
	if ttl <= 0 {
		ttl = DefaultCacheExpiration
	}
	return &receiptCache{
		local:  cache.New(ttl, CacheCleanupInterval),
		remote: remote,
		ttl:    ttl,
	}
}

func (c *receiptCache) Get(ctx context.Context, digest string) (models.ReceiptExtraction, bool) {
	key := ckReceiptExtraction + digest
	if cached, found := c.local.Get(key); found {
		return cached.(models.ReceiptExtraction), true
	}
	if c.remote == nil {
		return models.ReceiptExtraction{}, false
	}

	value, err := c.remote.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ReceiptExtraction{}, false
	} else if err != nil {
		logger.FromContext(ctx).Warn("Extraction cache read failed", "error", err)
		return models.ReceiptExtraction{}, false
	}

	var ext models.ReceiptExtraction
	if err := json.Unmarshal(value, &ext); err != nil {
		logger.FromContext(ctx).Warn("Discarding undecodable cached extraction", "key", key, "error", err)
		return models.ReceiptExtraction{}, false
	}
	c.local.Set(key, ext, cache.DefaultExpiration)
	return ext, true
}

// Set stores locally right away. The redis write runs in the background so it
// never eats into the caller's budget.
func (c *receiptCache) Set(ctx context.Context, digest string, ext models.ReceiptExtraction) {
	key := ckReceiptExtraction + digest
	c.local.Set(key, ext, cache.DefaultExpiration)
	if c.remote == nil {
		return
	}

	payload, err := json.Marshal(ext)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to encode extraction for cache", "error", err)
		return
	}
	log := logger.FromContext(ctx)
	go func() {
		wctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
		defer cancel()
		if err := c.remote.Set(wctx, key, payload, c.ttl).Err(); err != nil {
			log.Warn("Extraction cache write failed", "error", err)
		}
	}()
}
