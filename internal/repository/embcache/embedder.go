// Package embcache caches query embeddings so repeated searches do not
// spend provider tokens.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/db"
	"github.com/careatlas/caresearch/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings in a key-value store.
// Entries record the provider that produced them so a cache hit still
// reports where the vector came from.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, provider, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{
			Embedding:  vec,
			Provider:   provider,
			Dimensions: len(vec),
		}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.putToCache(ctx, key, result)
	return result, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, "", false
	}
	if len(data) == 0 {
		return nil, "", false
	}

	vec, provider, err := decodeEntry(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, "", false
	}

	return vec, provider, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, result domain.EmbeddingResult) {
	data := encodeEntry(result.Embedding, result.Provider)
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

// Entry layout: 1 byte provider length, provider bytes, then the vector
// as little-endian FLOAT32.
func encodeEntry(vec []float32, provider string) []byte {
	if len(provider) > 255 {
		provider = provider[:255]
	}
	buf := make([]byte, 1+len(provider)+len(vec)*4)
	buf[0] = byte(len(provider))
	copy(buf[1:], provider)
	off := 1 + len(provider)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEntry(data []byte) ([]float32, string, error) {
	if len(data) < 1 {
		return nil, "", fmt.Errorf("invalid embedding cache data: empty")
	}
	plen := int(data[0])
	if len(data) < 1+plen {
		return nil, "", fmt.Errorf("invalid embedding cache data: truncated provider")
	}
	provider := string(data[1 : 1+plen])
	raw := data[1+plen:]
	if len(raw)%4 != 0 {
		return nil, "", fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, provider, nil
}
