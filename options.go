package caresearch

import (
	"time"

	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs          []string
	password       string
	embedder       Embedder
	searchDefaults domain.SearchOptions
	batchSize      int
	batchDelay     time.Duration
	logger         *zap.Logger
}

// WithRedis sets the Redis (or Valkey) addresses to connect to.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) {
		c.addrs = addrs
	}
}

// WithPassword sets the database password.
func WithPassword(password string) Option {
	return func(c *clientConfig) {
		c.password = password
	}
}

// WithEmbedder sets the text embedder used for semantic search and
// indexing. Without one, search runs lexical-only.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithSearchDefaults overrides the default ranking weights.
func WithSearchDefaults(opts SearchOptions) Option {
	return func(c *clientConfig) {
		c.searchDefaults = opts
	}
}

// WithBatching sets the indexing batch size and inter-batch delay.
func WithBatching(size int, delay time.Duration) Option {
	return func(c *clientConfig) {
		c.batchSize = size
		c.batchDelay = delay
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
