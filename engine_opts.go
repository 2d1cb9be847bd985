package recipesync

import "log/slog"

const (
	defaultEntityBatchSize = 10
	defaultPhotoBatchSize  = 3
)

// config holds Engine configuration.
type config struct {
	entityBatch int
	photoBatch  int
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*config)

func defaultConfig() config {
	return config{
		entityBatch: defaultEntityBatchSize,
		photoBatch:  defaultPhotoBatchSize,
	}
}

// WithEntityBatchSize sets the batch size for entity fetches. Peak fetch
// concurrency equals the batch size. Defaults to 10.
func WithEntityBatchSize(n int) Option {
	return func(c *config) {
		c.entityBatch = n
	}
}

// WithPhotoBatchSize sets the batch size for photo blob fetches; smaller
// than the entity batch because payloads are larger. Defaults to 3.
func WithPhotoBatchSize(n int) Option {
	return func(c *config) {
		c.photoBatch = n
	}
}

// WithLogger sets the logger for sync operations. If not set, logging is
// disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
