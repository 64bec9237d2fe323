// Package store persists synced products in Redis.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shopsync/shopsync/pkg/mapping"
)

// Prometheus metrics for store operations.
var (
	productsSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopsync_store_products_saved_total",
		Help: "Total products written to the store",
	})

	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsync_store_errors_total",
		Help: "Total store operation errors by operation",
	}, []string{"operation"})
)

// ErrNotFound indicates the requested product is not in the store.
var ErrNotFound = errors.New("product not found")

// Redis key layout.
const (
	productKeyPrefix = "shopsync:product:"
	productIndexKey  = "shopsync:products"
)

// Store writes product records to Redis. Each product is a hash under
// shopsync:product:<id>, with all known IDs collected in a set for counting.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// New creates a product store with a Redis backend.
func New(redisClient *redis.Client, logger zerolog.Logger) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		logger: logger,
	}
}

// SaveProducts writes all products in one pipeline. Re-saving a product
// overwrites its fields, so repeated sync runs converge on the latest data.
func (s *Store) SaveProducts(ctx context.Context, products []mapping.Product) error {
	if len(products) == 0 {
		return nil
	}

	pipe := s.redis.Pipeline()
	for _, p := range products {
		key := productKeyPrefix + p.ID
		pipe.HSet(ctx, key, map[string]interface{}{
			"id":         p.ID,
			"title":      p.Title,
			"updated_at": p.UpdatedAt,
		})
		pipe.SAdd(ctx, productIndexKey, p.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		storeErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("save products in redis: %w", err)
	}

	productsSavedTotal.Add(float64(len(products)))

	s.logger.Debug().
		Int("count", len(products)).
		Msg("Saved products to store")

	return nil
}

// Get retrieves one product by ID.
// Returns ErrNotFound if the product has never been saved.
func (s *Store) Get(ctx context.Context, id string) (*mapping.Product, error) {
	fields, err := s.redis.HGetAll(ctx, productKeyPrefix+id).Result()
	if err != nil {
		storeErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return &mapping.Product{
		ID:        fields["id"],
		Title:     fields["title"],
		UpdatedAt: fields["updated_at"],
	}, nil
}

// Count returns the number of distinct products ever saved.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.redis.SCard(ctx, productIndexKey).Result()
	if err != nil {
		storeErrorsTotal.WithLabelValues("count").Inc()
		return 0, fmt.Errorf("redis scard: %w", err)
	}
	return count, nil
}
