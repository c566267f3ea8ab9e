package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/config"
	"github.com/wms/shopsync/internal/infrastructure/shopify"
	"go.uber.org/zap"
)

// Stores bundles the Redis-backed stores the sync engine shares across replicas
type Stores struct {
	Budget     shopify.CallBudgetStore
	Deliveries shared.IdempotencyStore
	// Client is nil when running on the in-memory fallback
	Client *redis.Client
}

// Close releases the deliveries store and the Redis client
func (s *Stores) Close() error {
	if s.Deliveries != nil {
		_ = s.Deliveries.Close()
	}
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory. Fallback is allowed unless the
// Redis config marks it required.
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: !cfg.Required,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// CreateStores returns Redis-backed stores, or in-memory ones when Redis is
// unreachable and fallback is allowed
func (f *StoreFactory) CreateStores(ctx context.Context) (*Stores, error) {
	client, err := NewRedisClient(ctx, f.redisConfig, f.pingTimeout)
	if err == nil {
		f.logger.Info("using Redis call budget and delivery stores", zap.String("addr", f.redisConfig.Addr()))
		return &Stores{
			Budget:     NewRedisCallBudgetStore(client),
			Deliveries: NewRedisIdempotencyStore(client, DefaultDeliveryKeyPrefix),
			Client:     client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for call budget but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Call budgets and webhook dedup are not shared between replicas.",
		zap.Error(err),
	)
	return &Stores{
		Budget:     NewInMemoryCallBudgetStore(),
		Deliveries: NewInMemoryIdempotencyStore(),
	}, nil
}
