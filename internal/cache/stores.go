package cache

import (
	"github.com/andresuchdata/reorder-ai/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Stores bundles the model store and forecast cache sharing one backend.
type Stores struct {
	Models    ModelStore
	Forecasts ForecastCache

	client *redis.Client
}

// NewStores returns redis-backed stores when caching is enabled and
// process-local ones otherwise.
func NewStores(cfg config.CacheConfig) (*Stores, error) {
	if !cfg.Enabled {
		return NewMemoryStores(), nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().Str("addr", client.Options().Addr).Msg("cache: using redis model store")

	return &Stores{
		Models: newRedisModelStore(
			client,
			seconds(cfg.ModelTTLSeconds),
			seconds(cfg.LockTTLSeconds),
			seconds(cfg.LockWaitSeconds),
		),
		Forecasts: &redisForecastCache{
			client: client,
			ttl:    seconds(cfg.ForecastTTLSeconds),
		},
		client: client,
	}, nil
}

// NewMemoryStores returns process-local stores.
func NewMemoryStores() *Stores {
	return &Stores{
		Models:    NewMemoryModelStore(),
		Forecasts: NewMemoryForecastCache(),
	}
}

// Close releases the redis connection, if any.
func (s *Stores) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
