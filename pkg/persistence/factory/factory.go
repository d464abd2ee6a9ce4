package factory

import (
	"github.com/d4a-protocol/d4a-test-helpers/pkg/config"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence/badger"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence/memory"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence/redis"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewTreeStore opens the backend named by cfg.Type. It returns nil, nil
// when no store is configured.
func NewTreeStore(cfg *config.StoreConfig, l *zap.Logger) (persistence.ITreeStore, error) {
	if cfg == nil {
		return nil, nil
	}

	switch cfg.Type {
	case "", config.StoreTypeNone:
		return nil, nil
	case config.StoreTypeMemory:
		l.Sugar().Warn("Using in-memory tree store, trees are lost on exit")
		return memory.NewMemoryTreeStore(), nil
	case config.StoreTypeBadger:
		if cfg.Dir == "" {
			return nil, errors.New("badger store requires a directory")
		}
		return badger.NewBadgerTreeStore(cfg.Dir, l)
	case config.StoreTypeRedis:
		return redis.NewRedisTreeStore(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	default:
		return nil, errors.Errorf("unsupported store type %q", cfg.Type)
	}
}
