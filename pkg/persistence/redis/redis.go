package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefixTree        = "tree:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so roots are tracked in a set.
	keySetTrees = "trees:index"

	opTimeout = 5 * time.Second
)

// RedisTreeStore is an ITreeStore backed by a Redis server.
type RedisTreeStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.ITreeStore = (*RedisTreeStore)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "d4a:" gives "d4a:tree:0x...".
	KeyPrefix string
}

func NewRedisTreeStore(cfg *RedisConfig, logger *zap.Logger) (*RedisTreeStore, error) {
	if cfg == nil {
		return nil, errors.New("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", cfg.Address)
	}

	rs := &RedisTreeStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	logger.Sugar().Infow("Redis tree store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	return rs, nil
}

func (r *RedisTreeStore) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisTreeStore) treeKey(root common.Hash) string {
	return r.prefixKey(keyPrefixTree + root.Hex())
}

func (r *RedisTreeStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existing, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}
	if existing != currentSchemaVersion {
		return errors.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func (r *RedisTreeStore) SaveTree(dump *merkle.TreeDump) (common.Hash, error) {
	root, data, err := persistence.MarshalTree(dump)
	if err != nil {
		return common.Hash{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return common.Hash{}, persistence.ErrStoreClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.treeKey(root), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetTrees), root.Hex())
	if _, err := pipe.Exec(ctx); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to save tree")
	}

	r.logger.Sugar().Debugw("Saved tree", zap.String("root", root.Hex()), zap.Int("leaves", len(dump.Values)))
	return root, nil
}

func (r *RedisTreeStore) LoadTree(root common.Hash) (*merkle.TreeDump, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrStoreClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.treeKey(root)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tree")
	}
	return persistence.UnmarshalTree(root, data)
}

// ListRoots reads the index set. Index entries whose tree key has gone
// missing are pruned.
func (r *RedisTreeStore) ListRoots() ([]common.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrStoreClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	indexKey := r.prefixKey(keySetTrees)
	members, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trees")
	}

	roots := make([]common.Hash, 0, len(members))
	for _, member := range members {
		root := common.HexToHash(strings.TrimSpace(member))
		exists, err := r.client.Exists(ctx, r.treeKey(root)).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check tree %s", member)
		}
		if exists == 0 {
			r.client.SRem(ctx, indexKey, member)
			continue
		}
		roots = append(roots, root)
	}

	persistence.SortRoots(roots)
	return roots, nil
}

func (r *RedisTreeStore) DeleteTree(root common.Hash) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrStoreClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.treeKey(root))
	pipe.SRem(ctx, r.prefixKey(keySetTrees), root.Hex())
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to delete tree")
	}
	return nil
}

func (r *RedisTreeStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "failed to close Redis client")
	}

	r.logger.Sugar().Info("Redis tree store closed")
	return nil
}

func (r *RedisTreeStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrStoreClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis health check failed")
	}
	return nil
}
