package badger

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	keyPrefixTree        = "tree:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// BadgerTreeStore is a disk-backed ITreeStore.
type BadgerTreeStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.ITreeStore = (*BadgerTreeStore)(nil)

// NewBadgerTreeStore opens (or creates) a store at dataPath with SyncWrites
// enabled and starts the value log GC loop.
func NewBadgerTreeStore(dataPath string, logger *zap.Logger) (*BadgerTreeStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path")
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bs := &BadgerTreeStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger tree store initialized", "path", absPath)
	return bs, nil
}

func treeKey(root common.Hash) []byte {
	return []byte(keyPrefixTree + root.Hex())
}

func (b *BadgerTreeStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return errors.Wrap(err, "failed to read schema version")
		}

		var existing string
		if err := item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		}); err != nil {
			return errors.Wrap(err, "failed to read schema version value")
		}
		if existing != currentSchemaVersion {
			return errors.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerTreeStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *BadgerTreeStore) SaveTree(dump *merkle.TreeDump) (common.Hash, error) {
	root, data, err := persistence.MarshalTree(dump)
	if err != nil {
		return common.Hash{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return common.Hash{}, persistence.ErrStoreClosed
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(treeKey(root), data)
	})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to save tree")
	}
	b.logger.Sugar().Debugw("Saved tree", zap.String("root", root.Hex()), zap.Int("leaves", len(dump.Values)))
	return root, nil
}

func (b *BadgerTreeStore) LoadTree(root common.Hash) (*merkle.TreeDump, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrStoreClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(treeKey(root))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tree")
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalTree(root, data)
}

func (b *BadgerTreeStore) ListRoots() ([]common.Hash, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrStoreClosed
	}

	roots := make([]common.Hash, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixTree)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			roots = append(roots, common.HexToHash(strings.TrimPrefix(key, keyPrefixTree)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trees")
	}

	persistence.SortRoots(roots)
	return roots, nil
}

func (b *BadgerTreeStore) DeleteTree(root common.Hash) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrStoreClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(treeKey(root))
	})
}

// Close stops the GC loop and closes the database.
func (b *BadgerTreeStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close badger database")
	}

	b.logger.Sugar().Info("Badger tree store closed")
	return nil
}

func (b *BadgerTreeStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrStoreClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return errors.New("schema version not found - database may be corrupted")
		}
		return err
	})
}
