package memory

import (
	"sync"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
)

// MemoryTreeStore is an in-memory implementation of ITreeStore.
//
// All data is lost when the process exits. Dumps are stored encoded so
// callers never share memory with the store.
type MemoryTreeStore struct {
	mu     sync.RWMutex
	trees  map[common.Hash][]byte
	closed bool
}

var _ persistence.ITreeStore = (*MemoryTreeStore)(nil)

func NewMemoryTreeStore() *MemoryTreeStore {
	return &MemoryTreeStore{
		trees: make(map[common.Hash][]byte),
	}
}

func (m *MemoryTreeStore) SaveTree(dump *merkle.TreeDump) (common.Hash, error) {
	root, data, err := persistence.MarshalTree(dump)
	if err != nil {
		return common.Hash{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return common.Hash{}, persistence.ErrStoreClosed
	}
	m.trees[root] = data
	return root, nil
}

func (m *MemoryTreeStore) LoadTree(root common.Hash) (*merkle.TreeDump, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrStoreClosed
	}
	data, ok := m.trees[root]
	if !ok {
		return nil, nil
	}
	return persistence.UnmarshalTree(root, data)
}

func (m *MemoryTreeStore) ListRoots() ([]common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrStoreClosed
	}
	roots := make([]common.Hash, 0, len(m.trees))
	for root := range m.trees {
		roots = append(roots, root)
	}
	persistence.SortRoots(roots)
	return roots, nil
}

func (m *MemoryTreeStore) DeleteTree(root common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrStoreClosed
	}
	delete(m.trees, root)
	return nil
}

func (m *MemoryTreeStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.trees = nil
	return nil
}

func (m *MemoryTreeStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrStoreClosed
	}
	return nil
}
