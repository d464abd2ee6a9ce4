package persistence

import (
	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/ethereum/go-ethereum/common"
)

// ITreeStore persists merkle tree dumps keyed by their root.
//
// All implementations must be thread-safe.
type ITreeStore interface {
	// SaveTree validates the dump and stores it under its root.
	// Saving the same tree twice overwrites the previous entry.
	SaveTree(dump *merkle.TreeDump) (common.Hash, error)

	// LoadTree returns the dump stored under root.
	// Returns nil, nil if no tree exists for that root.
	LoadTree(root common.Hash) (*merkle.TreeDump, error)

	// ListRoots returns every stored root in ascending byte order.
	ListRoots() ([]common.Hash, error)

	// DeleteTree removes the tree stored under root.
	// Idempotent - returns nil if the tree doesn't exist.
	DeleteTree(root common.Hash) error

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrStoreClosed.
	Close() error

	// HealthCheck returns nil if the store is operational.
	HealthCheck() error
}
