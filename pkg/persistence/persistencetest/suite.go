// Package persistencetest holds the behaviour every ITreeStore backend must share.
package persistencetest

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewDump builds a valid dump over n generated accounts, offset by seed.
func NewDump(t *testing.T, n int, seed int) *merkle.TreeDump {
	t.Helper()
	accounts := make([]common.Address, n)
	for i := range accounts {
		accounts[i] = common.BigToAddress(big.NewInt(int64(seed*1000 + i + 1)))
	}
	tree, err := merkle.NewAccountTree(accounts)
	require.NoError(t, err)
	return tree.Dump()
}

// RunTreeStoreTests exercises an ITreeStore backend. newStore must return
// an empty store; the suite closes it.
func RunTreeStoreTests(t *testing.T, newStore func(t *testing.T) persistence.ITreeStore) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		dump := NewDump(t, 3, 1)
		root, err := store.SaveTree(dump)
		require.NoError(t, err)
		assert.Equal(t, dump.Tree[0], root.Hex())

		loaded, err := store.LoadTree(root)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, dump, loaded)

		tree, err := merkle.LoadAccountTree(loaded)
		require.NoError(t, err)
		assert.Equal(t, root, tree.Root())
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadTree(common.Hash{0xde, 0xad})
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveRejectsInvalidDump", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		_, err := store.SaveTree(nil)
		assert.Error(t, err)

		dump := NewDump(t, 2, 2)
		dump.Tree[0] = common.Hash{0x01}.Hex()
		_, err = store.SaveTree(dump)
		assert.Error(t, err)

		roots, err := store.ListRoots()
		require.NoError(t, err)
		assert.Empty(t, roots)
	})

	t.Run("SaveIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		dump := NewDump(t, 4, 3)
		first, err := store.SaveTree(dump)
		require.NoError(t, err)
		second, err := store.SaveTree(dump)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		roots, err := store.ListRoots()
		require.NoError(t, err)
		assert.Len(t, roots, 1)
	})

	t.Run("ListRootsSorted", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		var want []common.Hash
		for i := 0; i < 5; i++ {
			root, err := store.SaveTree(NewDump(t, i+1, 10+i))
			require.NoError(t, err)
			want = append(want, root)
		}
		persistence.SortRoots(want)

		roots, err := store.ListRoots()
		require.NoError(t, err)
		assert.Equal(t, want, roots)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		root, err := store.SaveTree(NewDump(t, 2, 4))
		require.NoError(t, err)

		require.NoError(t, store.DeleteTree(root))
		require.NoError(t, store.DeleteTree(root))

		loaded, err := store.LoadTree(root)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		roots, err := store.ListRoots()
		require.NoError(t, err)
		assert.Empty(t, roots)
	})

	t.Run("ClosedStoreErrors", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())

		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		_, err := store.SaveTree(NewDump(t, 1, 5))
		assert.True(t, errors.Is(err, persistence.ErrStoreClosed))
		_, err = store.LoadTree(common.Hash{})
		assert.True(t, errors.Is(err, persistence.ErrStoreClosed))
		_, err = store.ListRoots()
		assert.True(t, errors.Is(err, persistence.ErrStoreClosed))
		assert.True(t, errors.Is(store.DeleteTree(common.Hash{}), persistence.ErrStoreClosed))
		assert.True(t, errors.Is(store.HealthCheck(), persistence.ErrStoreClosed))
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		const workers = 8
		dumps := make([]*merkle.TreeDump, workers)
		for i := range dumps {
			dumps[i] = NewDump(t, 3, 100+i)
		}

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				root, err := store.SaveTree(dumps[i])
				if err != nil {
					errs <- err
					return
				}
				loaded, err := store.LoadTree(root)
				if err != nil {
					errs <- err
					return
				}
				if loaded == nil {
					errs <- fmt.Errorf("tree %s not found after save", root.Hex())
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		roots, err := store.ListRoots()
		require.NoError(t, err)
		assert.Len(t, roots, workers)
	})
}
