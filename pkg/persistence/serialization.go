package persistence

import (
	"bytes"
	"sort"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrStoreClosed is returned by every operation on a closed store.
var ErrStoreClosed = errors.New("tree store is closed")

// MarshalTree validates a dump and returns its root together with the
// encoded bytes to store.
func MarshalTree(dump *merkle.TreeDump) (common.Hash, []byte, error) {
	if dump == nil {
		return common.Hash{}, nil, errors.New("cannot save nil TreeDump")
	}
	tree, err := merkle.LoadAccountTree(dump)
	if err != nil {
		return common.Hash{}, nil, errors.Wrap(err, "invalid tree dump")
	}
	data, err := merkle.MarshalTreeDump(dump)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return tree.Root(), data, nil
}

// UnmarshalTree decodes stored bytes and checks they still hash to root.
func UnmarshalTree(root common.Hash, data []byte) (*merkle.TreeDump, error) {
	dump, err := merkle.UnmarshalTreeDump(data)
	if err != nil {
		return nil, err
	}
	tree, err := merkle.LoadAccountTree(dump)
	if err != nil {
		return nil, errors.Wrapf(err, "stored tree %s is corrupt", root.Hex())
	}
	if tree.Root() != root {
		return nil, errors.Errorf("stored tree root mismatch: want %s, got %s", root.Hex(), tree.Root().Hex())
	}
	return dump, nil
}

// SortRoots orders roots by their bytes.
func SortRoots(roots []common.Hash) {
	sort.Slice(roots, func(i, j int) bool {
		return bytes.Compare(roots[i][:], roots[j][:]) < 0
	})
}
