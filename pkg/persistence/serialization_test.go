package persistence

import (
	"testing"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDump(t *testing.T) *merkle.TreeDump {
	t.Helper()
	tree, err := merkle.BuildAccountTree([]string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
	})
	require.NoError(t, err)
	return tree.Dump()
}

func TestMarshalUnmarshalTree(t *testing.T) {
	dump := testDump(t)

	root, data, err := MarshalTree(dump)
	require.NoError(t, err)
	assert.Equal(t, dump.Tree[0], root.Hex())

	loaded, err := UnmarshalTree(root, data)
	require.NoError(t, err)
	assert.Equal(t, dump, loaded)
}

func TestMarshalTreeRejectsInvalid(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		_, _, err := MarshalTree(nil)
		assert.Error(t, err)
	})

	t.Run("tampered root", func(t *testing.T) {
		dump := testDump(t)
		dump.Tree[0] = common.Hash{0x01}.Hex()
		_, _, err := MarshalTree(dump)
		assert.Error(t, err)
	})
}

func TestUnmarshalTreeRootMismatch(t *testing.T) {
	root, data, err := MarshalTree(testDump(t))
	require.NoError(t, err)

	_, err = UnmarshalTree(common.Hash{0xff}, data)
	assert.Error(t, err)

	_, err = UnmarshalTree(root, nil)
	assert.Error(t, err)
}

func TestSortRoots(t *testing.T) {
	roots := []common.Hash{{0x03}, {0x01}, {0x02}}
	SortRoots(roots)
	assert.Equal(t, []common.Hash{{0x01}, {0x02}, {0x03}}, roots)
}
