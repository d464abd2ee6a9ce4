package merkle

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

const (
	DumpFormatStandardV1 = "standard-v1"
	LeafEncodingAddress  = "address"
)

// TreeDump is the JSON form of an AccountTree. It is compatible with
// StandardMerkleTree.dump() / StandardMerkleTree.load().
type TreeDump struct {
	Format       string        `json:"format"`
	LeafEncoding []string      `json:"leafEncoding"`
	Tree         []string      `json:"tree"`
	Values       []DumpedValue `json:"values"`
	SortedLeaves bool          `json:"sortedLeaves,omitempty"`
}

type DumpedValue struct {
	Value     []string `json:"value"`
	TreeIndex int      `json:"treeIndex"`
}

// Dump serializes the tree.
func (t *AccountTree) Dump() *TreeDump {
	tree := make([]string, len(t.tree))
	for i, node := range t.tree {
		tree[i] = hexutil.Encode(node[:])
	}
	values := make([]DumpedValue, len(t.values))
	for i, v := range t.values {
		values[i] = DumpedValue{
			Value:     []string{v.Account.Hex()},
			TreeIndex: v.TreeIndex,
		}
	}
	return &TreeDump{
		Format:       DumpFormatStandardV1,
		LeafEncoding: []string{LeafEncodingAddress},
		Tree:         tree,
		Values:       values,
		SortedLeaves: t.sortedLeaves,
	}
}

// Root returns the root recorded in the dump without validating it.
func (d *TreeDump) Root() (common.Hash, error) {
	if d == nil || len(d.Tree) == 0 {
		return common.Hash{}, errors.Wrap(ErrInvalidInput, "dump has no tree nodes")
	}
	return decodeNode(d.Tree[0])
}

// MarshalTreeDump encodes a dump to JSON.
func MarshalTreeDump(d *TreeDump) ([]byte, error) {
	if d == nil {
		return nil, errors.New("cannot marshal nil TreeDump")
	}
	return json.Marshal(d)
}

// UnmarshalTreeDump decodes a dump from JSON without validating it.
func UnmarshalTreeDump(data []byte) (*TreeDump, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "cannot unmarshal empty data")
	}
	var d TreeDump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "failed to unmarshal tree dump: %v", err)
	}
	return &d, nil
}

// LoadAccountTree rebuilds a tree from a dump. The dump must be internally
// consistent: every internal node must hash its children and every value
// must hash to the leaf it points at.
func LoadAccountTree(d *TreeDump) (*AccountTree, error) {
	if d == nil {
		return nil, errors.Wrap(ErrInvalidInput, "nil tree dump")
	}
	if d.Format != DumpFormatStandardV1 {
		return nil, errors.Wrapf(ErrInvalidInput, "unknown dump format %q", d.Format)
	}
	if len(d.LeafEncoding) != 1 || d.LeafEncoding[0] != LeafEncodingAddress {
		return nil, errors.Wrapf(ErrInvalidInput, "unsupported leaf encoding %v", d.LeafEncoding)
	}
	if len(d.Values) == 0 || len(d.Tree) != 2*len(d.Values)-1 {
		return nil, errors.Wrapf(ErrInvalidInput, "tree has %d nodes for %d values", len(d.Tree), len(d.Values))
	}

	tree := make([][32]byte, len(d.Tree))
	for i, node := range d.Tree {
		h, err := decodeNode(node)
		if err != nil {
			return nil, errors.Wrapf(err, "tree node %d", i)
		}
		tree[i] = h
	}
	if !isValidTree(tree) {
		return nil, errors.Wrap(ErrInvalidInput, "merkle tree is invalid")
	}

	firstLeaf := len(tree) - len(d.Values)
	seen := make(map[int]bool, len(d.Values))
	values := make([]IndexedValue, len(d.Values))
	for i, v := range d.Values {
		if len(v.Value) != 1 {
			return nil, errors.Wrapf(ErrInvalidInput, "value %d has %d fields", i, len(v.Value))
		}
		account, err := ParseAccount(v.Value[0])
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i)
		}
		if v.TreeIndex < firstLeaf || v.TreeIndex >= len(tree) || seen[v.TreeIndex] {
			return nil, errors.Wrapf(ErrInvalidInput, "value %d has invalid tree index %d", i, v.TreeIndex)
		}
		seen[v.TreeIndex] = true
		if LeafHash(account) != tree[v.TreeIndex] {
			return nil, errors.Wrapf(ErrInvalidInput, "value %d does not match leaf %d", i, v.TreeIndex)
		}
		values[i] = IndexedValue{Account: account, TreeIndex: v.TreeIndex}
	}

	return newAccountTree(tree, values, d.SortedLeaves), nil
}

func isValidTree(tree [][32]byte) bool {
	for i := range tree {
		l, r := leftChild(i), rightChild(i)
		if r >= len(tree) {
			if l < len(tree) {
				return false
			}
			continue
		}
		if tree[i] != hashPair(tree[l], tree[r]) {
			return false
		}
	}
	return len(tree) > 0
}

func decodeNode(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, errors.Wrapf(ErrInvalidInput, "%q is not a 32-byte hex value", s)
	}
	return common.BytesToHash(b), nil
}
