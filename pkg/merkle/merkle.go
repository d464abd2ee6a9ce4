package merkle

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var addressArguments = func() abi.Arguments {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: addressType}}
}()

// BuildAccountTree parses hex account identifiers and builds a tree over them.
func BuildAccountTree(accounts []string, opts ...Option) (*AccountTree, error) {
	if len(accounts) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "cannot build merkle tree from empty account list")
	}

	addresses := make([]common.Address, len(accounts))
	for i, account := range accounts {
		addr, err := ParseAccount(account)
		if err != nil {
			return nil, errors.Wrapf(err, "account %d", i)
		}
		addresses[i] = addr
	}
	return NewAccountTree(addresses, opts...)
}

// NewAccountTree builds a tree over the given accounts. Duplicate accounts
// are kept as distinct leaves.
func NewAccountTree(accounts []common.Address, opts ...Option) (*AccountTree, error) {
	if len(accounts) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "cannot build merkle tree from empty account list")
	}

	options := &buildOptions{}
	for _, opt := range opts {
		opt(options)
	}

	type hashedValue struct {
		valueIndex int
		hash       [32]byte
	}

	hashed := make([]hashedValue, len(accounts))
	for i, account := range accounts {
		hashed[i] = hashedValue{valueIndex: i, hash: LeafHash(account)}
	}
	if options.sortLeaves {
		sort.SliceStable(hashed, func(i, j int) bool {
			return bytes.Compare(hashed[i].hash[:], hashed[j].hash[:]) < 0
		})
	}

	leaves := make([][32]byte, len(hashed))
	for i, h := range hashed {
		leaves[i] = h.hash
	}
	tree := makeTree(leaves)

	values := make([]IndexedValue, len(accounts))
	for leafIndex, h := range hashed {
		values[h.valueIndex] = IndexedValue{
			Account:   accounts[h.valueIndex],
			TreeIndex: len(tree) - 1 - leafIndex,
		}
	}

	return newAccountTree(tree, values, options.sortLeaves), nil
}

func newAccountTree(tree [][32]byte, values []IndexedValue, sortedLeaves bool) *AccountTree {
	firstIndex := make(map[common.Address]int, len(values))
	for i, v := range values {
		if _, ok := firstIndex[v.Account]; !ok {
			firstIndex[v.Account] = i
		}
	}
	return &AccountTree{
		tree:         tree,
		values:       values,
		firstIndex:   firstIndex,
		sortedLeaves: sortedLeaves,
	}
}

// makeTree lays the leaves out at the end of a 2n-1 node array, last leaf
// first, and fills the internal nodes bottom-up.
func makeTree(leaves [][32]byte) [][32]byte {
	tree := make([][32]byte, 2*len(leaves)-1)
	for i, leaf := range leaves {
		tree[len(tree)-1-i] = leaf
	}
	for i := len(tree) - 1 - len(leaves); i >= 0; i-- {
		tree[i] = hashPair(tree[leftChild(i)], tree[rightChild(i)])
	}
	return tree
}

// Root returns the merkle root.
func (t *AccountTree) Root() common.Hash {
	return t.tree[0]
}

// Len returns the number of leaves.
func (t *AccountTree) Len() int {
	return len(t.values)
}

// SortedLeaves reports whether the tree was built with WithSortedLeaves.
func (t *AccountTree) SortedLeaves() bool {
	return t.sortedLeaves
}

// Accounts returns a copy of the accounts in input order.
func (t *AccountTree) Accounts() []common.Address {
	accounts := make([]common.Address, len(t.values))
	for i, v := range t.values {
		accounts[i] = v.Account
	}
	return accounts
}

// Contains reports whether the account is a leaf of the tree.
func (t *AccountTree) Contains(account common.Address) bool {
	_, ok := t.firstIndex[account]
	return ok
}

// GetProof returns the proof for the first occurrence of account.
func (t *AccountTree) GetProof(account common.Address) (*MerkleProof, error) {
	valueIndex, ok := t.firstIndex[account]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", account.Hex())
	}
	return t.ProofAt(valueIndex)
}

// GetProofForHex parses account and returns its proof.
func (t *AccountTree) GetProofForHex(account string) (*MerkleProof, error) {
	addr, err := ParseAccount(account)
	if err != nil {
		return nil, err
	}
	return t.GetProof(addr)
}

// ProofAt returns the proof for the account at valueIndex in the input list.
func (t *AccountTree) ProofAt(valueIndex int) (*MerkleProof, error) {
	if valueIndex < 0 || valueIndex >= len(t.values) {
		return nil, errors.Wrapf(ErrInvalidInput, "value index %d out of bounds (tree has %d leaves)", valueIndex, len(t.values))
	}

	value := t.values[valueIndex]
	proof := make([][32]byte, 0)
	for index := value.TreeIndex; index > 0; index = parent(index) {
		proof = append(proof, t.tree[sibling(index)])
	}

	return &MerkleProof{
		Account:    value.Account,
		ValueIndex: valueIndex,
		TreeIndex:  value.TreeIndex,
		Leaf:       t.tree[value.TreeIndex],
		Proof:      proof,
	}, nil
}

// Verify checks a proof against this tree's root.
func (t *AccountTree) Verify(account common.Address, proof [][32]byte) bool {
	return VerifyProof(t.tree[0], account, proof)
}

// VerifyProof recomputes the root from the account's leaf and the proof
// and compares it with root.
func VerifyProof(root [32]byte, account common.Address, proof [][32]byte) bool {
	return ProcessProof(LeafHash(account), proof) == root
}

// ProcessProof folds the proof into the leaf using the sorted pair hash.
func ProcessProof(leaf [32]byte, proof [][32]byte) [32]byte {
	current := leaf
	for _, sibling := range proof {
		current = hashPair(current, sibling)
	}
	return current
}

// LeafHash returns keccak256(keccak256(abi.encode(account))).
func LeafHash(account common.Address) [32]byte {
	encoded, err := addressArguments.Pack(account)
	if err != nil {
		// packing a common.Address as address cannot fail
		panic(err)
	}
	return crypto.Keccak256Hash(crypto.Keccak256(encoded))
}

// ParseAccount parses a 20-byte hex account identifier, with or without 0x.
func ParseAccount(account string) (common.Address, error) {
	if !common.IsHexAddress(account) {
		return common.Address{}, errors.Wrapf(ErrInvalidInput, "%q is not a 20-byte hex address", account)
	}
	return common.HexToAddress(account), nil
}

// hashPair computes keccak256 of the two hashes concatenated in ascending order.
func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	data := make([]byte, 64)
	copy(data[0:32], a[:])
	copy(data[32:64], b[:])
	return crypto.Keccak256Hash(data)
}

func leftChild(i int) int  { return 2*i + 1 }
func rightChild(i int) int { return 2*i + 2 }
func parent(i int) int     { return (i - 1) / 2 }

func sibling(i int) int {
	if i%2 == 0 {
		return i - 1
	}
	return i + 1
}
