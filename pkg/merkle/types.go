package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned for empty account lists, malformed account
	// identifiers and dumps that fail validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a proof is requested for an account that
	// is not a leaf of the tree.
	ErrNotFound = errors.New("account not found in tree")
)

// IndexedValue is one input account and the position of its leaf in the
// flat tree array.
type IndexedValue struct {
	Account   common.Address
	TreeIndex int
}

// AccountTree is an immutable merkle tree over a list of accounts.
// The layout matches OpenZeppelin's StandardMerkleTree with leaf encoding
// ["address"], so roots and proofs can be checked by MerkleProof.sol.
type AccountTree struct {
	// tree is the flat node array: tree[0] is the root, leaves sit at the end
	tree [][32]byte

	// values holds the accounts in input order
	values []IndexedValue

	// firstIndex maps an account to its first position in values
	firstIndex map[common.Address]int

	sortedLeaves bool
}

// MerkleProof is a proof that an account is included in an AccountTree.
type MerkleProof struct {
	// Account is the proven account
	Account common.Address

	// ValueIndex is the position of the account in the input list
	ValueIndex int

	// TreeIndex is the position of the leaf in the flat tree array
	TreeIndex int

	// Leaf is the leaf hash of Account
	Leaf [32]byte

	// Proof contains the sibling hashes from leaf to root
	Proof [][32]byte
}

// Option configures tree construction.
type Option func(*buildOptions)

type buildOptions struct {
	sortLeaves bool
}

// WithSortedLeaves orders leaves by hash before building the tree. This is
// OpenZeppelin's default and makes the root independent of input order.
func WithSortedLeaves() Option {
	return func(o *buildOptions) {
		o.sortLeaves = true
	}
}
