package merkle

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pkg/errors"
)

func randomAccounts(n int, seed int64) []common.Address {
	r := rand.New(rand.NewSource(seed)) // #nosec G404
	accounts := make([]common.Address, n)
	for i := range accounts {
		_, _ = r.Read(accounts[i][:])
	}
	return accounts
}

func TestAccountTreeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("identical input yields identical root", prop.ForAll(
		func(n int, seed int64) bool {
			accounts := randomAccounts(n, seed)
			first, err := NewAccountTree(accounts)
			if err != nil {
				return false
			}
			second, err := NewAccountTree(randomAccounts(n, seed))
			if err != nil {
				return false
			}
			return first.Root() == second.Root()
		},
		gen.IntRange(1, 64),
		gen.Int64(),
	))

	properties.Property("every member's proof verifies", prop.ForAll(
		func(n int, seed int64, sorted bool) bool {
			var opts []Option
			if sorted {
				opts = append(opts, WithSortedLeaves())
			}
			accounts := randomAccounts(n, seed)
			tree, err := NewAccountTree(accounts, opts...)
			if err != nil {
				return false
			}
			for _, account := range accounts {
				proof, err := tree.GetProof(account)
				if err != nil || !VerifyProof(tree.Root(), account, proof.Proof) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 64),
		gen.Int64(),
		gen.Bool(),
	))

	properties.Property("non-members are not found", prop.ForAll(
		func(n int, seed int64) bool {
			accounts := randomAccounts(n+1, seed)
			tree, err := NewAccountTree(accounts[:n])
			if err != nil {
				return false
			}
			_, err = tree.GetProof(accounts[n])
			return errors.Is(err, ErrNotFound)
		},
		gen.IntRange(1, 64),
		gen.Int64(),
	))

	properties.Property("dump round trip preserves root", prop.ForAll(
		func(n int, seed int64) bool {
			tree, err := NewAccountTree(randomAccounts(n, seed))
			if err != nil {
				return false
			}
			loaded, err := LoadAccountTree(tree.Dump())
			return err == nil && loaded.Root() == tree.Root()
		},
		gen.IntRange(1, 32),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
