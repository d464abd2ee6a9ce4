package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkAccountTreeBuild benchmarks tree construction with various sizes
func BenchmarkAccountTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Accounts_%d", size), func(b *testing.B) {
			accounts := createTestAccounts(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = NewAccountTree(accounts)
			}
		})
	}
}

// BenchmarkGetProof benchmarks proof lookup and generation
func BenchmarkGetProof(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		accounts := createTestAccounts(size)
		tree, _ := NewAccountTree(accounts)

		b.Run(fmt.Sprintf("Accounts_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GetProof(accounts[i%size])
			}
		})
	}
}

func BenchmarkVerifyProof(b *testing.B) {
	accounts := createTestAccounts(1000)
	tree, _ := NewAccountTree(accounts)
	proof, _ := tree.GetProof(accounts[0])

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = VerifyProof(tree.Root(), accounts[0], proof.Proof)
	}
}
