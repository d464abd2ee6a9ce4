package inMemorySigner

import (
	"context"
	"testing"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/eip712"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// anvil's first default development account
const (
	anvilKey0     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	anvilAddress0 = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func Test_InMemorySigner(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	td, err := eip712.NewMintNFTTypedData(
		eip712.NewDomain(1337, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")),
		&eip712.MintNFT{
			CanvasID:     crypto.Keccak256Hash([]byte("canvas")),
			TokenURIHash: crypto.Keccak256Hash([]byte("uri")),
			FlatPrice:    math.NewHexOrDecimal256(100),
		},
	)
	require.NoError(t, err)

	t.Run("derives the anvil address", func(t *testing.T) {
		s, err := NewInMemorySignerFromHex(anvilKey0, l)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(anvilAddress0), s.GetAddress())
	})

	t.Run("signature recovers to signer", func(t *testing.T) {
		s, err := NewInMemorySignerFromHex(anvilKey0, l)
		require.NoError(t, err)

		sig, err := eip712.Sign(ctx, s, td)
		require.NoError(t, err)
		require.Len(t, sig, 65)
		assert.Contains(t, []byte{27, 28}, sig[64])

		recovered, err := eip712.RecoverSigner(td, sig)
		require.NoError(t, err)
		assert.Equal(t, s.GetAddress(), recovered)
	})

	t.Run("generated key", func(t *testing.T) {
		key, _, err := ecdsa.GenerateKeyPair()
		require.NoError(t, err)
		s, err := NewInMemorySigner(key, l)
		require.NoError(t, err)

		sig, err := eip712.Sign(ctx, s, td)
		require.NoError(t, err)
		recovered, err := eip712.RecoverSigner(td, sig)
		require.NoError(t, err)
		assert.Equal(t, s.GetAddress(), recovered)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := NewInMemorySignerFromHex("0xnothex", l)
		assert.Error(t, err)
	})
}
