package keystore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/clients/web3signer"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/eip712"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer/awsKmsSigner"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/testutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// anvil's first two default development accounts
const (
	anvilKey0     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	anvilAddress0 = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	anvilKey1     = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	anvilAddress1 = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func Test_LoadKeyStore(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	kmsKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	fakeKMS := testutil.NewFakeKMS()
	fakeKMS.AddKey("kms-key", kmsKey)

	remoteKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	server := testutil.NewWeb3SignerServer(t, remoteKey)
	client, err := web3signer.NewClient(&web3signer.Config{BaseURL: server.URL}, l)
	require.NoError(t, err)
	defer client.Close()

	kmsClientCalls := 0
	backends := &Backends{
		NewKMSClient: func(ctx context.Context) (awsKmsSigner.KMSClient, error) {
			kmsClientCalls++
			return fakeKMS, nil
		},
		Web3SignerClient: client,
	}

	refs := []string{
		anvilKey0,
		"local:" + anvilKey1,
		"awskms:kms-key",
		"web3signer:" + crypto.PubkeyToAddress(remoteKey.PublicKey).Hex(),
		"awskms:kms-key",
	}
	ks, err := LoadKeyStore(ctx, refs, backends, l)
	require.NoError(t, err)
	require.Equal(t, 5, ks.Len())
	assert.Equal(t, 1, kmsClientCalls)

	expected := []common.Address{
		common.HexToAddress(anvilAddress0),
		common.HexToAddress(anvilAddress1),
		crypto.PubkeyToAddress(kmsKey.PublicKey),
		crypto.PubkeyToAddress(remoteKey.PublicKey),
		crypto.PubkeyToAddress(kmsKey.PublicKey),
	}
	assert.Equal(t, expected, ks.Addresses())

	td, err := eip712.NewMintNFTTypedData(
		eip712.NewDomain(1337, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")),
		&eip712.MintNFT{
			CanvasID:     crypto.Keccak256Hash([]byte("canvas")),
			TokenURIHash: crypto.Keccak256Hash([]byte("uri")),
			FlatPrice:    math.NewHexOrDecimal256(7),
		},
	)
	require.NoError(t, err)

	for i := range refs {
		t.Run(fmt.Sprintf("signer %d signs", i), func(t *testing.T) {
			s, err := ks.GetSigner(i)
			require.NoError(t, err)

			sig, err := eip712.Sign(ctx, s, td)
			require.NoError(t, err)

			recovered, err := eip712.RecoverSigner(td, sig)
			require.NoError(t, err)
			assert.Equal(t, expected[i], recovered)
		})
	}

	t.Run("index out of range", func(t *testing.T) {
		_, err := ks.GetSigner(5)
		assert.Error(t, err)
		_, err = ks.GetSigner(-1)
		assert.Error(t, err)
	})

	t.Run("lookup by address returns first registration", func(t *testing.T) {
		s, err := ks.GetSignerByAddress(crypto.PubkeyToAddress(kmsKey.PublicKey))
		require.NoError(t, err)
		first, err := ks.GetSigner(2)
		require.NoError(t, err)
		assert.Same(t, first, s)

		_, err = ks.GetSignerByAddress(common.HexToAddress("0x01"))
		assert.Error(t, err)
	})

	t.Run("entries carry ids and redacted references", func(t *testing.T) {
		entries := ks.Entries()
		require.Len(t, entries, 5)
		assert.Regexp(t, `^local-key-[0-9a-f-]{36}$`, entries[0].Id)
		assert.Regexp(t, `^awskms-key-`, entries[2].Id)
		assert.NotContains(t, entries[0].Reference.String(), anvilKey0[2:])

		s, err := ks.GetSignerById(entries[3].Id)
		require.NoError(t, err)
		assert.Equal(t, expected[3], s.GetAddress())

		_, err = ks.GetSignerById("missing")
		assert.Error(t, err)
	})
}

func Test_LoadKeyStoreErrors(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		refs     []string
		backends *Backends
	}{
		{name: "malformed key", refs: []string{"0x1234"}},
		{name: "kms not configured", refs: []string{"awskms:abc"}},
		{name: "web3signer not configured", refs: []string{"web3signer:" + anvilAddress0}},
		{
			name: "kms client error",
			refs: []string{"awskms:abc"},
			backends: &Backends{NewKMSClient: func(ctx context.Context) (awsKmsSigner.KMSClient, error) {
				return nil, fmt.Errorf("no credentials")
			}},
		},
		{
			name: "unknown kms key",
			refs: []string{"awskms:abc"},
			backends: &Backends{NewKMSClient: func(ctx context.Context) (awsKmsSigner.KMSClient, error) {
				return testutil.NewFakeKMS(), nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadKeyStore(ctx, tt.refs, tt.backends, l)
			assert.Error(t, err)
		})
	}
}

func Test_KeyStoreConcurrentAccess(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	ks := NewKeyStore(l)
	_, err := ks.AddFromReference(ctx, anvilKey0, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = ks.AddFromReference(ctx, anvilKey1, nil)
				return
			}
			_, _ = ks.GetSigner(0)
			_ = ks.Addresses()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, ks.Len())
	s, err := ks.GetSigner(0)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(anvilAddress0), s.GetAddress())
}
