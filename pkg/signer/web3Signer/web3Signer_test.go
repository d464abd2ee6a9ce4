package web3Signer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/clients/web3signer"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/eip712"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/testutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_Web3Signer(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	server := testutil.NewWeb3SignerServer(t, key)
	client, err := web3signer.NewClient(&web3signer.Config{BaseURL: server.URL}, l)
	require.NoError(t, err)
	defer client.Close()

	msg := &eip712.AddPermission{
		DaoID: crypto.Keccak256Hash([]byte("dao")),
		Whitelist: eip712.Whitelist{
			MinterNFTHolderPasses: []common.Address{address},
		},
		Blacklist: eip712.Blacklist{
			MinterAccounts: []common.Address{common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb2")},
		},
	}
	td, err := eip712.NewAddPermissionTypedData(eip712.NewDomain(31337, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")), msg)
	require.NoError(t, err)

	t.Run("signature recovers to the remote key", func(t *testing.T) {
		s, err := NewWeb3Signer(client, address, l)
		require.NoError(t, err)
		require.NoError(t, s.CheckAccount(ctx))

		sig, err := eip712.Sign(ctx, s, td)
		require.NoError(t, err)

		recovered, err := eip712.RecoverSigner(td, sig)
		require.NoError(t, err)
		assert.Equal(t, address, recovered)
	})

	t.Run("account not held by the signer", func(t *testing.T) {
		s, err := NewWeb3Signer(client, common.HexToAddress("0x0000000000000000000000000000000000000001"), l)
		require.NoError(t, err)
		assert.Error(t, s.CheckAccount(ctx))

		_, err = s.SignTypedData(ctx, td)
		assert.Error(t, err)
	})

	t.Run("malformed signature", func(t *testing.T) {
		bad := testutil.NewWeb3SignerServer(t, key)
		bad.Handle("eth_signTypedData", func(_ []json.RawMessage) (interface{}, error) {
			return "0x1234", nil
		})
		badClient, err := web3signer.NewClient(&web3signer.Config{BaseURL: bad.URL}, l)
		require.NoError(t, err)
		defer badClient.Close()

		s, err := NewWeb3Signer(badClient, address, l)
		require.NoError(t, err)
		_, err = s.SignTypedData(ctx, td)
		assert.Error(t, err)
	})

	t.Run("constructor validation", func(t *testing.T) {
		_, err := NewWeb3Signer(nil, address, l)
		assert.Error(t, err)
		_, err = NewWeb3Signer(client, common.Address{}, l)
		assert.Error(t, err)
	})
}
