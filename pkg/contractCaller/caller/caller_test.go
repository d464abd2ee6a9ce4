package caller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/contractCaller"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/testutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	proxyAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")
	implAddress  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	adminAddress = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type stubChainReader struct {
	chainId      *big.Int
	chainIdErr   error
	storage      map[common.Hash]common.Hash
	storageErr   error
	chainIdCalls int
	storageCalls int
}

func (s *stubChainReader) ChainID(ctx context.Context) (*big.Int, error) {
	s.chainIdCalls++
	if s.chainIdErr != nil {
		return nil, s.chainIdErr
	}
	return new(big.Int).Set(s.chainId), nil
}

func (s *stubChainReader) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	s.storageCalls++
	if s.storageErr != nil {
		return nil, s.storageErr
	}
	v := s.storage[key]
	return v.Bytes(), nil
}

func Test_Slots(t *testing.T) {
	assert.Equal(t, "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc", ImplementationSlot.Hex())
	assert.Equal(t, "0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103", AdminSlot.Hex())
	assert.Equal(t, "0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50", BeaconSlot.Hex())
	assert.Equal(t, "0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3", LegacyImplementationSlot.Hex())
	assert.Equal(t, "0x10d6a54a4754c8869d6886b5f5d7fbfa5b4522237ea5c60d11bc4e7a1ff9390b", LegacyAdminSlot.Hex())
}

func Test_ProxyLookups(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	t.Run("primary slot", func(t *testing.T) {
		reader := &stubChainReader{storage: map[common.Hash]common.Hash{
			ImplementationSlot: common.BytesToHash(implAddress.Bytes()),
			AdminSlot:          common.BytesToHash(adminAddress.Bytes()),
		}}
		cc, err := NewContractCaller(reader, 1000, l)
		require.NoError(t, err)

		impl, err := cc.GetImplementationAddress(ctx, proxyAddress)
		require.NoError(t, err)
		assert.Equal(t, implAddress, impl)
		assert.Equal(t, 1, reader.storageCalls)

		admin, err := cc.GetAdminAddress(ctx, proxyAddress)
		require.NoError(t, err)
		assert.Equal(t, adminAddress, admin)
	})

	t.Run("legacy fallback", func(t *testing.T) {
		reader := &stubChainReader{storage: map[common.Hash]common.Hash{
			LegacyImplementationSlot: common.BytesToHash(implAddress.Bytes()),
			LegacyAdminSlot:          common.BytesToHash(adminAddress.Bytes()),
		}}
		cc, err := NewContractCaller(reader, 1000, l)
		require.NoError(t, err)

		impl, err := cc.GetImplementationAddress(ctx, proxyAddress)
		require.NoError(t, err)
		assert.Equal(t, implAddress, impl)
		assert.Equal(t, 2, reader.storageCalls)

		admin, err := cc.GetAdminAddress(ctx, proxyAddress)
		require.NoError(t, err)
		assert.Equal(t, adminAddress, admin)
	})

	t.Run("empty slots", func(t *testing.T) {
		reader := &stubChainReader{}
		cc, err := NewContractCaller(reader, 1000, l)
		require.NoError(t, err)

		_, err = cc.GetImplementationAddress(ctx, proxyAddress)
		assert.True(t, errors.Is(err, contractCaller.ErrImplementationNotFound))

		_, err = cc.GetAdminAddress(ctx, proxyAddress)
		assert.True(t, errors.Is(err, contractCaller.ErrImplementationNotFound))

		_, err = cc.GetBeaconAddress(ctx, proxyAddress)
		assert.True(t, errors.Is(err, contractCaller.ErrImplementationNotFound))
	})

	t.Run("rpc error", func(t *testing.T) {
		reader := &stubChainReader{storageErr: fmt.Errorf("connection refused")}
		cc, err := NewContractCaller(reader, 1000, l)
		require.NoError(t, err)

		_, err = cc.GetImplementationAddress(ctx, proxyAddress)
		require.Error(t, err)
		assert.False(t, errors.Is(err, contractCaller.ErrImplementationNotFound))
		assert.ErrorContains(t, err, "connection refused")
	})
}

func Test_GetChainID(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	t.Run("cached after first success", func(t *testing.T) {
		reader := &stubChainReader{chainId: big.NewInt(1337)}
		cc, err := NewContractCaller(reader, 1000, l)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			id, err := cc.GetChainID(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1337), id.Int64())
			// callers cannot corrupt the cache
			id.SetInt64(1)
		}
		assert.Equal(t, 1, reader.chainIdCalls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		reader := &stubChainReader{chainIdErr: fmt.Errorf("boom")}
		cc, err := NewContractCaller(reader, 1000, l)
		require.NoError(t, err)

		_, err = cc.GetChainID(ctx)
		assert.Error(t, err)

		reader.chainIdErr = nil
		reader.chainId = big.NewInt(5)
		id, err := cc.GetChainID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), id.Int64())
		assert.Equal(t, 2, reader.chainIdCalls)
	})
}

func Test_RateLimit(t *testing.T) {
	l := zaptest.NewLogger(t)

	reader := &stubChainReader{}
	cc, err := NewContractCaller(reader, 0.5, l)
	require.NoError(t, err)

	// the first call uses the burst token, the second must wait ~2s
	_, _ = cc.GetBeaconAddress(context.Background(), proxyAddress)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = cc.GetBeaconAddress(ctx, proxyAddress)
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limiter")
	assert.Equal(t, 1, reader.storageCalls)
}

func Test_NewContractCallerValidation(t *testing.T) {
	l := zaptest.NewLogger(t)

	_, err := NewContractCaller(nil, 1, l)
	assert.Error(t, err)
	_, err = NewContractCaller(&stubChainReader{}, 0, l)
	assert.Error(t, err)
}

func Test_ContractCallerOverRPC(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	node := testutil.NewEthNodeServer(t, 1337)
	node.SetStorage(proxyAddress, ImplementationSlot, common.BytesToHash(implAddress.Bytes()))
	node.SetStorage(proxyAddress, LegacyAdminSlot, common.BytesToHash(adminAddress.Bytes()))

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   node.URL,
		BlockType: ethereum.BlockType_Latest,
	}, l)

	cc, err := NewContractCallerFromEthereumClient(ethClient, 100, l)
	require.NoError(t, err)

	id, err := cc.GetChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1337), id.Int64())

	impl, err := cc.GetImplementationAddress(ctx, proxyAddress)
	require.NoError(t, err)
	assert.Equal(t, implAddress, impl)

	admin, err := cc.GetAdminAddress(ctx, proxyAddress)
	require.NoError(t, err)
	assert.Equal(t, adminAddress, admin)
	assert.Equal(t, 3, node.Calls("eth_getStorageAt"))

	_, err = cc.GetImplementationAddress(ctx, implAddress)
	assert.True(t, errors.Is(err, contractCaller.ErrImplementationNotFound))
}
