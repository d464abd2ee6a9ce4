package contractCaller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MockContractCallerStub is an in-memory IContractCaller for tests
type MockContractCallerStub struct {
	ChainID         uint64
	Implementations map[common.Address]common.Address
	Admins          map[common.Address]common.Address
	Beacons         map[common.Address]common.Address
	Err             error
}

func (m *MockContractCallerStub) GetChainID(ctx context.Context) (*big.Int, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return new(big.Int).SetUint64(m.ChainID), nil
}

func (m *MockContractCallerStub) lookup(table map[common.Address]common.Address, proxy common.Address, kind string) (common.Address, error) {
	if m.Err != nil {
		return common.Address{}, m.Err
	}
	addr, ok := table[proxy]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no %s for %s", ErrImplementationNotFound, kind, proxy.Hex())
	}
	return addr, nil
}

func (m *MockContractCallerStub) GetImplementationAddress(ctx context.Context, proxy common.Address) (common.Address, error) {
	return m.lookup(m.Implementations, proxy, "implementation")
}

func (m *MockContractCallerStub) GetAdminAddress(ctx context.Context, proxy common.Address) (common.Address, error) {
	return m.lookup(m.Admins, proxy, "admin")
}

func (m *MockContractCallerStub) GetBeaconAddress(ctx context.Context, proxy common.Address) (common.Address, error) {
	return m.lookup(m.Beacons, proxy, "beacon")
}

var _ IContractCaller = (*MockContractCallerStub)(nil)
