package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/contractCaller"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	ImplementationSlot = eip1967Slot("eip1967.proxy.implementation")
	AdminSlot          = eip1967Slot("eip1967.proxy.admin")
	BeaconSlot         = eip1967Slot("eip1967.proxy.beacon")

	// pre EIP-1967 ZeppelinOS proxies used the plain hash
	LegacyImplementationSlot = crypto.Keccak256Hash([]byte("org.zeppelinos.proxy.implementation"))
	LegacyAdminSlot          = crypto.Keccak256Hash([]byte("org.zeppelinos.proxy.admin"))
)

// eip1967Slot returns keccak256(label) - 1
func eip1967Slot(label string) common.Hash {
	h := new(big.Int).SetBytes(crypto.Keccak256([]byte(label)))
	return common.BigToHash(h.Sub(h, big.NewInt(1)))
}

func (cc *ContractCaller) GetImplementationAddress(ctx context.Context, proxy common.Address) (common.Address, error) {
	return cc.readProxySlot(ctx, proxy, "implementation", ImplementationSlot, LegacyImplementationSlot)
}

func (cc *ContractCaller) GetAdminAddress(ctx context.Context, proxy common.Address) (common.Address, error) {
	return cc.readProxySlot(ctx, proxy, "admin", AdminSlot, LegacyAdminSlot)
}

func (cc *ContractCaller) GetBeaconAddress(ctx context.Context, proxy common.Address) (common.Address, error) {
	return cc.readProxySlot(ctx, proxy, "beacon", BeaconSlot)
}

// readProxySlot returns the address held in the first non-empty slot.
func (cc *ContractCaller) readProxySlot(ctx context.Context, proxy common.Address, kind string, slots ...common.Hash) (common.Address, error) {
	for _, slot := range slots {
		value, err := cc.getStorageAt(ctx, proxy, slot)
		if err != nil {
			return common.Address{}, err
		}
		if value != (common.Hash{}) {
			addr := common.BytesToAddress(value.Bytes())
			cc.logger.Sugar().Debugw("Resolved proxy slot",
				zap.String("proxy", proxy.Hex()),
				zap.String("kind", kind),
				zap.String("slot", slot.Hex()),
				zap.String("address", addr.Hex()),
			)
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("%w: no %s address for proxy %s", contractCaller.ErrImplementationNotFound, kind, proxy.Hex())
}
