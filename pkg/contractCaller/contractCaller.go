package contractCaller

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// IContractCaller provides the read-only chain lookups the helpers need
type IContractCaller interface {
	// GetChainID returns the chain id of the connected node
	GetChainID(ctx context.Context) (*big.Int, error)

	// GetImplementationAddress reads the EIP-1967 implementation slot of a proxy,
	// falling back to the legacy ZeppelinOS slot
	GetImplementationAddress(ctx context.Context, proxy common.Address) (common.Address, error)

	// GetAdminAddress reads the EIP-1967 admin slot of a proxy,
	// falling back to the legacy ZeppelinOS slot
	GetAdminAddress(ctx context.Context, proxy common.Address) (common.Address, error)

	// GetBeaconAddress reads the EIP-1967 beacon slot of a beacon proxy
	GetBeaconAddress(ctx context.Context, proxy common.Address) (common.Address, error)
}
