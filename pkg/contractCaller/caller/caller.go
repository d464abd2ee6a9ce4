package caller

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/contractCaller"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChainReader is the subset of ethclient.Client the caller uses
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

type ContractCaller struct {
	client  ChainReader
	logger  *zap.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	chainId *big.Int
}

func NewContractCallerFromEthereumClient(
	ethClient *ethereum.EthereumClient,
	requestsPerSecond float64,
	logger *zap.Logger,
) (*ContractCaller, error) {
	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return nil, err
	}

	return NewContractCaller(client, requestsPerSecond, logger)
}

// NewContractCaller wraps client with a token bucket allowing requestsPerSecond calls.
func NewContractCaller(
	client ChainReader,
	requestsPerSecond float64,
	logger *zap.Logger,
) (*ContractCaller, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client cannot be nil")
	}
	if requestsPerSecond <= 0 {
		return nil, fmt.Errorf("requestsPerSecond must be positive, got %v", requestsPerSecond)
	}

	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &ContractCaller{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}, nil
}

func (cc *ContractCaller) wait(ctx context.Context) error {
	if err := cc.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// GetChainID queries the node once and caches a successful answer.
func (cc *ContractCaller) GetChainID(ctx context.Context) (*big.Int, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.chainId != nil {
		return new(big.Int).Set(cc.chainId), nil
	}

	if err := cc.wait(ctx); err != nil {
		return nil, err
	}
	chainId, err := cc.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	cc.logger.Sugar().Debugw("Fetched chain id", "chainId", chainId.String())
	cc.chainId = new(big.Int).Set(chainId)
	return chainId, nil
}

func (cc *ContractCaller) getStorageAt(ctx context.Context, account common.Address, slot common.Hash) (common.Hash, error) {
	if err := cc.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	value, err := cc.client.StorageAt(ctx, account, slot, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read slot %s of %s: %w", slot.Hex(), account.Hex(), err)
	}
	return common.BytesToHash(value), nil
}

var _ contractCaller.IContractCaller = (*ContractCaller)(nil)
