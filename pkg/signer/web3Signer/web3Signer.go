package web3Signer

import (
	"context"
	"fmt"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/clients/web3signer"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// Web3Signer forwards typed data to a remote Web3Signer instance holding the key
type Web3Signer struct {
	logger      *zap.Logger
	client      web3signer.IWeb3Signer
	fromAddress common.Address
}

func NewWeb3Signer(client web3signer.IWeb3Signer, fromAddress common.Address, logger *zap.Logger) (*Web3Signer, error) {
	if client == nil {
		return nil, fmt.Errorf("web3signer client cannot be nil")
	}
	if fromAddress == (common.Address{}) {
		return nil, fmt.Errorf("from address cannot be empty")
	}

	return &Web3Signer{
		logger:      logger,
		client:      client,
		fromAddress: fromAddress,
	}, nil
}

// CheckAccount confirms the remote signer holds a key for the from address.
func (w3s *Web3Signer) CheckAccount(ctx context.Context) error {
	accounts, err := w3s.client.EthAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list web3signer accounts: %w", err)
	}
	for _, a := range accounts {
		if common.IsHexAddress(a) && common.HexToAddress(a) == w3s.fromAddress {
			return nil
		}
	}
	return fmt.Errorf("web3signer has no key for %s", w3s.fromAddress.Hex())
}

func (w3s *Web3Signer) GetAddress() common.Address {
	return w3s.fromAddress
}

func (w3s *Web3Signer) SignTypedData(ctx context.Context, typedData *apitypes.TypedData) ([]byte, error) {
	w3s.logger.Sugar().Debugw("Requesting typed data signature from web3signer",
		"primaryType", typedData.PrimaryType,
		"from", w3s.fromAddress.Hex(),
	)

	sigHex, err := w3s.client.EthSignTypedData(ctx, w3s.fromAddress.Hex(), typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data with Web3Signer: %w", err)
	}

	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != signer.SignatureLength {
		return nil, fmt.Errorf("web3signer returned %d byte signature", len(sig))
	}
	return signer.NormalizeV(sig), nil
}

var _ signer.ITypedDataSigner = (*Web3Signer)(nil)
