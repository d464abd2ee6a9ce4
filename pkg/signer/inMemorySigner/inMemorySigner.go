package inMemorySigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/eip712"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// InMemorySigner signs typed data with a secp256k1 key held in process memory
type InMemorySigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewInMemorySignerFromHex parses a hex private key, with or without the 0x prefix.
func NewInMemorySignerFromHex(privateKeyHex string, logger *zap.Logger) (*InMemorySigner, error) {
	key, err := ecdsa.NewPrivateKeyFromHexString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("error loading private key: %w", err)
	}
	return NewInMemorySigner(key, logger)
}

func NewInMemorySignerFromBytes(privateKey []byte, logger *zap.Logger) (*InMemorySigner, error) {
	key, err := ecdsa.NewPrivateKeyFromBytes(privateKey)
	if err != nil {
		return nil, fmt.Errorf("error loading private key: %w", err)
	}
	return NewInMemorySigner(key, logger)
}

func NewInMemorySigner(key *ecdsa.PrivateKey, logger *zap.Logger) (*InMemorySigner, error) {
	address, err := key.DeriveAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive address from private key: %w", err)
	}

	return &InMemorySigner{
		logger:     logger,
		privateKey: key,
		address:    address,
	}, nil
}

func (s *InMemorySigner) GetAddress() common.Address {
	return s.address
}

func (s *InMemorySigner) SignTypedData(_ context.Context, typedData *apitypes.TypedData) ([]byte, error) {
	digest, err := eip712.HashTypedData(typedData)
	if err != nil {
		return nil, err
	}

	sig, err := s.privateKey.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}

	sigBytes := sig.Bytes()
	if len(sigBytes) != signer.SignatureLength {
		return nil, fmt.Errorf("unexpected signature length %d", len(sigBytes))
	}

	s.logger.Sugar().Debugw("Signed typed data",
		"primaryType", typedData.PrimaryType,
		"address", s.address.Hex(),
		"digest", digest.Hex(),
	)
	return signer.NormalizeV(sigBytes), nil
}

var _ signer.ITypedDataSigner = (*InMemorySigner)(nil)
