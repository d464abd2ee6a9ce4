package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ITypedDataSigner produces EIP-712 signatures for a single account
type ITypedDataSigner interface {
	// GetAddress returns the address the signatures recover to
	GetAddress() common.Address

	// SignTypedData returns a 65 byte [R || S || V] signature over the typed data digest
	SignTypedData(ctx context.Context, typedData *apitypes.TypedData) ([]byte, error)
}

// SignatureLength is the length of an Ethereum [R || S || V] signature
const SignatureLength = 65

// NormalizeV rewrites a recovery id of 0/1 to the 27/28 form used by
// ecrecover. Signatures already carrying 27/28 are returned unchanged.
func NormalizeV(sig []byte) []byte {
	if len(sig) == SignatureLength && sig[64] < 27 {
		sig[64] += 27
	}
	return sig
}
