package eip712

import (
	"context"
	"fmt"
	"math/big"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var (
	addPermissionTypes = apitypes.Types{
		"EIP712Domain": domainType,
		"AddPermission": {
			{Name: "daoId", Type: "bytes32"},
			{Name: "whitelist", Type: "Whitelist"},
			{Name: "blacklist", Type: "Blacklist"},
		},
		"Whitelist": {
			{Name: "minterMerkleRoot", Type: "bytes32"},
			{Name: "minterNFTHolderPasses", Type: "address[]"},
			{Name: "canvasCreatorMerkleRoot", Type: "bytes32"},
			{Name: "canvasCreatorNFTHolderPasses", Type: "address[]"},
		},
		"Blacklist": {
			{Name: "minterAccounts", Type: "address[]"},
			{Name: "canvasCreatorAccounts", Type: "address[]"},
		},
	}

	mintNFTTypes = apitypes.Types{
		"EIP712Domain": domainType,
		"MintNFT": {
			{Name: "canvasID", Type: "bytes32"},
			{Name: "tokenURIHash", Type: "bytes32"},
			{Name: "flatPrice", Type: "uint256"},
		},
	}
)

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           d.ChainID,
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// NewAddPermissionTypedData builds the typed data for an AddPermission message.
func NewAddPermissionTypedData(domain Domain, msg *AddPermission) (*apitypes.TypedData, error) {
	if err := domain.validate(); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("AddPermission message is nil")
	}

	return &apitypes.TypedData{
		Types:       addPermissionTypes,
		PrimaryType: PrimaryTypeAddPermission,
		Domain:      domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"daoId": msg.DaoID.Hex(),
			// nested structs must be plain maps for apitypes to recurse into them
			"whitelist": map[string]interface{}{
				"minterMerkleRoot":             msg.Whitelist.MinterMerkleRoot.Hex(),
				"minterNFTHolderPasses":        addressList(msg.Whitelist.MinterNFTHolderPasses),
				"canvasCreatorMerkleRoot":      msg.Whitelist.CanvasCreatorMerkleRoot.Hex(),
				"canvasCreatorNFTHolderPasses": addressList(msg.Whitelist.CanvasCreatorNFTHolderPasses),
			},
			"blacklist": map[string]interface{}{
				"minterAccounts":        addressList(msg.Blacklist.MinterAccounts),
				"canvasCreatorAccounts": addressList(msg.Blacklist.CanvasCreatorAccounts),
			},
		},
	}, nil
}

// NewMintNFTTypedData builds the typed data for a MintNFT message.
func NewMintNFTTypedData(domain Domain, msg *MintNFT) (*apitypes.TypedData, error) {
	if err := domain.validate(); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("MintNFT message is nil")
	}
	if msg.FlatPrice == nil || (*big.Int)(msg.FlatPrice).Sign() < 0 {
		return nil, fmt.Errorf("flatPrice must be a non-negative integer")
	}

	return &apitypes.TypedData{
		Types:       mintNFTTypes,
		PrimaryType: PrimaryTypeMintNFT,
		Domain:      domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"canvasID":     msg.CanvasID.Hex(),
			"tokenURIHash": msg.TokenURIHash.Hex(),
			"flatPrice":    (*big.Int)(msg.FlatPrice).String(),
		},
	}, nil
}

func addressList(addrs []common.Address) []interface{} {
	out := make([]interface{}, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}

// DomainSeparator returns hashStruct(EIP712Domain) for the typed data.
func DomainSeparator(typedData *apitypes.TypedData) (common.Hash, error) {
	h, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}
	return common.BytesToHash(h), nil
}

// HashTypedData returns keccak256("\x19\x01" || domainSeparator || hashStruct(message)),
// the digest signed by eth_signTypedData_v4.
func HashTypedData(typedData *apitypes.TypedData) (common.Hash, error) {
	if typedData == nil {
		return common.Hash{}, fmt.Errorf("typed data is nil")
	}

	domainSeparator, err := DomainSeparator(typedData)
	if err != nil {
		return common.Hash{}, err
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash %s: %w", typedData.PrimaryType, err)
	}

	rawData := make([]byte, 0, 2+2*common.HashLength)
	rawData = append(rawData, 0x19, 0x01)
	rawData = append(rawData, domainSeparator.Bytes()...)
	rawData = append(rawData, structHash...)
	return crypto.Keccak256Hash(rawData), nil
}

// RecoverSigner returns the address that produced sig over the typed data.
// Both the 0/1 and 27/28 recovery id forms are accepted.
func RecoverSigner(typedData *apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != signer.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	digest, err := HashTypedData(typedData)
	if err != nil {
		return common.Address{}, err
	}

	rsv := make([]byte, signer.SignatureLength)
	copy(rsv, sig)
	if rsv[64] >= 27 {
		rsv[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// Sign asks s to sign the typed data and checks that the signature recovers
// to s's address. The returned signature always carries v in {27, 28}.
func Sign(ctx context.Context, s signer.ITypedDataSigner, typedData *apitypes.TypedData) ([]byte, error) {
	sig, err := s.SignTypedData(ctx, typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s: %w", typedData.PrimaryType, err)
	}
	if len(sig) != signer.SignatureLength {
		return nil, fmt.Errorf("signer returned %d byte signature", len(sig))
	}
	sig = signer.NormalizeV(sig)

	recovered, err := RecoverSigner(typedData, sig)
	if err != nil {
		return nil, err
	}
	if recovered != s.GetAddress() {
		return nil, fmt.Errorf("signature recovers to %s, expected %s", recovered.Hex(), s.GetAddress().Hex())
	}
	return sig, nil
}

// EncodeSignature renders a signature as 0x-prefixed hex.
func EncodeSignature(sig []byte) string {
	return hexutil.Encode(sig)
}
