package eip712

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

const (
	DefaultDomainName    = "D4AProtocol"
	DefaultDomainVersion = "2"

	PrimaryTypeAddPermission = "AddPermission"
	PrimaryTypeMintNFT       = "MintNFT"
)

// Domain is the EIP-712 domain the protocol contracts verify against
type Domain struct {
	Name              string                `json:"name"`
	Version           string                `json:"version"`
	ChainID           *math.HexOrDecimal256 `json:"chainId"`
	VerifyingContract common.Address        `json:"verifyingContract"`
}

// NewDomain returns the protocol domain for a chain and verifying contract.
func NewDomain(chainID uint64, verifyingContract common.Address) Domain {
	return Domain{
		Name:              DefaultDomainName,
		Version:           DefaultDomainVersion,
		ChainID:           math.NewHexOrDecimal256(int64(chainID)),
		VerifyingContract: verifyingContract,
	}
}

func (d Domain) validate() error {
	if d.Name == "" {
		return fmt.Errorf("domain name is required")
	}
	if d.Version == "" {
		return fmt.Errorf("domain version is required")
	}
	if d.ChainID == nil || (*big.Int)(d.ChainID).Sign() <= 0 {
		return fmt.Errorf("domain chainId must be positive")
	}
	return nil
}

type Whitelist struct {
	MinterMerkleRoot             common.Hash      `json:"minterMerkleRoot"`
	MinterNFTHolderPasses        []common.Address `json:"minterNFTHolderPasses"`
	CanvasCreatorMerkleRoot      common.Hash      `json:"canvasCreatorMerkleRoot"`
	CanvasCreatorNFTHolderPasses []common.Address `json:"canvasCreatorNFTHolderPasses"`
}

type Blacklist struct {
	MinterAccounts        []common.Address `json:"minterAccounts"`
	CanvasCreatorAccounts []common.Address `json:"canvasCreatorAccounts"`
}

// AddPermission grants a DAO's whitelist and blacklist configuration
type AddPermission struct {
	DaoID     common.Hash `json:"daoId"`
	Whitelist Whitelist   `json:"whitelist"`
	Blacklist Blacklist   `json:"blacklist"`
}

// MintNFT authorizes minting a token on a canvas at a flat price
type MintNFT struct {
	CanvasID     common.Hash           `json:"canvasID"`
	TokenURIHash common.Hash           `json:"tokenURIHash"`
	FlatPrice    *math.HexOrDecimal256 `json:"flatPrice"`
}

// DecodeAddPermission reads an AddPermission message from JSON. Unknown
// fields are rejected so a misspelt key cannot silently sign a zero value.
func DecodeAddPermission(r io.Reader) (*AddPermission, error) {
	var msg AddPermission
	if err := decodeStrict(r, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode AddPermission: %w", err)
	}
	return &msg, nil
}

// DecodeMintNFT reads a MintNFT message from JSON. flatPrice may be a JSON
// number, a decimal string or a 0x-prefixed hex string.
func DecodeMintNFT(r io.Reader) (*MintNFT, error) {
	var msg MintNFT
	if err := decodeStrict(r, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode MintNFT: %w", err)
	}
	if msg.FlatPrice == nil {
		return nil, fmt.Errorf("failed to decode MintNFT: flatPrice is required")
	}
	return &msg, nil
}

func decodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
