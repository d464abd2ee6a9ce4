package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type KeyType string

const (
	KeyTypeLocal      KeyType = "local"
	KeyTypeAWSKMS     KeyType = "awskms"
	KeyTypeWeb3Signer KeyType = "web3signer"
)

// KeyReference is a parsed entry of Config.Keys
type KeyReference struct {
	Type KeyType
	// Value is the private key hex, the KMS key id or the web3signer account address
	Value string
}

// String never includes private key material.
func (k KeyReference) String() string {
	if k.Type == KeyTypeLocal {
		return "local:<redacted>"
	}
	return fmt.Sprintf("%s:%s", k.Type, k.Value)
}

// ParseKeyReference parses "0x<hex>", "local:<hex>", "awskms:<key-id>" or "web3signer:<address>".
func ParseKeyReference(ref string) (KeyReference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return KeyReference{}, fmt.Errorf("empty key reference")
	}

	kind, value, found := strings.Cut(ref, ":")
	if !found {
		kind, value = string(KeyTypeLocal), ref
	}

	switch KeyType(kind) {
	case KeyTypeLocal:
		key := value
		if !strings.HasPrefix(key, "0x") {
			key = "0x" + key
		}
		b, err := hexutil.Decode(key)
		if err != nil || len(b) != 32 {
			return KeyReference{}, fmt.Errorf("local key must be 32 bytes of hex")
		}
		return KeyReference{Type: KeyTypeLocal, Value: key}, nil
	case KeyTypeAWSKMS:
		if value == "" {
			return KeyReference{}, fmt.Errorf("awskms key id is required")
		}
		return KeyReference{Type: KeyTypeAWSKMS, Value: value}, nil
	case KeyTypeWeb3Signer:
		if !common.IsHexAddress(value) {
			return KeyReference{}, fmt.Errorf("web3signer account must be a hex address")
		}
		return KeyReference{Type: KeyTypeWeb3Signer, Value: common.HexToAddress(value).Hex()}, nil
	default:
		return KeyReference{}, fmt.Errorf("unsupported key type %q", kind)
	}
}

func ValidateKeyReference(ref string) error {
	_, err := ParseKeyReference(ref)
	return err
}
