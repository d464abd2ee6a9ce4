package testutil

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/eip712"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Web3SignerServer emulates the Web3Signer eth1 JSON-RPC API for a fixed set of keys
type Web3SignerServer struct {
	*JSONRPCServer
	keys  map[common.Address]*ecdsa.PrivateKey
	order []common.Address
}

func NewWeb3SignerServer(t *testing.T, keys ...*ecdsa.PrivateKey) *Web3SignerServer {
	s := &Web3SignerServer{
		JSONRPCServer: NewJSONRPCServer(t),
		keys:          make(map[common.Address]*ecdsa.PrivateKey),
	}
	for _, k := range keys {
		addr := crypto.PubkeyToAddress(k.PublicKey)
		s.keys[addr] = k
		s.order = append(s.order, addr)
	}

	s.Handle("eth_accounts", s.ethAccounts)
	s.Handle("eth_signTypedData", s.ethSignTypedData)
	return s
}

func (s *Web3SignerServer) ethAccounts(_ []json.RawMessage) (interface{}, error) {
	out := make([]string, len(s.order))
	for i, a := range s.order {
		out[i] = a.Hex()
	}
	return out, nil
}

func (s *Web3SignerServer) keyFor(raw json.RawMessage) (*ecdsa.PrivateKey, error) {
	var account string
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account %q", account)
	}
	key, ok := s.keys[common.HexToAddress(account)]
	if !ok {
		return nil, fmt.Errorf("no key for account %s", account)
	}
	return key, nil
}

func (s *Web3SignerServer) ethSignTypedData(params []json.RawMessage) (interface{}, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("expected 2 params, got %d", len(params))
	}
	key, err := s.keyFor(params[0])
	if err != nil {
		return nil, err
	}
	var typedData apitypes.TypedData
	if err := json.Unmarshal(params[1], &typedData); err != nil {
		return nil, err
	}
	digest, err := eip712.HashTypedData(&typedData)
	if err != nil {
		return nil, err
	}
	return sign(digest.Bytes(), key)
}

func sign(digest []byte, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
