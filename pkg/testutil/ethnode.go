package testutil

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EthNodeServer answers the read-only eth_ calls the helpers make: chain id and storage slots
type EthNodeServer struct {
	*JSONRPCServer

	mu      sync.Mutex
	chainID uint64
	storage map[common.Address]map[common.Hash]common.Hash
}

func NewEthNodeServer(t *testing.T, chainID uint64) *EthNodeServer {
	s := &EthNodeServer{
		JSONRPCServer: NewJSONRPCServer(t),
		chainID:       chainID,
		storage:       make(map[common.Address]map[common.Hash]common.Hash),
	}
	s.Handle("eth_chainId", s.ethChainId)
	s.Handle("eth_getStorageAt", s.ethGetStorageAt)
	return s
}

func (s *EthNodeServer) SetStorage(addr common.Address, slot common.Hash, value common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage[addr] == nil {
		s.storage[addr] = make(map[common.Hash]common.Hash)
	}
	s.storage[addr][slot] = value
}

func (s *EthNodeServer) ethChainId(_ []json.RawMessage) (interface{}, error) {
	return hexutil.EncodeUint64(s.chainID), nil
}

func (s *EthNodeServer) ethGetStorageAt(params []json.RawMessage) (interface{}, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("expected at least 2 params, got %d", len(params))
	}
	var addr common.Address
	if err := json.Unmarshal(params[0], &addr); err != nil {
		return nil, err
	}
	var slot common.Hash
	if err := json.Unmarshal(params[1], &slot); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return hexutil.Encode(s.storage[addr][slot].Bytes()), nil
}
