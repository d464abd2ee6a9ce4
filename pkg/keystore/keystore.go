package keystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/clients/web3signer"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/config"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer/awsKmsSigner"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer/inMemorySigner"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer/web3Signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backends supplies the remote services key references may point at.
// Either field may be nil when no reference needs it.
type Backends struct {
	// NewKMSClient is called at most once, when the first awskms reference is loaded
	NewKMSClient     func(ctx context.Context) (awsKmsSigner.KMSClient, error)
	Web3SignerClient web3signer.IWeb3Signer
}

type KeyEntry struct {
	Id        string
	Reference config.KeyReference
	Signer    signer.ITypedDataSigner
}

// KeyStore is an ordered table of signers, indexed the way test fixtures
// address accounts (0, 1, 2, ...)
type KeyStore struct {
	mu sync.RWMutex

	logger    *zap.Logger
	entries   []*KeyEntry
	byAddress map[common.Address]int
	byId      map[string]int

	kmsOnce   sync.Once
	kmsClient awsKmsSigner.KMSClient
	kmsErr    error
}

func NewKeyStore(logger *zap.Logger) *KeyStore {
	return &KeyStore{
		logger:    logger,
		entries:   make([]*KeyEntry, 0),
		byAddress: make(map[common.Address]int),
		byId:      make(map[string]int),
	}
}

// LoadKeyStore resolves every reference, in order, into a signer.
func LoadKeyStore(ctx context.Context, refs []string, backends *Backends, logger *zap.Logger) (*KeyStore, error) {
	ks := NewKeyStore(logger)
	for i, ref := range refs {
		if _, err := ks.AddFromReference(ctx, ref, backends); err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
	}
	return ks, nil
}

// AddFromReference parses ref, builds the matching signer and appends it.
func (ks *KeyStore) AddFromReference(ctx context.Context, ref string, backends *Backends) (string, error) {
	keyRef, err := config.ParseKeyReference(ref)
	if err != nil {
		return "", err
	}
	if backends == nil {
		backends = &Backends{}
	}

	var s signer.ITypedDataSigner
	switch keyRef.Type {
	case config.KeyTypeLocal:
		s, err = inMemorySigner.NewInMemorySignerFromHex(keyRef.Value, ks.logger)
	case config.KeyTypeAWSKMS:
		var kmsClient awsKmsSigner.KMSClient
		kmsClient, err = ks.getKMSClient(ctx, backends)
		if err == nil {
			s, err = awsKmsSigner.NewAWSKMSSigner(ctx, kmsClient, keyRef.Value, ks.logger)
		}
	case config.KeyTypeWeb3Signer:
		if backends.Web3SignerClient == nil {
			return "", fmt.Errorf("%s requires a web3signer url", keyRef)
		}
		s, err = web3Signer.NewWeb3Signer(backends.Web3SignerClient, common.HexToAddress(keyRef.Value), ks.logger)
	default:
		err = fmt.Errorf("unsupported key type %q", keyRef.Type)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", keyRef, err)
	}

	return ks.Add(keyRef, s), nil
}

func (ks *KeyStore) getKMSClient(ctx context.Context, backends *Backends) (awsKmsSigner.KMSClient, error) {
	if backends.NewKMSClient == nil {
		return nil, fmt.Errorf("AWS KMS is not configured")
	}
	ks.kmsOnce.Do(func() {
		ks.kmsClient, ks.kmsErr = backends.NewKMSClient(ctx)
	})
	return ks.kmsClient, ks.kmsErr
}

// Add appends a signer and returns its generated id.
func (ks *KeyStore) Add(ref config.KeyReference, s signer.ITypedDataSigner) string {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	id := fmt.Sprintf("%s-key-%s", ref.Type, uuid.New().String())
	ks.entries = append(ks.entries, &KeyEntry{
		Id:        id,
		Reference: ref,
		Signer:    s,
	})
	index := len(ks.entries) - 1
	ks.byId[id] = index
	// first registration of an address wins lookups by address
	if _, ok := ks.byAddress[s.GetAddress()]; !ok {
		ks.byAddress[s.GetAddress()] = index
	}

	ks.logger.Sugar().Debugw("Added signer to key store",
		"id", id,
		"index", index,
		"type", ref.Type,
		"address", s.GetAddress().Hex(),
	)
	return id
}

// GetSigner returns the signer at index, in reference order.
func (ks *KeyStore) GetSigner(index int) (signer.ITypedDataSigner, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if index < 0 || index >= len(ks.entries) {
		return nil, fmt.Errorf("key index %d out of range, %d keys loaded", index, len(ks.entries))
	}
	return ks.entries[index].Signer, nil
}

func (ks *KeyStore) GetSignerByAddress(address common.Address) (signer.ITypedDataSigner, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	index, ok := ks.byAddress[address]
	if !ok {
		return nil, fmt.Errorf("no key loaded for %s", address.Hex())
	}
	return ks.entries[index].Signer, nil
}

func (ks *KeyStore) GetSignerById(id string) (signer.ITypedDataSigner, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	index, ok := ks.byId[id]
	if !ok {
		return nil, fmt.Errorf("no key with id %s", id)
	}
	return ks.entries[index].Signer, nil
}

// Addresses lists signer addresses in reference order.
func (ks *KeyStore) Addresses() []common.Address {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	out := make([]common.Address, len(ks.entries))
	for i, e := range ks.entries {
		out[i] = e.Signer.GetAddress()
	}
	return out
}

// Entries returns a copy of the loaded entries.
func (ks *KeyStore) Entries() []KeyEntry {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	out := make([]KeyEntry, len(ks.entries))
	for i, e := range ks.entries {
		out[i] = *e
	}
	return out
}

func (ks *KeyStore) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	return len(ks.entries)
}
