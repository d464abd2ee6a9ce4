package testutil

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	oidEcPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

type subjectPublicKeyInfo struct {
	Algorithm struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters asn1.ObjectIdentifier
	}
	PublicKey asn1.BitString
}

// FakeKMS holds secp256k1 keys locally and answers GetPublicKey and Sign
// with the DER encodings AWS KMS uses
type FakeKMS struct {
	mu   sync.Mutex
	keys map[string]*ecdsa.PrivateKey

	// HighS makes Sign return the non-canonical (N - s) form
	HighS   bool
	SignErr error

	signCalls  int
	lastSignIn *kms.SignInput
}

func NewFakeKMS() *FakeKMS {
	return &FakeKMS{keys: make(map[string]*ecdsa.PrivateKey)}
}

func (f *FakeKMS) AddKey(keyId string, key *ecdsa.PrivateKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[keyId] = key
}

func (f *FakeKMS) key(keyId *string) (*ecdsa.PrivateKey, error) {
	k, ok := f.keys[aws.ToString(keyId)]
	if !ok {
		return nil, fmt.Errorf("NotFoundException: key %s does not exist", aws.ToString(keyId))
	}
	return k, nil
}

func (f *FakeKMS) SignCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signCalls
}

func (f *FakeKMS) LastSignInput() *kms.SignInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSignIn
}

func (f *FakeKMS) GetPublicKey(_ context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k, err := f.key(params.KeyId)
	if err != nil {
		return nil, err
	}

	pub := crypto.FromECDSAPub(&k.PublicKey)
	var spki subjectPublicKeyInfo
	spki.Algorithm.Algorithm = oidEcPublicKey
	spki.Algorithm.Parameters = oidSecp256k1
	spki.PublicKey = asn1.BitString{Bytes: pub, BitLength: len(pub) * 8}

	der, err := asn1.Marshal(spki)
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{
		KeyId:     params.KeyId,
		KeySpec:   types.KeySpecEccSecgP256k1,
		KeyUsage:  types.KeyUsageTypeSignVerify,
		PublicKey: der,
	}, nil
}

func (f *FakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.signCalls++
	f.lastSignIn = params
	if f.SignErr != nil {
		return nil, f.SignErr
	}
	k, err := f.key(params.KeyId)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(params.Message, k)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.HighS {
		s = new(big.Int).Sub(crypto.S256().Params().N, s)
	}

	der, err := asn1.Marshal(struct {
		R *big.Int
		S *big.Int
	}{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{
		KeyId:            params.KeyId,
		Signature:        der,
		SigningAlgorithm: params.SigningAlgorithm,
	}, nil
}
