package awsKmsSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/eip712"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// secp256k1 group order
var (
	curveOrder, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	halfOrder     = new(big.Int).Rsh(curveOrder, 1)
)

// KMSClient is the subset of the AWS KMS API the signer needs
type KMSClient interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// AWSKMSSigner signs typed data with an ECC_SECG_P256K1 key that never leaves AWS KMS
type AWSKMSSigner struct {
	logger    *zap.Logger
	kmsClient KMSClient
	keyId     string
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
}

func NewAWSKMSSignerFromConfig(ctx context.Context, awsCfg aws.Config, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	return NewAWSKMSSigner(ctx, kms.NewFromConfig(awsCfg), keyId, logger)
}

// NewAWSKMSSigner fetches the key's public key once and derives its address.
func NewAWSKMSSigner(ctx context.Context, kmsClient KMSClient, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	if keyId == "" {
		return nil, fmt.Errorf("KMS key id cannot be empty")
	}

	pubKeyOutput, err := kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}

	publicKey, err := parseECDSAPublicKey(pubKeyOutput.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}

	pk := &ecdsa.PublicKey{
		X: publicKey.X,
		Y: publicKey.Y,
	}
	address, err := pk.DeriveAddress()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive address for key %s", keyId)
	}

	logger.Sugar().Infow("Loaded AWS KMS signing key",
		"keyId", keyId,
		"address", address.String(),
	)

	return &AWSKMSSigner{
		logger:    logger,
		kmsClient: kmsClient,
		keyId:     keyId,
		publicKey: publicKey,
		address:   address,
	}, nil
}

func (a *AWSKMSSigner) GetAddress() common.Address {
	return a.address
}

func (a *AWSKMSSigner) SignTypedData(ctx context.Context, typedData *apitypes.TypedData) ([]byte, error) {
	digest, err := eip712.HashTypedData(typedData)
	if err != nil {
		return nil, err
	}
	return a.SignDigest(ctx, digest.Bytes())
}

// SignDigest signs a 32 byte digest and returns an [R || S || V] signature
// with low S and v in {27, 28}.
func (a *AWSKMSSigner) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "KMS sign failed for key %s", a.keyId)
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(curveOrder, s)
	}

	signature := make([]byte, signer.SignatureLength)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	// KMS does not report the recovery id, so find the one that yields our key
	for recoveryId := 0; recoveryId < 2; recoveryId++ {
		signature[64] = byte(recoveryId)

		recoveredPubKeyBytes, err := crypto.Ecrecover(digest, signature)
		if err != nil {
			a.logger.Debug("Ecrecover failed",
				zap.Int("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}

		recoveredPubKey, err := crypto.UnmarshalPubkey(recoveredPubKeyBytes)
		if err != nil {
			continue
		}

		if recoveredPubKey.X.Cmp(a.publicKey.X) == 0 && recoveredPubKey.Y.Cmp(a.publicKey.Y) == 0 {
			signature[64] = byte(27 + recoveryId)
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID for key %s", a.keyId)
}

// parseECDSAPublicKey parses the DER SubjectPublicKeyInfo returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}

	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

var _ signer.ITypedDataSigner = (*AWSKMSSigner)(nil)
