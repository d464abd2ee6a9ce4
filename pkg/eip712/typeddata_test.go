package eip712

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testVerifyingContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testAccountA          = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1")
	testAccountB          = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb2")
	testAccountC          = common.HexToAddress("0xccccccccccccccccccccccccccccccccccccccc3")
)

type keySigner struct {
	key  *ecdsa.PrivateKey
	zero bool
}

func (k *keySigner) GetAddress() common.Address {
	return crypto.PubkeyToAddress(k.key.PublicKey)
}

func (k *keySigner) SignTypedData(_ context.Context, typedData *apitypes.TypedData) ([]byte, error) {
	digest, err := HashTypedData(typedData)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest.Bytes(), k.key)
	if err != nil {
		return nil, err
	}
	if !k.zero {
		sig[64] += 27
	}
	return sig, nil
}

func newKeySigner(t *testing.T) *keySigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &keySigner{key: key}
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func addressArrayHash(addrs []common.Address) []byte {
	var buf []byte
	for _, a := range addrs {
		buf = append(buf, common.LeftPadBytes(a.Bytes(), 32)...)
	}
	return crypto.Keccak256(buf)
}

func manualDomainSeparator(chainID int64, contract common.Address) []byte {
	return crypto.Keccak256(
		crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")),
		crypto.Keccak256([]byte("D4AProtocol")),
		crypto.Keccak256([]byte("2")),
		word(big.NewInt(chainID)),
		common.LeftPadBytes(contract.Bytes(), 32),
	)
}

func testAddPermission() *AddPermission {
	return &AddPermission{
		DaoID: crypto.Keccak256Hash([]byte("dao")),
		Whitelist: Whitelist{
			MinterMerkleRoot:             common.HexToHash("0x1114271a8e06fcb6054e64df5458f4136618576f8d1bcd1456ecdf53770b2e8f"),
			MinterNFTHolderPasses:        []common.Address{testAccountA},
			CanvasCreatorMerkleRoot:      common.HexToHash("0x9ec00c6ff6ddade877fec249ea23395f14f6198db57ec341ec2d582a80b2cf4e"),
			CanvasCreatorNFTHolderPasses: []common.Address{},
		},
		Blacklist: Blacklist{
			MinterAccounts:        []common.Address{testAccountB, testAccountC},
			CanvasCreatorAccounts: nil,
		},
	}
}

func Test_MintNFTHash(t *testing.T) {
	msg := &MintNFT{
		CanvasID:     crypto.Keccak256Hash([]byte("canvas")),
		TokenURIHash: crypto.Keccak256Hash([]byte("ipfs://token")),
		FlatPrice:    math.NewHexOrDecimal256(1_000_000_000_000_000),
	}
	td, err := NewMintNFTTypedData(NewDomain(1337, testVerifyingContract), msg)
	require.NoError(t, err)

	structHash := crypto.Keccak256(
		crypto.Keccak256([]byte("MintNFT(bytes32 canvasID,bytes32 tokenURIHash,uint256 flatPrice)")),
		msg.CanvasID.Bytes(),
		msg.TokenURIHash.Bytes(),
		word(big.NewInt(1_000_000_000_000_000)),
	)
	domainSeparator := manualDomainSeparator(1337, testVerifyingContract)
	expected := crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator, structHash)

	sep, err := DomainSeparator(td)
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(domainSeparator), sep)

	digest, err := HashTypedData(td)
	require.NoError(t, err)
	assert.Equal(t, expected, digest)
}

func Test_AddPermissionEncodeType(t *testing.T) {
	td, err := NewAddPermissionTypedData(NewDomain(1, testVerifyingContract), testAddPermission())
	require.NoError(t, err)

	expected := "AddPermission(bytes32 daoId,Whitelist whitelist,Blacklist blacklist)" +
		"Blacklist(address[] minterAccounts,address[] canvasCreatorAccounts)" +
		"Whitelist(bytes32 minterMerkleRoot,address[] minterNFTHolderPasses,bytes32 canvasCreatorMerkleRoot,address[] canvasCreatorNFTHolderPasses)"
	assert.Equal(t, expected, string(td.EncodeType(PrimaryTypeAddPermission)))
}

func Test_AddPermissionHash(t *testing.T) {
	msg := testAddPermission()
	td, err := NewAddPermissionTypedData(NewDomain(1337, testVerifyingContract), msg)
	require.NoError(t, err)

	whitelistHash := crypto.Keccak256(
		crypto.Keccak256([]byte("Whitelist(bytes32 minterMerkleRoot,address[] minterNFTHolderPasses,bytes32 canvasCreatorMerkleRoot,address[] canvasCreatorNFTHolderPasses)")),
		msg.Whitelist.MinterMerkleRoot.Bytes(),
		addressArrayHash(msg.Whitelist.MinterNFTHolderPasses),
		msg.Whitelist.CanvasCreatorMerkleRoot.Bytes(),
		addressArrayHash(nil),
	)
	blacklistHash := crypto.Keccak256(
		crypto.Keccak256([]byte("Blacklist(address[] minterAccounts,address[] canvasCreatorAccounts)")),
		addressArrayHash(msg.Blacklist.MinterAccounts),
		addressArrayHash(nil),
	)
	structHash := crypto.Keccak256(
		crypto.Keccak256(td.EncodeType(PrimaryTypeAddPermission)),
		msg.DaoID.Bytes(),
		whitelistHash,
		blacklistHash,
	)
	expected := crypto.Keccak256Hash([]byte{0x19, 0x01}, manualDomainSeparator(1337, testVerifyingContract), structHash)

	digest, err := HashTypedData(td)
	require.NoError(t, err)
	assert.Equal(t, expected, digest)
}

func Test_HashDependsOnDomain(t *testing.T) {
	msg := testAddPermission()

	tdA, err := NewAddPermissionTypedData(NewDomain(1, testVerifyingContract), msg)
	require.NoError(t, err)
	tdB, err := NewAddPermissionTypedData(NewDomain(1337, testVerifyingContract), msg)
	require.NoError(t, err)
	tdC, err := NewAddPermissionTypedData(NewDomain(1, testAccountA), msg)
	require.NoError(t, err)

	hA, err := HashTypedData(tdA)
	require.NoError(t, err)
	hB, err := HashTypedData(tdB)
	require.NoError(t, err)
	hC, err := HashTypedData(tdC)
	require.NoError(t, err)

	assert.NotEqual(t, hA, hB)
	assert.NotEqual(t, hA, hC)
}

func Test_SignAndRecover(t *testing.T) {
	ctx := context.Background()
	td, err := NewAddPermissionTypedData(NewDomain(1337, testVerifyingContract), testAddPermission())
	require.NoError(t, err)

	t.Run("v is 27 or 28", func(t *testing.T) {
		s := newKeySigner(t)
		sig, err := Sign(ctx, s, td)
		require.NoError(t, err)
		require.Len(t, sig, 65)
		assert.Contains(t, []byte{27, 28}, sig[64])

		recovered, err := RecoverSigner(td, sig)
		require.NoError(t, err)
		assert.Equal(t, s.GetAddress(), recovered)
		assert.True(t, strings.HasPrefix(EncodeSignature(sig), "0x"))
		assert.Len(t, EncodeSignature(sig), 132)
	})

	t.Run("zero based v is normalized", func(t *testing.T) {
		s := newKeySigner(t)
		s.zero = true
		sig, err := Sign(ctx, s, td)
		require.NoError(t, err)
		assert.Contains(t, []byte{27, 28}, sig[64])
	})

	t.Run("different message recovers another address", func(t *testing.T) {
		s := newKeySigner(t)
		sig, err := Sign(ctx, s, td)
		require.NoError(t, err)

		other := testAddPermission()
		other.Blacklist.MinterAccounts = nil
		otherTd, err := NewAddPermissionTypedData(NewDomain(1337, testVerifyingContract), other)
		require.NoError(t, err)

		recovered, err := RecoverSigner(otherTd, sig)
		require.NoError(t, err)
		assert.NotEqual(t, s.GetAddress(), recovered)
	})

	t.Run("signer address mismatch", func(t *testing.T) {
		s := newKeySigner(t)
		liar := &mismatchedSigner{keySigner: s, addr: testAccountA}
		_, err := Sign(ctx, liar, td)
		assert.Error(t, err)
	})

	t.Run("bad signature length", func(t *testing.T) {
		_, err := RecoverSigner(td, []byte{0x01})
		assert.Error(t, err)
	})
}

type mismatchedSigner struct {
	*keySigner
	addr common.Address
}

func (m *mismatchedSigner) GetAddress() common.Address {
	return m.addr
}

func Test_TypedDataValidation(t *testing.T) {
	t.Run("zero chain id", func(t *testing.T) {
		_, err := NewMintNFTTypedData(NewDomain(0, testVerifyingContract), &MintNFT{FlatPrice: math.NewHexOrDecimal256(1)})
		assert.Error(t, err)
	})
	t.Run("missing domain name", func(t *testing.T) {
		d := NewDomain(1, testVerifyingContract)
		d.Name = ""
		_, err := NewAddPermissionTypedData(d, testAddPermission())
		assert.Error(t, err)
	})
	t.Run("nil message", func(t *testing.T) {
		_, err := NewAddPermissionTypedData(NewDomain(1, testVerifyingContract), nil)
		assert.Error(t, err)
		_, err = NewMintNFTTypedData(NewDomain(1, testVerifyingContract), nil)
		assert.Error(t, err)
	})
	t.Run("negative price", func(t *testing.T) {
		_, err := NewMintNFTTypedData(NewDomain(1, testVerifyingContract), &MintNFT{FlatPrice: math.NewHexOrDecimal256(-1)})
		assert.Error(t, err)
	})
}
