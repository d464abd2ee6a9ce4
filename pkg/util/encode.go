package util

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var bigIntType = reflect.TypeOf(&big.Int{})

func EncodeString(str string) ([]byte, error) {
	// Define the ABI for a single string parameter
	stringType, _ := abi.NewType("string", "", nil)
	arguments := abi.Arguments{{Type: stringType}}

	// Encode the string
	encoded, err := arguments.Pack(str)
	if err != nil {
		return nil, err
	}

	return encoded, nil
}

func proofArguments() abi.Arguments {
	bytes32ArrayType, _ := abi.NewType("bytes32[]", "", nil)
	return abi.Arguments{{Type: bytes32ArrayType}}
}

// EncodeProof returns abi.encode(bytes32[]) of a merkle proof, the form a
// Solidity test can abi.decode straight into a bytes32[] memory.
func EncodeProof(proof [][32]byte) ([]byte, error) {
	if proof == nil {
		proof = [][32]byte{}
	}
	return proofArguments().Pack(proof)
}

// DecodeProof reverses EncodeProof.
func DecodeProof(data []byte) ([][32]byte, error) {
	out, err := proofArguments().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytes32[]: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 decoded value, got %d", len(out))
	}
	proof, ok := out[0].([][32]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected decoded type %T", out[0])
	}
	return proof, nil
}

// ParseProof accepts an ABI-encoded bytes32[] blob, a single 32-byte hex
// value, or a comma separated list of 32-byte hex values.
func ParseProof(s string) ([][32]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return [][32]byte{}, nil
	}
	if strings.Contains(s, ",") || strings.HasPrefix(s, "[") {
		parts := SplitList(s)
		proof := make([][32]byte, len(parts))
		for i, p := range parts {
			h, err := parseBytes32(p)
			if err != nil {
				return nil, fmt.Errorf("proof element %d: %w", i, err)
			}
			proof[i] = h
		}
		return proof, nil
	}

	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("proof is not hex: %w", err)
	}
	if len(data) == 32 {
		return [][32]byte{common.BytesToHash(data)}, nil
	}
	return DecodeProof(data)
}

// EncodeValues ABI-encodes textual values as the given solidity types, the
// same as abi.encode(values...). Array values are comma separated.
func EncodeValues(types []string, values []string) ([]byte, error) {
	if len(types) != len(values) {
		return nil, fmt.Errorf("got %d types but %d values", len(types), len(values))
	}

	arguments := make(abi.Arguments, len(types))
	packed := make([]interface{}, len(types))
	for i, typeName := range types {
		typ, err := abi.NewType(strings.TrimSpace(typeName), "", nil)
		if err != nil {
			return nil, fmt.Errorf("invalid type %q: %w", typeName, err)
		}
		v, err := convertValue(typ, values[i])
		if err != nil {
			return nil, fmt.Errorf("value %d (%s): %w", i, typeName, err)
		}
		arguments[i] = abi.Argument{Type: typ}
		packed[i] = v
	}

	return arguments.Pack(packed...)
}

func convertValue(typ abi.Type, value string) (interface{}, error) {
	value = strings.TrimSpace(value)

	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("%q is not an address", value)
		}
		return common.HexToAddress(value), nil

	case abi.BoolTy:
		return strconv.ParseBool(value)

	case abi.StringTy:
		return value, nil

	case abi.BytesTy:
		return hexutil.Decode(value)

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(value)
		if err != nil {
			return nil, err
		}
		if len(b) != typ.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", typ.Size, len(b))
		}
		arr := reflect.New(typ.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(value, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", value)
		}
		if typ.T == abi.UintTy && (n.Sign() < 0 || n.BitLen() > typ.Size) {
			return nil, fmt.Errorf("%s overflows uint%d", value, typ.Size)
		}
		if typ.T == abi.IntTy && n.BitLen() > typ.Size-1 {
			return nil, fmt.Errorf("%s overflows int%d", value, typ.Size)
		}
		rt := typ.GetType()
		if rt == bigIntType {
			return n, nil
		}
		if typ.T == abi.UintTy {
			return reflect.ValueOf(n.Uint64()).Convert(rt).Interface(), nil
		}
		return reflect.ValueOf(n.Int64()).Convert(rt).Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		parts := SplitList(value)
		var out reflect.Value
		if typ.T == abi.SliceTy {
			out = reflect.MakeSlice(typ.GetType(), len(parts), len(parts))
		} else {
			if len(parts) != typ.Size {
				return nil, fmt.Errorf("expected %d elements, got %d", typ.Size, len(parts))
			}
			out = reflect.New(typ.GetType()).Elem()
		}
		for i, part := range parts {
			elem, err := convertValue(*typ.Elem, part)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(elem))
		}
		return out.Interface(), nil

	default:
		return nil, fmt.Errorf("unsupported type %s", typ.String())
	}
}

func parseBytes32(s string) ([32]byte, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return [32]byte{}, err
	}
	if len(b) != 32 {
		return [32]byte{}, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	return common.BytesToHash(b), nil
}
