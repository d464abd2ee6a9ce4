package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/eip712"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/urfave/cli/v2"
)

const (
	messageTypePermission = "permission"
	messageTypeMint       = "mint"
)

func typedDataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "message",
			Aliases:  []string{"m"},
			Usage:    "Message JSON: a file path, - for stdin, or inline JSON",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "verifying-contract",
			Aliases: []string{"contract"},
			Usage:   "EIP-712 verifying contract, defaults to the configured verifyingContract",
		},
		&cli.Uint64Flag{
			Name:  "chain-id",
			Usage: "EIP-712 domain chain id; queried from the RPC endpoint when unset",
		},
	}
}

func signerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "key-index",
			Usage: "Index of the configured key to sign with",
		},
		&cli.StringFlag{
			Name:  "signer",
			Usage: "Address of the configured key to sign with, overrides --key-index",
		},
	}
}

func signPermissionCommand() *cli.Command {
	return &cli.Command{
		Name:   "sign-permission",
		Usage:  "Sign an AddPermission message for the permission control contract",
		Flags:  append(typedDataFlags(), signerFlags()...),
		Action: signAction(messageTypePermission),
	}
}

func signMintCommand() *cli.Command {
	return &cli.Command{
		Name:   "sign-mint",
		Usage:  "Sign a MintNFT message for the protocol contract",
		Flags:  append(typedDataFlags(), signerFlags()...),
		Action: signAction(messageTypeMint),
	}
}

func typedDataHashCommand() *cli.Command {
	return &cli.Command{
		Name:  "typed-data-hash",
		Usage: "Print the EIP-712 digest of an AddPermission or MintNFT message",
		Flags: append(typedDataFlags(), &cli.StringFlag{
			Name:  "type",
			Usage: fmt.Sprintf("Message type: %s or %s", messageTypePermission, messageTypeMint),
			Value: messageTypePermission,
		}),
		Action: typedDataHashAction,
	}
}

func accountsCommand() *cli.Command {
	return &cli.Command{
		Name:   "accounts",
		Usage:  "List the addresses of the configured keys, one per line",
		Action: accountsAction,
	}
}

func signAction(messageType string) cli.ActionFunc {
	return func(c *cli.Context) error {
		h, err := getHelper(c)
		if err != nil {
			return err
		}

		typedData, err := h.buildTypedData(c, messageType)
		if err != nil {
			return err
		}

		s, err := h.selectSigner(c)
		if err != nil {
			return err
		}

		sig, err := eip712.Sign(c.Context, s, typedData)
		if err != nil {
			return err
		}
		h.logger.Sugar().Debugw("Signed typed data",
			"primaryType", typedData.PrimaryType,
			"signer", s.GetAddress().Hex(),
		)
		return h.write(eip712.EncodeSignature(sig))
	}
}

func typedDataHashAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}

	typedData, err := h.buildTypedData(c, c.String("type"))
	if err != nil {
		return err
	}
	digest, err := eip712.HashTypedData(typedData)
	if err != nil {
		return err
	}
	return h.write(digest.Hex())
}

func accountsAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}

	ks, err := h.keyStore(c.Context)
	if err != nil {
		return err
	}
	addresses := ks.Addresses()
	lines := make([]string, len(addresses))
	for i, addr := range addresses {
		lines[i] = addr.Hex()
	}
	return h.write(strings.Join(lines, "\n"))
}

func (h *helper) buildTypedData(c *cli.Context, messageType string) (*apitypes.TypedData, error) {
	contractHex := c.String("verifying-contract")
	if contractHex == "" {
		contractHex = h.cfg.VerifyingContract
	}
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("a verifying contract address is required, got %q", contractHex)
	}

	data, err := readInput(c, c.String("message"))
	if err != nil {
		return nil, err
	}

	chainID, err := h.resolveChainID(c.Context, c.Uint64("chain-id"))
	if err != nil {
		return nil, err
	}
	domain := eip712.NewDomain(chainID, common.HexToAddress(contractHex))

	switch messageType {
	case messageTypePermission:
		msg, err := eip712.DecodeAddPermission(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return eip712.NewAddPermissionTypedData(domain, msg)
	case messageTypeMint:
		msg, err := eip712.DecodeMintNFT(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return eip712.NewMintNFTTypedData(domain, msg)
	default:
		return nil, fmt.Errorf("unknown message type %q, expected %s or %s", messageType, messageTypePermission, messageTypeMint)
	}
}

// resolveChainID returns flagValue when set, otherwise the chain id reported
// by the RPC endpoint.
func (h *helper) resolveChainID(ctx context.Context, flagValue uint64) (uint64, error) {
	if flagValue != 0 {
		return flagValue, nil
	}

	cc, err := h.contractCaller()
	if err != nil {
		return 0, err
	}
	id, err := cc.GetChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id %s out of range", id)
	}

	if network, err := h.cfg.GetNetwork(); err == nil && network.ChainId != 0 && uint64(network.ChainId) != id.Uint64() {
		h.logger.Sugar().Warnw("RPC chain id differs from configured network",
			"network", h.cfg.Network,
			"configured", uint64(network.ChainId),
			"rpc", id.Uint64(),
		)
	}
	return id.Uint64(), nil
}

func (h *helper) selectSigner(c *cli.Context) (signer.ITypedDataSigner, error) {
	ks, err := h.keyStore(c.Context)
	if err != nil {
		return nil, err
	}

	if addr := c.String("signer"); addr != "" {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid signer address %q", addr)
		}
		return ks.GetSignerByAddress(common.HexToAddress(addr))
	}
	return ks.GetSigner(c.Int("key-index"))
}
