package main

import (
	"context"
	"fmt"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/contractCaller"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

func chainIdCommand() *cli.Command {
	return &cli.Command{
		Name:   "chain-id",
		Usage:  "Print the chain id reported by the RPC endpoint",
		Action: chainIdAction,
	}
}

func implAddressCommand() *cli.Command {
	return &cli.Command{
		Name:      "impl-address",
		Usage:     "Print the implementation address of an EIP-1967 proxy",
		ArgsUsage: "<proxy>",
		Action: proxySlotAction(func(ctx context.Context, cc contractCaller.IContractCaller, proxy common.Address) (common.Address, error) {
			return cc.GetImplementationAddress(ctx, proxy)
		}),
	}
}

func adminAddressCommand() *cli.Command {
	return &cli.Command{
		Name:      "admin-address",
		Usage:     "Print the admin address of an EIP-1967 proxy",
		ArgsUsage: "<proxy>",
		Action: proxySlotAction(func(ctx context.Context, cc contractCaller.IContractCaller, proxy common.Address) (common.Address, error) {
			return cc.GetAdminAddress(ctx, proxy)
		}),
	}
}

func beaconAddressCommand() *cli.Command {
	return &cli.Command{
		Name:      "beacon-address",
		Usage:     "Print the beacon address of an EIP-1967 beacon proxy",
		ArgsUsage: "<proxy>",
		Action: proxySlotAction(func(ctx context.Context, cc contractCaller.IContractCaller, proxy common.Address) (common.Address, error) {
			return cc.GetBeaconAddress(ctx, proxy)
		}),
	}
}

func chainIdAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}

	cc, err := h.contractCaller()
	if err != nil {
		return err
	}
	id, err := cc.GetChainID(c.Context)
	if err != nil {
		return err
	}
	return h.write(id.String())
}

type proxyLookup func(ctx context.Context, cc contractCaller.IContractCaller, proxy common.Address) (common.Address, error)

func proxySlotAction(lookup proxyLookup) cli.ActionFunc {
	return func(c *cli.Context) error {
		h, err := getHelper(c)
		if err != nil {
			return err
		}
		if c.NArg() != 1 {
			return fmt.Errorf("expected <proxy>, got %d arguments", c.NArg())
		}
		if !common.IsHexAddress(c.Args().First()) {
			return fmt.Errorf("invalid proxy address %q", c.Args().First())
		}
		proxy := common.HexToAddress(c.Args().First())

		cc, err := h.contractCaller()
		if err != nil {
			return err
		}
		addr, err := lookup(c.Context, cc, proxy)
		if err != nil {
			return err
		}
		return h.write(addr.Hex())
	}
}
