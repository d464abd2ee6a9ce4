package main

import (
	"fmt"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/config"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "d4a-helper",
		Usage: "Merkle, EIP-712 and ABI helpers for D4A contract tests",
		Description: `Helpers called from Foundry ffi and other test harnesses.

Every command prints only its result to stdout, without a trailing newline,
so the output can be consumed directly by vm.ffi. Logs go to stderr.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{config.EnvConfigFile},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvVerbose},
			},
			&cli.StringFlag{
				Name:  "network",
				Usage: "Configured network to use",
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL, overrides the network's rpcUrl",
			},
			&cli.Float64Flag{
				Name:  "rpc-requests-per-second",
				Usage: "Rate limit for RPC calls",
			},
			&cli.StringSliceFlag{
				Name:  "key",
				Usage: "Signer reference (0x<hex>, local:<hex>, awskms:<key-id>, web3signer:<address>), repeatable",
			},
			&cli.StringFlag{
				Name:  "aws-region",
				Usage: "AWS region for awskms keys",
			},
			&cli.StringFlag{
				Name:  "web3signer-url",
				Usage: "Web3Signer endpoint for web3signer keys",
			},
			&cli.StringFlag{
				Name:  "store-type",
				Usage: fmt.Sprintf("Tree store backend: %s, %s, %s or %s", config.StoreTypeNone, config.StoreTypeMemory, config.StoreTypeBadger, config.StoreTypeRedis),
			},
			&cli.StringFlag{
				Name:  "store-dir",
				Usage: "Directory for the badger tree store",
			},
			&cli.StringFlag{
				Name:  "redis-address",
				Usage: "host:port of the redis tree store",
			},
		},
		Before: setupHelper,
		Commands: []*cli.Command{
			merkleRootCommand(),
			merkleProofCommand(),
			merkleVerifyCommand(),
			merkleDumpCommand(),
			treeListCommand(),
			treeDeleteCommand(),
			abiEncodeCommand(),
			signPermissionCommand(),
			signMintCommand(),
			typedDataHashCommand(),
			accountsCommand(),
			chainIdCommand(),
			implAddressCommand(),
			adminAddressCommand(),
			beaconAddressCommand(),
		},
	}
}
