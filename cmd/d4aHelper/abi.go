package main

import (
	"fmt"
	"strings"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/util"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func abiEncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "abi-encode",
		Usage:     "Print abi.encode(values...) for comma separated solidity types",
		ArgsUsage: "<types> <values...>",
		Description: `Array values are given as one comma separated argument, e.g.

	   d4a-helper abi-encode "bytes32[],uint256" "0x01..,0x02.." 42`,
		Action: abiEncodeAction,
	}
}

func abiEncodeAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}
	if c.NArg() < 1 {
		return fmt.Errorf("expected <types> <values...>")
	}

	types := splitTypes(c.Args().First())
	encoded, err := util.EncodeValues(types, c.Args().Tail())
	if err != nil {
		return err
	}
	return h.write(hexutil.Encode(encoded))
}

func splitTypes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	types := strings.Split(s, ",")
	for i := range types {
		types[i] = strings.TrimSpace(types[i])
	}
	return types
}
