package main

import (
	"fmt"
	"strings"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/merkle"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func sortedFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "sorted",
		Usage: "Sort leaves by hash before building; matches StandardMerkleTree.of and the getMerkleRootFoundry.js/getMerkleProofFoundry.js output",
	}
}

func saveFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "save",
		Usage: "Persist the tree dump in the configured tree store",
	}
}

func merkleRootCommand() *cli.Command {
	return &cli.Command{
		Name:      "merkle-root",
		Usage:     "Print the merkle root of an account list (use --sorted for the same root as getMerkleRootFoundry.js)",
		ArgsUsage: "<accounts...>",
		Flags:     []cli.Flag{sortedFlag(), saveFlag()},
		Action:    merkleRootAction,
	}
}

func merkleProofCommand() *cli.Command {
	return &cli.Command{
		Name:      "merkle-proof",
		Usage:     "Print the ABI-encoded bytes32[] proof for an account (use --sorted for the same proof as getMerkleProofFoundry.js)",
		ArgsUsage: "<accounts> <account>",
		Flags: []cli.Flag{
			sortedFlag(),
			&cli.StringFlag{
				Name:  "root",
				Usage: "Load the tree from the tree store instead of building it; only <account> is expected",
			},
		},
		Action: merkleProofAction,
	}
}

func merkleVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "merkle-verify",
		Usage:     "Print true if the proof shows account is in the tree with root",
		ArgsUsage: "<root> <account> <proof>",
		Action:    merkleVerifyAction,
	}
}

func merkleDumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "merkle-dump",
		Usage:     "Print the standard-v1 JSON dump of an account tree",
		ArgsUsage: "<accounts...>",
		Flags:     []cli.Flag{sortedFlag(), saveFlag()},
		Action:    merkleDumpAction,
	}
}

func treeListCommand() *cli.Command {
	return &cli.Command{
		Name:   "tree-list",
		Usage:  "List the roots held in the tree store, one per line",
		Action: treeListAction,
	}
}

func treeDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "tree-delete",
		Usage:     "Remove a tree from the tree store",
		ArgsUsage: "<root>",
		Action:    treeDeleteAction,
	}
}

// buildTree joins every argument into one whitespace separated list, so
// both a single quoted list and separate arguments work.
func buildTree(c *cli.Context, args []string) (*merkle.AccountTree, error) {
	accounts := util.ParseAccountList(strings.Join(args, " "))
	var opts []merkle.Option
	if c.Bool("sorted") {
		opts = append(opts, merkle.WithSortedLeaves())
	}
	return merkle.BuildAccountTree(accounts, opts...)
}

func (h *helper) saveTree(tree *merkle.AccountTree) error {
	store, err := h.treeStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	root, err := store.SaveTree(tree.Dump())
	if err != nil {
		return fmt.Errorf("failed to save tree: %w", err)
	}
	h.logger.Sugar().Infow("Saved tree", "root", root.Hex(), "leaves", tree.Len())
	return nil
}

func merkleRootAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}

	tree, err := buildTree(c, c.Args().Slice())
	if err != nil {
		return err
	}
	if c.Bool("save") {
		if err := h.saveTree(tree); err != nil {
			return err
		}
	}
	return h.write(tree.Root().Hex())
}

func merkleProofAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}

	var (
		tree    *merkle.AccountTree
		account string
	)
	if c.IsSet("root") {
		if c.NArg() != 1 {
			return fmt.Errorf("expected <account> when --root is set, got %d arguments", c.NArg())
		}
		account = c.Args().First()
		tree, err = h.loadTree(c.String("root"))
	} else {
		if c.NArg() < 2 {
			return fmt.Errorf("expected <accounts> <account>, got %d arguments", c.NArg())
		}
		args := c.Args().Slice()
		account = args[len(args)-1]
		tree, err = buildTree(c, args[:len(args)-1])
	}
	if err != nil {
		return err
	}

	proof, err := tree.GetProofForHex(account)
	if err != nil {
		return err
	}
	h.logger.Sugar().Debugw("Generated proof",
		"account", proof.Account.Hex(),
		"valueIndex", proof.ValueIndex,
		"treeIndex", proof.TreeIndex,
		"length", len(proof.Proof),
	)

	encoded, err := util.EncodeProof(proof.Proof)
	if err != nil {
		return err
	}
	return h.write(hexutil.Encode(encoded))
}

func (h *helper) loadTree(rootHex string) (*merkle.AccountTree, error) {
	root, err := parseHash(rootHex)
	if err != nil {
		return nil, err
	}

	store, err := h.treeStore()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	dump, err := store.LoadTree(root)
	if err != nil {
		return nil, err
	}
	if dump == nil {
		return nil, fmt.Errorf("no stored tree with root %s", root.Hex())
	}
	return merkle.LoadAccountTree(dump)
}

func merkleVerifyAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}
	if c.NArg() != 3 {
		return fmt.Errorf("expected <root> <account> <proof>, got %d arguments", c.NArg())
	}

	root, err := parseHash(c.Args().Get(0))
	if err != nil {
		return err
	}
	account, err := merkle.ParseAccount(c.Args().Get(1))
	if err != nil {
		return err
	}
	proof, err := util.ParseProof(c.Args().Get(2))
	if err != nil {
		return err
	}

	return h.write(fmt.Sprintf("%t", merkle.VerifyProof(root, account, proof)))
}

func merkleDumpAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}

	tree, err := buildTree(c, c.Args().Slice())
	if err != nil {
		return err
	}
	if c.Bool("save") {
		if err := h.saveTree(tree); err != nil {
			return err
		}
	}

	data, err := merkle.MarshalTreeDump(tree.Dump())
	if err != nil {
		return err
	}
	return h.write(string(data))
}

func treeListAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}

	store, err := h.treeStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	roots, err := store.ListRoots()
	if err != nil {
		return err
	}
	lines := make([]string, len(roots))
	for i, root := range roots {
		lines[i] = root.Hex()
	}
	return h.write(strings.Join(lines, "\n"))
}

func treeDeleteAction(c *cli.Context) error {
	h, err := getHelper(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return fmt.Errorf("expected <root>, got %d arguments", c.NArg())
	}
	root, err := parseHash(c.Args().First())
	if err != nil {
		return err
	}

	store, err := h.treeStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return store.DeleteTree(root)
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid 32-byte hash %q", s)
	}
	return common.BytesToHash(b), nil
}
