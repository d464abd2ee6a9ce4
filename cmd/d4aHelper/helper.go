package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	internalAws "github.com/d4a-protocol/d4a-test-helpers/internal/aws"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/clients/web3signer"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/config"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/contractCaller"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/contractCaller/caller"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/keystore"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/logger"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence"
	"github.com/d4a-protocol/d4a-test-helpers/pkg/persistence/factory"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const helperMetadataKey = "helper"

// helper carries the resolved configuration shared by every command
type helper struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

// setupHelper loads the config file, applies environment and flag
// overrides, validates the result and builds the logger.
func setupHelper(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[helperMetadataKey] = &helper{
		cfg:    cfg,
		logger: l,
		out:    c.App.Writer,
	}
	return nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("verbose") {
		cfg.Debug = c.Bool("verbose")
	}
	if c.IsSet("network") {
		cfg.Network = c.String("network")
	}
	if c.IsSet("rpc-url") {
		n, ok := cfg.Networks[cfg.Network]
		if !ok || n == nil {
			n = &config.NetworkConfig{}
			if cfg.Networks == nil {
				cfg.Networks = map[string]*config.NetworkConfig{}
			}
			cfg.Networks[cfg.Network] = n
		}
		n.RpcUrl = c.String("rpc-url")
	}
	if c.IsSet("rpc-requests-per-second") {
		cfg.RpcRequestsPerSecond = c.Float64("rpc-requests-per-second")
	}
	if c.IsSet("key") {
		cfg.Keys = c.StringSlice("key")
	}
	if c.IsSet("aws-region") {
		cfg.AWS.Region = c.String("aws-region")
	}
	if c.IsSet("web3signer-url") {
		if cfg.RemoteSigner == nil {
			cfg.RemoteSigner = &config.RemoteSignerConfig{}
		}
		cfg.RemoteSigner.Url = c.String("web3signer-url")
	}
	if c.IsSet("store-type") {
		cfg.Store.Type = config.StoreType(c.String("store-type"))
	}
	if c.IsSet("store-dir") {
		cfg.Store.Dir = c.String("store-dir")
	}
	if c.IsSet("redis-address") {
		cfg.Store.Redis.Address = c.String("redis-address")
	}
}

func getHelper(c *cli.Context) (*helper, error) {
	h, ok := c.App.Metadata[helperMetadataKey].(*helper)
	if !ok || h == nil {
		return nil, fmt.Errorf("helper not initialized")
	}
	return h, nil
}

// write prints a command result. Results never end with a newline.
func (h *helper) write(result string) error {
	_, err := io.WriteString(h.out, result)
	return err
}

func (h *helper) contractCaller() (contractCaller.IContractCaller, error) {
	network, err := h.cfg.GetNetwork()
	if err != nil {
		return nil, err
	}

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   network.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, h.logger)

	cc, err := caller.NewContractCallerFromEthereumClient(ethClient, h.cfg.RpcRequestsPerSecond, h.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract caller: %w", err)
	}
	return cc, nil
}

func (h *helper) keyStore(ctx context.Context) (*keystore.KeyStore, error) {
	if len(h.cfg.Keys) == 0 {
		return nil, fmt.Errorf("no signing keys configured, use --key or %s", config.EnvKeys)
	}

	backends := &keystore.Backends{
		NewKMSClient: internalAws.NewKMSClientFactory(h.cfg.AWS.Region, h.logger),
	}
	if h.cfg.RemoteSigner != nil {
		client, err := web3signer.NewWeb3SignerClientFromRemoteSignerConfig(h.cfg.RemoteSigner, h.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create web3signer client: %w", err)
		}
		backends.Web3SignerClient = client
	}

	return keystore.LoadKeyStore(ctx, h.cfg.Keys, backends, h.logger)
}

// treeStore opens the configured store. The caller must close it.
func (h *helper) treeStore() (persistence.ITreeStore, error) {
	store, err := factory.NewTreeStore(&h.cfg.Store, h.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open tree store: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("no tree store configured, use --store-type or %s", config.EnvStoreType)
	}
	return store, nil
}

// readInput returns value itself when it looks like inline JSON, stdin for
// "-", and the named file otherwise.
func readInput(c *cli.Context, value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		return nil, fmt.Errorf("input is required")
	case trimmed == "-":
		reader := c.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		return io.ReadAll(reader)
	case strings.HasPrefix(trimmed, "{"):
		return []byte(trimmed), nil
	default:
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", trimmed, err)
		}
		return data, nil
	}
}
