package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for helper configuration
const (
	EnvConfigFile           = "D4A_CONFIG"
	EnvNetwork              = "D4A_NETWORK"
	EnvRpcUrl               = "D4A_RPC_URL"
	EnvChainID              = "D4A_CHAIN_ID"
	EnvVerifyingContract    = "D4A_VERIFYING_CONTRACT"
	EnvKeys                 = "D4A_KEYS"
	EnvRpcRequestsPerSecond = "D4A_RPC_REQUESTS_PER_SECOND"
	EnvAWSRegion            = "D4A_AWS_REGION"
	EnvWeb3SignerUrl        = "D4A_WEB3SIGNER_URL"
	EnvStoreType            = "D4A_STORE_TYPE"
	EnvStoreDir             = "D4A_STORE_DIR"
	EnvRedisAddress         = "D4A_REDIS_ADDRESS"
	EnvRedisPassword        = "D4A_REDIS_PASSWORD"
	EnvVerbose              = "D4A_VERBOSE"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
	ChainId_Ganache         ChainId = 1337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
	ChainName_Ganache         ChainName = "ganache"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
	ChainId_Ganache:         ChainName_Ganache,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
	ChainName_Ganache:         ChainId_Ganache,
}

// IsLocalChain reports whether the chain id belongs to a development node
func IsLocalChain(chainId ChainId) bool {
	return chainId == ChainId_EthereumAnvil || chainId == ChainId_Ganache
}

// GetSupportedChainIDs returns all known chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_EthereumAnvil,
		ChainId_Ganache,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil), %d (ganache)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil, ChainId_Ganache)
}

const (
	DefaultNetwork              = "local"
	DefaultLocalRpcUrl          = "http://127.0.0.1:7545"
	DefaultRpcRequestsPerSecond = 10
)

type StoreType string

const (
	StoreTypeNone   StoreType = "none"
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// NetworkConfig names an RPC endpoint. ChainId is optional; zero means it is
// queried from the endpoint.
type NetworkConfig struct {
	RpcUrl  string  `json:"rpcUrl" yaml:"rpcUrl"`
	ChainId ChainId `json:"chainId" yaml:"chainId"`
}

type AWSConfig struct {
	Region string `json:"region" yaml:"region"`
}

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

type StoreConfig struct {
	Type  StoreType   `json:"type" yaml:"type"`
	Dir   string      `json:"dir" yaml:"dir"`
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// Config is the complete helper configuration
type Config struct {
	Debug bool `json:"debug" yaml:"debug"`

	// Network selects an entry of Networks
	Network  string                    `json:"network" yaml:"network"`
	Networks map[string]*NetworkConfig `json:"networks" yaml:"networks"`

	RpcRequestsPerSecond float64 `json:"rpcRequestsPerSecond" yaml:"rpcRequestsPerSecond"`

	// VerifyingContract is the EIP-712 domain verifying contract
	VerifyingContract string `json:"verifyingContract" yaml:"verifyingContract"`

	// Keys are signer references: 0x<hex>, local:<hex>, awskms:<key-id> or web3signer:<address>
	Keys []string `json:"keys" yaml:"keys"`

	AWS          AWSConfig           `json:"aws" yaml:"aws"`
	RemoteSigner *RemoteSignerConfig `json:"remoteSigner" yaml:"remoteSigner"`
	Store        StoreConfig         `json:"store" yaml:"store"`
}

func DefaultConfig() *Config {
	return &Config{
		Network: DefaultNetwork,
		Networks: map[string]*NetworkConfig{
			DefaultNetwork: {RpcUrl: DefaultLocalRpcUrl, ChainId: ChainId_Ganache},
		},
		RpcRequestsPerSecond: DefaultRpcRequestsPerSecond,
		Store: StoreConfig{
			Type: StoreTypeNone,
			Redis: RedisConfig{
				KeyPrefix: "d4a:",
			},
		},
	}
}

// LoadConfig reads a YAML file over the defaults and applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvNetwork); ok && v != "" {
		c.Network = v
	}
	if v, ok := lookup(EnvRpcUrl); ok && v != "" {
		c.network().RpcUrl = v
	}
	if v, ok := lookup(EnvChainID); ok && v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvChainID, v, err)
		}
		c.network().ChainId = ChainId(id)
	}
	if v, ok := lookup(EnvVerifyingContract); ok && v != "" {
		c.VerifyingContract = v
	}
	if v, ok := lookup(EnvKeys); ok && v != "" {
		c.Keys = splitKeys(v)
	}
	if v, ok := lookup(EnvRpcRequestsPerSecond); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRpcRequestsPerSecond, v, err)
		}
		c.RpcRequestsPerSecond = rps
	}
	if v, ok := lookup(EnvAWSRegion); ok && v != "" {
		c.AWS.Region = v
	}
	if v, ok := lookup(EnvWeb3SignerUrl); ok && v != "" {
		if c.RemoteSigner == nil {
			c.RemoteSigner = &RemoteSignerConfig{}
		}
		c.RemoteSigner.Url = v
	}
	if v, ok := lookup(EnvStoreType); ok && v != "" {
		c.Store.Type = StoreType(v)
	}
	if v, ok := lookup(EnvStoreDir); ok && v != "" {
		c.Store.Dir = v
	}
	if v, ok := lookup(EnvRedisAddress); ok && v != "" {
		c.Store.Redis.Address = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		c.Store.Redis.Password = v
	}
	if v, ok := lookup(EnvVerbose); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvVerbose, v, err)
		}
		c.Debug = debug
	}
	return nil
}

func (c *Config) network() *NetworkConfig {
	if c.Networks == nil {
		c.Networks = map[string]*NetworkConfig{}
	}
	n, ok := c.Networks[c.Network]
	if !ok || n == nil {
		n = &NetworkConfig{}
		c.Networks[c.Network] = n
	}
	return n
}

// GetNetwork returns the selected network
func (c *Config) GetNetwork() (*NetworkConfig, error) {
	n, ok := c.Networks[c.Network]
	if !ok || n == nil {
		return nil, fmt.Errorf("unknown network %q, configured: %s", c.Network, strings.Join(c.NetworkNames(), ", "))
	}
	return n, nil
}

func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) Validate() error {
	var allErrors field.ErrorList

	networksPath := field.NewPath("networks")
	if _, ok := c.Networks[c.Network]; !ok {
		allErrors = append(allErrors, field.NotFound(field.NewPath("network"), c.Network))
	}
	for _, name := range c.NetworkNames() {
		n := c.Networks[name]
		if n == nil || n.RpcUrl == "" {
			allErrors = append(allErrors, field.Required(networksPath.Key(name).Child("rpcUrl"), "rpcUrl is required"))
		}
	}

	if c.RpcRequestsPerSecond <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rpcRequestsPerSecond"), c.RpcRequestsPerSecond, "must be positive"))
	}

	if c.VerifyingContract != "" && !common.IsHexAddress(c.VerifyingContract) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("verifyingContract"), c.VerifyingContract, "must be a hex address"))
	}

	keysPath := field.NewPath("keys")
	for i, ref := range c.Keys {
		if err := ValidateKeyReference(ref); err != nil {
			// never echo the reference back, it may be a private key
			allErrors = append(allErrors, field.Invalid(keysPath.Index(i), "<redacted>", err.Error()))
		}
	}

	if c.RemoteSigner != nil {
		if c.RemoteSigner.Url == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("remoteSigner", "url"), "url is required"))
		}
	}

	storePath := field.NewPath("store")
	switch c.Store.Type {
	case "", StoreTypeNone, StoreTypeMemory:
	case StoreTypeBadger:
		if c.Store.Dir == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("dir"), "dir is required for badger"))
		}
	case StoreTypeRedis:
		if c.Store.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("redis", "address"), "address is required for redis"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(storePath.Child("type"), c.Store.Type,
			[]string{string(StoreTypeNone), string(StoreTypeMemory), string(StoreTypeBadger), string(StoreTypeRedis)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func splitKeys(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	})
}

type RemoteSignerConfig struct {
	Url         string `json:"url" yaml:"url"`
	CACert      string `json:"caCert" yaml:"caCert"`
	Cert        string `json:"cert" yaml:"cert"`
	Key         string `json:"key" yaml:"key"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
	PublicKey   string `json:"publicKey" yaml:"publicKey"`
}

func (rsc *RemoteSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if rsc.Url == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("url"), "url is required"))
	}
	if rsc.FromAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("fromAddress"), "fromAddress is required"))
	} else if !common.IsHexAddress(rsc.FromAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fromAddress"), rsc.FromAddress, "must be a hex address"))
	}
	if (rsc.Cert == "") != (rsc.Key == "") {
		allErrors = append(allErrors, field.Invalid(field.NewPath("cert"), rsc.Cert, "cert and key must be set together"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
