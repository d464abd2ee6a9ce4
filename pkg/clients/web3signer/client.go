package web3signer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/d4a-protocol/d4a-test-helpers/pkg/config"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:9000"
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client is a JSON-RPC client for the Web3Signer eth1 API
type Client struct {
	config *Config
	logger *zap.Logger

	mu         sync.Mutex
	httpClient *http.Client
	rpcClient  *rpc.Client
}

func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid web3signer url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// NewWeb3SignerClientFromRemoteSignerConfig builds a client from the remote
// signer section of the config. A nil config yields the default client.
// CACert, Cert and Key may be PEM contents or file paths.
func NewWeb3SignerClientFromRemoteSignerConfig(cfg *config.RemoteSignerConfig, logger *zap.Logger) (*Client, error) {
	clientCfg := DefaultConfig()
	if cfg == nil {
		return NewClient(clientCfg, logger)
	}
	if cfg.Url != "" {
		clientCfg.BaseURL = cfg.Url
	}

	client, err := NewClient(clientCfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.CACert != "" || cfg.Cert != "" {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure web3signer TLS: %w", err)
		}
		client.SetHttpClient(&http.Client{
			Timeout:   clientCfg.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		})
	}
	return client, nil
}

func newTLSConfig(cfg *config.RemoteSignerConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CACert != "" {
		caPEM, err := readPEM(cfg.CACert)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in caCert")
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.Cert != "" {
		certPEM, err := readPEM(cfg.Cert)
		if err != nil {
			return nil, err
		}
		keyPEM, err := readPEM(cfg.Key)
		if err != nil {
			return nil, err
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func readPEM(value string) ([]byte, error) {
	if strings.Contains(value, "-----BEGIN") {
		return []byte(value), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", value, err)
	}
	return data, nil
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
	c.httpClient = client
}

func (c *Client) getRpcClient(ctx context.Context) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpcClient != nil {
		return c.rpcClient, nil
	}
	client, err := rpc.DialOptions(ctx, c.config.BaseURL, rpc.WithHTTPClient(c.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to web3signer at %s: %w", c.config.BaseURL, err)
	}
	c.rpcClient = client
	return client, nil
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	client, err := c.getRpcClient(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	c.logger.Sugar().Debugw("Calling web3signer", "method", method, "url", c.config.BaseURL)
	if err := client.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("web3signer %s failed: %w", method, err)
	}
	return nil
}

func (c *Client) EthAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) EthSignTypedData(ctx context.Context, account string, typedData interface{}) (string, error) {
	var signature string
	if err := c.call(ctx, &signature, "eth_signTypedData", account, typedData); err != nil {
		return "", err
	}
	return signature, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}
