package web3signer

import (
	"context"
	"net/http"
)

// IWeb3Signer defines the interface for interacting with Web3Signer services.
type IWeb3Signer interface {
	// SetHttpClient replaces the HTTP client used for JSON-RPC calls.
	SetHttpClient(client *http.Client)

	// EthAccounts returns the accounts available for signing (eth_accounts).
	EthAccounts(ctx context.Context) ([]string, error)

	// EthSignTypedData signs EIP-712 typed data (eth_signTypedData) and
	// returns the hex encoded [R || S || V] signature.
	EthSignTypedData(ctx context.Context, account string, typedData interface{}) (string, error)

	Close()
}

// Compile-time check to ensure Client implements IWeb3Signer
var _ IWeb3Signer = (*Client)(nil)
