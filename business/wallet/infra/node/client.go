package node

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/internal/apperror"
	"github.com/fd1az/wallet-hub/internal/network"
)

// Client adapts any wallet provider to the typed RPC surface the
// controller binds for a session. It works against injected, node and
// bridge providers alike since all speak eth_* over Request.
type Client struct {
	provider app.Provider
}

// NewClient wraps a provider.
func NewClient(provider app.Provider) *Client {
	return &Client{provider: provider}
}

// NewClientFactory returns the factory the controller derives session
// clients with.
func NewClientFactory() app.ClientFactory {
	return func(p app.Provider) app.RPCClient {
		return NewClient(p)
	}
}

// BalanceAt returns the latest native balance of account in wei.
func (c *Client) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	raw, err := c.provider.Request(ctx, "eth_getBalance", account, "latest")
	if err != nil {
		return nil, err
	}

	var wei hexutil.Big
	if err := json.Unmarshal(raw, &wei); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBalanceFetchFailed, "node.Client.BalanceAt")
	}
	return (*big.Int)(&wei), nil
}

// ChainID returns the provider's active chain.
func (c *Client) ChainID(ctx context.Context) (network.ChainID, error) {
	raw, err := c.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}

	var id hexutil.Big
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, apperror.Wrap(err, apperror.CodeChainIDInvalid, "node.Client.ChainID")
	}
	chain, err := network.ParseChainID(id.ToInt().Int64())
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeChainIDInvalid, "node.Client.ChainID")
	}
	return chain, nil
}

// Accounts returns the accounts the provider already exposes.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	return c.accountCall(ctx, "eth_accounts")
}

// RequestAccounts asks the provider for account access, prompting the
// user where the wallet requires it.
func (c *Client) RequestAccounts(ctx context.Context) ([]string, error) {
	return c.accountCall(ctx, "eth_requestAccounts")
}

func (c *Client) accountCall(ctx context.Context, method string) ([]string, error) {
	raw, err := c.provider.Request(ctx, method)
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeNoAccounts, "node.Client.accountCall")
	}
	return accounts, nil
}

// SubscribeNewHeads forwards to the provider when it supports head
// streams.
func (c *Client) SubscribeNewHeads(ctx context.Context, handler func()) (app.Unsubscribe, error) {
	if hs, ok := c.provider.(app.HeadSubscriber); ok {
		return hs.SubscribeNewHeads(ctx, handler)
	}
	return nil, apperror.New(apperror.CodeSubscribeFailed,
		apperror.WithContext("node.Client.SubscribeNewHeads"),
		apperror.WithMessage("provider has no head stream"))
}

// Close releases session-scoped resources. The underlying provider is
// owned by the controller and closed separately.
func (c *Client) Close() {}
