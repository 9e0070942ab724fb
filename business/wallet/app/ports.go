// Package app implements the wallet connection controller: the state
// machine that discovers providers, negotiates accounts and reconciles
// account/chain/balance state against provider events.
package app

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	balanceapp "github.com/fd1az/wallet-hub/business/balance/app"
	balancedomain "github.com/fd1az/wallet-hub/business/balance/domain"
	"github.com/fd1az/wallet-hub/internal/network"
)

// ProviderEvent names the provider notifications the controller
// subscribes to.
type ProviderEvent string

const (
	ProviderEventAccountsChanged ProviderEvent = "accountsChanged"
	ProviderEventChainChanged    ProviderEvent = "chainChanged"
	ProviderEventDisconnect      ProviderEvent = "disconnect"
)

// Unsubscribe removes a previously registered handler or stream. Safe to
// call more than once.
type Unsubscribe func()

// Provider is the wallet provider capability set. Implementations wrap
// an injected wallet, a local node or a remote bridge session.
type Provider interface {
	// On registers a handler for a provider event and returns its
	// deregistration function.
	On(event ProviderEvent, handler func(payload any)) Unsubscribe
	// Request performs one wallet RPC call and returns the raw JSON
	// result.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Identifier is an optional Provider capability: a provider that
// self-identifies as one canonical wallet.
type Identifier interface {
	Identity() string
}

// MultiProvider is an optional Provider capability: a root provider
// exposing several addressable wallets.
type MultiProvider interface {
	ProviderMap() map[string]Provider
}

// Initializer is an optional Provider capability: a provider that knows
// whether it is still booting. Some wallets silently return no accounts
// while initializing; the negotiator skips the explicit permission
// request for those instead of hanging on it.
type Initializer interface {
	Initializing() bool
}

// HeadSubscriber is an optional Provider capability: a provider that can
// push new-block notifications.
type HeadSubscriber interface {
	SubscribeNewHeads(ctx context.Context, handler func()) (Unsubscribe, error)
}

// RPCClient is the typed RPC surface bound to the active provider for
// the duration of one connection session.
type RPCClient interface {
	BalanceAt(ctx context.Context, account string) (*big.Int, error)
	ChainID(ctx context.Context) (network.ChainID, error)
	Accounts(ctx context.Context) ([]string, error)
	RequestAccounts(ctx context.Context) ([]string, error)
	SubscribeNewHeads(ctx context.Context, handler func()) (Unsubscribe, error)
	Close()
}

// ClientFactory derives the session RPC client from a provider handle.
type ClientFactory func(Provider) RPCClient

// BridgeFactory builds and connects a remote-bridge provider from a
// persisted session blob.
type BridgeFactory func(ctx context.Context, session string) (Provider, error)

// Discovery locates wallet providers available in the host process.
type Discovery interface {
	// WaitForProvider polls for a registered root provider until timeout.
	WaitForProvider(ctx context.Context, timeout, poll time.Duration) (Provider, bool)
	// EnumerateWallets maps the root provider to the addressable wallets
	// behind it. Never panics; a nil or opaque root yields an empty map.
	EnumerateWallets(root Provider) map[string]Provider
}

// BalanceResolver resolves native balances. It never fails; degraded
// reads collapse to zero or the last known value.
type BalanceResolver interface {
	Resolve(ctx context.Context, reader balanceapp.Reader, account string, chain network.ChainID) balancedomain.Balance
}

// DialogService opens a host dialog by key, fire and forget.
type DialogService interface {
	Open(ctx context.Context, dialogKey string) error
}
