package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	balancedomain "github.com/fd1az/wallet-hub/business/balance/domain"
	"github.com/fd1az/wallet-hub/business/wallet/domain"
	"github.com/fd1az/wallet-hub/internal/network"
)

// createSubscriptions wires the active provider's event handlers, the
// periodic balance ticker and, when the client supports it, the
// new-head stream. It always clears first, so re-binding is idempotent.
func (c *Controller) createSubscriptions(ctx context.Context) {
	c.clearSubscriptions()

	c.mu.Lock()
	provider := c.provider
	client := c.rpc
	c.mu.Unlock()
	if provider == nil {
		return
	}

	subs := []Unsubscribe{
		provider.On(ProviderEventAccountsChanged, func(payload any) { c.onAccountsChanged(ctx, payload) }),
		provider.On(ProviderEventChainChanged, func(payload any) { c.onChainChanged(ctx, payload) }),
		provider.On(ProviderEventDisconnect, func(any) { c.onProviderDisconnect(ctx) }),
		c.startBalanceTicker(ctx),
	}

	if client != nil {
		unsub, err := client.SubscribeNewHeads(ctx, func() { c.refreshBalance(ctx) })
		if err != nil {
			c.debugf(ctx, "new-head stream unavailable, relying on the ticker: "+err.Error())
		} else {
			subs = append(subs, unsub)
		}
	}

	c.mu.Lock()
	c.subs = subs
	c.mu.Unlock()
}

// clearSubscriptions tears down every live subscription. Safe to call
// with none active.
func (c *Controller) clearSubscriptions() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, unsub := range subs {
		if unsub != nil {
			unsub()
		}
	}
}

func (c *Controller) startBalanceTicker(ctx context.Context) Unsubscribe {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.cfg.BalancePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refreshBalance(ctx)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// refreshBalance recomputes the balance for the current account/chain
// pair. At most one refresh is in flight; extra triggers are dropped. A
// result computed for a chain that changed mid-flight is discarded
// without an event.
func (c *Controller) refreshBalance(ctx context.Context) {
	c.mu.Lock()
	if !c.state.Connected || c.state.BalanceRefreshing {
		c.mu.Unlock()
		return
	}
	c.state.BalanceRefreshing = true
	chain := c.state.ActiveChain
	account := c.account
	reader := c.rpc
	c.mu.Unlock()

	c.metrics.balanceRefreshes.Add(ctx, 1)
	bal := c.deps.Oracle.Resolve(ctx, reader, account, chain)

	c.mu.Lock()
	c.state.BalanceRefreshing = false
	if !c.state.Connected || c.state.ActiveChain != chain {
		c.mu.Unlock()
		return
	}
	c.state.Balance = bal
	c.state.HasBalance = true
	c.mu.Unlock()

	c.bus.Emit(domain.EventBalanceUpdated, domain.BalanceUpdatedPayload{Balance: bal})
}

// onAccountsChanged reconciles a provider-reported account switch. An
// empty account list means the wallet revoked access.
func (c *Controller) onAccountsChanged(ctx context.Context, payload any) {
	accounts := parseAccounts(payload)

	c.mu.Lock()
	if !c.state.Connected {
		c.mu.Unlock()
		return
	}
	if len(accounts) == 0 {
		c.mu.Unlock()
		c.DisconnectWallet(ctx)
		return
	}
	next := accounts[0]
	if strings.EqualFold(next, c.account) {
		c.mu.Unlock()
		return
	}
	chain := c.state.ActiveChain
	reader := c.rpc
	c.mu.Unlock()

	bal := c.deps.Oracle.Resolve(ctx, reader, next, chain)

	c.mu.Lock()
	if !c.state.Connected || c.state.ActiveChain != chain {
		c.mu.Unlock()
		return
	}
	c.account = next
	c.state.Balance = bal
	c.state.HasBalance = true
	c.mu.Unlock()

	c.bus.Emit(domain.EventBalanceUpdated, domain.BalanceUpdatedPayload{Balance: bal})
	c.bus.Emit(domain.EventAccountChanged, domain.AccountChangedPayload{Account: next})
}

// onChainChanged reconciles a provider-reported chain switch. The raw
// id may arrive hex, decimal or numeric.
func (c *Controller) onChainChanged(ctx context.Context, payload any) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "wallet.chain_switch")
	defer span.End()

	c.mu.Lock()
	connected := c.state.Connected
	account := c.account
	reader := c.rpc
	c.mu.Unlock()
	if !connected {
		return
	}

	chain, err := network.ParseChainID(payload)
	if err != nil {
		// Prior chain state stays in place.
		c.debugf(ctx, "ignoring malformed chain id from provider: "+err.Error())
		span.RecordError(err)
		span.SetError("malformed chain id")
		return
	}
	span.SetAttributes(attribute.Int64("chain_id", int64(chain)))

	if !c.deps.Networks.Contains(chain) {
		c.mu.Lock()
		if !c.state.Connected {
			c.mu.Unlock()
			return
		}
		c.state.ActiveChain = domain.ChainUnsupported
		c.state.ChainValid = false
		c.state.Balance = balancedomain.Zero()
		c.state.HasBalance = true
		c.mu.Unlock()

		c.metrics.chainSwitches.Add(ctx, 1,
			metric.WithAttributes(attribute.Bool("supported", false)))
		span.AddEvent("unsupported_chain")

		c.bus.Emit(domain.EventNetworkChanged, domain.NetworkChangedPayload{ChainID: domain.ChainUnsupported})
		c.bus.Emit(domain.EventBalanceUpdated, domain.BalanceUpdatedPayload{Balance: balancedomain.Zero()})
		return
	}

	bal := c.deps.Oracle.Resolve(ctx, reader, account, chain)

	c.mu.Lock()
	if !c.state.Connected {
		c.mu.Unlock()
		return
	}
	c.state.ActiveChain = chain
	c.state.ChainValid = true
	c.state.Balance = bal
	c.state.HasBalance = true
	c.mu.Unlock()

	c.metrics.chainSwitches.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("supported", true)))
	span.SetOK("chain switched")

	c.bus.Emit(domain.EventNetworkChanged, domain.NetworkChangedPayload{ChainID: chain})
	c.bus.Emit(domain.EventBalanceUpdated, domain.BalanceUpdatedPayload{Balance: bal})
}

// onProviderDisconnect handles the provider-level disconnect signal. It
// only means something for the remote bridge: an injected provider
// firing it merely lost its RPC connection for a moment.
func (c *Controller) onProviderDisconnect(ctx context.Context) {
	c.mu.Lock()
	bridge := domain.IsBridgeWallet(c.walletKey)
	c.mu.Unlock()

	if bridge {
		c.DisconnectWallet(ctx)
	}
}

// parseAccounts normalizes the account-change payload shapes providers
// emit.
func parseAccounts(payload any) []string {
	switch v := payload.(type) {
	case nil:
		return nil
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case json.RawMessage:
		var out []string
		if err := json.Unmarshal(v, &out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}
