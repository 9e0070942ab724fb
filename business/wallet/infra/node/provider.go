// Package node adapts a JSON-RPC Ethereum node endpoint to the wallet
// provider capability set. It backs local development and headless
// operation, where no injected wallet exists.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/internal/apperror"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/ratelimit"
)

const meterName = "github.com/fd1az/wallet-hub/business/wallet/infra/node"

type handlerEntry struct {
	id      uint64
	handler func(payload any)
}

// Provider exposes a node connection as a wallet provider. The node
// never changes accounts or chains on its own, but the event surface is
// kept so callers treat it like any other provider.
type Provider struct {
	name    string
	client  *rpc.Client
	limiter *ratelimit.Limiter
	log     logger.LoggerInterface

	requests metric.Int64Counter

	mu       sync.Mutex
	nextID   uint64
	handlers map[app.ProviderEvent][]handlerEntry
}

// Dial connects to the node at url and registers the provider under the
// given wallet name.
func Dial(ctx context.Context, url, name string, requestsPerMinute int, log logger.LoggerInterface) (*Provider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRPCConnectFailed, "node.Dial")
	}

	requests, err := otel.Meter(meterName).Int64Counter(
		"wallet_node_requests_total",
		metric.WithDescription("Total RPC requests sent to the wallet node"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Provider{
		name:     name,
		client:   client,
		limiter:  ratelimit.New(requestsPerMinute),
		log:      log,
		requests: requests,
		handlers: make(map[app.ProviderEvent][]handlerEntry),
	}, nil
}

// On registers an event handler and returns its removal func.
func (p *Provider) On(event app.ProviderEvent, handler func(payload any)) app.Unsubscribe {
	if handler == nil {
		return func() {}
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.handlers[event] = append(p.handlers[event], handlerEntry{id: id, handler: handler})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		entries := p.handlers[event]
		for i, e := range entries {
			if e.id == id {
				p.handlers[event] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// emit invokes handlers outside the lock so a handler may re-enter the
// provider.
func (p *Provider) emit(event app.ProviderEvent, payload any) {
	p.mu.Lock()
	entries := make([]handlerEntry, len(p.handlers[event]))
	copy(entries, p.handlers[event])
	p.mu.Unlock()

	for _, e := range entries {
		e.handler(payload)
	}
}

// Request performs one RPC call against the node. Wallet-only methods
// are translated to their node equivalents where one exists.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	switch method {
	case "eth_requestAccounts":
		// Nodes expose their accounts unconditionally.
		method = "eth_accounts"
	case "wallet_switchEthereumChain":
		return nil, apperror.New(apperror.CodeNetworkSwitchRejected,
			apperror.WithContext("node.Provider.Request"),
			apperror.WithMessage("a node endpoint is pinned to one chain"))
	}

	p.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))

	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRPCError, "node.Provider.Request")
	}
	return raw, nil
}

// Identity returns the wallet name this provider registers under.
func (p *Provider) Identity() string {
	return p.name
}

// SubscribeNewHeads pushes a notification per new block. Only works on
// subscription-capable transports (websocket, IPC).
func (p *Provider) SubscribeNewHeads(ctx context.Context, handler func()) (app.Unsubscribe, error) {
	heads := make(chan json.RawMessage, 8)
	sub, err := p.client.EthSubscribe(ctx, heads, "newHeads")
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeSubscribeFailed, "node.Provider.SubscribeNewHeads")
	}

	go func() {
		for {
			select {
			case _, ok := <-heads:
				if !ok {
					return
				}
				handler()
			case err, ok := <-sub.Err():
				if ok && err != nil {
					p.log.Debug(ctx, "new-head subscription ended", "error", err)
				}
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(sub.Unsubscribe) }, nil
}

// Close shuts the node connection down and signals disconnect.
func (p *Provider) Close() error {
	p.client.Close()
	p.emit(app.ProviderEventDisconnect, nil)
	return nil
}
