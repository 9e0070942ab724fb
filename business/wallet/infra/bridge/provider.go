// Package bridge adapts a remote wallet bridge session to the provider
// capability set. Requests travel as JSON-RPC over a reconnecting
// websocket; the bridge pushes account, chain and session updates as
// notifications.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/business/wallet/domain"
	"github.com/fd1az/wallet-hub/internal/apperror"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/network"
	"github.com/fd1az/wallet-hub/internal/store"
	"github.com/fd1az/wallet-hub/internal/wsconn"
)

const meterName = "github.com/fd1az/wallet-hub/business/wallet/infra/bridge"

// Config holds bridge endpoint settings.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("bridge: rpc error %d: %s", e.Code, e.Message)
}

type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type handlerEntry struct {
	id      uint64
	handler func(payload any)
}

// Provider is a wallet provider proxied over a remote bridge session.
type Provider struct {
	conn  *wsconn.Client
	store store.Store
	log   logger.LoggerInterface

	requests metric.Int64Counter

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan message
	handlers map[app.ProviderEvent][]handlerEntry
}

// Connect dials the bridge, restores the persisted session and returns
// a live provider. rpcURLs seeds the bridge with the chains the host
// supports.
func Connect(ctx context.Context, cfg Config, session string, rpcURLs map[network.ChainID]string,
	st store.Store, log logger.LoggerInterface) (*Provider, error) {

	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeBridgeConnectFailed,
			apperror.WithContext("bridge.Connect"),
			apperror.WithMessage("bridge url not configured"))
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	conn, err := wsconn.New(wsconn.DefaultConfig(cfg.URL, "wallet-bridge"))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBridgeConnectFailed, "bridge.Connect")
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBridgeConnectFailed, "bridge.Connect")
	}

	requests, err := otel.Meter(meterName).Int64Counter(
		"wallet_bridge_requests_total",
		metric.WithDescription("Total JSON-RPC requests sent over the bridge"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	p := &Provider{
		conn:     conn,
		store:    st,
		log:      log,
		requests: requests,
		pending:  make(map[uint64]chan message),
		handlers: make(map[app.ProviderEvent][]handlerEntry),
	}
	go p.readLoop()

	hsCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()

	if _, err := p.Request(hsCtx, "wc_sessionRestore", map[string]any{
		"session": session,
		"rpc":     rpcURLs,
	}); err != nil {
		_ = p.Close()
		return nil, apperror.Wrap(err, apperror.CodeBridgeConnectFailed, "bridge.Connect")
	}

	return p, nil
}

// NewFactory returns the factory the controller restores bridge
// sessions with.
func NewFactory(cfg Config, networks *network.Registry, st store.Store, log logger.LoggerInterface) app.BridgeFactory {
	return func(ctx context.Context, session string) (app.Provider, error) {
		return Connect(ctx, cfg, session, networks.RPCURLs(), st, log)
	}
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

func (p *Provider) emit(event app.ProviderEvent, payload any) {
	p.mu.Lock()
	entries := make([]handlerEntry, len(p.handlers[event]))
	copy(entries, p.handlers[event])
	p.mu.Unlock()

	for _, e := range entries {
		e.handler(payload)
	}
}

// Request performs one JSON-RPC call over the bridge.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	p.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	ch := make(chan message, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRPCError, "bridge.Provider.Request")
	}
	if err := p.conn.Send(ctx, payload); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRPCError, "bridge.Provider.Request")
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, apperror.New(apperror.CodeBridgeSessionMissing,
				apperror.WithContext("bridge.Provider.Request"),
				apperror.WithMessage("bridge connection lost"))
		}
		if msg.Error != nil {
			return nil, apperror.Wrap(msg.Error, apperror.CodeRPCError, "bridge.Provider.Request")
		}
		return msg.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Identity returns the canonical bridge wallet name.
func (p *Provider) Identity() string {
	return domain.WalletConnect
}

// Close tears the bridge connection down.
func (p *Provider) Close() error {
	return p.conn.Close()
}

func (p *Provider) readLoop() {
	for raw := range p.conn.Messages() {
		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			p.log.Debug(context.Background(), "bridge message dropped", "error", err)
			continue
		}

		if msg.ID != nil {
			p.mu.Lock()
			ch, ok := p.pending[*msg.ID]
			p.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}

		p.dispatch(msg.Method, msg.Params)
	}

	// Message channel closed: the connection is gone for good. Fail
	// every in-flight request and signal disconnect.
	p.mu.Lock()
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
	p.mu.Unlock()

	p.emit(app.ProviderEventDisconnect, nil)
}

func (p *Provider) dispatch(method string, params json.RawMessage) {
	switch method {
	case "wc_sessionUpdate":
		// The bridge rotates session payloads; persist so the next
		// bootstrap can restore.
		if err := p.store.Set(domain.StoreKeyBridgeSession, string(firstParam(params))); err != nil {
			p.log.Warn(context.Background(), "bridge session not persisted", "error", err)
		}
	case string(app.ProviderEventAccountsChanged):
		p.emit(app.ProviderEventAccountsChanged, firstParamAccounts(params))
	case string(app.ProviderEventChainChanged):
		p.emit(app.ProviderEventChainChanged, firstParam(params))
	case string(app.ProviderEventDisconnect):
		p.emit(app.ProviderEventDisconnect, nil)
	default:
		p.log.Debug(context.Background(), "bridge notification ignored", "method", method)
	}
}

// firstParam unwraps a single-element params array, passing anything
// else through untouched.
func firstParam(params json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return params
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
		return params
	}
	return list[0]
}

// firstParamAccounts extracts the account list from an accounts-changed
// notification, whose params may be the list itself or wrap it.
func firstParamAccounts(params json.RawMessage) []string {
	var accounts []string
	if err := json.Unmarshal(params, &accounts); err == nil {
		return accounts
	}
	if err := json.Unmarshal(firstParam(params), &accounts); err == nil {
		return accounts
	}
	return nil
}
