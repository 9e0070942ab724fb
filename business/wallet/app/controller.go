package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/wallet-hub/business/wallet/domain"
	"github.com/fd1az/wallet-hub/internal/apm"
	"github.com/fd1az/wallet-hub/internal/apperror"
	"github.com/fd1az/wallet-hub/internal/eventbus"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/network"
	"github.com/fd1az/wallet-hub/internal/store"
)

const (
	tracerName = "github.com/fd1az/wallet-hub/business/wallet/app"
	meterName  = "github.com/fd1az/wallet-hub/business/wallet/app"
)

// Config holds the controller timings.
type Config struct {
	// InjectionWait bounds how long Initialize waits for a provider to
	// appear in the discovery host.
	InjectionWait time.Duration
	// InjectionPoll is the discovery polling interval.
	InjectionPoll time.Duration
	// BalancePollInterval drives the periodic balance refresh.
	BalancePollInterval time.Duration
	// AccountTimeout bounds each leg of the account negotiation.
	AccountTimeout time.Duration
}

// DebugOptions carries the optional diagnostic callbacks a host may
// install. Both funcs may be nil.
type DebugOptions struct {
	OnError func(err error)
	OnDebug func(msg string)
}

// Deps collects the controller collaborators.
type Deps struct {
	Store     store.Store
	Networks  *network.Registry
	Discovery Discovery
	Oracle    BalanceResolver
	Clients   ClientFactory
	Bridge    BridgeFactory
	Dialogs   DialogService
	Logger    logger.LoggerInterface
}

// controllerMetrics holds OTEL metric instruments.
type controllerMetrics struct {
	connectAttempts  metric.Int64Counter
	connectFailures  metric.Int64Counter
	disconnects      metric.Int64Counter
	chainSwitches    metric.Int64Counter
	balanceRefreshes metric.Int64Counter
}

// Controller owns the wallet connection lifecycle. All public methods
// are safe for concurrent use and never return errors to the host:
// failures surface as state transitions and diagnostic callbacks only.
type Controller struct {
	cfg  Config
	deps Deps
	bus  *eventbus.Bus[domain.EventKind]

	mu          sync.Mutex
	state       domain.ConnectionState
	walletKey   string
	provider    Provider
	rpc         RPCClient
	account     string
	dialogKey   string
	debug       DebugOptions
	initialized bool
	subs        []Unsubscribe

	negotiator accountNegotiator

	// Observability
	tracer  apm.Tracer
	metrics *controllerMetrics
}

// NewController creates a controller in the bootstrap state.
func NewController(deps Deps, cfg Config) (*Controller, error) {
	if cfg.InjectionWait <= 0 {
		cfg.InjectionWait = 3 * time.Second
	}
	if cfg.InjectionPoll <= 0 {
		cfg.InjectionPoll = 100 * time.Millisecond
	}
	if cfg.BalancePollInterval <= 0 {
		cfg.BalancePollInterval = 5 * time.Second
	}
	if cfg.AccountTimeout <= 0 {
		cfg.AccountTimeout = 2 * time.Second
	}
	c := &Controller{
		cfg:        cfg,
		deps:       deps,
		bus:        eventbus.New[domain.EventKind](deps.Logger),
		state:      domain.BootstrapState(),
		negotiator: accountNegotiator{timeout: cfg.AccountTimeout},
		tracer:     apm.NewTracer(tracerName),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

// initMetrics initializes OTEL metric instruments.
func (c *Controller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &controllerMetrics{}

	c.metrics.connectAttempts, err = meter.Int64Counter(
		"wallet_connect_attempts_total",
		metric.WithDescription("Total wallet connection attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	c.metrics.connectFailures, err = meter.Int64Counter(
		"wallet_connect_failures_total",
		metric.WithDescription("Total failed wallet connection attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	c.metrics.disconnects, err = meter.Int64Counter(
		"wallet_disconnects_total",
		metric.WithDescription("Total wallet disconnections"),
		metric.WithUnit("{disconnect}"),
	)
	if err != nil {
		return err
	}

	c.metrics.chainSwitches, err = meter.Int64Counter(
		"wallet_chain_switches_total",
		metric.WithDescription("Total chain switches reported by the provider"),
		metric.WithUnit("{switch}"),
	)
	if err != nil {
		return err
	}

	c.metrics.balanceRefreshes, err = meter.Int64Counter(
		"wallet_balance_refreshes_total",
		metric.WithDescription("Total balance refreshes performed"),
		metric.WithUnit("{refresh}"),
	)
	return err
}

// Initialize restores a cached session if one exists. It always
// completes: every branch ends with loading cleared and the
// initialization event emitted, whether or not a connection was made.
func (c *Controller) Initialize(ctx context.Context, dialogKey string, debug DebugOptions) {
	c.mu.Lock()
	c.state.Loading = true
	c.dialogKey = dialogKey
	c.debug = debug
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.Loading = false
		c.initialized = true
		c.mu.Unlock()
		c.bus.Emit(domain.EventControllerInitialized, nil)
	}()

	key, ok := c.deps.Store.Get(domain.StoreKeyWallet)
	if !ok || key == "" {
		return
	}

	if domain.IsBridgeWallet(key) {
		c.restoreBridgeSession(ctx)
		return
	}

	root, found := c.deps.Discovery.WaitForProvider(ctx, c.cfg.InjectionWait, c.cfg.InjectionPoll)
	if !found {
		c.debugf(ctx, "no wallet provider available within wait window")
		return
	}

	provider, installed := c.deps.Discovery.EnumerateWallets(root)[key]
	if !installed {
		// The cached wallet is gone; a retry next session would fail the
		// same way.
		_ = c.deps.Store.Remove(domain.StoreKeyWallet)
		c.debugf(ctx, "cached wallet no longer available, cache purged")
		return
	}

	c.connect(ctx, provider, key)
}

func (c *Controller) restoreBridgeSession(ctx context.Context) {
	session, ok := c.deps.Store.Get(domain.StoreKeyBridgeSession)
	if !ok || session == "" {
		_ = c.deps.Store.Remove(domain.StoreKeyWallet)
		c.debugf(ctx, "cached bridge wallet without session data, cache purged")
		return
	}
	if c.deps.Bridge == nil {
		c.debugf(ctx, "bridge provider not configured")
		return
	}

	provider, err := c.deps.Bridge(ctx, session)
	if err != nil {
		c.errorf(ctx, apperror.Wrap(err, apperror.CodeBridgeConnectFailed, "Controller.restoreBridgeSession"))
		return
	}
	c.connect(ctx, provider, domain.WalletConnect)
}

// ConnectWallet binds the provider as the active session. It returns
// false on any failure; a failed attempt never leaves a partially
// connected state behind.
func (c *Controller) ConnectWallet(ctx context.Context, provider Provider, walletKey string) bool {
	return c.connect(ctx, provider, walletKey)
}

func (c *Controller) connect(ctx context.Context, provider Provider, walletKey string) bool {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "wallet.connect",
		trace.WithAttributes(attribute.String("wallet", walletKey)),
	)
	defer span.End()

	c.metrics.connectAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("wallet", walletKey)))

	if provider == nil {
		_ = c.deps.Store.Remove(domain.StoreKeyWallet)
		c.debugf(ctx, "connect rejected: no provider handle")
		span.SetError("no provider handle")
		c.metrics.connectFailures.Add(ctx, 1)
		return false
	}

	// A connect over a live session replaces it; the old connection is
	// torn down first so it does not leak.
	c.mu.Lock()
	bound := c.provider != nil
	c.mu.Unlock()
	if bound {
		span.AddEvent("replacing_active_session")
		c.DisconnectWallet(ctx)
	}

	client := c.deps.Clients(provider)

	c.mu.Lock()
	c.provider = provider
	c.rpc = client
	c.walletKey = walletKey
	c.mu.Unlock()

	// Subscriptions go up before account negotiation so an account change
	// fired mid-negotiation is not lost.
	c.createSubscriptions(ctx)

	accounts, err := c.negotiator.resolve(ctx, provider, client)
	if err != nil {
		wrapped := apperror.Wrap(err, apperror.CodeNegotiationRejected, "Controller.connect")
		span.RecordError(wrapped)
		span.SetError("account negotiation rejected")
		c.metrics.connectFailures.Add(ctx, 1)
		c.failConnect(ctx, wrapped)
		return false
	}
	if len(accounts) == 0 {
		span.SetError("no accounts")
		c.metrics.connectFailures.Add(ctx, 1)
		c.failConnect(ctx, apperror.New(apperror.CodeNoAccounts, apperror.WithContext("Controller.connect")))
		return false
	}
	account := accounts[0]

	// Persist only once accounts are confirmed.
	if err := c.deps.Store.Set(domain.StoreKeyWallet, walletKey); err != nil {
		c.deps.Logger.Warn(ctx, "wallet key not persisted", "wallet", walletKey, "error", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		wrapped := apperror.Wrap(err, apperror.CodeChainIDInvalid, "Controller.connect")
		span.RecordError(wrapped)
		span.SetError("chain id unavailable")
		c.metrics.connectFailures.Add(ctx, 1)
		c.failConnect(ctx, wrapped)
		return false
	}

	activeChain := chainID
	chainValid := c.deps.Networks.Contains(chainID)
	if !chainValid {
		activeChain = domain.ChainUnsupported
	}

	bal := c.deps.Oracle.Resolve(ctx, client, account, chainID)

	c.mu.Lock()
	c.state.ActiveChain = activeChain
	c.state.ChainValid = chainValid
	c.state.Connected = true
	c.state.Balance = bal
	c.state.HasBalance = true
	c.mu.Unlock()

	c.bus.Emit(domain.EventNetworkChanged, domain.NetworkChangedPayload{ChainID: activeChain})
	c.bus.Emit(domain.EventBalanceUpdated, domain.BalanceUpdatedPayload{Balance: bal})
	c.bus.Emit(domain.EventWalletConnected, domain.WalletConnectedPayload{Account: account, WalletKey: walletKey})

	c.mu.Lock()
	c.account = account
	c.mu.Unlock()

	c.bus.Emit(domain.EventAccountChanged, domain.AccountChangedPayload{Account: account})

	c.deps.Logger.Info(ctx, "wallet connected",
		"wallet", walletKey, "account", account, "chain_id", int64(activeChain))
	span.SetAttributes(attribute.Int64("chain_id", int64(activeChain)))
	span.SetOK("connected")
	return true
}

// failConnect aborts a connection attempt: diagnostics first, then a
// full teardown so no partial session survives.
func (c *Controller) failConnect(ctx context.Context, err error) {
	c.errorf(ctx, err)
	c.DisconnectWallet(ctx)
}

// DisconnectWallet tears the active session down and resets state to the
// unconnected baseline. Idempotent; each call emits one disconnected
// event.
func (c *Controller) DisconnectWallet(ctx context.Context) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "wallet.disconnect")
	defer span.End()

	c.metrics.disconnects.Add(ctx, 1)

	c.clearSubscriptions()

	c.mu.Lock()
	bridge := domain.IsBridgeWallet(c.walletKey)
	client := c.rpc
	provider := c.provider
	c.provider = nil
	c.rpc = nil
	c.account = ""
	c.walletKey = ""
	c.state = c.state.ResetExceptLoading()
	c.mu.Unlock()

	if bridge {
		_ = c.deps.Store.Remove(domain.StoreKeyBridgeSession)
	}
	_ = c.deps.Store.Remove(domain.StoreKeyWallet)

	if client != nil {
		client.Close()
	}
	if closer, ok := provider.(io.Closer); ok {
		_ = closer.Close()
	}

	c.bus.Emit(domain.EventWalletDisconnected, nil)
}

// CallWalletAction is the single entry point behind the host's wallet
// button: disconnect when connected (or forced), otherwise open the
// wallet picker dialog.
func (c *Controller) CallWalletAction(ctx context.Context, forceDisconnect bool) {
	c.mu.Lock()
	connected := c.state.Connected
	loading := c.state.Loading
	dialogKey := c.dialogKey
	c.mu.Unlock()

	if connected || forceDisconnect {
		c.DisconnectWallet(ctx)
		return
	}
	if loading {
		return
	}
	if dialogKey == "" || c.deps.Dialogs == nil {
		return
	}
	if err := c.deps.Dialogs.Open(ctx, dialogKey); err != nil {
		c.deps.Logger.Warn(ctx, "wallet dialog open failed", "dialog", dialogKey, "error", err)
	}
}

// RequireNetworkChange asks the bound provider to switch chains. It
// never mutates state: the switch lands asynchronously through the
// chain-change subscription, or not at all.
func (c *Controller) RequireNetworkChange(ctx context.Context, chain network.ChainID) bool {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "wallet.switch_network",
		trace.WithAttributes(attribute.Int64("chain_id", int64(chain))),
	)
	defer span.End()

	if chain <= 0 {
		span.SetError("invalid chain id")
		return false
	}

	c.mu.Lock()
	provider := c.provider
	c.mu.Unlock()
	if provider == nil {
		span.SetError("no provider bound")
		return false
	}

	_, err := provider.Request(ctx, "wallet_switchEthereumChain",
		map[string]string{"chainId": hexutil.EncodeUint64(uint64(chain))})
	if err != nil {
		c.debugf(ctx, "network switch rejected: "+err.Error())
		span.RecordError(err)
		span.SetError("switch rejected")
		return false
	}
	span.SetOK("switch requested")
	return true
}

// State returns the current connection snapshot.
func (c *Controller) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Account returns the active account address, empty when disconnected.
func (c *Controller) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// WalletKey returns the active wallet name, empty when disconnected.
func (c *Controller) WalletKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.walletKey
}

// NativeTokenSymbol returns the currency symbol of the active chain, or
// an empty string when there is no resolvable chain.
func (c *Controller) NativeTokenSymbol() string {
	c.mu.Lock()
	chain := c.state.ActiveChain
	c.mu.Unlock()

	if chain <= 0 {
		return ""
	}
	net, ok := c.deps.Networks.Get(chain)
	if !ok {
		return ""
	}
	return net.Currency
}

// SetNetworkRegistry swaps the supported-network table wholesale.
func (c *Controller) SetNetworkRegistry(table network.Table) {
	c.deps.Networks.Replace(table)
}

// AddEventListener registers a lifecycle listener. Two kinds replay on
// registration: subscribing to the connected event while connected
// re-fires it with the current session, and subscribing to the
// initialization event after bootstrap re-fires it immediately.
func (c *Controller) AddEventListener(kind domain.EventKind, h eventbus.Handler) {
	c.bus.On(kind, h)

	c.mu.Lock()
	var payload any
	replay := false
	switch kind {
	case domain.EventWalletConnected:
		if c.state.Connected {
			payload = domain.WalletConnectedPayload{Account: c.account, WalletKey: c.walletKey}
			replay = true
		}
	case domain.EventControllerInitialized:
		replay = c.initialized
	}
	c.mu.Unlock()

	if replay && h != nil {
		h(payload)
	}
}

// RemoveEventListener removes one listener by identity.
func (c *Controller) RemoveEventListener(kind domain.EventKind, h eventbus.Handler) {
	c.bus.Off(kind, h)
}

// RemoveEventListeners removes all listeners for the given kinds, or
// every listener when none is given.
func (c *Controller) RemoveEventListeners(kinds ...domain.EventKind) {
	c.bus.Clear(kinds...)
}

func (c *Controller) debugf(ctx context.Context, msg string) {
	c.mu.Lock()
	onDebug := c.debug.OnDebug
	c.mu.Unlock()

	if onDebug != nil {
		onDebug(msg)
	}
	if c.deps.Logger != nil {
		c.deps.Logger.Debug(ctx, msg)
	}
}

func (c *Controller) errorf(ctx context.Context, err error) {
	c.mu.Lock()
	onError := c.debug.OnError
	c.mu.Unlock()

	if onError != nil {
		onError(err)
	}
	if c.deps.Logger != nil {
		c.deps.Logger.Warn(ctx, "wallet connection failed", "error", err)
	}
}
