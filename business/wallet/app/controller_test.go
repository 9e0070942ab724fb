package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	balanceapp "github.com/fd1az/wallet-hub/business/balance/app"
	balancedomain "github.com/fd1az/wallet-hub/business/balance/domain"
	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/business/wallet/domain"
	"github.com/fd1az/wallet-hub/business/wallet/infra/discovery"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/network"
	"github.com/fd1az/wallet-hub/internal/store"
)

const testAccount = "0xABC"

// fakeProvider is a scriptable wallet provider.
type fakeProvider struct {
	name         string
	initializing bool

	mu       sync.Mutex
	nextID   uint64
	handlers map[app.ProviderEvent][]fakeHandler
	requests []string
}

type fakeHandler struct {
	id uint64
	fn func(payload any)
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, handlers: make(map[app.ProviderEvent][]fakeHandler)}
}

func (p *fakeProvider) On(event app.ProviderEvent, handler func(payload any)) app.Unsubscribe {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.handlers[event] = append(p.handlers[event], fakeHandler{id: id, fn: handler})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		hs := p.handlers[event]
		for i, h := range hs {
			if h.id == id {
				p.handlers[event] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

func (p *fakeProvider) emit(event app.ProviderEvent, payload any) {
	p.mu.Lock()
	hs := make([]fakeHandler, len(p.handlers[event]))
	copy(hs, p.handlers[event])
	p.mu.Unlock()
	for _, h := range hs {
		h.fn(payload)
	}
}

func (p *fakeProvider) handlerCount(event app.ProviderEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers[event])
}

func (p *fakeProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	p.mu.Lock()
	p.requests = append(p.requests, method)
	p.mu.Unlock()
	return json.RawMessage(`null`), nil
}

func (p *fakeProvider) Identity() string   { return p.name }
func (p *fakeProvider) Initializing() bool { return p.initializing }

// fakeClient is a scriptable session RPC client.
type fakeClient struct {
	accounts        []string
	requestAccounts []string
	accountsErr     error
	chainID         network.ChainID
	chainErr        error

	mu          sync.Mutex
	headHandler func()
	headErr     error
	closed      bool
}

func (c *fakeClient) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *fakeClient) ChainID(ctx context.Context) (network.ChainID, error) {
	return c.chainID, c.chainErr
}

func (c *fakeClient) Accounts(ctx context.Context) ([]string, error) {
	return c.accounts, c.accountsErr
}

func (c *fakeClient) RequestAccounts(ctx context.Context) ([]string, error) {
	return c.requestAccounts, nil
}

func (c *fakeClient) SubscribeNewHeads(ctx context.Context, handler func()) (app.Unsubscribe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headErr != nil {
		return nil, c.headErr
	}
	c.headHandler = handler
	return func() {}, nil
}

func (c *fakeClient) fireNewHead() {
	c.mu.Lock()
	h := c.headHandler
	c.mu.Unlock()
	if h != nil {
		h()
	}
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeOracle returns scripted per-chain balances and can hold a resolve
// in flight. started receives one signal when a gated resolve enters.
type fakeOracle struct {
	mu      sync.Mutex
	calls   int
	gate    chan struct{}
	started chan struct{}
	values  map[network.ChainID]*big.Int
}

func (f *fakeOracle) Resolve(ctx context.Context, reader balanceapp.Reader, account string, chain network.ChainID) balancedomain.Balance {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	started := f.started
	wei := f.values[chain]
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-gate
	}
	return balancedomain.FromWei(wei)
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder captures event emissions in order.
type recorder struct {
	mu       sync.Mutex
	events   []string
	payloads []any
}

func (r *recorder) attach(c *app.Controller) {
	kinds := []domain.EventKind{
		domain.EventWalletConnected, domain.EventWalletDisconnected,
		domain.EventAccountChanged, domain.EventBalanceUpdated,
		domain.EventNetworkChanged, domain.EventControllerInitialized,
	}
	for _, kind := range kinds {
		k := kind
		c.AddEventListener(k, func(payload any) {
			r.mu.Lock()
			r.events = append(r.events, k.String())
			r.payloads = append(r.payloads, payload)
			r.mu.Unlock()
		})
	}
}

// clear drops anything captured so far, including listener replays.
func (r *recorder) clear() {
	r.mu.Lock()
	r.events = nil
	r.payloads = nil
	r.mu.Unlock()
}

func (r *recorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(name string) int {
	n := 0
	for _, e := range r.sequence() {
		if e == name {
			n++
		}
	}
	return n
}

type fixture struct {
	controller *app.Controller
	provider   *fakeProvider
	client     *fakeClient
	oracle     *fakeOracle
	store      *store.MemoryStore
	host       *discovery.Host
	networks   *network.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	provider := newFakeProvider(domain.MetaMask)
	client := &fakeClient{accounts: []string{testAccount}, chainID: 1}
	oracle := &fakeOracle{values: map[network.ChainID]*big.Int{
		1:   big.NewInt(1e18),
		137: big.NewInt(2e18),
	}}
	st := store.NewMemoryStore()
	host := discovery.NewHost()
	networks := network.NewRegistry(network.Table{
		1:   {ChainID: 1, Currency: "ETH", RPC: "http://localhost:8545"},
		137: {ChainID: 137, Currency: "POL", RPC: "http://localhost:8546"},
	})
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	controller, err := app.NewController(app.Deps{
		Store:     st,
		Networks:  networks,
		Discovery: discovery.NewService(host, log),
		Oracle:    oracle,
		Clients:   func(app.Provider) app.RPCClient { return client },
		Dialogs:   nil,
		Logger:    log,
	}, app.Config{
		InjectionWait:       50 * time.Millisecond,
		InjectionPoll:       5 * time.Millisecond,
		BalancePollInterval: time.Hour, // tests drive refreshes by hand
		AccountTimeout:      100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	return &fixture{
		controller: controller,
		provider:   provider,
		client:     client,
		oracle:     oracle,
		store:      st,
		host:       host,
		networks:   networks,
	}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	if !f.controller.ConnectWallet(context.Background(), f.provider, domain.MetaMask) {
		t.Fatal("ConnectWallet() = false, want true")
	}
}

func assertBaseline(t *testing.T, f *fixture) {
	t.Helper()
	state := f.controller.State()
	if state.Connected {
		t.Error("state.Connected = true, want false")
	}
	if f.controller.Account() != "" {
		t.Errorf("Account() = %q, want empty", f.controller.Account())
	}
	if f.controller.WalletKey() != "" {
		t.Errorf("WalletKey() = %q, want empty", f.controller.WalletKey())
	}
	if state.ActiveChain != 0 || state.ChainValid {
		t.Errorf("chain state not reset: chain=%d valid=%v", state.ActiveChain, state.ChainValid)
	}
	// No provider left bound.
	if f.controller.RequireNetworkChange(context.Background(), 1) {
		t.Error("RequireNetworkChange succeeded on a disconnected controller")
	}
}

func TestConnectPublishesInOrder(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	rec.attach(f.controller)

	f.connect(t)

	state := f.controller.State()
	if !state.Connected {
		t.Fatal("state.Connected = false")
	}
	if state.ActiveChain != 1 || !state.ChainValid {
		t.Errorf("chain = %d valid=%v, want 1 valid", state.ActiveChain, state.ChainValid)
	}
	if got := f.controller.Account(); got != testAccount {
		t.Errorf("Account() = %q, want %q", got, testAccount)
	}
	if want := balancedomain.FromWei(big.NewInt(1e18)); !state.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", state.Balance, want)
	}

	want := []string{"networkChanged", "balanceUpdated", "walletConnected", "accountChanged"}
	got := rec.sequence()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	if v, ok := f.store.Get(domain.StoreKeyWallet); !ok || v != domain.MetaMask {
		t.Errorf("persisted wallet key = %q, want %q", v, domain.MetaMask)
	}
}

func TestConnectNilProvider(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Set(domain.StoreKeyWallet, domain.MetaMask)

	if f.controller.ConnectWallet(context.Background(), nil, domain.MetaMask) {
		t.Fatal("ConnectWallet(nil) = true")
	}
	if f.store.Exists(domain.StoreKeyWallet) {
		t.Error("cached wallet key not purged")
	}
}

func TestConnectFailureLeavesNoPartialState(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fixture)
	}{
		{"zero accounts", func(f *fixture) {
			f.client.accounts = nil
			f.client.requestAccounts = nil
		}},
		{"accounts rejected", func(f *fixture) {
			f.client.accountsErr = errors.New("user rejected")
		}},
		{"chain id unavailable", func(f *fixture) {
			f.client.chainErr = errors.New("provider hung up")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)

			if f.controller.ConnectWallet(context.Background(), f.provider, domain.MetaMask) {
				t.Fatal("ConnectWallet() = true, want false")
			}
			assertBaseline(t, f)
			if n := f.provider.handlerCount(app.ProviderEventChainChanged); n != 0 {
				t.Errorf("%d chain handlers still subscribed after failed connect", n)
			}
		})
	}
}

func TestConnectReplacesActiveSession(t *testing.T) {
	first := newFakeProvider(domain.MetaMask)
	firstClient := &fakeClient{accounts: []string{testAccount}, chainID: 1}
	second := newFakeProvider(domain.CoinbaseWallet)
	secondClient := &fakeClient{accounts: []string{"0xDEF"}, chainID: 137}
	clients := map[app.Provider]app.RPCClient{first: firstClient, second: secondClient}

	oracle := &fakeOracle{values: map[network.ChainID]*big.Int{
		1:   big.NewInt(1e18),
		137: big.NewInt(2e18),
	}}
	st := store.NewMemoryStore()
	networks := network.NewRegistry(network.Table{
		1:   {ChainID: 1, Currency: "ETH", RPC: "http://localhost:8545"},
		137: {ChainID: 137, Currency: "POL", RPC: "http://localhost:8546"},
	})
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	controller, err := app.NewController(app.Deps{
		Store:     st,
		Networks:  networks,
		Discovery: discovery.NewService(discovery.NewHost(), log),
		Oracle:    oracle,
		Clients:   func(p app.Provider) app.RPCClient { return clients[p] },
		Logger:    log,
	}, app.Config{
		InjectionWait:       50 * time.Millisecond,
		InjectionPoll:       5 * time.Millisecond,
		BalancePollInterval: time.Hour,
		AccountTimeout:      100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if !controller.ConnectWallet(context.Background(), first, domain.MetaMask) {
		t.Fatal("first ConnectWallet() = false")
	}

	rec := &recorder{}
	rec.attach(controller)
	rec.clear() // drop the connected-listener replay

	if !controller.ConnectWallet(context.Background(), second, domain.CoinbaseWallet) {
		t.Fatal("second ConnectWallet() = false")
	}

	// The replaced session must be fully torn down, not leaked.
	if !firstClient.isClosed() {
		t.Error("replaced session's client was not closed")
	}
	if n := first.handlerCount(app.ProviderEventChainChanged); n != 0 {
		t.Errorf("%d chain handlers still bound to the replaced provider", n)
	}

	if got := controller.WalletKey(); got != domain.CoinbaseWallet {
		t.Errorf("WalletKey() = %q, want %q", got, domain.CoinbaseWallet)
	}
	if got := controller.Account(); got != "0xDEF" {
		t.Errorf("Account() = %q, want 0xDEF", got)
	}
	if state := controller.State(); !state.Connected || state.ActiveChain != 137 {
		t.Errorf("state = connected=%v chain=%d, want connected on 137", state.Connected, state.ActiveChain)
	}
	if v, ok := st.Get(domain.StoreKeyWallet); !ok || v != domain.CoinbaseWallet {
		t.Errorf("persisted wallet key = %q, want %q", v, domain.CoinbaseWallet)
	}

	want := []string{"walletDisconnected", "networkChanged", "balanceUpdated", "walletConnected", "accountChanged"}
	got := rec.sequence()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestConnectInstrumentation(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	f := newFixture(t)
	f.connect(t)

	var connected sdktrace.ReadOnlySpan
	for _, s := range spans.Ended() {
		if s.Name() == "wallet.connect" {
			connected = s
		}
	}
	if connected == nil {
		t.Fatal("no wallet.connect span recorded")
	}
	if connected.Status().Code != codes.Ok {
		t.Errorf("wallet.connect status = %v, want Ok", connected.Status().Code)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var attempts int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "wallet_connect_attempts_total" {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					attempts += dp.Value
				}
			}
		}
	}
	if attempts != 1 {
		t.Errorf("wallet_connect_attempts_total = %d, want 1", attempts)
	}
}

func TestConnectZeroAccountsInvokesErrorCallback(t *testing.T) {
	f := newFixture(t)
	f.client.accounts = nil
	f.client.requestAccounts = nil

	var mu sync.Mutex
	errCalls := 0
	f.controller.Initialize(context.Background(), "dlg", app.DebugOptions{
		OnError: func(err error) {
			mu.Lock()
			errCalls++
			mu.Unlock()
		},
	})

	// Initialize without cache makes no attempt; drive the failing
	// connect directly with the callbacks installed.
	if f.controller.ConnectWallet(context.Background(), f.provider, domain.MetaMask) {
		t.Fatal("ConnectWallet() = true, want false")
	}

	mu.Lock()
	defer mu.Unlock()
	if errCalls != 1 {
		t.Errorf("error callback invoked %d times, want 1", errCalls)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	f.connect(t)
	rec.attach(f.controller)

	f.controller.DisconnectWallet(context.Background())
	assertBaseline(t, f)
	if f.store.Exists(domain.StoreKeyWallet) {
		t.Error("wallet key not purged on disconnect")
	}

	f.controller.DisconnectWallet(context.Background())
	assertBaseline(t, f)

	if got := rec.count("walletDisconnected"); got != 2 {
		t.Errorf("walletDisconnected emitted %d times, want 2 (one per call)", got)
	}
}

func TestInitializeColdStart(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	rec.attach(f.controller)

	f.controller.Initialize(context.Background(), "dlg", app.DebugOptions{})

	state := f.controller.State()
	if state.Connected || state.Loading {
		t.Errorf("state = connected=%v loading=%v, want both false", state.Connected, state.Loading)
	}
	if got := rec.sequence(); len(got) != 1 || got[0] != "controllerInitialized" {
		t.Errorf("events = %v, want exactly [controllerInitialized]", got)
	}
}

func TestInitializeCachedWallet(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Set(domain.StoreKeyWallet, domain.MetaMask)
	f.host.SetRoot(f.provider)

	rec := &recorder{}
	rec.attach(f.controller)

	f.controller.Initialize(context.Background(), "dlg", app.DebugOptions{})

	state := f.controller.State()
	if !state.Connected || state.Loading {
		t.Fatalf("state = connected=%v loading=%v, want connected, not loading", state.Connected, state.Loading)
	}
	if state.ActiveChain != 1 || !state.ChainValid {
		t.Errorf("chain = %d valid=%v, want 1 valid", state.ActiveChain, state.ChainValid)
	}
	if got := f.controller.Account(); got != testAccount {
		t.Errorf("Account() = %q, want %q", got, testAccount)
	}

	want := []string{"networkChanged", "balanceUpdated", "walletConnected", "accountChanged", "controllerInitialized"}
	got := rec.sequence()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestInitializeCachedWalletNotInstalled(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Set(domain.StoreKeyWallet, "Phantom")
	f.host.SetRoot(f.provider) // identifies as MetaMask only

	f.controller.Initialize(context.Background(), "dlg", app.DebugOptions{})

	if f.controller.State().Connected {
		t.Error("connected to a wallet that is not installed")
	}
	if f.store.Exists(domain.StoreKeyWallet) {
		t.Error("stale wallet key not purged")
	}
}

func TestInitializeBridgeWithoutSession(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Set(domain.StoreKeyWallet, domain.WalletConnect)

	rec := &recorder{}
	rec.attach(f.controller)

	f.controller.Initialize(context.Background(), "dlg", app.DebugOptions{})

	if f.controller.State().Connected {
		t.Error("connected without bridge session data")
	}
	if f.store.Exists(domain.StoreKeyWallet) {
		t.Error("bridge wallet key not purged when session is missing")
	}
	if got := rec.sequence(); len(got) != 1 || got[0] != "controllerInitialized" {
		t.Errorf("events = %v, want exactly [controllerInitialized]", got)
	}
}

func TestChainSwitchSupported(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	f.provider.emit(app.ProviderEventChainChanged, "0x89") // 137

	state := f.controller.State()
	if state.ActiveChain != 137 || !state.ChainValid {
		t.Errorf("chain = %d valid=%v, want 137 valid", state.ActiveChain, state.ChainValid)
	}
	if want := balancedomain.FromWei(big.NewInt(2e18)); !state.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", state.Balance, want)
	}

	got := rec.sequence()
	if len(got) != 2 || got[0] != "networkChanged" || got[1] != "balanceUpdated" {
		t.Errorf("events = %v, want [networkChanged balanceUpdated]", got)
	}
	if got := f.controller.NativeTokenSymbol(); got != "POL" {
		t.Errorf("NativeTokenSymbol() = %q, want POL", got)
	}
}

func TestChainSwitchUnsupported(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	f.provider.emit(app.ProviderEventChainChanged, "0x270f") // 9999, not in registry

	state := f.controller.State()
	if state.ActiveChain != domain.ChainUnsupported {
		t.Errorf("ActiveChain = %d, want %d", state.ActiveChain, domain.ChainUnsupported)
	}
	if state.ChainValid {
		t.Error("ChainValid = true for unsupported chain")
	}
	if !state.Balance.IsZero() {
		t.Errorf("balance = %s, want zero", state.Balance)
	}
	if !state.Connected {
		t.Error("unsupported chain must not disconnect")
	}

	got := rec.sequence()
	if len(got) != 2 || got[0] != "networkChanged" || got[1] != "balanceUpdated" {
		t.Errorf("events = %v, want [networkChanged balanceUpdated]", got)
	}
	if got := f.controller.NativeTokenSymbol(); got != "" {
		t.Errorf("NativeTokenSymbol() = %q, want empty", got)
	}
}

func TestChainSwitchMalformedIgnored(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	f.provider.emit(app.ProviderEventChainChanged, "not-a-chain")

	state := f.controller.State()
	if state.ActiveChain != 1 || !state.ChainValid {
		t.Errorf("prior chain state lost: chain=%d valid=%v", state.ActiveChain, state.ChainValid)
	}
	if got := rec.sequence(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestAccountSwitch(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	f.provider.emit(app.ProviderEventAccountsChanged, []string{"0xDEF"})

	if got := f.controller.Account(); got != "0xDEF" {
		t.Errorf("Account() = %q, want 0xDEF", got)
	}
	got := rec.sequence()
	if len(got) != 2 || got[0] != "balanceUpdated" || got[1] != "accountChanged" {
		t.Errorf("events = %v, want [balanceUpdated accountChanged]", got)
	}
}

func TestAccountSwitchSameAccountNoOp(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	before := f.oracle.callCount()
	f.provider.emit(app.ProviderEventAccountsChanged, []string{testAccount})

	if got := rec.sequence(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
	if f.oracle.callCount() != before {
		t.Error("balance recomputed for an unchanged account")
	}
}

func TestAccountsRevokedDisconnects(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	f.provider.emit(app.ProviderEventAccountsChanged, []string{})

	assertBaseline(t, f)
	if got := rec.count("walletDisconnected"); got != 1 {
		t.Errorf("walletDisconnected emitted %d times, want 1", got)
	}
}

func TestStaleBalanceDiscardedOnChainSwitch(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	f.oracle.mu.Lock()
	f.oracle.gate = gate
	f.oracle.started = started
	f.oracle.mu.Unlock()

	// A refresh for chain 1 goes in flight and blocks in the oracle.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.client.fireNewHead()
	}()
	<-started

	// The chain moves to 137 while the refresh is pending. The chain
	// handler also resolves a balance, so it must not block on the gate.
	f.oracle.mu.Lock()
	f.oracle.gate = nil
	f.oracle.started = nil
	f.oracle.mu.Unlock()
	f.provider.emit(app.ProviderEventChainChanged, "0x89")

	// Release the stale refresh.
	close(gate)
	wg.Wait()

	state := f.controller.State()
	if state.BalanceRefreshing {
		t.Error("BalanceRefreshing still set after stale refresh completed")
	}
	if want := balancedomain.FromWei(big.NewInt(2e18)); !state.Balance.Equal(want) {
		t.Errorf("balance = %s, want chain-137 value %s (stale chain-1 result must be discarded)", state.Balance, want)
	}

	// Exactly the chain-switch pair; the stale refresh emits nothing.
	got := rec.sequence()
	if len(got) != 2 || got[0] != "networkChanged" || got[1] != "balanceUpdated" {
		t.Errorf("events = %v, want [networkChanged balanceUpdated]", got)
	}
}

func TestRefreshNonReentrancy(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := &recorder{}
	rec.attach(f.controller)
	rec.clear() // drop the connected-listener replay

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	f.oracle.mu.Lock()
	f.oracle.gate = gate
	f.oracle.started = started
	before := f.oracle.calls
	f.oracle.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.client.fireNewHead()
	}()
	<-started

	// Extra triggers while one refresh is in flight are dropped.
	f.client.fireNewHead()
	f.client.fireNewHead()

	if got := f.oracle.callCount() - before; got != 1 {
		t.Errorf("oracle consulted %d times during one in-flight refresh, want 1", got)
	}

	close(gate)
	wg.Wait()

	if got := rec.count("balanceUpdated"); got != 1 {
		t.Errorf("balanceUpdated emitted %d times, want 1", got)
	}
	if f.controller.State().BalanceRefreshing {
		t.Error("BalanceRefreshing still set")
	}
}

func TestRequireNetworkChange(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	stateBefore := f.controller.State()
	if !f.controller.RequireNetworkChange(context.Background(), 137) {
		t.Fatal("RequireNetworkChange() = false, want true")
	}
	if f.controller.State() != stateBefore {
		t.Error("RequireNetworkChange mutated state; chain changes must arrive via the subscription")
	}

	f.provider.mu.Lock()
	var switched bool
	for _, m := range f.provider.requests {
		if m == "wallet_switchEthereumChain" {
			switched = true
		}
	}
	f.provider.mu.Unlock()
	if !switched {
		t.Error("wallet_switchEthereumChain was not requested")
	}

	if f.controller.RequireNetworkChange(context.Background(), 0) {
		t.Error("RequireNetworkChange(0) = true, want false")
	}
}

func TestConnectedListenerReplay(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	var mu sync.Mutex
	var got domain.WalletConnectedPayload
	fired := 0
	f.controller.AddEventListener(domain.EventWalletConnected, func(payload any) {
		mu.Lock()
		defer mu.Unlock()
		fired++
		got, _ = payload.(domain.WalletConnectedPayload)
	})

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("late listener fired %d times, want immediate replay", fired)
	}
	if got.Account != testAccount || got.WalletKey != domain.MetaMask {
		t.Errorf("replay payload = %+v", got)
	}
}

func TestInitializedListenerReplay(t *testing.T) {
	f := newFixture(t)
	f.controller.Initialize(context.Background(), "dlg", app.DebugOptions{})

	fired := 0
	f.controller.AddEventListener(domain.EventControllerInitialized, func(any) { fired++ })
	if fired != 1 {
		t.Errorf("late listener fired %d times, want immediate replay", fired)
	}
}

func TestCallWalletActionDisconnectsWhenConnected(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.controller.CallWalletAction(context.Background(), false)
	assertBaseline(t, f)
}

func TestCallWalletActionOpensDialog(t *testing.T) {
	f := newFixture(t)
	dialogs := &fakeDialogService{}

	// Rebuild with a dialog service installed.
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	controller, err := app.NewController(app.Deps{
		Store:     f.store,
		Networks:  f.networks,
		Discovery: discovery.NewService(f.host, log),
		Oracle:    f.oracle,
		Clients:   func(app.Provider) app.RPCClient { return f.client },
		Dialogs:   dialogs,
		Logger:    log,
	}, app.Config{InjectionWait: 50 * time.Millisecond, InjectionPoll: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	controller.Initialize(context.Background(), "wallet-picker", app.DebugOptions{})
	controller.CallWalletAction(context.Background(), false)

	if got := dialogs.opened(); len(got) != 1 || got[0] != "wallet-picker" {
		t.Errorf("opened dialogs = %v, want [wallet-picker]", got)
	}
}

type fakeDialogService struct {
	mu   sync.Mutex
	keys []string
}

func (d *fakeDialogService) Open(ctx context.Context, dialogKey string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, dialogKey)
	return nil
}

func (d *fakeDialogService) opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}
