package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/wallet-hub/business/balance/domain"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/network"
)

const testAccount = "0x1111111111111111111111111111111111111111"

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func testNetworks() *network.Registry {
	return network.NewRegistry(network.Table{
		1: {ChainID: 1, Currency: "ETH", RPC: "http://localhost:8545"},
	})
}

type fakeReader struct {
	wei   *big.Int
	err   error
	delay time.Duration
}

func (f *fakeReader) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.wei, f.err
}

type fakeDirect struct {
	wei    *big.Int
	err    error
	called bool
	url    string
}

func (f *fakeDirect) BalanceAt(ctx context.Context, rpcURL, account string) (*big.Int, error) {
	f.called = true
	f.url = rpcURL
	return f.wei, f.err
}

func newTestOracle(t *testing.T, direct DirectReader) *Oracle {
	t.Helper()
	oracle, err := NewOracle(testNetworks(), direct, Config{
		PrimaryTimeout:  50 * time.Millisecond,
		FallbackTimeout: 50 * time.Millisecond,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewOracle() error = %v", err)
	}
	return oracle
}

func TestResolveAbsentInput(t *testing.T) {
	oracle := newTestOracle(t, &fakeDirect{})

	tests := []struct {
		name    string
		reader  Reader
		account string
	}{
		{"empty account", &fakeReader{wei: big.NewInt(5)}, ""},
		{"nil reader", nil, testAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := oracle.Resolve(context.Background(), tt.reader, tt.account, 1)
			if !got.IsZero() {
				t.Fatalf("Resolve() = %s, want zero", got)
			}
		})
	}
}

func TestResolvePrimarySuccess(t *testing.T) {
	direct := &fakeDirect{}
	oracle := newTestOracle(t, direct)
	reader := &fakeReader{wei: big.NewInt(1e18)}

	got := oracle.Resolve(context.Background(), reader, testAccount, 1)

	if want := domain.FromWei(big.NewInt(1e18)); !got.Equal(want) {
		t.Fatalf("Resolve() = %s, want %s", got, want)
	}
	if direct.called {
		t.Error("direct reader should not be consulted for a non-zero primary read")
	}
}

func TestResolveGuardReturnsLastKnown(t *testing.T) {
	oracle := newTestOracle(t, &fakeDirect{})

	// Seed the cache with a fast successful read.
	fast := &fakeReader{wei: big.NewInt(7e17)}
	oracle.Resolve(context.Background(), fast, testAccount, 1)

	// A slow reader trips the staleness guard; the cached value is served.
	slow := &fakeReader{wei: big.NewInt(9e17), delay: 500 * time.Millisecond}
	got := oracle.Resolve(context.Background(), slow, testAccount, 1)

	if want := domain.FromWei(big.NewInt(7e17)); !got.Equal(want) {
		t.Fatalf("Resolve() = %s, want cached %s", got, want)
	}
}

func TestResolveGuardWithoutCacheReturnsZero(t *testing.T) {
	oracle := newTestOracle(t, &fakeDirect{})
	slow := &fakeReader{wei: big.NewInt(9e17), delay: 500 * time.Millisecond}

	got := oracle.Resolve(context.Background(), slow, testAccount, 1)
	if !got.IsZero() {
		t.Fatalf("Resolve() = %s, want zero", got)
	}
}

func TestResolvePrimaryErrorReturnsLastKnown(t *testing.T) {
	oracle := newTestOracle(t, &fakeDirect{})

	fast := &fakeReader{wei: big.NewInt(3e17)}
	oracle.Resolve(context.Background(), fast, testAccount, 1)

	failing := &fakeReader{err: errors.New("provider gone")}
	got := oracle.Resolve(context.Background(), failing, testAccount, 1)

	if want := domain.FromWei(big.NewInt(3e17)); !got.Equal(want) {
		t.Fatalf("Resolve() = %s, want cached %s", got, want)
	}
}

func TestResolveZeroTriggersDirectVerification(t *testing.T) {
	direct := &fakeDirect{wei: big.NewInt(4e18)}
	oracle := newTestOracle(t, direct)
	reader := &fakeReader{wei: big.NewInt(0)}

	got := oracle.Resolve(context.Background(), reader, testAccount, 1)

	if !direct.called {
		t.Fatal("direct reader was not consulted for a zero primary read")
	}
	if direct.url != "http://localhost:8545" {
		t.Errorf("direct read used url %q, want registry url", direct.url)
	}
	if want := domain.FromWei(big.NewInt(4e18)); !got.Equal(want) {
		t.Fatalf("Resolve() = %s, want verified %s", got, want)
	}
}

func TestResolveZeroVerificationFailureKeepsZero(t *testing.T) {
	direct := &fakeDirect{err: errors.New("node unreachable")}
	oracle := newTestOracle(t, direct)
	reader := &fakeReader{wei: big.NewInt(0)}

	got := oracle.Resolve(context.Background(), reader, testAccount, 1)
	if !got.IsZero() {
		t.Fatalf("Resolve() = %s, want zero", got)
	}
}

func TestResolveZeroOnUnknownChainSkipsVerification(t *testing.T) {
	direct := &fakeDirect{wei: big.NewInt(4e18)}
	oracle := newTestOracle(t, direct)
	reader := &fakeReader{wei: big.NewInt(0)}

	got := oracle.Resolve(context.Background(), reader, testAccount, 999)

	if direct.called {
		t.Error("direct reader consulted for a chain missing from the registry")
	}
	if !got.IsZero() {
		t.Fatalf("Resolve() = %s, want zero", got)
	}
}

func TestResolveInstrumentation(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	oracle := newTestOracle(t, &fakeDirect{})
	oracle.Resolve(context.Background(), &fakeReader{wei: big.NewInt(1e18)}, testAccount, 1)

	var resolved sdktrace.ReadOnlySpan
	for _, s := range spans.Ended() {
		if s.Name() == "balance.resolve" {
			resolved = s
		}
	}
	if resolved == nil {
		t.Fatal("no balance.resolve span recorded")
	}
	if resolved.Status().Code != codes.Ok {
		t.Errorf("balance.resolve status = %v, want Ok", resolved.Status().Code)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var resolves int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "balance_resolutions_total" {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					resolves += dp.Value
				}
			}
		}
	}
	if resolves != 1 {
		t.Errorf("balance_resolutions_total = %d, want 1", resolves)
	}
}

func TestBalanceValueObject(t *testing.T) {
	if got := domain.FromWei(nil); !got.IsZero() {
		t.Errorf("FromWei(nil) = %s, want zero", got)
	}
	if got := domain.FromWei(big.NewInt(-5)); !got.IsZero() {
		t.Errorf("FromWei(-5) = %s, want zero", got)
	}

	one := domain.FromWei(big.NewInt(1e18))
	if got := one.String(); got != "1" {
		t.Errorf("String() = %q, want \"1\"", got)
	}

	// Mutating the input must not affect the stored value.
	wei := big.NewInt(1e18)
	bal := domain.FromWei(wei)
	wei.SetInt64(0)
	if bal.IsZero() {
		t.Error("balance aliased its input")
	}
}
