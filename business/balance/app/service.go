// Package app implements the balance oracle service.
package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/wallet-hub/business/balance/domain"
	"github.com/fd1az/wallet-hub/internal/apm"
	"github.com/fd1az/wallet-hub/internal/cache"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/network"
)

const (
	lastKnownTTL = 10 * time.Minute

	tracerName = "github.com/fd1az/wallet-hub/business/balance/app"
	meterName  = "github.com/fd1az/wallet-hub/business/balance/app"
)

// oracleMetrics holds OTEL metric instruments.
type oracleMetrics struct {
	resolves       metric.Int64Counter
	staleServed    metric.Int64Counter
	fallbackReads  metric.Int64Counter
	resolveLatency metric.Float64Histogram
}

// Config holds the oracle timeouts.
type Config struct {
	// PrimaryTimeout bounds how long a primary read may take before the
	// last known balance is served instead.
	PrimaryTimeout time.Duration
	// FallbackTimeout bounds the verification read used when the primary
	// reports a zero balance.
	FallbackTimeout time.Duration
}

// Oracle resolves native token balances. It prefers the connection the
// wallet already holds and falls back to a direct node read when the
// primary result looks wrong. Resolve never fails: on any error the best
// known value is returned instead.
type Oracle struct {
	networks  *network.Registry
	direct    DirectReader
	lastKnown *cache.Cache[string, domain.Balance]
	cfg       Config
	log       logger.LoggerInterface

	// Observability
	tracer  apm.Tracer
	metrics *oracleMetrics
}

// NewOracle creates a balance oracle.
func NewOracle(networks *network.Registry, direct DirectReader, cfg Config, log logger.LoggerInterface) (*Oracle, error) {
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = 3 * time.Second
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 5 * time.Second
	}
	o := &Oracle{
		networks:  networks,
		direct:    direct,
		lastKnown: cache.New[string, domain.Balance](lastKnownTTL),
		cfg:       cfg,
		log:       log,
		tracer:    apm.NewTracer(tracerName),
	}
	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return o, nil
}

// initMetrics initializes OTEL metric instruments.
func (o *Oracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &oracleMetrics{}

	o.metrics.resolves, err = meter.Int64Counter(
		"balance_resolutions_total",
		metric.WithDescription("Total balance resolutions"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return err
	}

	o.metrics.staleServed, err = meter.Int64Counter(
		"balance_stale_served_total",
		metric.WithDescription("Resolutions answered from the last known value"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return err
	}

	o.metrics.fallbackReads, err = meter.Int64Counter(
		"balance_fallback_reads_total",
		metric.WithDescription("Direct node reads triggered by a zero primary result"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return err
	}

	o.metrics.resolveLatency, err = meter.Float64Histogram(
		"balance_resolve_duration_ms",
		metric.WithDescription("Balance resolution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Resolve returns the native balance of account on chain, read through
// reader. A missing account or reader yields zero immediately.
func (o *Oracle) Resolve(ctx context.Context, reader Reader, account string, chain network.ChainID) domain.Balance {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "balance.resolve",
		trace.WithAttributes(attribute.Int64("chain_id", int64(chain))),
	)
	defer span.End()

	if account == "" || reader == nil {
		span.AddEvent("absent_input")
		return domain.Zero()
	}

	o.metrics.resolves.Add(ctx, 1)
	start := time.Now()
	defer func() {
		o.metrics.resolveLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	bal, fresh := o.readPrimary(ctx, reader, account, chain)
	if !fresh {
		span.AddEvent("served_last_known")
		o.metrics.staleServed.Add(ctx, 1)
		return bal
	}

	// A zero from the wallet provider is suspicious: some providers
	// report zero while still syncing. Verify against the chain's own
	// RPC endpoint before believing it.
	if bal.IsZero() {
		span.AddEvent("verifying_zero")
		o.metrics.fallbackReads.Add(ctx, 1)
		bal = o.verifyZero(ctx, account, chain)
	}

	if !bal.IsZero() {
		o.lastKnown.Set(o.cacheKey(account, chain), bal)
	}
	span.SetOK("resolved")
	return bal
}

// readPrimary races the reader against the staleness guard. When the
// guard fires first, the last known balance for the account on that
// chain is returned and fresh is false. A late primary result still
// refreshes the cache.
func (o *Oracle) readPrimary(ctx context.Context, reader Reader, account string, chain network.ChainID) (bal domain.Balance, fresh bool) {
	type result struct {
		wei *big.Int
		err error
	}

	resCh := make(chan result, 1)
	go func() {
		wei, err := reader.BalanceAt(ctx, account)
		resCh <- result{wei: wei, err: err}
	}()

	guard := time.NewTimer(o.cfg.PrimaryTimeout)
	defer guard.Stop()

	select {
	case res := <-resCh:
		if res.err != nil {
			o.log.Warn(ctx, "primary balance read failed",
				"account", account, "chain_id", int64(chain), "error", res.err)
			return o.cached(account, chain), false
		}
		return domain.FromWei(res.wei), true

	case <-guard.C:
		o.log.Warn(ctx, "primary balance read exceeded staleness guard",
			"account", account, "chain_id", int64(chain), "timeout", o.cfg.PrimaryTimeout)
		go func() {
			if res := <-resCh; res.err == nil {
				late := domain.FromWei(res.wei)
				if !late.IsZero() {
					o.lastKnown.Set(o.cacheKey(account, chain), late)
				}
			}
		}()
		return o.cached(account, chain), false

	case <-ctx.Done():
		return o.cached(account, chain), false
	}
}

// verifyZero re-reads the balance over a disposable connection to the
// chain's registered RPC endpoint. If anything goes wrong the zero
// stands.
func (o *Oracle) verifyZero(ctx context.Context, account string, chain network.ChainID) domain.Balance {
	if o.direct == nil {
		return domain.Zero()
	}
	net, ok := o.networks.Get(chain)
	if !ok || net.RPC == "" {
		return domain.Zero()
	}

	directCtx, cancel := context.WithTimeout(ctx, o.cfg.FallbackTimeout)
	defer cancel()

	wei, err := o.direct.BalanceAt(directCtx, net.RPC, account)
	if err != nil {
		o.log.Debug(ctx, "zero balance verification failed, keeping zero",
			"account", account, "chain_id", int64(chain), "error", err)
		return domain.Zero()
	}
	return domain.FromWei(wei)
}

func (o *Oracle) cached(account string, chain network.ChainID) domain.Balance {
	if bal, ok := o.lastKnown.Get(o.cacheKey(account, chain)); ok {
		return bal
	}
	return domain.Zero()
}

func (o *Oracle) cacheKey(account string, chain network.ChainID) string {
	return fmt.Sprintf("%s@%d", account, chain)
}
