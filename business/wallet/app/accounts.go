package app

import (
	"context"
	"time"
)

// accountNegotiator resolves the wallet's account list without hanging
// on a misbehaving provider. Known defect in some providers: the first
// account query silently returns nothing while the provider is still
// self-initializing, and the explicit permission request then never
// resolves. The negotiator isolates that compatibility logic away from
// the connection state machine.
type accountNegotiator struct {
	timeout time.Duration
}

// resolve runs the double strategy: first a passive query for already
// exposed accounts, then, unless the provider reports it is still
// initializing, an explicit permission request. Each leg races the
// timeout; a timed-out leg yields an empty list, not an error.
func (n accountNegotiator) resolve(ctx context.Context, provider Provider, client RPCClient) ([]string, error) {
	accounts, err := n.race(ctx, client.Accounts)
	if err != nil {
		return nil, err
	}
	if len(accounts) > 0 {
		return accounts, nil
	}

	if init, ok := provider.(Initializer); ok && init.Initializing() {
		// The explicit request would hang until the provider finishes
		// booting. Give up with an empty list instead.
		return nil, nil
	}

	return n.race(ctx, client.RequestAccounts)
}

func (n accountNegotiator) race(ctx context.Context, fetch func(context.Context) ([]string, error)) ([]string, error) {
	type result struct {
		accounts []string
		err      error
	}

	resCh := make(chan result, 1)
	go func() {
		accounts, err := fetch(ctx)
		resCh <- result{accounts: accounts, err: err}
	}()

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		return res.accounts, res.err
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
