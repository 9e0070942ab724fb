package app

import (
	"context"
	"math/big"
)

// Reader reads the native balance of an account through an already
// established connection, typically the connected wallet's RPC client.
type Reader interface {
	BalanceAt(ctx context.Context, account string) (*big.Int, error)
}

// DirectReader reads the native balance of an account over a disposable
// connection to an arbitrary RPC endpoint. Used to double-check
// suspicious primary readings.
type DirectReader interface {
	BalanceAt(ctx context.Context, rpcURL, account string) (*big.Int, error)
}
