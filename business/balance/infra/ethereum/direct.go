// Package ethereum provides the disposable direct-node balance reader.
package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/wallet-hub/internal/apperror"
	"github.com/fd1az/wallet-hub/internal/circuitbreaker"
	"github.com/fd1az/wallet-hub/internal/logger"
)

// DirectReader reads balances over one-shot ethclient connections. Each
// read dials the endpoint, fetches the latest balance and closes the
// connection. A circuit breaker stops dialing endpoints that keep
// failing.
type DirectReader struct {
	breaker *circuitbreaker.CircuitBreaker[*big.Int]
	log     logger.LoggerInterface
}

// NewDirectReader creates a direct balance reader.
func NewDirectReader(log logger.LoggerInterface) *DirectReader {
	return &DirectReader{
		breaker: circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("balance-direct")),
		log:     log,
	}
}

// BalanceAt fetches the latest native balance of account from rpcURL.
func (r *DirectReader) BalanceAt(ctx context.Context, rpcURL, account string) (*big.Int, error) {
	wei, err := r.breaker.Execute(func() (*big.Int, error) {
		return r.read(ctx, rpcURL, account)
	})
	if err != nil {
		return nil, err
	}
	return wei, nil
}

func (r *DirectReader) read(ctx context.Context, rpcURL, account string) (*big.Int, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRPCConnectFailed, "ethereum.DirectReader.read")
	}
	defer client.Close()

	wei, err := client.BalanceAt(ctx, common.HexToAddress(account), nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBalanceFetchFailed, "ethereum.DirectReader.read")
	}
	return wei, nil
}
