// Package netfetch refreshes the network registry from a remote
// chainlist-style JSON document.
package netfetch

import (
	"context"
	"fmt"

	"github.com/fd1az/wallet-hub/internal/httpclient"
	"github.com/fd1az/wallet-hub/internal/network"
)

// chainEntry mirrors the subset of a chainlist record this project needs.
type chainEntry struct {
	ChainID        int64  `json:"chainId"`
	Name           string `json:"name"`
	NativeCurrency struct {
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"nativeCurrency"`
	RPC []string `json:"rpc"`
}

// Fetcher downloads network tables.
type Fetcher struct {
	client *httpclient.Client
	url    string
}

// New creates a fetcher for the given chainlist URL.
func New(url string) (*Fetcher, error) {
	client, err := httpclient.New(httpclient.WithProviderName("chainlist"))
	if err != nil {
		return nil, err
	}
	return &Fetcher{client: client, url: url}, nil
}

// FetchTable downloads and converts the remote list. Entries without a
// chain id or RPC endpoint are skipped.
func (f *Fetcher) FetchTable(ctx context.Context) (network.Table, error) {
	var entries []chainEntry
	if err := f.client.GetJSON(ctx, f.url, nil, &entries); err != nil {
		return nil, fmt.Errorf("fetching chainlist: %w", err)
	}

	table := make(network.Table, len(entries))
	for _, e := range entries {
		if e.ChainID <= 0 || len(e.RPC) == 0 {
			continue
		}
		table[network.ChainID(e.ChainID)] = network.Network{
			ChainID:  network.ChainID(e.ChainID),
			Currency: e.NativeCurrency.Symbol,
			RPC:      e.RPC[0],
		}
	}
	return table, nil
}
