package netfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/wallet-hub/internal/network"
)

func TestFetcher_FetchTable(t *testing.T) {
	payload := `[
		{"chainId": 1, "name": "Ethereum", "nativeCurrency": {"symbol": "ETH", "decimals": 18}, "rpc": ["https://eth.example", "https://eth2.example"]},
		{"chainId": 56, "name": "BSC", "nativeCurrency": {"symbol": "BNB", "decimals": 18}, "rpc": ["https://bsc.example"]},
		{"chainId": 0, "name": "broken", "nativeCurrency": {"symbol": "X", "decimals": 18}, "rpc": ["https://x.example"]},
		{"chainId": 999, "name": "no-rpc", "nativeCurrency": {"symbol": "Y", "decimals": 18}, "rpc": []}
	]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer server.Close()

	f, err := New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	table, err := f.FetchTable(context.Background())
	if err != nil {
		t.Fatalf("FetchTable: %v", err)
	}

	if len(table) != 2 {
		t.Fatalf("table has %d entries, want 2 (invalid entries skipped)", len(table))
	}
	eth := table[network.ChainID(1)]
	if eth.Currency != "ETH" || eth.RPC != "https://eth.example" {
		t.Errorf("chain 1 = %+v", eth)
	}
}

func TestFetcher_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f, err := New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := f.FetchTable(context.Background()); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}
