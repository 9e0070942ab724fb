// Package network holds the chain-id keyed table of supported networks.
package network

import "sync"

// ChainID identifies an EVM-compatible network.
type ChainID int64

// Network describes one supported chain.
type Network struct {
	ChainID  ChainID `mapstructure:"chain_id" json:"chainId"`
	Currency string  `mapstructure:"currency" json:"currency"`
	RPC      string  `mapstructure:"rpc" json:"rpc"`
}

// Table maps chain ids to their network metadata.
type Table map[ChainID]Network

// Registry is a concurrency-safe network table. Replace swaps the whole
// table; there are no partial updates.
type Registry struct {
	mu    sync.RWMutex
	table Table
}

// NewRegistry creates a registry seeded with the given table. A nil table
// yields an empty registry.
func NewRegistry(table Table) *Registry {
	r := &Registry{}
	r.Replace(table)
	return r
}

// Replace atomically swaps the entire table. Callers needing partial
// updates must read-modify-write the full table themselves.
func (r *Registry) Replace(table Table) {
	copied := make(Table, len(table))
	for id, n := range table {
		copied[id] = n
	}

	r.mu.Lock()
	r.table = copied
	r.mu.Unlock()
}

// Get returns the network for a chain id.
func (r *Registry) Get(id ChainID) (Network, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.table[id]
	return n, ok
}

// Contains reports whether the chain id is a supported network.
func (r *Registry) Contains(id ChainID) bool {
	_, ok := r.Get(id)
	return ok
}

// Snapshot returns a copy of the current table.
func (r *Registry) Snapshot() Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copied := make(Table, len(r.table))
	for id, n := range r.table {
		copied[id] = n
	}
	return copied
}

// Currencies projects the currency-symbol attribute across all entries.
func (r *Registry) Currencies() map[ChainID]string {
	return project(r, func(n Network) string { return n.Currency })
}

// RPCURLs projects the RPC-endpoint attribute across all entries.
func (r *Registry) RPCURLs() map[ChainID]string {
	return project(r, func(n Network) string { return n.RPC })
}

// project extracts one attribute across all entries without exposing the
// full records.
func project[V any](r *Registry, field func(Network) V) map[ChainID]V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[ChainID]V, len(r.table))
	for id, n := range r.table {
		out[id] = field(n)
	}
	return out
}
