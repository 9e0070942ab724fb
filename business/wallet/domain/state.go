package domain

import (
	balancedomain "github.com/fd1az/wallet-hub/business/balance/domain"
	"github.com/fd1az/wallet-hub/internal/network"
)

// ChainUnsupported marks a connected session whose active chain is not
// in the network registry.
const ChainUnsupported network.ChainID = -1

// ConnectionState is the externally observable connection snapshot.
// It is published as a value; callers never see a partially written
// transition.
type ConnectionState struct {
	// Connected is true iff an account is currently bound.
	Connected bool
	// Loading is true only during initial bootstrap, not on later
	// reconnects.
	Loading bool
	// Balance is the native balance of the active account on the active
	// chain. Meaningful only when HasBalance is true.
	Balance    balancedomain.Balance
	HasBalance bool
	// ActiveChain is the currently selected chain, 0 when none,
	// ChainUnsupported when the wallet sits on a chain the registry does
	// not know.
	ActiveChain network.ChainID
	// ChainValid is true iff ActiveChain is a registry entry.
	ChainValid bool
	// BalanceRefreshing is true while a balance recomputation is in
	// flight. At most one refresh runs at a time; extra triggers are
	// dropped, not queued.
	BalanceRefreshing bool
}

// BootstrapState is the state a controller starts from.
func BootstrapState() ConnectionState {
	return ConnectionState{Loading: true}
}

// ResetExceptLoading returns the unconnected baseline while preserving
// the current Loading flag, which bootstrap manages separately.
func (s ConnectionState) ResetExceptLoading() ConnectionState {
	return ConnectionState{Loading: s.Loading}
}
