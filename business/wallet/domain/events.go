package domain

import (
	balancedomain "github.com/fd1az/wallet-hub/business/balance/domain"
	"github.com/fd1az/wallet-hub/internal/network"
)

// EventKind enumerates the lifecycle notifications the controller emits.
// The set is closed; payload types are fixed per kind.
type EventKind int

const (
	EventWalletConnected EventKind = iota
	EventWalletDisconnected
	EventAccountChanged
	EventBalanceUpdated
	EventNetworkChanged
	EventControllerInitialized
)

func (k EventKind) String() string {
	switch k {
	case EventWalletConnected:
		return "walletConnected"
	case EventWalletDisconnected:
		return "walletDisconnected"
	case EventAccountChanged:
		return "accountChanged"
	case EventBalanceUpdated:
		return "balanceUpdated"
	case EventNetworkChanged:
		return "networkChanged"
	case EventControllerInitialized:
		return "controllerInitialized"
	default:
		return "unknown"
	}
}

// WalletConnectedPayload accompanies EventWalletConnected.
type WalletConnectedPayload struct {
	Account   string
	WalletKey string
}

// AccountChangedPayload accompanies EventAccountChanged.
type AccountChangedPayload struct {
	Account string
}

// BalanceUpdatedPayload accompanies EventBalanceUpdated.
type BalanceUpdatedPayload struct {
	Balance balancedomain.Balance
}

// NetworkChangedPayload accompanies EventNetworkChanged.
type NetworkChangedPayload struct {
	ChainID network.ChainID
}
