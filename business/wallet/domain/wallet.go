// Package domain contains the wallet context types: wallet identity,
// connection state and lifecycle events.
package domain

import "strings"

// Canonical wallet names. These are the keys wallets register under and
// the values persisted across sessions.
const (
	MetaMask       = "MetaMask"
	CoinbaseWallet = "CoinbaseWallet"
	WalletConnect  = "WalletConnect"
)

// Persistent store keys.
const (
	// StoreKeyWallet holds the last connected wallet name.
	StoreKeyWallet = "connectedWallet"
	// StoreKeyBridgeSession holds the opaque remote-bridge session blob.
	// Its format is owned by the bridge provider.
	StoreKeyBridgeSession = "bridgeSession"
)

// IsBridgeWallet reports whether the wallet key denotes the remote-bridge
// wallet. The match is case-insensitive: cached keys may predate the
// canonical spelling.
func IsBridgeWallet(key string) bool {
	return strings.EqualFold(key, WalletConnect)
}
