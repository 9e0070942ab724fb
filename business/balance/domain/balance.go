// Package domain contains the balance context value objects.
package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// weiDecimals is the native token precision on EVM chains.
const weiDecimals = 18

// Balance is an immutable Value Object holding a native token balance.
// The raw value is always in wei.
type Balance struct {
	wei *big.Int
}

// Zero returns a zero balance.
func Zero() Balance {
	return Balance{wei: big.NewInt(0)}
}

// FromWei creates a Balance from a raw wei value. Nil and negative
// inputs collapse to zero.
func FromWei(wei *big.Int) Balance {
	if wei == nil || wei.Sign() < 0 {
		return Zero()
	}
	return Balance{wei: new(big.Int).Set(wei)} // defensive copy
}

// Wei returns a copy of the raw wei value.
func (b Balance) Wei() *big.Int {
	if b.wei == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b.wei)
}

// IsZero returns true if the balance is zero.
func (b Balance) IsZero() bool {
	return b.wei == nil || b.wei.Sign() == 0
}

// Decimal returns the balance in whole native token units.
func (b Balance) Decimal() decimal.Decimal {
	if b.wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(b.wei, -weiDecimals)
}

// Equal compares two balances by value.
func (b Balance) Equal(other Balance) bool {
	return b.Wei().Cmp(other.Wei()) == 0
}

// String formats the balance in whole native token units.
func (b Balance) String() string {
	return b.Decimal().String()
}
