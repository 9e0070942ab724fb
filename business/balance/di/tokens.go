// Package di contains dependency injection tokens for the balance context.
package di

import (
	"github.com/fd1az/wallet-hub/business/balance/app"
	"github.com/fd1az/wallet-hub/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Oracle = di.NewToken[*app.Oracle]("balance.Oracle")
)

// Private dependency tokens - internal to balance module
var (
	DirectReader = di.NewToken[app.DirectReader]("balance:directReader")
)

// Helper functions for type-safe access
func GetOracle(c di.ServiceRegistry) *app.Oracle {
	return di.GetToken(c, Oracle)
}

func GetDirectReader(c di.ServiceRegistry) app.DirectReader {
	return di.GetToken(c, DirectReader)
}
