// Package balance implements the balance bounded context for native
// token balance resolution.
package balance

import (
	"context"

	"github.com/fd1az/wallet-hub/business/balance/app"
	balanceDI "github.com/fd1az/wallet-hub/business/balance/di"
	"github.com/fd1az/wallet-hub/business/balance/infra/ethereum"
	"github.com/fd1az/wallet-hub/internal/config"
	"github.com/fd1az/wallet-hub/internal/di"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/monolith"
	"github.com/fd1az/wallet-hub/internal/network"
)

// Module implements the balance bounded context.
type Module struct{}

// RegisterServices registers all balance services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register DirectReader - private dependency
	di.RegisterToken(c, balanceDI.DirectReader, func(sr di.ServiceRegistry) app.DirectReader {
		log := sr.Get("logger").(logger.LoggerInterface)
		return ethereum.NewDirectReader(log)
	})

	// Register Oracle (public - exposed to other modules)
	di.RegisterToken(c, balanceDI.Oracle, func(sr di.ServiceRegistry) *app.Oracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		networks := sr.Get("networks").(*network.Registry)

		oracle, err := app.NewOracle(networks, balanceDI.GetDirectReader(sr), app.Config{
			PrimaryTimeout:  cfg.Balance.PrimaryTimeout,
			FallbackTimeout: cfg.Balance.FallbackTimeout,
		}, log)
		if err != nil {
			panic("failed to create balance oracle: " + err.Error())
		}
		return oracle
	})

	return nil
}

// Startup initializes the balance module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "balance module started")
	return nil
}
