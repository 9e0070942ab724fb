// Package wallet implements the wallet bounded context: provider
// discovery and the connection lifecycle controller.
package wallet

import (
	"context"

	balanceDI "github.com/fd1az/wallet-hub/business/balance/di"
	"github.com/fd1az/wallet-hub/business/wallet/app"
	walletDI "github.com/fd1az/wallet-hub/business/wallet/di"
	"github.com/fd1az/wallet-hub/business/wallet/infra/bridge"
	"github.com/fd1az/wallet-hub/business/wallet/infra/discovery"
	"github.com/fd1az/wallet-hub/business/wallet/infra/node"
	"github.com/fd1az/wallet-hub/internal/config"
	"github.com/fd1az/wallet-hub/internal/di"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/monolith"
	"github.com/fd1az/wallet-hub/internal/network"
	"github.com/fd1az/wallet-hub/internal/store"
)

// Module implements the wallet bounded context.
type Module struct{}

// RegisterServices registers all wallet services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Discovery - private dependency
	di.RegisterToken(c, walletDI.Discovery, func(sr di.ServiceRegistry) app.Discovery {
		log := sr.Get("logger").(logger.LoggerInterface)
		return discovery.NewService(nil, log)
	})

	// Register ClientFactory - private dependency
	di.RegisterToken(c, walletDI.ClientFactory, func(sr di.ServiceRegistry) app.ClientFactory {
		return node.NewClientFactory()
	})

	// Register BridgeFactory - private dependency
	di.RegisterToken(c, walletDI.BridgeFactory, func(sr di.ServiceRegistry) app.BridgeFactory {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		networks := sr.Get("networks").(*network.Registry)
		st := sr.Get("store").(store.Store)

		return bridge.NewFactory(bridge.Config{URL: cfg.Bridge.URL}, networks, st, log)
	})

	// Register DialogService default (no-op). Hosts with a UI re-register
	// their own factory before the controller is first resolved.
	di.RegisterToken(c, walletDI.DialogService, func(sr di.ServiceRegistry) app.DialogService {
		return noopDialogService{}
	})

	// Register Controller (public - exposed to other modules)
	di.RegisterToken(c, walletDI.Controller, func(sr di.ServiceRegistry) *app.Controller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		networks := sr.Get("networks").(*network.Registry)
		st := sr.Get("store").(store.Store)

		controller, err := app.NewController(app.Deps{
			Store:     st,
			Networks:  networks,
			Discovery: walletDI.GetDiscovery(sr),
			Oracle:    balanceDI.GetOracle(sr),
			Clients:   walletDI.GetClientFactory(sr),
			Bridge:    walletDI.GetBridgeFactory(sr),
			Dialogs:   walletDI.GetDialogService(sr),
			Logger:    log,
		}, app.Config{
			InjectionWait:       cfg.Wallet.InjectionWait,
			InjectionPoll:       cfg.Wallet.InjectionPoll,
			BalancePollInterval: cfg.Wallet.BalancePollInterval,
		})
		if err != nil {
			panic("failed to create wallet controller: " + err.Error())
		}
		return controller
	})

	return nil
}

// Startup registers the configured node wallet, if any, and restores a
// cached session.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	if cfg.Wallet.NodeURL != "" {
		provider, err := node.Dial(ctx, cfg.Wallet.NodeURL, cfg.Wallet.NodeName,
			cfg.Wallet.RequestsPerMinute, log)
		if err != nil {
			// The controller copes with an absent provider; startup goes on.
			log.Warn(ctx, "wallet node unavailable", "url", cfg.Wallet.NodeURL, "error", err)
		} else {
			discovery.SetRoot(provider)
			log.Info(ctx, "wallet node registered", "wallet", cfg.Wallet.NodeName)
		}
	}

	controller := walletDI.GetController(mono.Services())
	controller.Initialize(ctx, cfg.Wallet.DialogKey, app.DebugOptions{})

	log.Info(ctx, "wallet module started")
	return nil
}

type noopDialogService struct{}

func (noopDialogService) Open(ctx context.Context, dialogKey string) error { return nil }
