// Package di contains dependency injection tokens for the wallet context.
package di

import (
	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Controller = di.NewToken[*app.Controller]("wallet.Controller")
)

// Private dependency tokens - internal to wallet module
var (
	Discovery     = di.NewToken[app.Discovery]("wallet:discovery")
	ClientFactory = di.NewToken[app.ClientFactory]("wallet:clientFactory")
	BridgeFactory = di.NewToken[app.BridgeFactory]("wallet:bridgeFactory")
	DialogService = di.NewToken[app.DialogService]("wallet:dialogService")
)

// Helper functions for type-safe access
func GetController(c di.ServiceRegistry) *app.Controller {
	return di.GetToken(c, Controller)
}

func GetDiscovery(c di.ServiceRegistry) app.Discovery {
	return di.GetToken(c, Discovery)
}

func GetClientFactory(c di.ServiceRegistry) app.ClientFactory {
	return di.GetToken(c, ClientFactory)
}

func GetBridgeFactory(c di.ServiceRegistry) app.BridgeFactory {
	return di.GetToken(c, BridgeFactory)
}

func GetDialogService(c di.ServiceRegistry) app.DialogService {
	return di.GetToken(c, DialogService)
}
