// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/fd1az/wallet-hub/internal/config"
	"github.com/fd1az/wallet-hub/internal/di"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/network"
	"github.com/fd1az/wallet-hub/internal/store"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Networks() *network.Registry
	Store() store.Store
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	networks  *network.Registry
	store     store.Store
	container di.Container
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	networks := network.NewRegistry(cfg.Networks.RegistryTable())

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("networks", networks)
	container.Register("store", st)

	return &app{
		config:    cfg,
		logger:    log,
		networks:  networks,
		store:     st,
		container: container,
	}, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Path != "" {
		return store.OpenFileStore(cfg.Store.Path)
	}
	return store.NewMemoryStore(), nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Networks() *network.Registry {
	return a.networks
}

func (a *app) Store() store.Store {
	return a.store
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	return nil
}
