// Package main is the entry point for wallet hub.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/wallet-hub/business/balance"
	"github.com/fd1az/wallet-hub/business/wallet"
	"github.com/fd1az/wallet-hub/business/wallet/app"
	walletDI "github.com/fd1az/wallet-hub/business/wallet/di"
	"github.com/fd1az/wallet-hub/internal/apm"
	"github.com/fd1az/wallet-hub/internal/config"
	"github.com/fd1az/wallet-hub/internal/di"
	"github.com/fd1az/wallet-hub/internal/health"
	"github.com/fd1az/wallet-hub/internal/logger"
	"github.com/fd1az/wallet-hub/internal/metrics"
	"github.com/fd1az/wallet-hub/internal/monolith"
	"github.com/fd1az/wallet-hub/internal/netfetch"
	"github.com/fd1az/wallet-hub/internal/network"
	"github.com/fd1az/wallet-hub/internal/store"
	"github.com/fd1az/wallet-hub/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wallet-hub %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// The TUI owns the terminal; drop log output.
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting wallet hub",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	var traceProvider apm.TraceProvider
	var healthServer *health.Server
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.OTLPProvider, log))
		log.Info(ctx, "tracing initialized", "endpoint", cfg.Telemetry.OTLPEndpoint)

		if _, err := metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		); err != nil {
			log.Warn(ctx, "metrics provider init failed", "error", err)
		} else {
			go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(cfg.Telemetry.PrometheusPort)))
			log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
		}

		healthServer = health.NewServer(cfg.Telemetry.HealthPort, version)
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Telemetry.HealthPort)
		}
		defer healthServer.Stop(ctx)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Refresh the network table from the configured chain list before
	// anything reads it.
	if cfg.Networks.ChainlistURL != "" {
		refreshNetworks(ctx, cfg.Networks.ChainlistURL, mono.Networks(), log)
	}

	modules := []monolith.Module{
		&balance.Module{}, // provides the oracle the wallet controller uses
		&wallet.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	// The wallet picker replaces the module's no-op dialog service. It
	// must be registered before the controller is first resolved.
	di.RegisterToken(mono.Container(), walletDI.DialogService, func(sr di.ServiceRegistry) app.DialogService {
		return ui.NewPicker(
			func() *app.Controller { return walletDI.GetController(sr) },
			walletDI.GetDiscovery(sr),
			log,
		)
	})

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	controller := walletDI.GetController(mono.Services())

	if healthServer != nil {
		st := mono.Store()
		healthServer.RegisterCheck("store", func(ctx context.Context) (bool, string) {
			if err := store.VerifyWritable(st); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
		healthServer.RegisterCheck("wallet", func(ctx context.Context) (bool, string) {
			if controller.State().Connected {
				return true, "connected"
			}
			return true, "disconnected"
		})
	}

	if tuiMode {
		return runTUI(ctx, controller)
	}
	return runCLI(ctx, controller, log)
}

func refreshNetworks(ctx context.Context, url string, networks *network.Registry, log *logger.Logger) {
	fetcher, err := netfetch.New(url)
	if err != nil {
		log.Warn(ctx, "network fetcher init failed, keeping configured table", "error", err)
		return
	}

	table, err := fetcher.FetchTable(ctx)
	if err != nil {
		log.Warn(ctx, "network table refresh failed, keeping configured table", "error", err)
		return
	}
	networks.Replace(table)
	log.Info(ctx, "network table refreshed", "networks", len(table))
}

func runCLI(ctx context.Context, controller *app.Controller, log *logger.Logger) error {
	log.Info(ctx, "wallet hub running")

	// Offer a connection right away when no cached wallet was restored.
	if !controller.State().Connected {
		controller.CallWalletAction(ctx, false)
	}

	<-ctx.Done()

	log.Info(ctx, "shutting down")
	controller.DisconnectWallet(context.Background())
	return nil
}

// runTUI alternates between the status view and the wallet picker. The
// two are separate Bubble Tea programs and cannot share the terminal,
// so the status view quits with a connect intent and the picker runs
// once the terminal is free.
func runTUI(ctx context.Context, controller *app.Controller) error {
	for {
		model := ui.NewStatusModel(controller)
		p := tea.NewProgram(model, tea.WithAltScreen())
		go func() {
			<-ctx.Done()
			p.Quit()
		}()

		_, err := p.Run()
		model.Close()
		if err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		if ctx.Err() != nil || !model.WantsConnect() {
			break
		}
		controller.CallWalletAction(ctx, false)
	}

	controller.DisconnectWallet(context.Background())
	return nil
}
