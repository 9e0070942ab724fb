// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fd1az/wallet-hub/internal/network"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Store     StoreConfig     `mapstructure:"store"`
	Networks  NetworksConfig  `mapstructure:"networks"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Balance   BalanceConfig   `mapstructure:"balance"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// StoreConfig holds persistent store settings.
type StoreConfig struct {
	Path string `mapstructure:"path"` // empty = in-memory store
}

// NetworksConfig holds the supported-network table and an optional remote
// source it can be refreshed from at startup.
type NetworksConfig struct {
	ChainlistURL string            `mapstructure:"chainlist_url"`
	Table        []network.Network `mapstructure:"table"`
}

// RegistryTable converts the configured list into a registry table,
// falling back to the built-in defaults when empty.
func (c *NetworksConfig) RegistryTable() network.Table {
	if len(c.Table) == 0 {
		return network.DefaultTable()
	}
	table := make(network.Table, len(c.Table))
	for _, n := range c.Table {
		table[n.ChainID] = n
	}
	return table
}

// WalletConfig holds connection controller settings.
type WalletConfig struct {
	DialogKey           string        `mapstructure:"dialog_key"`
	NodeURL             string        `mapstructure:"node_url"`  // wallet node endpoint for the local provider
	NodeName            string        `mapstructure:"node_name"` // wallet name the node provider registers under
	InjectionWait       time.Duration `mapstructure:"injection_wait"`
	InjectionPoll       time.Duration `mapstructure:"injection_poll"`
	BalancePollInterval time.Duration `mapstructure:"balance_poll_interval"`
	RequestsPerMinute   int           `mapstructure:"requests_per_minute"`
}

// BridgeConfig holds remote-bridge provider settings.
type BridgeConfig struct {
	URL string `mapstructure:"url"`
}

// BalanceConfig holds balance oracle timeouts.
type BalanceConfig struct {
	PrimaryTimeout  time.Duration `mapstructure:"primary_timeout"`
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("WHUB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "WHUB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "WHUB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "WHUB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("store.path", "WHUB_STORE_PATH")

	v.BindEnv("networks.chainlist_url", "WHUB_CHAINLIST_URL")

	v.BindEnv("wallet.dialog_key", "WHUB_DIALOG_KEY")
	v.BindEnv("wallet.node_url", "WHUB_NODE_URL")
	v.BindEnv("wallet.node_name", "WHUB_NODE_NAME")

	v.BindEnv("bridge.url", "WHUB_BRIDGE_URL")

	v.BindEnv("telemetry.enabled", "WHUB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "WHUB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "WHUB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wallet-hub")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("wallet.dialog_key", "wallet-picker")
	v.SetDefault("wallet.node_name", "MetaMask")
	v.SetDefault("wallet.injection_wait", "3s")
	v.SetDefault("wallet.injection_poll", "100ms")
	v.SetDefault("wallet.balance_poll_interval", "5s")
	v.SetDefault("wallet.requests_per_minute", 120)

	v.SetDefault("balance.primary_timeout", "3s")
	v.SetDefault("balance.fallback_timeout", "5s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "wallet-hub")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Wallet.InjectionWait <= 0 {
		return fmt.Errorf("wallet.injection_wait must be positive")
	}
	if c.Wallet.InjectionPoll <= 0 {
		return fmt.Errorf("wallet.injection_poll must be positive")
	}
	if c.Wallet.BalancePollInterval <= 0 {
		return fmt.Errorf("wallet.balance_poll_interval must be positive")
	}
	if c.Balance.PrimaryTimeout <= 0 || c.Balance.FallbackTimeout <= 0 {
		return fmt.Errorf("balance timeouts must be positive")
	}
	for _, n := range c.Networks.Table {
		if n.ChainID <= 0 {
			return fmt.Errorf("networks.table contains invalid chain id %d", n.ChainID)
		}
	}
	return nil
}
