// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

type Config struct {
	DebugLogging  bool   `mapstructure:"debug_logging"`
	PrettyLogging bool   `mapstructure:"pretty_logging"`
	LogFile       string `mapstructure:"log_file"`
	Workers       int    `mapstructure:"workers"`

	Storage  StorageConfig  `mapstructure:"storage"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Export   ExportConfig   `mapstructure:"export"`
}

type StorageConfig struct {
	Driver         string `mapstructure:"driver"`
	PostgresURL    string `mapstructure:"postgres_url"`
	ConnectRetries uint   `mapstructure:"connect_retries"`
	// ConnectTimeout bounds the whole retry loop.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type ExchangeConfig struct {
	ProgramID                   string `mapstructure:"program_id"`
	Authority                   string `mapstructure:"authority"`
	FeeBps                      uint16 `mapstructure:"fee_bps"`
	PlatformFeeBps              uint16 `mapstructure:"platform_fee_bps"`
	CreatorFeeBps               uint16 `mapstructure:"creator_fee_bps"`
	InitialVirtualTokenReserves uint64 `mapstructure:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64 `mapstructure:"initial_virtual_sol_reserves"`
	TotalSupply                 uint64 `mapstructure:"total_supply"`
}

type VaultConfig struct {
	MinimumBalance uint64 `mapstructure:"minimum_balance"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Listen    string `mapstructure:"listen"`
}

type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	FormatCSV  = "csv"
	FormatJSON = "json"

	DefaultWorkers        = 4
	DefaultConnectRetries = 5
	DefaultConnectTimeout = 30 * time.Second

	DefaultFeeBps                      = 100
	DefaultPlatformFeeBps              = 50
	DefaultCreatorFeeBps               = 50
	DefaultInitialVirtualTokenReserves = 1_073_000_000_000_000
	DefaultInitialVirtualSolReserves   = 30_000_000_000
	DefaultMinimumBalance              = 1_670_400
)

const envPrefix = "LAUNCHPAD"

// LoadConfig reads path (JSON or YAML by extension) when set, applies
// LAUNCHPAD_* environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"debug_logging":                           false,
		"pretty_logging":                          false,
		"log_file":                                "",
		"workers":                                 DefaultWorkers,
		"storage.driver":                          DriverMemory,
		"storage.postgres_url":                    "",
		"storage.connect_retries":                 DefaultConnectRetries,
		"storage.connect_timeout":                 DefaultConnectTimeout,
		"exchange.program_id":                     launchpad.DefaultProgramID.String(),
		"exchange.authority":                      "",
		"exchange.fee_bps":                        DefaultFeeBps,
		"exchange.platform_fee_bps":               DefaultPlatformFeeBps,
		"exchange.creator_fee_bps":                DefaultCreatorFeeBps,
		"exchange.initial_virtual_token_reserves": DefaultInitialVirtualTokenReserves,
		"exchange.initial_virtual_sol_reserves":   DefaultInitialVirtualSolReserves,
		"exchange.total_supply":                   launchpad.DefaultTotalSupply,
		"vault.minimum_balance":                   DefaultMinimumBalance,
		"metrics.namespace":                       "launchpad",
		"metrics.listen":                          "",
		"export.dir":                              "export",
		"export.format":                           FormatCSV,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Export.Format = strings.ToLower(strings.TrimSpace(cfg.Export.Format))

	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if err := validateURL(c.Storage.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("invalid storage.postgres_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := solana.PublicKeyFromBase58(c.Exchange.ProgramID); err != nil {
		return fmt.Errorf("invalid exchange.program_id: %w", err)
	}
	if c.Exchange.Authority == "" {
		return errors.New("missing exchange.authority in configuration")
	}
	if _, err := solana.PublicKeyFromBase58(c.Exchange.Authority); err != nil {
		return fmt.Errorf("invalid exchange.authority: %w", err)
	}
	if c.Exchange.TotalSupply == 0 {
		return errors.New("invalid exchange.total_supply")
	}
	switch c.Export.Format {
	case FormatCSV, FormatJSON:
	default:
		return fmt.Errorf("unknown export format %q", c.Export.Format)
	}
	return nil
}

func validateURL(rawURL string, scheme string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, scheme) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// InitParams converts the exchange section for launchpad.Initialize, which
// performs the fee and reserve validation.
func (c *Config) InitParams() launchpad.InitParams {
	return launchpad.InitParams{
		Authority:                   solana.MustPublicKeyFromBase58(c.Exchange.Authority),
		FeeBps:                      c.Exchange.FeeBps,
		PlatformFeeBps:              c.Exchange.PlatformFeeBps,
		CreatorFeeBps:               c.Exchange.CreatorFeeBps,
		InitialVirtualTokenReserves: c.Exchange.InitialVirtualTokenReserves,
		InitialVirtualSolReserves:   c.Exchange.InitialVirtualSolReserves,
	}
}

// ProgramID is the address derivation anchor.
func (c *Config) ProgramID() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.Exchange.ProgramID)
}
