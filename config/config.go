// Package config loads the sponsor relay configuration from a YAML file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

// Config is the sponsor relay configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Chain       ChainConfig       `yaml:"chain"`
	Contracts   ContractsConfig   `yaml:"contracts"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	LogLevel    string            `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ChainConfig selects the network the relay submits to.
type ChainConfig struct {
	Network intents.Network `yaml:"network"`
	RPCURL  string          `yaml:"rpcUrl"`
	// ReceiptTimeout bounds how long a submission waits to be mined
	ReceiptTimeout time.Duration `yaml:"receiptTimeout"`
}

// ContractsConfig overrides the network's default deployment. Empty fields
// keep the default.
type ContractsConfig struct {
	PremintExecutor   string `yaml:"premintExecutor"`
	FixedPriceMinter  string `yaml:"fixedPriceMinter"`
	Mints1155         string `yaml:"mints1155"`
	MintsManager      string `yaml:"mintsManager"`
	MintsEthUnwrapper string `yaml:"mintsEthUnwrapper"`
}

// ExecutorConfig holds the key the relay signs and pays with.
type ExecutorConfig struct {
	PrivateKey string `yaml:"privateKey"`
}

type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Resolve merges the overrides into the network's default deployment.
func (c ContractsConfig) Resolve(network intents.Network) (evm.ContractAddresses, error) {
	addrs, err := evm.GetContracts(network)
	if err != nil {
		return evm.ContractAddresses{}, err
	}
	for _, o := range []struct {
		value string
		field *string
	}{
		{c.PremintExecutor, &addrs.PremintExecutor},
		{c.FixedPriceMinter, &addrs.FixedPriceMinter},
		{c.Mints1155, &addrs.Mints1155},
		{c.MintsManager, &addrs.MintsManager},
		{c.MintsEthUnwrapper, &addrs.MintsEthUnwrapper},
	} {
		if o.value == "" {
			continue
		}
		if !evm.IsValidAddress(o.value) {
			return evm.ContractAddresses{}, fmt.Errorf("invalid contract address %q", o.value)
		}
		*o.field = o.value
	}
	return addrs, nil
}

// Default returns the configuration used for unset values.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Chain: ChainConfig{
			Network:        intents.NetworkZora,
			ReceiptTimeout: 2 * time.Minute,
		},
		Idempotency: IdempotencyConfig{TTL: 10 * time.Minute},
		LogLevel:    "info",
	}
}

// Load reads path (optional, may be empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the relay cannot start without.
func (c *Config) Validate() error {
	if _, err := c.Chain.Network.ChainID(); err != nil {
		return fmt.Errorf("chain.network: %w", err)
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpcUrl is required")
	}
	if c.Executor.PrivateKey == "" {
		return fmt.Errorf("executor.privateKey is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	contracts, err := c.Contracts.Resolve(c.Chain.Network)
	if err != nil {
		return fmt.Errorf("contracts: %w", err)
	}
	if contracts.MintsEthUnwrapper == "" {
		return fmt.Errorf("contracts.mintsEthUnwrapper is required")
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	cfg.Server.Host = envOr("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = envOrInt("SERVER_PORT", cfg.Server.Port)
	cfg.Chain.Network = intents.Network(envOr("CHAIN_NETWORK", string(cfg.Chain.Network)))
	cfg.Chain.RPCURL = envOr("CHAIN_RPC_URL", cfg.Chain.RPCURL)
	cfg.Chain.ReceiptTimeout = envOrDuration("RECEIPT_TIMEOUT", cfg.Chain.ReceiptTimeout)
	cfg.Contracts.MintsEthUnwrapper = envOr("MINTS_ETH_UNWRAPPER", cfg.Contracts.MintsEthUnwrapper)
	cfg.Executor.PrivateKey = envOr("EXECUTOR_PRIVATE_KEY", cfg.Executor.PrivateKey)
	cfg.Idempotency.TTL = envOrDuration("IDEMPOTENCY_TTL", cfg.Idempotency.TTL)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
