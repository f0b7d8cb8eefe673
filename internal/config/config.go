package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendAirtable = "airtable"
	BackendPostgres = "postgres"
)

// Defaults matching the original deployment: the acceptance token mints on
// Base with a fixed IPFS metadata URI.
const (
	DefaultChainID    = 8453
	DefaultSymbol     = "UHI6"
	DefaultNameSuffix = "UHI6 Acceptance Token"
	DefaultContentURI = "ipfs://bafybeigoxzqzbnxsn35vq7lls3ljxdcwjafxvbvkivprsodzrptpiguysy"
	zeroAddress       = "0x0000000000000000000000000000000000000000"
)

// AppConfig ties together everything the process needs, loaded and validated
// once at startup and injected into constructors. Nothing else reads the
// environment.
type AppConfig struct {
	Service ServiceConfig
	Records RecordsConfig
	Chain   ChainConfig
	Coin    CoinConfig
}

type ServiceConfig struct {
	HTTPPort         int
	LookupTimeout    time.Duration
	MintTimeout      time.Duration
	ReconcileTimeout time.Duration
	ShutdownTimeout  time.Duration
	// UpdateSecret, when set, requires signed requests on mutating endpoints.
	UpdateSecret  string
	HMACClockSkew time.Duration
}

type RecordsConfig struct {
	Backend         string
	FilePath        string
	PostgresDSN     string
	AirtableBaseURL string
	AirtableAPIKey  string
	AirtableBaseID  string
	AirtableTable   string
}

type ChainConfig struct {
	RPCURL         string
	ChainID        int64
	FactoryAddress string
	PrivateKey     string
}

type CoinConfig struct {
	Symbol           string
	ContentURI       string
	NameSuffix       string
	PlatformReferrer string
}

// Load aggregates configuration from the environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Service: ServiceConfig{
			HTTPPort:         envOrInt("API_HTTP_PORT", 3000),
			LookupTimeout:    envOrDuration("LOOKUP_TIMEOUT_SECONDS", 10*time.Second),
			MintTimeout:      envOrDuration("MINT_TIMEOUT_SECONDS", 120*time.Second),
			ReconcileTimeout: envOrDuration("RECONCILE_TIMEOUT_SECONDS", 10*time.Second),
			ShutdownTimeout:  envOrDuration("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
			UpdateSecret:     envOr("UPDATE_WEBHOOK_SECRET", ""),
			HMACClockSkew:    envOrDuration("HMAC_CLOCK_SKEW_SECONDS", 60*time.Second),
		},
		Records: RecordsConfig{
			Backend:         envOr("RECORDS_BACKEND", BackendMemory),
			FilePath:        envOr("RECORDS_FILE_PATH", filepath.Join(os.TempDir(), "atrium-records.json")),
			PostgresDSN:     envOr("POSTGRES_DSN", ""),
			AirtableBaseURL: envOr("AIRTABLE_BASE_URL", ""),
			AirtableAPIKey:  envOr("AIRTABLE_API_KEY", ""),
			AirtableBaseID:  envOr("AIRTABLE_BASE_ID", ""),
			AirtableTable:   envOr("AIRTABLE_TABLE_NAME", ""),
		},
		Chain: ChainConfig{
			RPCURL:         envOr("CHAIN_RPC_URL", ""),
			ChainID:        int64(envOrInt("CHAIN_ID", DefaultChainID)),
			FactoryAddress: envOr("COIN_FACTORY_ADDRESS", ""),
			PrivateKey:     envOr("CHAIN_PRIVATE_KEY", ""),
		},
		Coin: CoinConfig{
			Symbol:           envOr("COIN_SYMBOL", DefaultSymbol),
			ContentURI:       envOr("COIN_CONTENT_URI", DefaultContentURI),
			NameSuffix:       envOr("COIN_NAME_SUFFIX", DefaultNameSuffix),
			PlatformReferrer: envOr("PLATFORM_REFERRER", zeroAddress),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements once, so the rest of the process
// can assume a coherent configuration.
func (c *AppConfig) Validate() error {
	switch c.Records.Backend {
	case BackendMemory, BackendFile:
	case BackendAirtable:
		if c.Records.AirtableAPIKey == "" {
			return fmt.Errorf("AIRTABLE_API_KEY is required for the airtable backend")
		}
		if c.Records.AirtableBaseID == "" {
			return fmt.Errorf("AIRTABLE_BASE_ID is required for the airtable backend")
		}
		if c.Records.AirtableTable == "" {
			return fmt.Errorf("AIRTABLE_TABLE_NAME is required for the airtable backend")
		}
	case BackendPostgres:
		if c.Records.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown records backend %q", c.Records.Backend)
	}

	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if c.Chain.PrivateKey != "" {
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("CHAIN_RPC_URL is required when a private key is configured")
		}
		if c.Chain.FactoryAddress == "" {
			return fmt.Errorf("COIN_FACTORY_ADDRESS is required when a private key is configured")
		}
		if !common.IsHexAddress(c.Chain.FactoryAddress) {
			return fmt.Errorf("invalid factory address %q", c.Chain.FactoryAddress)
		}
	}

	if !common.IsHexAddress(c.Coin.PlatformReferrer) {
		return fmt.Errorf("invalid platform referrer %q", c.Coin.PlatformReferrer)
	}
	if c.Coin.Symbol == "" {
		return fmt.Errorf("coin symbol must not be empty")
	}
	if c.Coin.ContentURI == "" {
		return fmt.Errorf("coin content uri must not be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if secs := envOrInt(key, 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
