package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Records: RecordsConfig{Backend: BackendMemory},
		Chain:   ChainConfig{ChainID: DefaultChainID},
		Coin: CoinConfig{
			Symbol:           DefaultSymbol,
			ContentURI:       DefaultContentURI,
			NameSuffix:       DefaultNameSuffix,
			PlatformReferrer: zeroAddress,
		},
	}
}

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateBackendRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Records.Backend = "spreadsheet"
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Records.Backend = BackendAirtable
	require.Error(t, cfg.Validate())
	cfg.Records.AirtableAPIKey = "key"
	cfg.Records.AirtableBaseID = "base"
	cfg.Records.AirtableTable = "Enrollment"
	require.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Records.Backend = BackendPostgres
	require.Error(t, cfg.Validate())
	cfg.Records.PostgresDSN = "postgres://localhost/atrium"
	require.NoError(t, cfg.Validate())
}

func TestValidateChainRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.PrivateKey = "0xkey"
	require.Error(t, cfg.Validate())

	cfg.Chain.RPCURL = "https://base-mainnet.example"
	require.Error(t, cfg.Validate())

	cfg.Chain.FactoryAddress = "not-an-address"
	require.Error(t, cfg.Validate())

	cfg.Chain.FactoryAddress = "0x0000000000000000000000000000000000000001"
	require.NoError(t, cfg.Validate())

	cfg.Chain.ChainID = 0
	require.Error(t, cfg.Validate())
}

func TestValidateCoinRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Coin.PlatformReferrer = "nope"
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Coin.Symbol = ""
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Coin.ContentURI = ""
	require.Error(t, cfg.Validate())
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("API_HTTP_PORT", "8081")
	t.Setenv("RECORDS_BACKEND", BackendFile)
	t.Setenv("COIN_SYMBOL", "TEST")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8081, cfg.Service.HTTPPort)
	require.Equal(t, BackendFile, cfg.Records.Backend)
	require.Equal(t, "TEST", cfg.Coin.Symbol)
	require.Equal(t, int64(DefaultChainID), cfg.Chain.ChainID)
}
