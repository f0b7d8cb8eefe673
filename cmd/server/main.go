package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikelord007/Atrium-mint/internal/coin"
	"github.com/mikelord007/Atrium-mint/internal/config"
	"github.com/mikelord007/Atrium-mint/internal/records"
	"github.com/mikelord007/Atrium-mint/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("record store error: %v", err)
	}

	minter, signer, err := newMinter(cfg)
	if err != nil {
		log.Fatalf("chain client error: %v", err)
	}

	apiServer := server.NewServer(cfg, store, minter, signer)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	_ = apiServer.Shutdown(ctx)
}

func newStore(cfg *config.AppConfig) (records.Store, error) {
	switch cfg.Records.Backend {
	case config.BackendAirtable:
		return records.NewAirtableStore(records.AirtableConfig{
			BaseURL: cfg.Records.AirtableBaseURL,
			APIKey:  cfg.Records.AirtableAPIKey,
			BaseID:  cfg.Records.AirtableBaseID,
			Table:   cfg.Records.AirtableTable,
			Timeout: cfg.Service.LookupTimeout,
		})
	case config.BackendPostgres:
		return records.NewPostgresStore(context.Background(), cfg.Records.PostgresDSN)
	case config.BackendFile:
		return records.NewFileStore(cfg.Records.FilePath)
	default:
		return records.NewMemoryStore(), nil
	}
}

// newMinter picks the real chain client when a key is configured, otherwise
// the deterministic fake so local runs work without funds.
func newMinter(cfg *config.AppConfig) (coin.Minter, coin.Signer, error) {
	if cfg.Chain.PrivateKey == "" {
		log.Printf("no chain private key configured, using fake minter")
		return coin.FakeMinter{}, coin.StaticSigner{Chain: big.NewInt(cfg.Chain.ChainID)}, nil
	}

	client, err := coin.NewEthClient(context.Background(), coin.EthClientConfig{
		RPCURL:         cfg.Chain.RPCURL,
		FactoryAddress: cfg.Chain.FactoryAddress,
	})
	if err != nil {
		return nil, nil, err
	}

	signer, err := coin.NewLocalSigner(cfg.Chain.PrivateKey, client.ChainID())
	if err != nil {
		return nil, nil, err
	}
	return client, signer, nil
}
