package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mikelord007/Atrium-mint/internal/coin"
	"github.com/mikelord007/Atrium-mint/internal/config"
	"github.com/mikelord007/Atrium-mint/internal/records"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Service: config.ServiceConfig{
			HTTPPort:         0,
			LookupTimeout:    time.Second,
			MintTimeout:      time.Second,
			ReconcileTimeout: time.Second,
			HMACClockSkew:    time.Minute,
		},
		Records: config.RecordsConfig{Backend: config.BackendMemory},
		Chain:   config.ChainConfig{ChainID: config.DefaultChainID},
		Coin: config.CoinConfig{
			Symbol:           config.DefaultSymbol,
			ContentURI:       config.DefaultContentURI,
			NameSuffix:       config.DefaultNameSuffix,
			PlatformReferrer: "0x0000000000000000000000000000000000000000",
		},
	}
}

func testSigner() coin.Signer {
	return coin.StaticSigner{
		Addr:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Chain: big.NewInt(config.DefaultChainID),
	}
}

type countingMinter struct {
	calls  int
	result coin.Result
	err    error
}

func (m *countingMinter) CreateCoin(context.Context, coin.Params, coin.Signer) (coin.Result, error) {
	m.calls++
	if m.err != nil {
		return coin.Result{}, m.err
	}
	return m.result, nil
}

type failingUpdateStore struct {
	*records.MemoryStore
	failures int
	err      error
}

func (f *failingUpdateStore) SetAssetAddress(ctx context.Context, identity, asset string) error {
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return f.MemoryStore.SetAssetAddress(ctx, identity, asset)
}

func seededStore() *records.MemoryStore {
	store := records.NewMemoryStore()
	store.Seed(records.Record{Identity: "0xABC", DisplayName: "Jane", ImageURI: "img://1"})
	return store
}

func doJSON(t *testing.T, srv *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(blob)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestLookupEndpoint(t *testing.T) {
	srv := NewServer(testConfig(), seededStore(), &countingMinter{}, testSigner())

	rec := doJSON(t, srv, http.MethodGet, "/lookup?identity=0xAbC", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp lookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Jane", resp.DisplayName)
	require.Equal(t, "img://1", resp.ImageURI)
	require.Empty(t, resp.MintedAssetAddress)

	rec = doJSON(t, srv, http.MethodGet, "/lookup?identity=0xdead", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/lookup", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/lookup?identity=0xabc", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLookupStoreFailureIsDistinct(t *testing.T) {
	srv := NewServer(testConfig(), htmlErrorStore{}, &countingMinter{}, testSigner())

	rec := doJSON(t, srv, http.MethodGet, "/lookup?identity=0xabc", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Message, "unexpected response")
	require.NotContains(t, resp.Message, "<!DOCTYPE")
}

type htmlErrorStore struct{}

func (htmlErrorStore) Lookup(context.Context, string) (*records.Record, error) {
	return nil, records.ErrMalformedResponse
}

func (htmlErrorStore) SetAssetAddress(context.Context, string, string) error {
	return records.ErrMalformedResponse
}

func TestUpdateEndpointValidation(t *testing.T) {
	srv := NewServer(testConfig(), seededStore(), &countingMinter{}, testSigner())

	rec := doJSON(t, srv, http.MethodPost, "/update", map[string]string{"identity": "0xabc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/update", map[string]string{"assetAddress": "0xCOIN"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/update", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	store := seededStore()
	srv := NewServer(testConfig(), store, &countingMinter{}, testSigner())

	payload := map[string]string{"identity": "0xABC", "assetAddress": "0xCOIN"}
	rec := doJSON(t, srv, http.MethodPost, "/update", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := store.Lookup(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, "0xCOIN", saved.MintedAssetAddress)

	// Identical update is accepted, a different address conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/update", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/update", map[string]string{"identity": "0xABC", "assetAddress": "0xOTHER"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/update", map[string]string{"identity": "0xdead", "assetAddress": "0xCOIN"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePermissionDenied(t *testing.T) {
	store := &failingUpdateStore{
		MemoryStore: seededStore(),
		failures:    1,
		err:         records.ErrPermissionDenied,
	}
	srv := NewServer(testConfig(), store, &countingMinter{}, testSigner())

	rec := doJSON(t, srv, http.MethodPost, "/update", map[string]string{"identity": "0xabc", "assetAddress": "0xCOIN"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMintEndToEnd(t *testing.T) {
	store := seededStore()
	minter := &countingMinter{result: coin.Result{AssetAddress: "0xCOIN", TxHash: "0xTX"}}
	srv := NewServer(testConfig(), store, minter, testSigner())

	rec := doJSON(t, srv, http.MethodPost, "/mint", map[string]string{"identity": "0xABC"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mintResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "minted", resp.Outcome)
	require.Equal(t, "minted_reconciled", resp.State)
	require.Equal(t, "0xCOIN", resp.AssetAddress)
	require.Equal(t, "0xTX", resp.TxHash)

	saved, err := store.Lookup(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, "0xCOIN", saved.MintedAssetAddress)

	// Repeated mint request must not reach the chain again.
	rec = doJSON(t, srv, http.MethodPost, "/mint", map[string]string{"identity": "0xabc"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "already_minted", resp.Outcome)
	require.Equal(t, "0xCOIN", resp.AssetAddress)
	require.Equal(t, 1, minter.calls)
}

func TestMintNotEligible(t *testing.T) {
	minter := &countingMinter{}
	srv := NewServer(testConfig(), seededStore(), minter, testSigner())

	rec := doJSON(t, srv, http.MethodPost, "/mint", map[string]string{"identity": "0xdead"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, minter.calls)
}

func TestMintWrongNetwork(t *testing.T) {
	minter := &countingMinter{}
	wrongChain := coin.StaticSigner{Chain: big.NewInt(1)}
	srv := NewServer(testConfig(), seededStore(), minter, wrongChain)

	rec := doJSON(t, srv, http.MethodPost, "/mint", map[string]string{"identity": "0xABC"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp mintResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "wrong_network", resp.Outcome)
	require.Zero(t, minter.calls)
}

func TestMintReconcileFailureThenManualRetry(t *testing.T) {
	store := &failingUpdateStore{
		MemoryStore: seededStore(),
		failures:    1,
		err:         records.ErrPermissionDenied,
	}
	minter := &countingMinter{result: coin.Result{AssetAddress: "0xCOIN", TxHash: "0xTX"}}
	srv := NewServer(testConfig(), store, minter, testSigner())

	rec := doJSON(t, srv, http.MethodPost, "/mint", map[string]string{"identity": "0xABC"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mintResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "minted_unreconciled", resp.Outcome)
	require.Equal(t, "0xCOIN", resp.AssetAddress)
	require.NotEmpty(t, resp.Error)

	// Only the recording step is retried; the mint never repeats.
	rec = doJSON(t, srv, http.MethodPost, "/reconcile", map[string]string{"identity": "0xABC", "assetAddress": "0xCOIN"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, minter.calls)

	saved, err := store.Lookup(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, "0xCOIN", saved.MintedAssetAddress)
}

func TestRequestIDOnResponse(t *testing.T) {
	srv := NewServer(testConfig(), seededStore(), &countingMinter{}, testSigner())

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	// A caller-supplied id is echoed back unchanged.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rr := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, req)
	require.Equal(t, "req-123", rr.Header().Get("X-Request-Id"))
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(testConfig(), seededStore(), &countingMinter{}, testSigner())

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}
