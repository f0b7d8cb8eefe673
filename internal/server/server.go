package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mikelord007/Atrium-mint/internal/coin"
	"github.com/mikelord007/Atrium-mint/internal/config"
	"github.com/mikelord007/Atrium-mint/internal/eligibility"
	"github.com/mikelord007/Atrium-mint/internal/hmacauth"
	"github.com/mikelord007/Atrium-mint/internal/mint"
	"github.com/mikelord007/Atrium-mint/internal/records"
)

type Server struct {
	cfg         *config.AppConfig
	store       records.Store
	resolver    *eligibility.Resolver
	coordinator *mint.Coordinator
	signer      coin.Signer
	hmac        *hmacauth.Verifier
	httpServer  *http.Server
	metrics     *metricsRegistry

	storeHealthFn func(context.Context) error
	rpcHealthFn   func(context.Context) error
}

// NewServer wires the workflow components behind the HTTP surface. The signer
// may be nil; mint requests then resolve to a signer-unavailable outcome.
func NewServer(cfg *config.AppConfig, store records.Store, minter coin.Minter, signer coin.Signer) *Server {
	coordinator := mint.NewCoordinator(minter, store, mint.Config{
		ChainID:          big.NewInt(cfg.Chain.ChainID),
		Symbol:           cfg.Coin.Symbol,
		ContentURI:       cfg.Coin.ContentURI,
		NameSuffix:       cfg.Coin.NameSuffix,
		PlatformReferrer: common.HexToAddress(cfg.Coin.PlatformReferrer),
		ReconcileTimeout: cfg.Service.ReconcileTimeout,
	})

	s := &Server{
		cfg:         cfg,
		store:       store,
		resolver:    eligibility.NewResolver(store),
		coordinator: coordinator,
		signer:      signer,
		hmac: &hmacauth.Verifier{
			Secret:  cfg.Service.UpdateSecret,
			MaxSkew: cfg.Service.HMACClockSkew,
		},
		metrics: newMetricsRegistry(),
	}

	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.storeHealthFn = checker.Ping
	}
	if checker, ok := minter.(coin.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Get("/lookup", s.handleLookup)
	r.Method(http.MethodPost, "/update", s.hmac.Middleware(http.HandlerFunc(s.handleUpdate)))
	r.Method(http.MethodPost, "/mint", s.hmac.Middleware(http.HandlerFunc(s.handleMint)))
	r.Method(http.MethodPost, "/reconcile", s.hmac.Middleware(http.HandlerFunc(s.handleReconcile)))
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Printf("API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type lookupResponse struct {
	DisplayName        string `json:"displayName"`
	ImageURI           string `json:"imageURI"`
	MintedAssetAddress string `json:"mintedAssetAddress,omitempty"`
}

type updateRequest struct {
	Identity     string `json:"identity"`
	AssetAddress string `json:"assetAddress"`
}

type mintRequest struct {
	Identity string `json:"identity"`
}

type mintResponse struct {
	Outcome      string `json:"outcome"`
	State        string `json:"state"`
	AssetAddress string `json:"assetAddress,omitempty"`
	TxHash       string `json:"txHash,omitempty"`
	Error        string `json:"error,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		s.metrics.incLookup("invalid")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "identity is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Service.LookupTimeout)
	defer cancel()

	s.coordinator.BeginCheck(identity)
	result, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		s.metrics.incLookup("failed")
		writeStoreError(w, err)
		return
	}
	s.coordinator.FinishCheck(identity, result.Found, result.Record)

	if !result.Found {
		s.metrics.incLookup("not_found")
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "record not found"})
		return
	}

	s.metrics.incLookup("found")
	writeJSON(w, http.StatusOK, lookupResponse{
		DisplayName:        result.Record.DisplayName,
		ImageURI:           result.Record.ImageURI,
		MintedAssetAddress: result.Record.MintedAssetAddress,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload updateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.metrics.incUpdate("invalid")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid json payload"})
		return
	}
	if payload.Identity == "" || payload.AssetAddress == "" {
		s.metrics.incUpdate("invalid")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing required fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Service.ReconcileTimeout)
	defer cancel()

	if err := s.store.SetAssetAddress(ctx, payload.Identity, payload.AssetAddress); err != nil {
		s.metrics.incUpdate("failed")
		writeStoreError(w, err)
		return
	}

	s.metrics.incUpdate("ok")
	writeJSON(w, http.StatusOK, messageResponse{Message: "record updated successfully"})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var payload mintRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid json payload"})
		return
	}
	if payload.Identity == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "identity is required"})
		return
	}

	lookupCtx, cancelLookup := context.WithTimeout(r.Context(), s.cfg.Service.LookupTimeout)
	defer cancelLookup()

	s.coordinator.BeginCheck(payload.Identity)
	result, err := s.resolver.Resolve(lookupCtx, payload.Identity)
	if err != nil {
		s.metrics.incMint("lookup_failed")
		writeStoreError(w, err)
		return
	}
	s.coordinator.FinishCheck(payload.Identity, result.Found, result.Record)
	if !result.Found {
		s.metrics.incMint("not_eligible")
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "record not found"})
		return
	}

	mintCtx, cancelMint := context.WithTimeout(r.Context(), s.cfg.Service.MintTimeout)
	defer cancelMint()

	outcome := s.coordinator.Mint(mintCtx, payload.Identity, result.Record, s.signer)
	s.metrics.incMint(outcome.Kind.String())

	resp := mintResponse{
		Outcome:      outcome.Kind.String(),
		State:        s.coordinator.StateOf(payload.Identity).String(),
		AssetAddress: outcome.AssetAddress,
		TxHash:       outcome.TxHash,
	}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}
	writeJSON(w, statusForOutcome(outcome.Kind), resp)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var payload updateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid json payload"})
		return
	}
	if payload.Identity == "" || payload.AssetAddress == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing required fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Service.ReconcileTimeout)
	defer cancel()

	if err := s.coordinator.Reconcile(ctx, payload.Identity, payload.AssetAddress); err != nil {
		s.metrics.incReconcileRetry("failed")
		writeStoreError(w, err)
		return
	}

	s.metrics.incReconcileRetry("ok")
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "record updated successfully",
		Detail:  s.coordinator.StateOf(payload.Identity).String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	storeInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.storeHealthFn != nil {
		storeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.storeHealthFn(storeCtx); err != nil {
			storeInfo.Connected = false
			storeInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !overallHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, struct {
		Status      string      `json:"status"`
		RPC         interface{} `json:"rpc"`
		RecordStore interface{} `json:"record_store"`
	}{
		Status:      status,
		RPC:         rpcInfo,
		RecordStore: storeInfo,
	})
}

// writeStoreError maps record-store failures onto the HTTP surface. HTML
// error pages and auth denials get distinct messages instead of raw bodies.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "record not found"})
	case errors.Is(err, eligibility.ErrEmptyIdentity):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "identity is required"})
	case errors.Is(err, records.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, messageResponse{
			Message: "record store rejected the request",
			Detail:  "check the store API key permissions",
		})
	case errors.Is(err, records.ErrAddressConflict):
		writeJSON(w, http.StatusConflict, messageResponse{Message: "minted address already recorded with a different value"})
	case errors.Is(err, records.ErrMalformedResponse):
		writeJSON(w, http.StatusInternalServerError, messageResponse{
			Message: "record store returned an unexpected response",
			Detail:  "authentication or server error",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, messageResponse{
			Message: "error reaching record store",
			Detail:  err.Error(),
		})
	}
}

func statusForOutcome(kind mint.OutcomeKind) int {
	switch kind {
	case mint.OutcomeMinted, mint.OutcomeMintedUnreconciled, mint.OutcomeAlreadyMinted:
		return http.StatusOK
	case mint.OutcomeWrongNetwork, mint.OutcomeUserRejected, mint.OutcomeInFlight:
		return http.StatusConflict
	case mint.OutcomeInsufficientFunds:
		return http.StatusPaymentRequired
	case mint.OutcomeSignerUnavailable:
		return http.StatusServiceUnavailable
	case mint.OutcomeUnknown:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// requestIDMiddleware assigns every request an id, echoes it on the response
// and stamps the request log line with it, so a caller-reported failure can be
// matched against the server log.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		log.Printf("%s %s request_id=%s", r.Method, r.URL.Path, id)
		next.ServeHTTP(w, r)
	})
}
