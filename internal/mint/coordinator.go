// Package mint orchestrates the check -> mint -> reconcile workflow. It is
// the only place that talks to both the chain-writing service and the record
// store, and it enforces the no-double-mint invariant.
package mint

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mikelord007/Atrium-mint/internal/coin"
	"github.com/mikelord007/Atrium-mint/internal/records"
)

// OutcomeKind enumerates the terminal results of one mint attempt.
type OutcomeKind int

const (
	// OutcomeMinted: coin created and recorded.
	OutcomeMinted OutcomeKind = iota
	// OutcomeMintedUnreconciled: coin created, record update failed. The coin
	// exists on-chain; only the reconciliation step may be retried.
	OutcomeMintedUnreconciled
	// OutcomeAlreadyMinted: the record already carries an asset address.
	OutcomeAlreadyMinted
	// OutcomeWrongNetwork: signer is on the wrong chain.
	OutcomeWrongNetwork
	// OutcomeSignerUnavailable: no signing capability.
	OutcomeSignerUnavailable
	// OutcomeInFlight: another mint for the same identity is running here.
	OutcomeInFlight
	// OutcomeUserRejected: signer declined the transaction.
	OutcomeUserRejected
	// OutcomeInsufficientFunds: payer cannot cover the transaction.
	OutcomeInsufficientFunds
	// OutcomeChainFailed: any other on-chain failure. Terminal for this
	// attempt; retrying is an explicit user action.
	OutcomeChainFailed
	// OutcomeUnknown: the transaction may have been sent but its fate is
	// unknown (timeout/cancellation). Check on-chain state before retrying.
	OutcomeUnknown
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMinted:
		return "minted"
	case OutcomeMintedUnreconciled:
		return "minted_unreconciled"
	case OutcomeAlreadyMinted:
		return "already_minted"
	case OutcomeWrongNetwork:
		return "wrong_network"
	case OutcomeSignerUnavailable:
		return "signer_unavailable"
	case OutcomeInFlight:
		return "in_flight"
	case OutcomeUserRejected:
		return "user_rejected"
	case OutcomeInsufficientFunds:
		return "insufficient_funds"
	case OutcomeChainFailed:
		return "chain_failed"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Outcome is the single result of a mint attempt. A successful mint always
// carries the asset address, even when reconciliation failed.
type Outcome struct {
	Kind         OutcomeKind
	AssetAddress string
	TxHash       string
	Err          error
}

// Config fixes the deterministic parts of every coin deployment.
type Config struct {
	// ChainID is the required target network; signers on any other chain are
	// rejected before the chain service is contacted.
	ChainID          *big.Int
	Symbol           string
	ContentURI       string
	NameSuffix       string
	PlatformReferrer common.Address
	// ReconcileTimeout bounds the record update that follows a successful
	// mint. The update runs detached from the caller's cancellation because
	// the mint has already happened.
	ReconcileTimeout time.Duration
}

type Coordinator struct {
	minter coin.Minter
	store  records.Store
	cfg    Config

	mu       sync.Mutex
	inFlight map[string]struct{}
	states   map[string]State
}

func NewCoordinator(minter coin.Minter, store records.Store, cfg Config) *Coordinator {
	if cfg.ReconcileTimeout <= 0 {
		cfg.ReconcileTimeout = 10 * time.Second
	}
	return &Coordinator{
		minter:   minter,
		store:    store,
		cfg:      cfg,
		inFlight: make(map[string]struct{}),
		states:   make(map[string]State),
	}
}

// StateOf reports the workflow state for an identity, StateUnchecked if unseen.
func (c *Coordinator) StateOf(identity string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[records.NormalizeIdentity(identity)]
}

func (c *Coordinator) setState(identity string, s State) {
	c.mu.Lock()
	c.states[identity] = s
	c.mu.Unlock()
}

// BeginCheck records that an eligibility lookup started for the identity.
func (c *Coordinator) BeginCheck(identity string) {
	c.setState(records.NormalizeIdentity(identity), StateChecking)
}

// FinishCheck records the lookup result. A record that already shows a mint
// goes straight to the reconciled terminal state without passing Minting.
func (c *Coordinator) FinishCheck(identity string, found bool, rec records.Record) {
	key := records.NormalizeIdentity(identity)
	switch {
	case !found:
		c.setState(key, StateNotEligible)
	case rec.Minted():
		c.setState(key, StateMintedReconciled)
	default:
		c.setState(key, StateEligibleUnminted)
	}
}

// BuildParams derives the coin parameters from the record and identity. No
// randomness and no clock, so repeated calls with the same inputs are equal.
func (c *Coordinator) BuildParams(identity string, rec records.Record) coin.Params {
	name := rec.DisplayName
	if c.cfg.NameSuffix != "" {
		name = rec.DisplayName + " " + c.cfg.NameSuffix
	}
	return coin.Params{
		Name:               name,
		Symbol:             c.cfg.Symbol,
		ContentURI:         c.cfg.ContentURI,
		PayoutRecipient:    common.HexToAddress(records.NormalizeIdentity(identity)),
		PlatformReferrer:   c.cfg.PlatformReferrer,
		InitialPurchaseWei: big.NewInt(0),
	}
}

// Mint runs one attempt of the mint-and-reconcile workflow. Preconditions are
// checked in order before the chain service is contacted; chain failures are
// terminal for the attempt (no automatic retry on a financial transaction).
func (c *Coordinator) Mint(ctx context.Context, identity string, rec records.Record, signer coin.Signer) Outcome {
	key := records.NormalizeIdentity(identity)

	if rec.Minted() {
		c.setState(key, StateMintedReconciled)
		return Outcome{Kind: OutcomeAlreadyMinted, AssetAddress: rec.MintedAssetAddress}
	}
	if signer == nil {
		return Outcome{Kind: OutcomeSignerUnavailable}
	}
	if c.cfg.ChainID == nil || signer.ChainID() == nil || signer.ChainID().Cmp(c.cfg.ChainID) != 0 {
		return Outcome{Kind: OutcomeWrongNetwork}
	}

	c.mu.Lock()
	if _, busy := c.inFlight[key]; busy {
		c.mu.Unlock()
		return Outcome{Kind: OutcomeInFlight}
	}
	c.inFlight[key] = struct{}{}
	c.states[key] = StateMinting
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	params := c.BuildParams(key, rec)
	result, err := c.minter.CreateCoin(ctx, params, signer)
	if err != nil {
		return c.classifyMintError(key, err)
	}

	// The coin exists on-chain now; its address is the source of truth and
	// must reach the caller no matter what the record store does next.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ReconcileTimeout)
	defer cancel()
	if rerr := c.Reconcile(rctx, key, result.AssetAddress); rerr != nil {
		return Outcome{
			Kind:         OutcomeMintedUnreconciled,
			AssetAddress: result.AssetAddress,
			TxHash:       result.TxHash,
			Err:          rerr,
		}
	}

	return Outcome{Kind: OutcomeMinted, AssetAddress: result.AssetAddress, TxHash: result.TxHash}
}

// Reconcile persists the minted asset address. Safe to call repeatedly with
// the same address; also the manual retry path after OutcomeMintedUnreconciled.
func (c *Coordinator) Reconcile(ctx context.Context, identity, assetAddress string) error {
	key := records.NormalizeIdentity(identity)
	c.setState(key, StateReconciling)

	if err := c.store.SetAssetAddress(ctx, key, assetAddress); err != nil {
		c.setState(key, StateMintedUnreconciled)
		return err
	}
	c.setState(key, StateMintedReconciled)
	return nil
}

func (c *Coordinator) classifyMintError(key string, err error) Outcome {
	var unknown *coin.UnknownOutcomeError
	if errors.As(err, &unknown) {
		// Sent but unconfirmed. Not a failure: the caller must check
		// on-chain state before allowing another attempt.
		c.setState(key, StateEligibleUnminted)
		return Outcome{Kind: OutcomeUnknown, TxHash: unknown.TxHash, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c.setState(key, StateEligibleUnminted)
		return Outcome{Kind: OutcomeUnknown, Err: err}
	}

	c.setState(key, StateEligibleUnminted)
	err = coin.Classify(err)
	switch {
	case errors.Is(err, coin.ErrUserRejected):
		return Outcome{Kind: OutcomeUserRejected, Err: err}
	case errors.Is(err, coin.ErrInsufficientFunds):
		return Outcome{Kind: OutcomeInsufficientFunds, Err: err}
	default:
		return Outcome{Kind: OutcomeChainFailed, Err: err}
	}
}
