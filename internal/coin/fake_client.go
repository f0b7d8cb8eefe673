package coin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// FakeMinter hashes the params to deterministically emulate coin deployments
// in tests and keyless development runs.
type FakeMinter struct{}

func (FakeMinter) CreateCoin(_ context.Context, params Params, signer Signer) (Result, error) {
	if signer == nil {
		return Result{}, fmt.Errorf("signer is required")
	}
	if err := validateParams(params); err != nil {
		return Result{}, err
	}
	seed := params.Name + params.Symbol + params.ContentURI + params.PayoutRecipient.Hex()
	sum := sha256.Sum256([]byte(seed))
	return Result{
		AssetAddress: "0x" + hex.EncodeToString(sum[:20]),
		TxHash:       "0x" + hex.EncodeToString(sum[:]),
	}, nil
}

// StaticSigner satisfies Signer without holding a key. Pairs with FakeMinter
// where no real transaction is ever signed.
type StaticSigner struct {
	Addr  common.Address
	Chain *big.Int
}

func (s StaticSigner) Address() common.Address { return s.Addr }

func (s StaticSigner) ChainID() *big.Int { return s.Chain }

func (s StaticSigner) TransactOpts(context.Context) (*bind.TransactOpts, error) {
	return nil, fmt.Errorf("static signer cannot sign transactions")
}
