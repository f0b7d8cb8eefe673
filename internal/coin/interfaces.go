package coin

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Params describes one coin deployment. Built fresh per mint attempt from the
// eligibility record and the requester identity; never persisted.
type Params struct {
	Name               string
	Symbol             string
	ContentURI         string
	PayoutRecipient    common.Address
	PlatformReferrer   common.Address
	InitialPurchaseWei *big.Int
}

// Result is produced exactly once per successful mint call.
type Result struct {
	AssetAddress string
	TxHash       string
	BlockNumber  uint64
}

// Minter abstracts the chain-writing service that creates coins. The
// coordinator treats it as opaque and makes no assumptions about its internal
// retry or gas behavior.
type Minter interface {
	CreateCoin(ctx context.Context, params Params, signer Signer) (Result, error)
}

// Signer is the capability to sign transactions on a particular chain.
type Signer interface {
	Address() common.Address
	ChainID() *big.Int
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// HealthChecker is implemented by minters that can probe their RPC endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
