package coin

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/mikelord007/Atrium-mint/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient deploys coins through the factory contract.
type EthClient struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
	chainID  *big.Int
}

type EthClientConfig struct {
	RPCURL         string
	FactoryAddress string
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.FactoryAddress == "" {
		return nil, fmt.Errorf("factory address is required")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(contracts.CoinFactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	address := common.HexToAddress(cfg.FactoryAddress)
	bound := bind.NewBoundContract(address, parsedABI, cli, cli, cli)

	return &EthClient{
		client:   cli,
		contract: bound,
		abi:      parsedABI,
		address:  address,
		chainID:  chainID,
	}, nil
}

// ChainID is the id of the chain the RPC endpoint serves.
func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *EthClient) CreateCoin(ctx context.Context, params Params, signer Signer) (Result, error) {
	if signer == nil {
		return Result{}, fmt.Errorf("signer is required")
	}
	if err := validateParams(params); err != nil {
		return Result{}, err
	}

	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		return Result{}, err
	}
	opts.Context = ctx
	if params.InitialPurchaseWei != nil && params.InitialPurchaseWei.Sign() > 0 {
		opts.Value = new(big.Int).Set(params.InitialPurchaseWei)
	}

	tx, err := c.contract.Transact(opts, "deploy",
		params.PayoutRecipient,
		params.PlatformReferrer,
		params.ContentURI,
		params.Name,
		params.Symbol,
	)
	if err != nil {
		return Result{}, Classify(fmt.Errorf("deploy coin tx: %w", err))
	}

	receipt, err := waitForReceipt(ctx, c.client, tx)
	if err != nil {
		// The transaction is already out; losing the receipt is not a failure.
		if ctx.Err() != nil {
			return Result{}, &UnknownOutcomeError{TxHash: tx.Hash().Hex(), Err: err}
		}
		return Result{}, fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Result{}, fmt.Errorf("deploy reverted in tx %s", tx.Hash().Hex())
	}

	coinAddr, err := c.coinAddressFromLogs(receipt)
	if err != nil {
		return Result{}, err
	}

	return Result{
		AssetAddress: coinAddr.Hex(),
		TxHash:       tx.Hash().Hex(),
		BlockNumber:  receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.client.BlockNumber(ctx)
	return err
}

func (c *EthClient) coinAddressFromLogs(receipt *types.Receipt) (common.Address, error) {
	event := c.abi.Events["CoinCreated"]
	for _, lg := range receipt.Logs {
		if lg.Address != c.address || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}
		vals, err := event.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil {
			return common.Address{}, fmt.Errorf("unpack CoinCreated: %w", err)
		}
		addr, ok := vals[0].(common.Address)
		if !ok {
			return common.Address{}, fmt.Errorf("unexpected CoinCreated payload")
		}
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("no CoinCreated event in tx %s", receipt.TxHash.Hex())
}

func validateParams(params Params) error {
	if params.Name == "" {
		return fmt.Errorf("coin name is required")
	}
	if params.Symbol == "" {
		return fmt.Errorf("coin symbol is required")
	}
	if params.ContentURI == "" {
		return fmt.Errorf("content uri is required")
	}
	if params.PayoutRecipient == (common.Address{}) {
		return fmt.Errorf("payout recipient is required")
	}
	return nil
}

// waitForReceipt polls until the transaction is mined or the context ends.
func waitForReceipt(ctx context.Context, client *ethclient.Client, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && err.Error() != "not found" {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
