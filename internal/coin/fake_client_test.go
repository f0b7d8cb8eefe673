package coin

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestFakeMinterDeterministic(t *testing.T) {
	params := Params{
		Name:               "Jane UHI6 Acceptance Token",
		Symbol:             "UHI6",
		ContentURI:         "ipfs://bafytest",
		PayoutRecipient:    common.HexToAddress("0xabc"),
		InitialPurchaseWei: big.NewInt(0),
	}
	signer := StaticSigner{Chain: big.NewInt(8453)}

	first, err := FakeMinter{}.CreateCoin(context.Background(), params, signer)
	require.NoError(t, err)
	require.NotEmpty(t, first.AssetAddress)
	require.NotEmpty(t, first.TxHash)

	second, err := FakeMinter{}.CreateCoin(context.Background(), params, signer)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFakeMinterValidatesParams(t *testing.T) {
	signer := StaticSigner{Chain: big.NewInt(8453)}

	_, err := FakeMinter{}.CreateCoin(context.Background(), Params{}, signer)
	require.Error(t, err)

	_, err = FakeMinter{}.CreateCoin(context.Background(), Params{
		Name:            "x",
		Symbol:          "y",
		ContentURI:      "ipfs://z",
		PayoutRecipient: common.HexToAddress("0xabc"),
	}, nil)
	require.Error(t, err)
}
