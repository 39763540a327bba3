package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositETHCallData(t *testing.T) {
	data, err := DepositETHCallData("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	// 4-byte selector plus three ABI words.
	require.Len(t, data, 4+3*32)
	method, err := gatewayABI.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "depositETH", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, PoolAddress.Hex(), args[0].(interface{ Hex() string }).Hex())

	_, err = DepositETHCallData("not-an-address")
	require.Error(t, err)
}

func TestSupplyCallData(t *testing.T) {
	data, err := SupplyCallData(
		"0x2C9678042D52B97D27f2bD2947F7111d93F3dD0D",
		big.NewInt(100),
		"0x1111111111111111111111111111111111111111",
	)
	require.NoError(t, err)

	method, err := poolABI.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "supply", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), args[1])
	assert.Equal(t, uint16(0), args[3])
}

func TestReserveDataRoundTrip(t *testing.T) {
	// Encode a reserve record the way the node would and make sure the
	// ConvertType unpack recovers every field.
	in := ReserveData{
		LiquidityIndex:              big.NewInt(1),
		CurrentLiquidityRate:        new(big.Int).Mul(big.NewInt(36), new(big.Int).Exp(big.NewInt(10), big.NewInt(23), nil)),
		VariableBorrowIndex:         big.NewInt(2),
		CurrentVariableBorrowRate:   big.NewInt(3),
		CurrentStableBorrowRate:     big.NewInt(4),
		LastUpdateTimestamp:         big.NewInt(1700000000),
		Id:                          7,
		AccruedToTreasury:           big.NewInt(0),
		Unbacked:                    big.NewInt(0),
		IsolationModeTotalDebt:      big.NewInt(0),
	}
	in.Configuration.Data = big.NewInt(0x1234)

	method := poolABI.Methods["getReserveData"]
	encoded, err := method.Outputs.Pack(in)
	require.NoError(t, err)

	results, err := poolABI.Unpack("getReserveData", encoded)
	require.NoError(t, err)
	out := *abi.ConvertType(results[0], new(ReserveData)).(*ReserveData)

	assert.Equal(t, in.Configuration.Data, out.Configuration.Data)
	assert.Equal(t, in.CurrentLiquidityRate, out.CurrentLiquidityRate)
	assert.Equal(t, in.Id, out.Id)
	assert.Equal(t, in.LastUpdateTimestamp, out.LastUpdateTimestamp)
}

func TestMinMultisigBalance(t *testing.T) {
	want, ok := new(big.Int).SetString("30000000000000000", 10)
	require.True(t, ok)
	assert.Zero(t, MinMultisigBalance.Cmp(want))
}

func TestMustABISelectors(t *testing.T) {
	assert.Equal(t, "registerTask", taskRegistryABI.Methods["registerTask"].Name)
	assert.Equal(t, "depositETH", gatewayABI.Methods["depositETH"].Name)
	assert.Equal(t, "int256", oracleABI.Methods["latestAnswer"].Outputs[0].Type.String())
	assert.NotEmpty(t, hex.EncodeToString(poolABI.Methods["supply"].ID))
}
