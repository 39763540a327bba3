package market

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchardfi/advisor/internal/chain"
)

type fakeReader struct {
	reserves map[string]chain.ReserveData
	errs     map[string]error
	prices   map[string]float64
	priceErr error
}

func (f *fakeReader) ReserveData(_ context.Context, address string) (chain.ReserveData, error) {
	if err, ok := f.errs[address]; ok {
		return chain.ReserveData{}, err
	}
	reserve, ok := f.reserves[address]
	if !ok {
		return chain.ReserveData{}, errors.New("no reserve")
	}
	return reserve, nil
}

func (f *fakeReader) OraclePrice(_ context.Context, address string) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.prices[address], nil
}

// packConfig builds a configuration bitmap from whole-percent inputs.
func packConfig(ltv, threshold, bonus uint64, decimals uint64, active, borrowing bool, reserveFactor uint64) *big.Int {
	data := new(big.Int).SetUint64(ltv * 100)
	set := func(value uint64, shift uint) {
		data.Or(data, new(big.Int).Lsh(new(big.Int).SetUint64(value), shift))
	}
	set(threshold*100, 16)
	set(bonus*100, 32)
	set(decimals, 48)
	if active {
		set(1, 56)
	}
	if borrowing {
		set(1, 58)
	}
	set(reserveFactor*100, 64)
	return data
}

func TestDecodeReserveConfig(t *testing.T) {
	cfg := DecodeReserveConfig(packConfig(80, 85, 105, 18, true, true, 10))
	assert.Equal(t, 80.0, cfg.LTV)
	assert.Equal(t, 85.0, cfg.LiquidationThreshold)
	assert.Equal(t, 105.0, cfg.LiquidationBonus)
	assert.Equal(t, uint8(18), cfg.Decimals)
	assert.True(t, cfg.Active)
	assert.False(t, cfg.Frozen)
	assert.True(t, cfg.BorrowingEnabled)
	assert.False(t, cfg.StableBorrowingEnabled)
	assert.Equal(t, 10.0, cfg.ReserveFactor)

	zero := DecodeReserveConfig(big.NewInt(0))
	assert.Equal(t, 0.0, zero.LTV)
	assert.False(t, zero.Active)
}

func rayPercent(percent float64) *big.Int {
	// percent of one ray unit, e.g. 0.36 -> 0.0036 * 10^27.
	scaled := new(big.Float).Mul(big.NewFloat(percent/100), new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)))
	out, _ := scaled.Int(nil)
	return out
}

func TestRayConversions(t *testing.T) {
	assert.Equal(t, 0.36, APRFromRay(rayPercent(0.36)))
	assert.Equal(t, 0.0, APRFromRay(big.NewInt(0)))

	// At low rates per-second compounding barely moves the needle, so APY
	// rounds to the same two decimals as APR.
	assert.Equal(t, 0.36, APYFromRay(rayPercent(0.36)))
	// At higher rates it visibly exceeds APR.
	assert.Greater(t, APYFromRay(rayPercent(25)), 25.0)
}

func reserveWithRate(rate *big.Int, config *big.Int) chain.ReserveData {
	r := chain.ReserveData{
		CurrentLiquidityRate:      rate,
		CurrentVariableBorrowRate: big.NewInt(0),
		CurrentStableBorrowRate:   big.NewInt(0),
	}
	r.Configuration.Data = config
	return r
}

func TestReportIncludesRatesAndFailures(t *testing.T) {
	reader := &fakeReader{
		reserves: map[string]chain.ReserveData{
			"0x2C9678042D52B97D27f2bD2947F7111d93F3dD0D": reserveWithRate(rayPercent(0.36), packConfig(80, 85, 105, 6, true, true, 10)),
			"0x7984E363c38b590bB4CA35aEd5133Ef2c6619C40": reserveWithRate(rayPercent(0.37), packConfig(75, 80, 105, 18, true, true, 10)),
		},
		errs: map[string]error{
			"0x5EA79f3190ff37418d42F9B2618688494dBD9693": errors.New("execution reverted"),
		},
	}
	p := &Provider{Chain: reader, Log: zerolog.Nop()}

	report := p.Report(context.Background())
	assert.Contains(t, report, "Here's the current Aave market data:")
	assert.Contains(t, report, "USDC:\n- Deposit: 0.36% APY (0.36% APR)")
	assert.Contains(t, report, "- LTV: 80%")
	assert.Contains(t, report, "- Liquidation Threshold: 85%")
	assert.Contains(t, report, "DAI:")
	assert.Contains(t, report, "Failed to fetch data for:\nWBTC: execution reverted")
	assert.NotContains(t, report, "ETH:", "native asset has no pool reserve")
}

func TestSnapshotsMarkFailedAssets(t *testing.T) {
	reader := &fakeReader{errs: map[string]error{}}
	p := &Provider{Chain: reader, Log: zerolog.Nop()}

	snapshots := p.Snapshots(context.Background())
	require.NotEmpty(t, snapshots)
	for _, s := range snapshots {
		assert.Error(t, s.Err)
		assert.Zero(t, s.DepositAPR)
	}
}

func TestPriceReport(t *testing.T) {
	reader := &fakeReader{prices: map[string]float64{
		"0x87dce67002e66C17BC0d723Fe20D736b80CAaFda": 2514.7,
		"0xFadA8b0737D4A3AE7118918B7E69E689034c0127": 0.9998,
		"0x9388954B816B2030B003c81A779316394b3f3f11": 1.0001,
	}}
	p := &Provider{Chain: reader, Log: zerolog.Nop()}

	report := p.PriceReport(context.Background())
	assert.Contains(t, report, "Current asset prices from oracle feeds:")
	assert.Contains(t, report, "ETH: $2514.70")
	assert.Contains(t, report, "USDC: $1.00")

	p = &Provider{Chain: &fakeReader{priceErr: errors.New("timeout")}, Log: zerolog.Nop()}
	assert.Equal(t, "Sorry, I encountered an error while fetching price feed data.", p.PriceReport(context.Background()))
}
