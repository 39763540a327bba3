// Package market turns raw pool reserve records and oracle answers into the
// per-asset rate snapshots and the formatted reports that planning prompts
// and the HTTP API consume.
package market

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orchardfi/advisor/internal/assets"
	"github.com/orchardfi/advisor/internal/chain"
)

// secondsPerYear is the compounding interval count in the APY formula.
const secondsPerYear = 31536000

var rayUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil))

// Reader is the chain surface the provider needs.
type Reader interface {
	ReserveData(ctx context.Context, assetAddress string) (chain.ReserveData, error)
	OraclePrice(ctx context.Context, oracleAddress string) (float64, error)
}

// ReserveConfig is the decoded form of the pool's packed configuration
// bitmap. Percentages are whole percents (80 means 80%).
type ReserveConfig struct {
	LTV                    float64 `json:"ltv"`
	LiquidationThreshold   float64 `json:"liquidationThreshold"`
	LiquidationBonus       float64 `json:"liquidationBonus"`
	Decimals               uint8   `json:"decimals"`
	Active                 bool    `json:"isActive"`
	Frozen                 bool    `json:"isFrozen"`
	BorrowingEnabled       bool    `json:"borrowingEnabled"`
	StableBorrowingEnabled bool    `json:"stableBorrowingEnabled"`
	ReserveFactor          float64 `json:"reserveFactor"`
}

// Snapshot holds one asset's rates as percentages rounded to two decimals.
// Err is set when the reserve read failed; the rate fields are then zero.
type Snapshot struct {
	Symbol            string        `json:"asset"`
	Address           string        `json:"address"`
	DepositAPY        float64       `json:"depositAPY"`
	VariableBorrowAPY float64       `json:"variableBorrowAPY"`
	StableBorrowAPY   float64       `json:"stableBorrowAPY"`
	DepositAPR        float64       `json:"depositAPR"`
	VariableBorrowAPR float64       `json:"variableBorrowAPR"`
	StableBorrowAPR   float64       `json:"stableBorrowAPR"`
	Config            ReserveConfig `json:"config"`
	Err               error         `json:"-"`
}

// Price is one oracle reading in USD.
type Price struct {
	Symbol string  `json:"asset"`
	Price  float64 `json:"price"`
}

// Provider reads market state for every asset in the registry.
type Provider struct {
	Chain Reader
	Log   zerolog.Logger
}

// DecodeReserveConfig unpacks the configuration bitmap. Percent fields are
// stored as basis-point style integers (percent times 100) and divided down
// with integer division.
func DecodeReserveConfig(data *big.Int) ReserveConfig {
	mask16 := big.NewInt(0xFFFF)
	field := func(shift uint, mask *big.Int) uint64 {
		return new(big.Int).And(new(big.Int).Rsh(data, shift), mask).Uint64()
	}
	return ReserveConfig{
		LTV:                    float64(field(0, mask16) / 100),
		LiquidationThreshold:   float64(field(16, mask16) / 100),
		LiquidationBonus:       float64(field(32, mask16) / 100),
		Decimals:               uint8(field(48, big.NewInt(0xFF))),
		Active:                 field(56, big.NewInt(1)) == 1,
		Frozen:                 field(57, big.NewInt(1)) == 1,
		BorrowingEnabled:       field(58, big.NewInt(1)) == 1,
		StableBorrowingEnabled: field(59, big.NewInt(1)) == 1,
		ReserveFactor:          float64(field(64, mask16) / 100),
	}
}

// APRFromRay converts a ray-scaled (10^27) per-second rate to a simple annual
// percentage, rounded to two decimals.
func APRFromRay(ray *big.Int) float64 {
	rate, _ := new(big.Float).Quo(new(big.Float).SetInt(ray), rayUnit).Float64()
	return round2(rate * 100)
}

// APYFromRay converts a ray-scaled rate to a per-second compounded annual
// percentage, rounded to two decimals.
func APYFromRay(ray *big.Int) float64 {
	rate, _ := new(big.Float).Quo(new(big.Float).SetInt(ray), rayUnit).Float64()
	apy := math.Pow(1+rate/secondsPerYear, secondsPerYear) - 1
	return round2(apy * 100)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Snapshots reads the reserve record for every non-native registry asset.
// A failed read produces a Snapshot with Err set instead of aborting the
// whole sweep.
func (p *Provider) Snapshots(ctx context.Context) []Snapshot {
	var result []Snapshot
	for _, asset := range assets.All() {
		if asset.Native {
			continue
		}
		snapshot := Snapshot{Symbol: asset.Symbol, Address: asset.Address}
		reserve, err := p.Chain.ReserveData(ctx, asset.Address)
		if err != nil {
			p.Log.Warn().Err(err).Str("asset", asset.Symbol).Msg("reserve read failed")
			snapshot.Err = err
			result = append(result, snapshot)
			continue
		}
		snapshot.DepositAPY = APYFromRay(reserve.CurrentLiquidityRate)
		snapshot.VariableBorrowAPY = APYFromRay(reserve.CurrentVariableBorrowRate)
		snapshot.StableBorrowAPY = APYFromRay(reserve.CurrentStableBorrowRate)
		snapshot.DepositAPR = APRFromRay(reserve.CurrentLiquidityRate)
		snapshot.VariableBorrowAPR = APRFromRay(reserve.CurrentVariableBorrowRate)
		snapshot.StableBorrowAPR = APRFromRay(reserve.CurrentStableBorrowRate)
		snapshot.Config = DecodeReserveConfig(reserve.Configuration.Data)
		result = append(result, snapshot)
	}
	return result
}

// Report renders the snapshot sweep as the plain-text market summary used in
// planning prompts. Assets whose reads failed are listed at the end.
func (p *Provider) Report(ctx context.Context) string {
	snapshots := p.Snapshots(ctx)

	var b strings.Builder
	b.WriteString("Here's the current Aave market data:\n\n")
	for _, s := range snapshots {
		if s.Err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", s.Symbol)
		fmt.Fprintf(&b, "- Deposit: %v%% APY (%v%% APR)\n", s.DepositAPY, s.DepositAPR)
		fmt.Fprintf(&b, "- Variable Borrow: %v%% APY (%v%% APR)\n", s.VariableBorrowAPY, s.VariableBorrowAPR)
		fmt.Fprintf(&b, "- Stable Borrow: %v%% APY (%v%% APR)\n", s.StableBorrowAPY, s.StableBorrowAPR)
		fmt.Fprintf(&b, "- LTV: %v%%\n", s.Config.LTV)
		fmt.Fprintf(&b, "- Liquidation Threshold: %v%%\n\n", s.Config.LiquidationThreshold)
	}

	var failed []Snapshot
	for _, s := range snapshots {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nFailed to fetch data for:\n")
		for _, s := range failed {
			fmt.Fprintf(&b, "%s: %v\n", s.Symbol, s.Err)
		}
	}
	return b.String()
}

// Prices reads every registry asset's oracle feed.
func (p *Provider) Prices(ctx context.Context) ([]Price, error) {
	var result []Price
	for _, asset := range assets.All() {
		value, err := p.Chain.OraclePrice(ctx, asset.OracleAddress)
		if err != nil {
			return nil, fmt.Errorf("price of %s: %w", asset.Symbol, err)
		}
		result = append(result, Price{Symbol: asset.Symbol, Price: value})
	}
	return result, nil
}

// PriceReport renders oracle prices as plain text, or an apology line when
// any feed read fails.
func (p *Provider) PriceReport(ctx context.Context) string {
	prices, err := p.Prices(ctx)
	if err != nil {
		p.Log.Warn().Err(err).Msg("price sweep failed")
		return "Sorry, I encountered an error while fetching price feed data."
	}
	var b strings.Builder
	b.WriteString("Current asset prices from oracle feeds:\n\n")
	for _, price := range prices {
		fmt.Fprintf(&b, "%s: $%.2f\n", price.Symbol, price.Price)
	}
	return b.String()
}
