// Package assets holds the static registry of lending-pool assets the agent
// can propose, together with fallback rate figures used when live market data
// is unavailable.
package assets

import "strings"

type Asset struct {
	Symbol        string
	Address       string // token contract; empty for the native asset
	OracleAddress string
	Native        bool
}

// RateInfo mirrors the pool reserve configuration figures the planner needs,
// expressed as decimals (0.85 = 85%).
type RateInfo struct {
	APR                  float64
	LTV                  float64
	LiquidationThreshold float64
}

var registry = []Asset{
	{
		Symbol:        "ETH",
		Native:        true,
		OracleAddress: "0x87dce67002e66C17BC0d723Fe20D736b80CAaFda",
	},
	{
		Symbol:        "WBTC",
		Address:       "0x5EA79f3190ff37418d42F9B2618688494dBD9693",
		OracleAddress: "0x87dce67002e66C17BC0d723Fe20D736b80CAaFda",
	},
	{
		Symbol:        "USDC",
		Address:       "0x2C9678042D52B97D27f2bD2947F7111d93F3dD0D",
		OracleAddress: "0xFadA8b0737D4A3AE7118918B7E69E689034c0127",
	},
	{
		Symbol:        "DAI",
		Address:       "0x7984E363c38b590bB4CA35aEd5133Ef2c6619C40",
		OracleAddress: "0x9388954B816B2030B003c81A779316394b3f3f11",
	},
}

var fallbackRates = map[string]RateInfo{
	"USDC": {APR: 0.0036, LTV: 0.80, LiquidationThreshold: 0.850},
	"DAI":  {APR: 0.0037, LTV: 0.75, LiquidationThreshold: 0.800},
	"ETH":  {APR: 0.0052, LTV: 0.80, LiquidationThreshold: 0.825},
	"WBTC": {APR: 0.0017, LTV: 0.70, LiquidationThreshold: 0.750},
	"USDT": {APR: 0.0035, LTV: 0.75, LiquidationThreshold: 0.800},
	"WETH": {APR: 0.0052, LTV: 0.80, LiquidationThreshold: 0.825},
}

var genericFallback = RateInfo{APR: 0.003, LTV: 0.75, LiquidationThreshold: 0.80}

var volatile = map[string]bool{"ETH": true, "WBTC": true, "WETH": true}
var stable = map[string]bool{"USDC": true, "USDT": true, "DAI": true}

var descriptions = map[string]string{
	"USDC": "USDC is a regulated stablecoin backed by US Dollar reserves, providing security and stability.",
	"DAI":  "DAI is a decentralized stablecoin that maintains its value through a system of smart contracts and collateralization.",
	"ETH":  "ETH is the native cryptocurrency of the Ethereum blockchain and the foundation of many DeFi applications.",
	"WBTC": "WBTC (Wrapped Bitcoin) allows you to use Bitcoin in Ethereum-based DeFi applications while maintaining exposure to BTC price movements.",
	"USDT": "USDT (Tether) is a stablecoin pegged to the US Dollar, offering stability for your investment.",
	"WETH": "WETH is a wrapped version of ETH that conforms to the ERC-20 standard, making it compatible with all Ethereum dApps.",
}

var riskNotes = map[string]string{
	"USDC": "This is a relatively low-risk investment as stablecoins maintain their peg to the US Dollar. However, smart contract risks still exist.",
	"DAI":  "While DAI is designed to maintain its peg to the US Dollar, it relies on over-collateralization which introduces some systemic risk.",
	"ETH":  "ETH price can be volatile, which affects your principal investment. Consider your risk tolerance before proceeding.",
	"WBTC": "Bitcoin price volatility directly affects WBTC value. This is a higher risk option with potential for greater returns or losses.",
	"USDT": "While USDT is a stablecoin, it has faced questions about its reserves. It carries slightly more risk than other stablecoins.",
	"WETH": "As a wrapped version of ETH, WETH carries the same price volatility risks as ETH, plus smart contract risks.",
}

// Lookup resolves a symbol case-insensitively against the supported set.
func Lookup(symbol string) (Asset, bool) {
	want := strings.ToUpper(strings.TrimSpace(symbol))
	for _, asset := range registry {
		if asset.Symbol == want {
			return asset, true
		}
	}
	return Asset{}, false
}

// All returns the supported assets in registry order.
func All() []Asset {
	out := make([]Asset, len(registry))
	copy(out, registry)
	return out
}

func SupportedSymbols() []string {
	out := make([]string, 0, len(registry))
	for _, asset := range registry {
		out = append(out, asset.Symbol)
	}
	return out
}

// Fallback returns the fixed rate table entry for the symbol, or the generic
// fallback for symbols the table does not know.
func Fallback(symbol string) RateInfo {
	if info, ok := fallbackRates[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return info
	}
	return genericFallback
}

func RiskLevel(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case volatile[upper]:
		return "Medium to High"
	case stable[upper]:
		return "Low"
	default:
		return "Medium"
	}
}

func Description(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if d, ok := descriptions[upper]; ok {
		return d
	}
	return upper + " is a popular asset on Aave with competitive returns."
}

func RiskNote(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if n, ok := riskNotes[upper]; ok {
		return n
	}
	return "This investment carries some level of risk. Please consider your risk tolerance before proceeding."
}
